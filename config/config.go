// Package config loads the mask head configuration from YAML.
package config

import (
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/sugarme/patchdct/head"
)

// File is the layout of a config file. Mask head keys live under
// model.roi_mask_head.
type File struct {
	Model struct {
		ROIMaskHead head.Config `mapstructure:"roi_mask_head"`
	} `mapstructure:"model"`
}

const prefix = "model.roi_mask_head."

// Load reads the YAML file at path, fills missing keys with
// head.DefaultConfig and validates the result.
func Load(path string) (head.Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return head.Config{}, errors.Wrapf(err, "failed to read config file %q", path)
	}

	return decode(v)
}

func decode(v *viper.Viper) (head.Config, error) {
	var f File
	if err := v.Unmarshal(&f); err != nil {
		return head.Config{}, errors.Wrap(err, "failed to unmarshal config")
	}

	cfg := f.Model.ROIMaskHead
	if err := cfg.Validate(); err != nil {
		return head.Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := head.DefaultConfig()

	v.SetDefault(prefix+"num_classes", d.NumClasses)
	v.SetDefault(prefix+"cls_agnostic_mask", d.ClassAgnostic)
	v.SetDefault(prefix+"dct_vector_dim", d.CoarseVectorDim)
	v.SetDefault(prefix+"patch_dct_vector_dim", d.PatchVectorDim)
	v.SetDefault(prefix+"mask_size", d.MaskSize)
	v.SetDefault(prefix+"scale", d.Scale)
	v.SetDefault(prefix+"dct_loss_type", d.LossType)
	v.SetDefault(prefix+"mask_loss_para", d.LossWeight)
	v.SetDefault(prefix+"degenerate_threshold", d.DegenerateThreshold)

	v.SetDefault(prefix+"in_channels", d.InChannels)
	v.SetDefault(prefix+"conv_dim", d.ConvDim)
	v.SetDefault(prefix+"num_conv", d.NumConv)
	v.SetDefault(prefix+"norm", d.Norm)
	v.SetDefault(prefix+"hidden_dim", d.HiddenDim)
	v.SetDefault(prefix+"pooler_resolution", d.PoolerResolution)
	v.SetDefault(prefix+"fine_features_resolution", d.FineResolution)
}
