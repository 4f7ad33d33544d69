package head

import (
	"github.com/pkg/errors"
)

// Config holds the mask head hyperparameters. It is read once at construction
// and never mutated by the head.
type Config struct {
	// NumClasses is the number of foreground classes predicted per patch.
	NumClasses int64 `mapstructure:"num_classes"`
	// ClassAgnostic predicts a single vector per patch regardless of class.
	ClassAgnostic bool `mapstructure:"cls_agnostic_mask"`

	// CoarseVectorDim is the DCT vector length of the whole coarse mask.
	CoarseVectorDim int64 `mapstructure:"dct_vector_dim"`
	// PatchVectorDim is the DCT vector length of one patch.
	PatchVectorDim int64 `mapstructure:"patch_dct_vector_dim"`
	// MaskSize is the side of the coarse mask and of the returned masks.
	MaskSize int64 `mapstructure:"mask_size"`
	// Scale is the number of patches along each side of the mask.
	Scale int64 `mapstructure:"scale"`

	LossType   string  `mapstructure:"dct_loss_type"`
	LossWeight float64 `mapstructure:"mask_loss_para"`
	// DegenerateThreshold (b1) bounds, in DC units, the patches treated as all
	// background (<= b1) or all foreground (>= PatchSize-b1).
	DegenerateThreshold float64 `mapstructure:"degenerate_threshold"`

	InChannels       int64  `mapstructure:"in_channels"`
	ConvDim          int64  `mapstructure:"conv_dim"`
	NumConv          int64  `mapstructure:"num_conv"`
	Norm             string `mapstructure:"norm"`
	HiddenDim        int64  `mapstructure:"hidden_dim"`
	PoolerResolution int64  `mapstructure:"pooler_resolution"`
	FineResolution   int64  `mapstructure:"fine_features_resolution"`
}

// DefaultConfig returns the COCO defaults.
func DefaultConfig() Config {
	return Config{
		NumClasses:          80,
		CoarseVectorDim:     300,
		PatchVectorDim:      6,
		MaskSize:            128,
		Scale:               14,
		LossType:            string(L1),
		LossWeight:          1.0,
		DegenerateThreshold: 1,
		InChannels:          256,
		ConvDim:             256,
		NumConv:             4,
		HiddenDim:           1024,
		PoolerResolution:    14,
		FineResolution:      42,
	}
}

// PatchSize is the side of one patch.
func (c Config) PatchSize() int64 {
	return c.MaskSize / c.Scale
}

// AssembledSize is the side of the mask covered by the patch grid. It equals
// MaskSize when Scale divides MaskSize.
func (c Config) AssembledSize() int64 {
	return c.Scale * c.PatchSize()
}

// Ratio is the stride that brings fine features down to the patch grid.
func (c Config) Ratio() int64 {
	return c.FineResolution / c.Scale
}

// PredictedClasses is the number of class channel groups in predictions.
func (c Config) PredictedClasses() int64 {
	if c.ClassAgnostic {
		return 1
	}
	return c.NumClasses
}

// Validate checks the config for values the head cannot work with.
func (c Config) Validate() error {
	if _, err := ParseLossType(c.LossType); err != nil {
		return err
	}

	switch {
	case c.NumClasses < 1:
		return errors.Errorf("invalid num_classes %d", c.NumClasses)
	case c.Scale < 1 || c.MaskSize < c.Scale:
		return errors.Errorf("invalid grid: mask_size %d, scale %d", c.MaskSize, c.Scale)
	case c.CoarseVectorDim < 1 || c.CoarseVectorDim > c.MaskSize*c.MaskSize:
		return errors.Errorf("dct_vector_dim %d out of range [1, %d]", c.CoarseVectorDim, c.MaskSize*c.MaskSize)
	case c.PatchVectorDim < 1 || c.PatchVectorDim > c.PatchSize()*c.PatchSize():
		return errors.Errorf("patch_dct_vector_dim %d out of range [1, %d]", c.PatchVectorDim, c.PatchSize()*c.PatchSize())
	case c.DegenerateThreshold < 0:
		return errors.Errorf("invalid degenerate_threshold %v", c.DegenerateThreshold)
	case c.InChannels < 1 || c.ConvDim < 1 || c.HiddenDim < 1 || c.NumConv < 0:
		return errors.Errorf("invalid layer dims: in_channels %d, conv_dim %d, hidden_dim %d, num_conv %d",
			c.InChannels, c.ConvDim, c.HiddenDim, c.NumConv)
	case c.PoolerResolution < 1:
		return errors.Errorf("invalid pooler_resolution %d", c.PoolerResolution)
	case c.FineResolution < c.Scale || c.FineResolution%c.Scale != 0:
		return errors.Errorf("fine_features_resolution %d is not a multiple of scale %d", c.FineResolution, c.Scale)
	case c.Norm != "" && c.Norm != "BN":
		return errors.Errorf("unsupported norm %q", c.Norm)
	}

	return nil
}
