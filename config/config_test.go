package config_test

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"

	"github.com/sugarme/patchdct/config"
	"github.com/sugarme/patchdct/head"
)

func writeConfig(t *testing.T, content string) string {
	dir, err := ioutil.TempDir("", "patchdct")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	path := filepath.Join(dir, "config.yaml")
	if err := ioutil.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, "model:\n  roi_mask_head: {}\n")
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if want := head.DefaultConfig(); cfg != want {
		t.Errorf("want %+v\ngot  %+v", want, cfg)
	}
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
model:
  roi_mask_head:
    num_classes: 1
    cls_agnostic_mask: true
    patch_dct_vector_dim: 12
    dct_loss_type: sl1
    mask_loss_para: 0.5
    norm: BN
`)
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatal(err)
	}

	want := head.DefaultConfig()
	want.NumClasses = 1
	want.ClassAgnostic = true
	want.PatchVectorDim = 12
	want.LossType = "sl1"
	want.LossWeight = 0.5
	want.Norm = "BN"
	if cfg != want {
		t.Errorf("want %+v\ngot  %+v", want, cfg)
	}
}

func TestLoadInvalid(t *testing.T) {
	path := writeConfig(t, "model:\n  roi_mask_head:\n    dct_loss_type: huber\n")
	_, err := config.Load(path)
	if errors.Cause(err) != head.ErrUnsupportedLoss {
		t.Errorf("want ErrUnsupportedLoss, got %v", err)
	}

	if _, err := config.Load(filepath.Join(os.TempDir(), "patchdct-missing.yaml")); err == nil {
		t.Error("want error for missing file")
	}
}
