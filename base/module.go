package base

import (
	"fmt"
	"log"
	"reflect"

	"github.com/sugarme/gotch/nn"
	ts "github.com/sugarme/gotch/tensor"
)

// Conv2d creates Conv2D module.
func Conv2d(p *nn.Path, cIn, cOut, ksize, padding, stride int64) *nn.Conv2D {
	config := nn.DefaultConv2DConfig()
	config.Stride = []int64{stride, stride}
	config.Padding = []int64{padding, padding}

	return nn.NewConv2D(p, cIn, cOut, ksize, config)
}

// Conv2dNoBias creates Conv2D with no bias.
func Conv2dNoBias(p *nn.Path, cIn, cOut, ksize, padding, stride int64) *nn.Conv2D {
	config := nn.DefaultConv2DConfig()
	config.Bias = false
	config.Stride = []int64{stride, stride}
	config.Padding = []int64{padding, padding}

	return nn.NewConv2D(p, cIn, cOut, ksize, config)
}

// Conv2dRelu creates a SequentialT of Conv2D and a ReLU activation.
//
// norm selects the normalization: "" for none (conv keeps its bias) or "BN" for
// BatchNorm2D after a conv without bias.
func Conv2dRelu(p *nn.Path, cIn, cOut, ksize, padding, stride int64, norm string) *nn.SequentialT {
	seq := nn.SeqT()
	switch norm {
	case "":
		seq.Add(Conv2d(p.Sub("conv"), cIn, cOut, ksize, padding, stride))
	case "BN":
		bnConfig := nn.DefaultBatchNormConfig()
		bnConfig.Eps = 0.001
		seq.Add(Conv2dNoBias(p.Sub("conv"), cIn, cOut, ksize, padding, stride))
		seq.Add(nn.BatchNorm2D(p.Sub("bn"), cOut, bnConfig))
	default:
		log.Fatalf("Unsupported norm type %q. Expected \"\" or \"BN\".\n", norm)
	}
	seq.AddFn(nn.NewFunc(func(xs *ts.Tensor) *ts.Tensor {
		return xs.MustRelu(false)
	}))

	return seq
}

// MLP creates a stack of Linear layers with ReLU between them. dims holds the
// input dim followed by each layer's output dim. The last layer has no
// activation.
func MLP(p *nn.Path, dims []int64) *nn.SequentialT {
	if len(dims) < 2 {
		log.Fatalf("MLP: expected at least 2 dims. Got %v\n", dims)
	}

	seq := nn.SeqT()
	for i := 0; i < len(dims)-1; i++ {
		linear := nn.NewLinear(p.Sub(fmt.Sprint(i)), dims[i], dims[i+1], nn.DefaultLinearConfig())
		seq.AddFn(nn.NewFunc(func(xs *ts.Tensor) *ts.Tensor {
			return linear.Forward(xs)
		}))
		if i < len(dims)-2 {
			seq.AddFn(nn.NewFunc(func(xs *ts.Tensor) *ts.Tensor {
				return xs.MustRelu(false)
			}))
		}
	}

	return seq
}

// Upsample resizes x [N, C, H, W] to the given spatial size with `nearest`
// interpolation. The result stays attached to the autograd graph.
func Upsample(x *ts.Tensor, size []int64) *ts.Tensor {
	xSize := x.MustSize()
	if reflect.DeepEqual(xSize[2:], size) {
		return x.MustShallowClone()
	}

	return x.MustUpsampleNearest2d(size, nil, nil, false)
}
