// Package gan declares the generator and discriminator topologies of a
// GAN over one-dimensional trajectories and assembles them into
// initialized models.
//
// The generator maps a noise vector to a [batch, 3, length] tensor. The
// discriminator consumes that tensor and emits one unbounded realness
// score per sample.
package gan

import (
	"github.com/pkg/errors"

	"github.com/tsawler/trajgan/layers"
)

// TrajectoryChannels is the channel count of a generated trajectory
const TrajectoryChannels = 3

const (
	convKernel  = 7
	convPadding = 3
)

// Generator builds the generator graph:
//
//	noiseInput [B, noiseSize]
//	  -> layer1 Dense(noiseSize -> hiddenSize, LeakyReLU)
//	  -> layer2 Dense(hiddenSize -> 2*hiddenSize, LeakyReLU)
//	  -> layer3 Dense(2*hiddenSize -> maxTrajLen, LeakyReLU)
//	  -> unsqueeze [B, 1, maxTrajLen]
//	  -> batchNorm(1)
//	  -> conv1d Conv1D(1 -> 3, kernel 7, padding 3, Tanh)  [B, 3, maxTrajLen]
//
// With hiddenSize 64 the dense widths are 64 and 128.
func Generator(noiseSize, hiddenSize, maxTrajLen int) (*layers.GraphSpec, error) {
	for _, arg := range []struct {
		name  string
		value int
	}{
		{"noiseSize", noiseSize},
		{"hiddenSize", hiddenSize},
		{"maxTrajLen", maxTrajLen},
	} {
		if arg.value <= 0 {
			return nil, errors.Wrap(&layers.InvalidArgumentError{
				Argument: arg.name,
				Value:    arg.value,
				Reason:   "must be positive",
			}, "[Generator]")
		}
	}

	graph, err := layers.NewGraphBuilder("generator", "noiseInput", layers.Batch, noiseSize).
		AddDense("layer1", noiseSize, hiddenSize, layers.LeakyReLU).
		AddDense("layer2", hiddenSize, 2*hiddenSize, layers.LeakyReLU).
		AddDense("layer3", 2*hiddenSize, maxTrajLen, layers.LeakyReLU).
		AddUnsqueeze("unsqueeze", 1).
		AddBatchNorm("batchNorm", 1).
		AddConv1D("conv1d", 1, TrajectoryChannels, convKernel, convPadding, 1, layers.Tanh).
		Compile()
	if err != nil {
		return nil, errors.Wrap(err, "[Generator]")
	}
	return graph, nil
}

// DiscriminatorOption customizes the discriminator graph
type DiscriminatorOption func(*discriminatorOptions)

type discriminatorOptions struct {
	scoreActivation layers.Activation
}

// WithScoreActivation sets the activation of the final one-unit layer.
// The default is LeakyReLU. See ScoreLoss for the loss each choice needs.
func WithScoreActivation(act layers.Activation) DiscriminatorOption {
	return func(o *discriminatorOptions) {
		o.scoreActivation = act
	}
}

// Discriminator builds the discriminator graph:
//
//	input [B, 3, arrayLength]
//	  -> squeeze (drops a leading singleton channel axis if present)
//	  -> conv1d Conv1D(3 -> 1, kernel 7, padding 3, stride 2, LeakyReLU)  [B, 1, arrayLength/2]
//	  -> squeeze2 [B, arrayLength/2]
//	  -> dense1 Dense(arrayLength/2 -> hiddenSize, LeakyReLU)
//	  -> dense2 Dense(hiddenSize -> hiddenSize/2, LeakyReLU)
//	  -> dense3 Dense(hiddenSize/2 -> 1, score activation)
//
// dense1 declares arrayLength/2 inputs (integer division) while the
// stride-2 convolution produces (arrayLength-1)/2+1 steps. The two agree
// only for even arrayLength; an odd length fails with a
// *layers.ShapeMismatchError at dense1.
func Discriminator(arrayLength, hiddenSize int, opts ...DiscriminatorOption) (*layers.GraphSpec, error) {
	if arrayLength < 2 {
		return nil, errors.Wrap(&layers.InvalidArgumentError{
			Argument: "arrayLength",
			Value:    arrayLength,
			Reason:   "must be at least 2",
		}, "[Discriminator]")
	}
	if hiddenSize < 2 {
		return nil, errors.Wrap(&layers.InvalidArgumentError{
			Argument: "hiddenSize",
			Value:    hiddenSize,
			Reason:   "must be at least 2",
		}, "[Discriminator]")
	}

	o := discriminatorOptions{scoreActivation: layers.LeakyReLU}
	for _, opt := range opts {
		opt(&o)
	}

	graph, err := layers.NewGraphBuilder("discriminator", "input", layers.Batch, TrajectoryChannels, arrayLength).
		AddSqueeze("squeeze", 1).
		AddConv1D("conv1d", TrajectoryChannels, 1, convKernel, convPadding, 2, layers.LeakyReLU).
		AddSqueeze("squeeze2", 1).
		AddDense("dense1", arrayLength/2, hiddenSize, layers.LeakyReLU).
		AddDense("dense2", hiddenSize, hiddenSize/2, layers.LeakyReLU).
		AddDense("dense3", hiddenSize/2, 1, o.scoreActivation).
		Compile()
	if err != nil {
		return nil, errors.Wrap(err, "[Discriminator]")
	}
	return graph, nil
}

// ScoreLoss names the loss family the discriminator score must be
// trained with for a given final activation.
func ScoreLoss(act layers.Activation) string {
	switch act {
	case layers.Sigmoid:
		return "binary cross-entropy on probabilities"
	case layers.Tanh:
		return "hinge or least-squares on a [-1, 1] score"
	default:
		return "sigmoid cross-entropy with logits, Wasserstein or least-squares on an unbounded score"
	}
}

// CheckComposable verifies that the generator's output can be fed to the
// discriminator: same rank, channel count and length.
func CheckComposable(gen, disc *layers.GraphSpec) error {
	if gen == nil || disc == nil {
		return errors.New("composability check needs both graphs")
	}
	out := gen.OutputShape()
	in := disc.InputShape()

	if len(out) != len(in) {
		return &layers.ShapeMismatchError{Layer: disc.InputName(), Dimension: "rank", Expected: len(in), Actual: len(out)}
	}
	if out[1] != in[1] {
		return &layers.ShapeMismatchError{Layer: disc.InputName(), Dimension: "channels", Expected: in[1], Actual: out[1]}
	}
	for i := 2; i < len(in); i++ {
		if out[i] != in[i] {
			return &layers.ShapeMismatchError{Layer: disc.InputName(), Dimension: "length", Expected: in[i], Actual: out[i]}
		}
	}
	return nil
}
