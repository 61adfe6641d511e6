package gan

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/tsawler/trajgan/engine"
	"github.com/tsawler/trajgan/layers"
)

// ErrNoTrainer is returned by Pair.Train when no training hook is given.
var ErrNoTrainer = errors.New("no training procedure attached")

// Config holds the sizes and hyperparameters used to assemble a Pair
type Config struct {
	NoiseSize   int
	HiddenSize  int
	MaxTrajLen  int
	ArrayLength int

	ScoreActivation layers.Activation
	Model           engine.ModelConfig
}

// DefaultConfig returns noise 32, hidden 64, trajectory and array length
// 128, a LeakyReLU score and the default model configuration.
func DefaultConfig() Config {
	return Config{
		NoiseSize:       32,
		HiddenSize:      64,
		MaxTrajLen:      128,
		ArrayLength:     128,
		ScoreActivation: layers.LeakyReLU,
		Model:           engine.DefaultModelConfig(),
	}
}

// Validate checks the sizes and the model configuration
func (c Config) Validate() error {
	for _, arg := range []struct {
		name  string
		value int
	}{
		{"NoiseSize", c.NoiseSize},
		{"HiddenSize", c.HiddenSize},
		{"MaxTrajLen", c.MaxTrajLen},
		{"ArrayLength", c.ArrayLength},
	} {
		if arg.value <= 0 {
			return &layers.InvalidArgumentError{Argument: arg.name, Value: arg.value, Reason: "must be positive"}
		}
	}
	switch c.ScoreActivation {
	case layers.Identity, layers.LeakyReLU, layers.Tanh, layers.Sigmoid:
	default:
		return &layers.InvalidArgumentError{Argument: "ScoreActivation", Value: int(c.ScoreActivation), Reason: "unknown activation"}
	}
	return c.Model.Validate()
}

// Pair is an initialized generator and discriminator
type Pair struct {
	Generator     *engine.Model
	Discriminator *engine.Model
}

// TrainFunc runs a training procedure over an assembled pair
type TrainFunc func(gen, disc *engine.Model) error

// Assemble builds both graphs, checks that the generator output feeds the
// discriminator input, and initializes a model for each.
func Assemble(cfg Config) (*Pair, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	genGraph, err := Generator(cfg.NoiseSize, cfg.HiddenSize, cfg.MaxTrajLen)
	if err != nil {
		return nil, err
	}
	discGraph, err := Discriminator(cfg.ArrayLength, cfg.HiddenSize, WithScoreActivation(cfg.ScoreActivation))
	if err != nil {
		return nil, err
	}
	if err := CheckComposable(genGraph, discGraph); err != nil {
		return nil, errors.Wrap(err, "generator output does not fit discriminator input")
	}

	gen, err := newInitializedModel(genGraph, cfg.Model)
	if err != nil {
		return nil, errors.Wrap(err, "[Generator]")
	}
	disc, err := newInitializedModel(discGraph, cfg.Model)
	if err != nil {
		return nil, errors.Wrap(err, "[Discriminator]")
	}
	return &Pair{Generator: gen, Discriminator: disc}, nil
}

func newInitializedModel(graph *layers.GraphSpec, cfg engine.ModelConfig) (*engine.Model, error) {
	model, err := engine.NewModel(graph, cfg)
	if err != nil {
		return nil, err
	}
	if err := model.Init(); err != nil {
		return nil, err
	}
	return model, nil
}

// Train hands the pair to hook. With a nil hook it returns ErrNoTrainer.
func (p *Pair) Train(hook TrainFunc) error {
	if hook == nil {
		return ErrNoTrainer
	}
	if err := hook(p.Generator, p.Discriminator); err != nil {
		return errors.Wrap(err, "training failed")
	}
	return nil
}

// Summary describes both models
func (p *Pair) Summary() string {
	return fmt.Sprintf("%s\n%s", p.Generator.Summary(), p.Discriminator.Summary())
}
