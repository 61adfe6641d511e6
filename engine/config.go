package engine

import (
	"fmt"
	"strings"

	"github.com/tsawler/trajgan/optimizer"
)

// WeightInit selects how weight tensors are drawn at Init
type WeightInit int

const (
	// Xavier draws from N(0, 2/(fanIn+fanOut))
	Xavier WeightInit = iota
	// XavierUniform draws from U(-sqrt(6/(fanIn+fanOut)), +sqrt(6/(fanIn+fanOut)))
	XavierUniform
	// He draws from N(0, 2/fanIn)
	He
	// Zero leaves weights at 0
	Zero
)

func (wi WeightInit) String() string {
	switch wi {
	case Xavier:
		return "Xavier"
	case XavierUniform:
		return "XavierUniform"
	case He:
		return "He"
	case Zero:
		return "Zero"
	default:
		return "Unknown"
	}
}

// ParseWeightInit converts a case-insensitive name to a WeightInit
func ParseWeightInit(name string) (WeightInit, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "xavier":
		return Xavier, nil
	case "xavier_uniform", "xavieruniform":
		return XavierUniform, nil
	case "he":
		return He, nil
	case "zero", "zeros":
		return Zero, nil
	default:
		return Xavier, fmt.Errorf("unknown weight init %q", name)
	}
}

// OptimizationAlgorithm is the outer optimization procedure the updater
// runs inside
type OptimizationAlgorithm int

const (
	StochasticGradientDescent OptimizationAlgorithm = iota
)

func (oa OptimizationAlgorithm) String() string {
	switch oa {
	case StochasticGradientDescent:
		return "StochasticGradientDescent"
	default:
		return "Unknown"
	}
}

// ModelConfig holds the hyperparameters attached to a graph when it is
// turned into a Model. They are metadata, not topology.
type ModelConfig struct {
	Seed       int64
	Algorithm  OptimizationAlgorithm
	Updater    optimizer.Updater
	WeightInit WeightInit
}

// DefaultModelConfig returns seed 123, SGD with the Adam update rule and
// Xavier weights
func DefaultModelConfig() ModelConfig {
	return ModelConfig{
		Seed:       123,
		Algorithm:  StochasticGradientDescent,
		Updater:    optimizer.DefaultAdamConfig(),
		WeightInit: Xavier,
	}
}

// Validate checks the configuration
func (c ModelConfig) Validate() error {
	if c.Algorithm != StochasticGradientDescent {
		return fmt.Errorf("unsupported optimization algorithm: %s", c.Algorithm.String())
	}
	if c.Updater == nil {
		return fmt.Errorf("updater must be set")
	}
	if err := c.Updater.Validate(); err != nil {
		return fmt.Errorf("invalid %s updater: %w", c.Updater.Type().String(), err)
	}
	switch c.WeightInit {
	case Xavier, XavierUniform, He, Zero:
	default:
		return fmt.Errorf("unsupported weight init: %d", int(c.WeightInit))
	}
	return nil
}
