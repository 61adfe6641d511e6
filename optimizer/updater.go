package optimizer

import (
	"fmt"
	"strings"
)

// UpdaterType represents the per-parameter update rule
type UpdaterType int

const (
	SGD UpdaterType = iota
	Adam
	RMSProp
)

func (ut UpdaterType) String() string {
	switch ut {
	case SGD:
		return "SGD"
	case Adam:
		return "Adam"
	case RMSProp:
		return "RMSProp"
	default:
		return "Unknown"
	}
}

// ParseUpdaterType converts a case-insensitive name to an UpdaterType
func ParseUpdaterType(name string) (UpdaterType, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sgd":
		return SGD, nil
	case "adam":
		return Adam, nil
	case "rmsprop":
		return RMSProp, nil
	default:
		return SGD, fmt.Errorf("unknown updater %q", name)
	}
}

// Updater declares an update rule and its hyperparameters.
// It is consumed when a model is initialized; applying updates belongs
// to the training step.
type Updater interface {
	// Type identifies the update rule
	Type() UpdaterType

	// Validate checks the hyperparameters
	Validate() error

	// StateTensors is the number of state tensors kept per parameter
	// tensor (Adam keeps first and second moments)
	StateTensors() int

	// Hyperparameters returns the configuration as a flat map
	Hyperparameters() map[string]interface{}
}

// NewUpdater returns the default configuration for an update rule
func NewUpdater(ut UpdaterType) (Updater, error) {
	switch ut {
	case SGD:
		return DefaultSGDConfig(), nil
	case Adam:
		return DefaultAdamConfig(), nil
	case RMSProp:
		return DefaultRMSPropConfig(), nil
	default:
		return nil, fmt.Errorf("unsupported updater type: %s", ut.String())
	}
}

// AdamConfig holds configuration for the Adam update rule
type AdamConfig struct {
	LearningRate float32
	Beta1        float32
	Beta2        float32
	Epsilon      float32
	WeightDecay  float32
}

// DefaultAdamConfig returns default Adam configuration
func DefaultAdamConfig() AdamConfig {
	return AdamConfig{
		LearningRate: 0.001,
		Beta1:        0.9,
		Beta2:        0.999,
		Epsilon:      1e-8,
		WeightDecay:  0.0,
	}
}

func (c AdamConfig) Type() UpdaterType { return Adam }
func (c AdamConfig) StateTensors() int { return 2 }

func (c AdamConfig) Validate() error {
	if c.LearningRate <= 0 {
		return fmt.Errorf("learning rate must be positive, got %f", c.LearningRate)
	}
	if c.Beta1 < 0 || c.Beta1 >= 1 {
		return fmt.Errorf("beta1 must be in [0, 1), got %f", c.Beta1)
	}
	if c.Beta2 < 0 || c.Beta2 >= 1 {
		return fmt.Errorf("beta2 must be in [0, 1), got %f", c.Beta2)
	}
	if c.Epsilon <= 0 {
		return fmt.Errorf("epsilon must be positive, got %g", c.Epsilon)
	}
	if c.WeightDecay < 0 {
		return fmt.Errorf("weight decay must be non-negative, got %f", c.WeightDecay)
	}
	return nil
}

func (c AdamConfig) Hyperparameters() map[string]interface{} {
	return map[string]interface{}{
		"learning_rate": c.LearningRate,
		"beta1":         c.Beta1,
		"beta2":         c.Beta2,
		"epsilon":       c.Epsilon,
		"weight_decay":  c.WeightDecay,
	}
}

// SGDConfig holds configuration for plain or momentum SGD
type SGDConfig struct {
	LearningRate float32
	Momentum     float32
	WeightDecay  float32
	Nesterov     bool
}

// DefaultSGDConfig returns default SGD configuration
func DefaultSGDConfig() SGDConfig {
	return SGDConfig{
		LearningRate: 0.01,
		Momentum:     0.0,
		WeightDecay:  0.0,
		Nesterov:     false,
	}
}

func (c SGDConfig) Type() UpdaterType { return SGD }

// StateTensors is 1 with momentum (velocity), 0 without
func (c SGDConfig) StateTensors() int {
	if c.Momentum > 0 {
		return 1
	}
	return 0
}

func (c SGDConfig) Validate() error {
	if c.LearningRate <= 0 {
		return fmt.Errorf("learning rate must be positive, got %f", c.LearningRate)
	}
	if c.Momentum < 0 || c.Momentum >= 1 {
		return fmt.Errorf("momentum must be in [0, 1), got %f", c.Momentum)
	}
	if c.Nesterov && c.Momentum == 0 {
		return fmt.Errorf("nesterov momentum requires momentum > 0")
	}
	if c.WeightDecay < 0 {
		return fmt.Errorf("weight decay must be non-negative, got %f", c.WeightDecay)
	}
	return nil
}

func (c SGDConfig) Hyperparameters() map[string]interface{} {
	return map[string]interface{}{
		"learning_rate": c.LearningRate,
		"momentum":      c.Momentum,
		"weight_decay":  c.WeightDecay,
		"nesterov":      c.Nesterov,
	}
}

// RMSPropConfig holds configuration for the RMSProp update rule
type RMSPropConfig struct {
	LearningRate float32
	Alpha        float32
	Epsilon      float32
	WeightDecay  float32
	Momentum     float32
	Centered     bool
}

// DefaultRMSPropConfig returns default RMSProp configuration
func DefaultRMSPropConfig() RMSPropConfig {
	return RMSPropConfig{
		LearningRate: 0.01,
		Alpha:        0.99,
		Epsilon:      1e-8,
		WeightDecay:  0.0,
		Momentum:     0.0,
		Centered:     false,
	}
}

func (c RMSPropConfig) Type() UpdaterType { return RMSProp }

// StateTensors counts the squared-gradient average plus the optional
// momentum buffer and centered gradient average
func (c RMSPropConfig) StateTensors() int {
	n := 1
	if c.Momentum > 0 {
		n++
	}
	if c.Centered {
		n++
	}
	return n
}

func (c RMSPropConfig) Validate() error {
	if c.LearningRate <= 0 {
		return fmt.Errorf("learning rate must be positive, got %f", c.LearningRate)
	}
	if c.Alpha <= 0 || c.Alpha >= 1 {
		return fmt.Errorf("alpha must be in (0, 1), got %f", c.Alpha)
	}
	if c.Epsilon <= 0 {
		return fmt.Errorf("epsilon must be positive, got %g", c.Epsilon)
	}
	if c.Momentum < 0 {
		return fmt.Errorf("momentum must be non-negative, got %f", c.Momentum)
	}
	if c.WeightDecay < 0 {
		return fmt.Errorf("weight decay must be non-negative, got %f", c.WeightDecay)
	}
	return nil
}

func (c RMSPropConfig) Hyperparameters() map[string]interface{} {
	return map[string]interface{}{
		"learning_rate": c.LearningRate,
		"alpha":         c.Alpha,
		"epsilon":       c.Epsilon,
		"weight_decay":  c.WeightDecay,
		"momentum":      c.Momentum,
		"centered":      c.Centered,
	}
}
