package engine

import (
	"fmt"
	"math"
	"strings"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/tsawler/trajgan/layers"
)

// Parameter is one tensor owned by a Model. Rank-3 convolution kernels
// [out, in, kernel] are stored as an out x (in*kernel) matrix and
// vectors as a single row.
type Parameter struct {
	Name      string // "<layer>.<kind>"
	Layer     string
	Kind      string // weight, bias, gamma, beta, running_mean, running_var
	Shape     []int
	Value     *mat.Dense
	Trainable bool
}

// Model is the executable form of a GraphSpec: the graph plus its
// ModelConfig plus, after Init, every parameter tensor.
type Model struct {
	spec        *layers.GraphSpec
	config      ModelConfig
	params      []*Parameter
	byName      map[string]*Parameter
	initialized bool
}

// NewModel pairs a compiled graph with its configuration. No parameters
// are allocated until Init.
func NewModel(spec *layers.GraphSpec, config ModelConfig) (*Model, error) {
	if spec == nil || spec.NumLayers() == 0 {
		return nil, fmt.Errorf("model requires a compiled graph")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid model configuration: %w", err)
	}
	return &Model{
		spec:   spec,
		config: config,
	}, nil
}

// Init validates the graph and allocates and initializes every parameter.
// It fails with a wrapped *layers.ShapeMismatchError when adjacent
// feature counts disagree. Calling Init again is a no-op.
func (m *Model) Init() error {
	if m.initialized {
		return nil
	}

	if err := m.spec.Validate(); err != nil {
		return fmt.Errorf("model validation failed: %w", err)
	}

	src := rand.NewSource(uint64(m.config.Seed))
	var params []*Parameter

	for layerIndex, layerSpec := range m.spec.Layers() {
		var layerParams []*Parameter
		var err error

		switch layerSpec.Type {
		case layers.Dense:
			layerParams, err = m.initializeDenseParameters(layerSpec, src)
		case layers.Conv1D:
			layerParams, err = m.initializeConv1DParameters(layerSpec, src)
		case layers.BatchNorm:
			layerParams, err = m.initializeBatchNormParameters(layerSpec)
		case layers.Reshape:
			continue
		default:
			err = fmt.Errorf("unsupported layer type for parameter initialization: %s", layerSpec.Type.String())
		}
		if err != nil {
			return fmt.Errorf("failed to initialize layer %d (%s) parameters: %w", layerIndex, layerSpec.Name, err)
		}
		params = append(params, layerParams...)
	}

	m.params = params
	m.byName = make(map[string]*Parameter, len(params))
	for _, p := range params {
		m.byName[p.Name] = p
	}
	m.initialized = true
	return nil
}

// initializeDenseParameters draws the [in, out] weight matrix and zeroes the bias
func (m *Model) initializeDenseParameters(layerSpec layers.LayerSpec, src rand.Source) ([]*Parameter, error) {
	if len(layerSpec.ParameterShapes) == 0 {
		return nil, fmt.Errorf("missing weight shape")
	}
	fanIn := layerSpec.InputFeatures
	fanOut := layerSpec.OutputFeatures

	weight := newParameter(layerSpec.Name, "weight", layerSpec.ParameterShapes[0], true)
	if err := m.initializeWeights(weight.Value, fanIn, fanOut, src); err != nil {
		return nil, err
	}
	params := []*Parameter{weight}

	if layerSpec.UseBias() {
		params = append(params, newParameter(layerSpec.Name, "bias", []int{fanOut}, true))
	}
	return params, nil
}

// initializeConv1DParameters draws the [out, in, kernel] weights and zeroes the bias
func (m *Model) initializeConv1DParameters(layerSpec layers.LayerSpec, src rand.Source) ([]*Parameter, error) {
	if len(layerSpec.ParameterShapes) == 0 {
		return nil, fmt.Errorf("missing kernel shape")
	}
	kernelSize := layerSpec.KernelSize()
	fanIn := layerSpec.InputFeatures * kernelSize
	fanOut := layerSpec.OutputFeatures * kernelSize

	weight := newParameter(layerSpec.Name, "weight", layerSpec.ParameterShapes[0], true)
	if err := m.initializeWeights(weight.Value, fanIn, fanOut, src); err != nil {
		return nil, err
	}
	params := []*Parameter{weight}

	if layerSpec.UseBias() {
		params = append(params, newParameter(layerSpec.Name, "bias", []int{layerSpec.OutputFeatures}, true))
	}
	return params, nil
}

// initializeBatchNormParameters sets gamma (scale) to 1 and beta (shift)
// to 0, and allocates the running mean/variance buffers
func (m *Model) initializeBatchNormParameters(layerSpec layers.LayerSpec) ([]*Parameter, error) {
	numFeatures := layerSpec.InputFeatures
	if numFeatures <= 0 {
		return nil, fmt.Errorf("missing num_features")
	}

	var params []*Parameter
	if layerSpec.Affine() {
		gamma := newParameter(layerSpec.Name, "gamma", []int{numFeatures}, true)
		fillConstant(gamma.Value, 1.0)
		params = append(params, gamma, newParameter(layerSpec.Name, "beta", []int{numFeatures}, true))
	}

	runningVar := newParameter(layerSpec.Name, "running_var", []int{numFeatures}, false)
	fillConstant(runningVar.Value, 1.0)
	params = append(params, newParameter(layerSpec.Name, "running_mean", []int{numFeatures}, false), runningVar)
	return params, nil
}

// sampler is satisfied by the distuv distributions
type sampler interface {
	Rand() float64
}

func (m *Model) initializeWeights(dst *mat.Dense, fanIn, fanOut int, src rand.Source) error {
	if fanIn <= 0 || fanOut <= 0 {
		return fmt.Errorf("invalid fan-in/fan-out %d/%d", fanIn, fanOut)
	}

	switch m.config.WeightInit {
	case Xavier:
		std := math.Sqrt(2.0 / float64(fanIn+fanOut))
		fillFrom(dst, distuv.Normal{Mu: 0, Sigma: std, Src: src})
	case XavierUniform:
		limit := math.Sqrt(6.0 / float64(fanIn+fanOut))
		fillFrom(dst, distuv.Uniform{Min: -limit, Max: limit, Src: src})
	case He:
		std := math.Sqrt(2.0 / float64(fanIn))
		fillFrom(dst, distuv.Normal{Mu: 0, Sigma: std, Src: src})
	case Zero:
		dst.Zero()
	default:
		return fmt.Errorf("unsupported weight init: %s", m.config.WeightInit.String())
	}
	return nil
}

func fillFrom(dst *mat.Dense, dist sampler) {
	r, c := dst.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			dst.Set(i, j, dist.Rand())
		}
	}
}

func fillConstant(dst *mat.Dense, v float64) {
	r, c := dst.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			dst.Set(i, j, v)
		}
	}
}

func newParameter(layer, kind string, shape []int, trainable bool) *Parameter {
	rows, cols := matrixDims(shape)
	s := make([]int, len(shape))
	copy(s, shape)
	return &Parameter{
		Name:      layer + "." + kind,
		Layer:     layer,
		Kind:      kind,
		Shape:     s,
		Value:     mat.NewDense(rows, cols, nil),
		Trainable: trainable,
	}
}

// matrixDims folds a shape into matrix dimensions: the leading axis
// becomes rows and the remaining axes are flattened into columns
func matrixDims(shape []int) (int, int) {
	switch len(shape) {
	case 0:
		return 1, 1
	case 1:
		return 1, shape[0]
	default:
		cols := 1
		for _, d := range shape[1:] {
			cols *= d
		}
		return shape[0], cols
	}
}

// Spec returns the graph the model was built from
func (m *Model) Spec() *layers.GraphSpec { return m.spec }

// Config returns the model configuration
func (m *Model) Config() ModelConfig { return m.config }

// Initialized reports whether Init has completed
func (m *Model) Initialized() bool { return m.initialized }

// Params returns every parameter and buffer in chain order
func (m *Model) Params() []*Parameter {
	out := make([]*Parameter, len(m.params))
	copy(out, m.params)
	return out
}

// Param looks up a parameter by "<layer>.<kind>"
func (m *Model) Param(name string) (*Parameter, bool) {
	p, ok := m.byName[name]
	return p, ok
}

// NumParams counts trainable scalars. Before Init it reports the count
// the graph declares.
func (m *Model) NumParams() int64 {
	if !m.initialized {
		return m.spec.TotalParameters()
	}
	var n int64
	for _, p := range m.params {
		if !p.Trainable {
			continue
		}
		r, c := p.Value.Dims()
		n += int64(r * c)
	}
	return n
}

// UpdaterStateSize is the number of scalars the updater will keep
func (m *Model) UpdaterStateSize() int64 {
	return m.NumParams() * int64(m.config.Updater.StateTensors())
}

// Summary returns the graph summary followed by the model configuration
func (m *Model) Summary() string {
	var sb strings.Builder
	sb.WriteString(m.spec.Summary())
	fmt.Fprintf(&sb, "Seed: %d\n", m.config.Seed)
	fmt.Fprintf(&sb, "Optimization: %s\n", m.config.Algorithm.String())
	fmt.Fprintf(&sb, "Updater: %s %v\n", m.config.Updater.Type().String(), m.config.Updater.Hyperparameters())
	fmt.Fprintf(&sb, "Weight Init: %s\n", m.config.WeightInit.String())
	fmt.Fprintf(&sb, "Initialized: %t\n", m.initialized)
	fmt.Fprintf(&sb, "Trainable Parameters: %d\n", m.NumParams())
	fmt.Fprintf(&sb, "Updater State: %d\n", m.UpdaterStateSize())
	return sb.String()
}
