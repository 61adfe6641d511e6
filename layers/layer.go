package layers

import (
	"fmt"
	"reflect"
	"strings"
)

// LayerType represents the type of a layer in a graph
type LayerType int

const (
	Dense LayerType = iota
	Reshape
	BatchNorm
	Conv1D
)

func (lt LayerType) String() string {
	switch lt {
	case Dense:
		return "Dense"
	case Reshape:
		return "Reshape"
	case BatchNorm:
		return "BatchNorm"
	case Conv1D:
		return "Conv1D"
	default:
		return "Unknown"
	}
}

// Activation is the element-wise function applied to a layer's output
type Activation int

const (
	Identity Activation = iota
	LeakyReLU
	Tanh
	Sigmoid
)

// DefaultNegativeSlope is the slope LeakyReLU applies to negative inputs
const DefaultNegativeSlope = 0.01

func (a Activation) String() string {
	switch a {
	case Identity:
		return "Identity"
	case LeakyReLU:
		return "LeakyReLU"
	case Tanh:
		return "Tanh"
	case Sigmoid:
		return "Sigmoid"
	default:
		return "Unknown"
	}
}

// Bounded reports whether the activation's output lies in a finite range
func (a Activation) Bounded() bool {
	return a == Tanh || a == Sigmoid
}

// ParseActivation converts a case-insensitive name ("leakyrelu", "tanh",
// "sigmoid", "identity") to an Activation
func ParseActivation(name string) (Activation, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "identity", "linear", "none":
		return Identity, nil
	case "leakyrelu", "leaky_relu", "leaky-relu":
		return LeakyReLU, nil
	case "tanh":
		return Tanh, nil
	case "sigmoid":
		return Sigmoid, nil
	default:
		return Identity, invalidArgument("activation", name, "unknown activation")
	}
}

// ReshapeOp selects how a Reshape layer changes the rank of its input
type ReshapeOp int

const (
	// Unsqueeze inserts a size-1 axis at the given position
	Unsqueeze ReshapeOp = iota
	// Squeeze removes the axis at the given position when its extent is 1.
	// An axis with any other extent is left in place.
	Squeeze
)

func (op ReshapeOp) String() string {
	switch op {
	case Unsqueeze:
		return "unsqueeze"
	case Squeeze:
		return "squeeze"
	default:
		return "unknown"
	}
}

// Batch marks the batch dimension of a shape. It is always axis 0 and is
// carried through shape inference untouched.
const Batch = -1

// LayerSpec defines one node of a graph.
// This is pure configuration - no execution logic
type LayerSpec struct {
	Type       LayerType              `json:"type"`
	Name       string                 `json:"name"`
	Input      string                 `json:"input"`
	Activation Activation             `json:"activation"`
	Parameters map[string]interface{} `json:"parameters"`

	// Declared feature counts (channels for Conv1D and BatchNorm).
	// Reshape layers declare neither.
	InputFeatures  int `json:"input_features,omitempty"`
	OutputFeatures int `json:"output_features,omitempty"`

	// Shape information (computed during graph compilation)
	InputShape  []int `json:"input_shape,omitempty"`
	OutputShape []int `json:"output_shape,omitempty"`

	// Parameter metadata (computed during graph compilation)
	ParameterShapes [][]int `json:"parameter_shapes,omitempty"`
	ParameterCount  int64   `json:"parameter_count,omitempty"`
}

// ReshapeOp returns the reshape operation and axis of a Reshape layer
func (ls LayerSpec) ReshapeOp() (ReshapeOp, int) {
	op, _ := ls.Parameters["op"].(ReshapeOp)
	return op, getIntParam(ls.Parameters, "axis", 1)
}

// KernelSize, Padding and Stride of a Conv1D layer
func (ls LayerSpec) KernelSize() int { return getIntParam(ls.Parameters, "kernel_size", 1) }
func (ls LayerSpec) Padding() int    { return getIntParam(ls.Parameters, "padding", 0) }
func (ls LayerSpec) Stride() int     { return getIntParam(ls.Parameters, "stride", 1) }

// UseBias reports whether a Dense or Conv1D layer carries a bias vector
func (ls LayerSpec) UseBias() bool { return getBoolParam(ls.Parameters, "use_bias", true) }

// Affine reports whether a BatchNorm layer learns scale and shift
func (ls LayerSpec) Affine() bool { return getBoolParam(ls.Parameters, "affine", true) }

// Eps and Momentum of a BatchNorm layer
func (ls LayerSpec) Eps() float32      { return getFloatParam(ls.Parameters, "eps", 1e-5) }
func (ls LayerSpec) Momentum() float32 { return getFloatParam(ls.Parameters, "momentum", 0.1) }

func (ls LayerSpec) clone() LayerSpec {
	out := ls
	if ls.Parameters != nil {
		out.Parameters = make(map[string]interface{}, len(ls.Parameters))
		for k, v := range ls.Parameters {
			out.Parameters[k] = v
		}
	}
	out.InputShape = copyShape(ls.InputShape)
	out.OutputShape = copyShape(ls.OutputShape)
	out.ParameterShapes = copyShapes(ls.ParameterShapes)
	return out
}

// GraphSpec is a compiled, immutable linear layer graph: a designated
// input, an ordered chain of layers and a designated output.
// It is only produced by GraphBuilder.Compile, and every accessor
// returns a copy.
type GraphSpec struct {
	name            string
	inputName       string
	inputShape      []int
	outputName      string
	outputShape     []int
	layers          []LayerSpec
	parameterShapes [][]int
	totalParameters int64
}

func (gs *GraphSpec) Name() string           { return gs.name }
func (gs *GraphSpec) InputName() string      { return gs.inputName }
func (gs *GraphSpec) OutputName() string     { return gs.outputName }
func (gs *GraphSpec) InputShape() []int      { return copyShape(gs.inputShape) }
func (gs *GraphSpec) OutputShape() []int     { return copyShape(gs.outputShape) }
func (gs *GraphSpec) NumLayers() int         { return len(gs.layers) }
func (gs *GraphSpec) TotalParameters() int64 { return gs.totalParameters }

// ParameterShapes returns the shape of every learnable tensor in chain order
func (gs *GraphSpec) ParameterShapes() [][]int { return copyShapes(gs.parameterShapes) }

// Layers returns the layers in chain order
func (gs *GraphSpec) Layers() []LayerSpec {
	out := make([]LayerSpec, len(gs.layers))
	for i, l := range gs.layers {
		out[i] = l.clone()
	}
	return out
}

// Layer looks up a layer by name
func (gs *GraphSpec) Layer(name string) (LayerSpec, bool) {
	for _, l := range gs.layers {
		if l.Name == name {
			return l.clone(), true
		}
	}
	return LayerSpec{}, false
}

// Equal reports whether two graphs are structurally identical: same
// names, layer kinds, order, parameters and shapes.
func (gs *GraphSpec) Equal(other *GraphSpec) bool {
	if gs == nil || other == nil {
		return gs == other
	}
	return reflect.DeepEqual(*gs, *other)
}

// Validate re-runs the structural checks Compile performs: unique names,
// a single chain from input to output and agreement of every declared
// feature count with its predecessor.
func (gs *GraphSpec) Validate() error {
	if gs == nil {
		return invalidArgument("graph", nil, "graph is nil")
	}
	check := &GraphSpec{
		name:       gs.name,
		inputName:  gs.inputName,
		inputShape: copyShape(gs.inputShape),
		layers:     make([]LayerSpec, len(gs.layers)),
	}
	for i, l := range gs.layers {
		check.layers[i] = l.clone()
	}
	return check.infer()
}

// GraphBuilder helps construct layer graphs.
// Argument errors are recorded and reported by Compile, so calls can be chained.
type GraphBuilder struct {
	name       string
	inputName  string
	inputShape []int
	layers     []LayerSpec
	err        error
}

// NewGraphBuilder creates a builder for a graph whose single input is
// named inputName. inputShape starts with the batch axis (use Batch).
func NewGraphBuilder(name, inputName string, inputShape ...int) *GraphBuilder {
	return &GraphBuilder{
		name:       name,
		inputName:  inputName,
		inputShape: copyShape(inputShape),
		layers:     make([]LayerSpec, 0),
	}
}

func (gb *GraphBuilder) fail(err error) *GraphBuilder {
	if gb.err == nil {
		gb.err = err
	}
	return gb
}

func (gb *GraphBuilder) last() string {
	if len(gb.layers) == 0 {
		return gb.inputName
	}
	return gb.layers[len(gb.layers)-1].Name
}

// AddLayer appends a layer to the chain. An empty Input is wired to the
// previous layer (or the graph input for the first layer).
func (gb *GraphBuilder) AddLayer(layer LayerSpec) *GraphBuilder {
	if layer.Input == "" {
		layer.Input = gb.last()
	}
	if layer.Parameters == nil {
		layer.Parameters = map[string]interface{}{}
	}
	gb.layers = append(gb.layers, layer)
	return gb
}

// AddDense adds a fully connected layer mapping nIn features to nOut
func (gb *GraphBuilder) AddDense(name string, nIn, nOut int, activation Activation) *GraphBuilder {
	if nIn <= 0 {
		return gb.fail(invalidArgument(name+".nIn", nIn, "must be positive"))
	}
	if nOut <= 0 {
		return gb.fail(invalidArgument(name+".nOut", nOut, "must be positive"))
	}
	return gb.AddLayer(LayerSpec{
		Type:           Dense,
		Name:           name,
		Activation:     activation,
		InputFeatures:  nIn,
		OutputFeatures: nOut,
		Parameters: map[string]interface{}{
			"use_bias": true,
		},
	})
}

// AddReshape adds a rank-changing layer with no parameters
func (gb *GraphBuilder) AddReshape(name string, op ReshapeOp, axis int) *GraphBuilder {
	if op != Unsqueeze && op != Squeeze {
		return gb.fail(invalidArgument(name+".op", int(op), "unknown reshape operation"))
	}
	if axis < 1 {
		return gb.fail(invalidArgument(name+".axis", axis, "axis 0 is the batch axis"))
	}
	return gb.AddLayer(LayerSpec{
		Type:       Reshape,
		Name:       name,
		Activation: Identity,
		Parameters: map[string]interface{}{
			"op":   op,
			"axis": axis,
		},
	})
}

// AddUnsqueeze inserts a size-1 axis at position axis
func (gb *GraphBuilder) AddUnsqueeze(name string, axis int) *GraphBuilder {
	return gb.AddReshape(name, Unsqueeze, axis)
}

// AddSqueeze removes a size-1 axis at position axis
func (gb *GraphBuilder) AddSqueeze(name string, axis int) *GraphBuilder {
	return gb.AddReshape(name, Squeeze, axis)
}

// AddBatchNorm adds a Batch Normalization layer over numFeatures channels
// eps: 1e-5, momentum: 0.1, affine: true
func (gb *GraphBuilder) AddBatchNorm(name string, numFeatures int) *GraphBuilder {
	if numFeatures <= 0 {
		return gb.fail(invalidArgument(name+".numFeatures", numFeatures, "must be positive"))
	}
	return gb.AddLayer(LayerSpec{
		Type:           BatchNorm,
		Name:           name,
		Activation:     Identity,
		InputFeatures:  numFeatures,
		OutputFeatures: numFeatures,
		Parameters: map[string]interface{}{
			"eps":      float32(1e-5),
			"momentum": float32(0.1),
			"affine":   true,
		},
	})
}

// AddConv1D adds a 1D convolution over a [batch, channels, length] tensor
func (gb *GraphBuilder) AddConv1D(
	name string,
	nIn, nOut, kernelSize, padding, stride int,
	activation Activation,
) *GraphBuilder {
	switch {
	case nIn <= 0:
		return gb.fail(invalidArgument(name+".nIn", nIn, "must be positive"))
	case nOut <= 0:
		return gb.fail(invalidArgument(name+".nOut", nOut, "must be positive"))
	case kernelSize <= 0:
		return gb.fail(invalidArgument(name+".kernelSize", kernelSize, "must be positive"))
	case stride <= 0:
		return gb.fail(invalidArgument(name+".stride", stride, "must be positive"))
	case padding < 0:
		return gb.fail(invalidArgument(name+".padding", padding, "must not be negative"))
	}
	return gb.AddLayer(LayerSpec{
		Type:           Conv1D,
		Name:           name,
		Activation:     activation,
		InputFeatures:  nIn,
		OutputFeatures: nOut,
		Parameters: map[string]interface{}{
			"kernel_size": kernelSize,
			"padding":     padding,
			"stride":      stride,
			"use_bias":    true,
		},
	})
}

// Compile checks the chain and computes shapes and parameter counts.
// No graph is returned on error.
func (gb *GraphBuilder) Compile() (*GraphSpec, error) {
	if gb.err != nil {
		return nil, gb.err
	}

	graph := &GraphSpec{
		name:       gb.name,
		inputName:  gb.inputName,
		inputShape: copyShape(gb.inputShape),
		layers:     make([]LayerSpec, len(gb.layers)),
	}
	for i, l := range gb.layers {
		graph.layers[i] = l.clone()
	}

	if err := graph.infer(); err != nil {
		return nil, err
	}
	return graph, nil
}

// infer walks the chain, filling in shapes and parameter metadata
func (gs *GraphSpec) infer() error {
	if gs.inputName == "" {
		return invalidArgument("input", gs.inputName, "graph input must be named")
	}
	if len(gs.layers) == 0 {
		return invalidArgument("layers", 0, "cannot compile empty graph")
	}
	if err := checkInputShape(gs.inputShape); err != nil {
		return err
	}

	seen := map[string]bool{gs.inputName: true}
	previous := gs.inputName
	currentShape := gs.inputShape
	var allParameterShapes [][]int
	totalParams := int64(0)

	for i := range gs.layers {
		layer := &gs.layers[i]

		if layer.Name == "" {
			return invalidArgument(fmt.Sprintf("layers[%d].name", i), "", "layer must be named")
		}
		if seen[layer.Name] {
			return invalidArgument(fmt.Sprintf("layers[%d].name", i), layer.Name, "duplicate name")
		}
		seen[layer.Name] = true

		if layer.Input != previous {
			return invalidArgument(layer.Name+".input", layer.Input,
				"graph must be a linear chain; expected input %q", previous)
		}

		layer.InputShape = copyShape(currentShape)

		outputShape, paramShapes, paramCount, err := computeLayerInfo(layer, currentShape)
		if err != nil {
			return fmt.Errorf("failed to compute layer %d (%s) info: %w", i, layer.Name, err)
		}

		layer.OutputShape = outputShape
		layer.ParameterShapes = paramShapes
		layer.ParameterCount = paramCount

		allParameterShapes = append(allParameterShapes, paramShapes...)
		totalParams += paramCount

		previous = layer.Name
		currentShape = outputShape
	}

	gs.outputName = previous
	gs.outputShape = copyShape(currentShape)
	gs.parameterShapes = allParameterShapes
	gs.totalParameters = totalParams
	return nil
}

// computeLayerInfo computes output shape and parameter information for a layer
func computeLayerInfo(layer *LayerSpec, inputShape []int) ([]int, [][]int, int64, error) {
	switch layer.Type {
	case Dense:
		return computeDenseInfo(layer, inputShape)
	case Reshape:
		return computeReshapeInfo(layer, inputShape)
	case BatchNorm:
		return computeBatchNormInfo(layer, inputShape)
	case Conv1D:
		return computeConv1DInfo(layer, inputShape)
	default:
		return nil, nil, 0, fmt.Errorf("unsupported layer type: %s", layer.Type.String())
	}
}

// computeDenseInfo computes dense layer information.
// Dense layers consume [batch, features] and produce [batch, nOut].
func computeDenseInfo(layer *LayerSpec, inputShape []int) ([]int, [][]int, int64, error) {
	if len(inputShape) != 2 {
		return nil, nil, 0, &ShapeMismatchError{Layer: layer.Name, Dimension: "rank", Expected: 2, Actual: len(inputShape)}
	}
	if inputShape[1] != layer.InputFeatures {
		return nil, nil, 0, &ShapeMismatchError{
			Layer:     layer.Name,
			Dimension: "input features",
			Expected:  layer.InputFeatures,
			Actual:    inputShape[1],
		}
	}

	inputSize := layer.InputFeatures
	outputSize := layer.OutputFeatures
	outputShape := []int{inputShape[0], outputSize}

	// Weight matrix: [inputSize, outputSize]
	paramShapes := [][]int{{inputSize, outputSize}}
	paramCount := int64(inputSize * outputSize)

	if layer.UseBias() {
		paramShapes = append(paramShapes, []int{outputSize})
		paramCount += int64(outputSize)
	}

	return outputShape, paramShapes, paramCount, nil
}

// computeReshapeInfo inserts or removes a singleton axis (no parameters)
func computeReshapeInfo(layer *LayerSpec, inputShape []int) ([]int, [][]int, int64, error) {
	op, axis := layer.ReshapeOp()

	switch op {
	case Unsqueeze:
		if axis > len(inputShape) {
			return nil, nil, 0, &ShapeMismatchError{Layer: layer.Name, Dimension: "rank", Expected: axis, Actual: len(inputShape)}
		}
		outputShape := make([]int, 0, len(inputShape)+1)
		outputShape = append(outputShape, inputShape[:axis]...)
		outputShape = append(outputShape, 1)
		outputShape = append(outputShape, inputShape[axis:]...)
		return outputShape, [][]int{}, 0, nil

	case Squeeze:
		if axis >= len(inputShape) {
			return nil, nil, 0, &ShapeMismatchError{Layer: layer.Name, Dimension: "rank", Expected: axis + 1, Actual: len(inputShape)}
		}
		if inputShape[axis] != 1 {
			return copyShape(inputShape), [][]int{}, 0, nil
		}
		outputShape := make([]int, 0, len(inputShape)-1)
		outputShape = append(outputShape, inputShape[:axis]...)
		outputShape = append(outputShape, inputShape[axis+1:]...)
		return outputShape, [][]int{}, 0, nil

	default:
		return nil, nil, 0, fmt.Errorf("unknown reshape operation %d", int(op))
	}
}

// computeBatchNormInfo computes batch normalization layer information
func computeBatchNormInfo(layer *LayerSpec, inputShape []int) ([]int, [][]int, int64, error) {
	if len(inputShape) < 2 || len(inputShape) > 3 {
		return nil, nil, 0, &ShapeMismatchError{Layer: layer.Name, Dimension: "rank", Expected: 3, Actual: len(inputShape)}
	}

	// For 2D input [batch, features] and 3D input [batch, channels, length]
	// the feature dimension is index 1
	numFeatures := layer.InputFeatures
	if inputShape[1] != numFeatures {
		return nil, nil, 0, &ShapeMismatchError{
			Layer:     layer.Name,
			Dimension: "channels",
			Expected:  numFeatures,
			Actual:    inputShape[1],
		}
	}

	// BatchNorm doesn't change the input shape
	outputShape := copyShape(inputShape)

	var paramShapes [][]int
	var paramCount int64

	if layer.Affine() {
		paramShapes = append(paramShapes, []int{numFeatures}) // gamma (scale)
		paramShapes = append(paramShapes, []int{numFeatures}) // beta (shift)
		paramCount = int64(numFeatures * 2)
	}

	// running_mean and running_var are buffers, not parameters
	return outputShape, paramShapes, paramCount, nil
}

// computeConv1DInfo computes Conv1D layer information
func computeConv1DInfo(layer *LayerSpec, inputShape []int) ([]int, [][]int, int64, error) {
	if len(inputShape) != 3 {
		return nil, nil, 0, &ShapeMismatchError{Layer: layer.Name, Dimension: "rank", Expected: 3, Actual: len(inputShape)}
	}

	inputChannels := inputShape[1]
	if inputChannels != layer.InputFeatures {
		return nil, nil, 0, &ShapeMismatchError{
			Layer:     layer.Name,
			Dimension: "channels",
			Expected:  layer.InputFeatures,
			Actual:    inputChannels,
		}
	}

	kernelSize := layer.KernelSize()
	padding := layer.Padding()
	stride := layer.Stride()
	outputChannels := layer.OutputFeatures

	inputLength := inputShape[2]
	if inputLength+2*padding < kernelSize {
		return nil, nil, 0, &ShapeMismatchError{Layer: layer.Name, Dimension: "length", Expected: kernelSize, Actual: inputLength + 2*padding}
	}
	outputLength := (inputLength+2*padding-kernelSize)/stride + 1

	outputShape := []int{inputShape[0], outputChannels, outputLength}

	// Weight tensor: [outputChannels, inputChannels, kernelSize]
	paramShapes := [][]int{{outputChannels, inputChannels, kernelSize}}
	paramCount := int64(outputChannels * inputChannels * kernelSize)

	if layer.UseBias() {
		paramShapes = append(paramShapes, []int{outputChannels})
		paramCount += int64(outputChannels)
	}

	return outputShape, paramShapes, paramCount, nil
}

func checkInputShape(shape []int) error {
	if len(shape) < 2 {
		return invalidArgument("inputShape", shape, "need a batch axis and at least one feature axis")
	}
	if shape[0] != Batch && shape[0] <= 0 {
		return invalidArgument("inputShape[0]", shape[0], "batch must be Batch or positive")
	}
	for i := 1; i < len(shape); i++ {
		if shape[i] <= 0 {
			return invalidArgument(fmt.Sprintf("inputShape[%d]", i), shape[i], "must be positive")
		}
	}
	return nil
}

// Summary returns a human-readable graph summary
func (gs *GraphSpec) Summary() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Graph Summary: %s\n", gs.name)
	fmt.Fprintf(&sb, "Input:  %s %s\n", gs.inputName, FormatShape(gs.inputShape))
	fmt.Fprintf(&sb, "Output: %s %s\n", gs.outputName, FormatShape(gs.outputShape))
	fmt.Fprintf(&sb, "Total Parameters: %d\n", gs.totalParameters)
	fmt.Fprintf(&sb, "Layers: %d\n\n", len(gs.layers))

	for i, layer := range gs.layers {
		fmt.Fprintf(&sb, "Layer %d: %s (%s) <- %s\n", i+1, layer.Name, layer.Type.String(), layer.Input)
		fmt.Fprintf(&sb, "  Input:  %s\n", FormatShape(layer.InputShape))
		fmt.Fprintf(&sb, "  Output: %s\n", FormatShape(layer.OutputShape))
		fmt.Fprintf(&sb, "  Params: %d\n", layer.ParameterCount)
		if layer.Activation != Identity {
			fmt.Fprintf(&sb, "  Activation: %s\n", layer.Activation.String())
		}
		if len(layer.Parameters) > 0 {
			fmt.Fprintf(&sb, "  Config: %v\n", layer.Parameters)
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// FormatShape renders a shape with the batch axis shown as "B"
func FormatShape(shape []int) string {
	parts := make([]string, len(shape))
	for i, d := range shape {
		if i == 0 && d == Batch {
			parts[i] = "B"
			continue
		}
		parts[i] = fmt.Sprint(d)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Helper functions for parameter extraction
func getIntParam(params map[string]interface{}, key string, defaultValue int) int {
	if val, exists := params[key]; exists {
		switch v := val.(type) {
		case int:
			return v
		case float64:
			return int(v)
		}
	}
	return defaultValue
}

func getBoolParam(params map[string]interface{}, key string, defaultValue bool) bool {
	if val, exists := params[key]; exists {
		if boolVal, ok := val.(bool); ok {
			return boolVal
		}
	}
	return defaultValue
}

func getFloatParam(params map[string]interface{}, key string, defaultValue float32) float32 {
	if val, exists := params[key]; exists {
		if floatVal, ok := val.(float32); ok {
			return floatVal
		}
		if floatVal, ok := val.(float64); ok {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func copyShape(shape []int) []int {
	if shape == nil {
		return nil
	}
	out := make([]int, len(shape))
	copy(out, shape)
	return out
}

func copyShapes(shapes [][]int) [][]int {
	if shapes == nil {
		return nil
	}
	out := make([][]int, len(shapes))
	for i, s := range shapes {
		out[i] = copyShape(s)
	}
	return out
}
