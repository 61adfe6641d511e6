package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/tsawler/trajgan/layers"
	"github.com/tsawler/trajgan/optimizer"
)

func testGraph(t *testing.T) *layers.GraphSpec {
	t.Helper()
	graph, err := layers.NewGraphBuilder("test", "in", layers.Batch, 32).
		AddDense("fc1", 32, 64, layers.LeakyReLU).
		AddUnsqueeze("u", 1).
		AddBatchNorm("bn", 1).
		AddConv1D("conv", 1, 3, 7, 3, 1, layers.Tanh).
		Compile()
	require.NoError(t, err)
	return graph
}

func TestModelInitAllocatesParameters(t *testing.T) {
	graph := testGraph(t)
	model, err := NewModel(graph, DefaultModelConfig())
	require.NoError(t, err)
	assert.False(t, model.Initialized())
	assert.Equal(t, graph.TotalParameters(), model.NumParams())

	require.NoError(t, model.Init())
	assert.True(t, model.Initialized())
	assert.Equal(t, graph.TotalParameters(), model.NumParams())

	names := make([]string, 0)
	for _, p := range model.Params() {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{
		"fc1.weight", "fc1.bias",
		"bn.gamma", "bn.beta", "bn.running_mean", "bn.running_var",
		"conv.weight", "conv.bias",
	}, names)

	w, ok := model.Param("fc1.weight")
	require.True(t, ok)
	r, c := w.Value.Dims()
	assert.Equal(t, 32, r)
	assert.Equal(t, 64, c)

	k, ok := model.Param("conv.weight")
	require.True(t, ok)
	assert.Equal(t, []int{3, 1, 7}, k.Shape)
	r, c = k.Value.Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, 7, c)

	bias, _ := model.Param("fc1.bias")
	assert.Equal(t, 0.0, mat.Sum(bias.Value))

	gamma, _ := model.Param("bn.gamma")
	assert.Equal(t, 1.0, mat.Sum(gamma.Value))
	runningVar, _ := model.Param("bn.running_var")
	assert.False(t, runningVar.Trainable)
	assert.Equal(t, 1.0, mat.Sum(runningVar.Value))

	_, ok = model.Param("missing.weight")
	assert.False(t, ok)
}

func TestXavierInitStatistics(t *testing.T) {
	graph, err := layers.NewGraphBuilder("wide", "in", layers.Batch, 200).
		AddDense("fc", 200, 300, layers.Identity).
		Compile()
	require.NoError(t, err)

	model, err := NewModel(graph, DefaultModelConfig())
	require.NoError(t, err)
	require.NoError(t, model.Init())

	w, _ := model.Param("fc.weight")
	data := w.Value.RawMatrix().Data
	mean, std := stat.MeanStdDev(data, nil)

	want := math.Sqrt(2.0 / 500.0)
	assert.InDelta(t, 0.0, mean, 0.005)
	assert.InDelta(t, want, std, want*0.05)
}

func TestXavierUniformWithinLimit(t *testing.T) {
	graph, err := layers.NewGraphBuilder("wide", "in", layers.Batch, 20).
		AddDense("fc", 20, 30, layers.Identity).
		Compile()
	require.NoError(t, err)

	cfg := DefaultModelConfig()
	cfg.WeightInit = XavierUniform
	model, err := NewModel(graph, cfg)
	require.NoError(t, err)
	require.NoError(t, model.Init())

	limit := math.Sqrt(6.0 / 50.0)
	w, _ := model.Param("fc.weight")
	assert.LessOrEqual(t, mat.Max(w.Value), limit)
	assert.GreaterOrEqual(t, mat.Min(w.Value), -limit)
}

func TestInitIsDeterministicForSeed(t *testing.T) {
	graph := testGraph(t)

	a, err := NewModel(graph, DefaultModelConfig())
	require.NoError(t, err)
	require.NoError(t, a.Init())

	b, err := NewModel(graph, DefaultModelConfig())
	require.NoError(t, err)
	require.NoError(t, b.Init())

	for _, p := range a.Params() {
		q, ok := b.Param(p.Name)
		require.True(t, ok)
		assert.True(t, mat.Equal(p.Value, q.Value), p.Name)
	}

	cfg := DefaultModelConfig()
	cfg.Seed = 7
	c, err := NewModel(graph, cfg)
	require.NoError(t, err)
	require.NoError(t, c.Init())

	wa, _ := a.Param("fc1.weight")
	wc, _ := c.Param("fc1.weight")
	assert.False(t, mat.Equal(wa.Value, wc.Value))
}

func TestInitIsIdempotent(t *testing.T) {
	model, err := NewModel(testGraph(t), DefaultModelConfig())
	require.NoError(t, err)
	require.NoError(t, model.Init())

	before, _ := model.Param("fc1.weight")
	snapshot := mat.DenseCopyOf(before.Value)

	require.NoError(t, model.Init())
	after, _ := model.Param("fc1.weight")
	assert.Same(t, before, after)
	assert.True(t, mat.Equal(snapshot, after.Value))
}

func TestZeroInit(t *testing.T) {
	cfg := DefaultModelConfig()
	cfg.WeightInit = Zero
	model, err := NewModel(testGraph(t), cfg)
	require.NoError(t, err)
	require.NoError(t, model.Init())

	w, _ := model.Param("conv.weight")
	assert.Equal(t, 0.0, mat.Norm(w.Value, 2))
}

func TestNewModelRejectsBadInput(t *testing.T) {
	_, err := NewModel(nil, DefaultModelConfig())
	assert.Error(t, err)

	_, err = NewModel(&layers.GraphSpec{}, DefaultModelConfig())
	assert.Error(t, err)

	cfg := DefaultModelConfig()
	cfg.Updater = nil
	_, err = NewModel(testGraph(t), cfg)
	assert.Error(t, err)

	cfg = DefaultModelConfig()
	cfg.Updater = optimizer.AdamConfig{LearningRate: -1}
	_, err = NewModel(testGraph(t), cfg)
	assert.Error(t, err)

	cfg = DefaultModelConfig()
	cfg.WeightInit = WeightInit(99)
	_, err = NewModel(testGraph(t), cfg)
	assert.Error(t, err)
}

func TestUpdaterStateAndSummary(t *testing.T) {
	model, err := NewModel(testGraph(t), DefaultModelConfig())
	require.NoError(t, err)
	require.NoError(t, model.Init())

	assert.Equal(t, model.NumParams()*2, model.UpdaterStateSize())

	summary := model.Summary()
	assert.Contains(t, summary, "Seed: 123")
	assert.Contains(t, summary, "Updater: Adam")
	assert.Contains(t, summary, "Weight Init: Xavier")
	assert.Contains(t, summary, "Optimization: StochasticGradientDescent")
	assert.Contains(t, summary, "Initialized: true")
}

func TestParseWeightInit(t *testing.T) {
	for name, want := range map[string]WeightInit{
		"xavier":         Xavier,
		"Xavier_Uniform": XavierUniform,
		"HE":             He,
		"zeros":          Zero,
	} {
		got, err := ParseWeightInit(name)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseWeightInit("orthogonal")
	assert.Error(t, err)
}

func TestMatrixDims(t *testing.T) {
	r, c := matrixDims([]int{5})
	assert.Equal(t, [2]int{1, 5}, [2]int{r, c})
	r, c = matrixDims([]int{3, 4})
	assert.Equal(t, [2]int{3, 4}, [2]int{r, c})
	r, c = matrixDims([]int{3, 2, 7})
	assert.Equal(t, [2]int{3, 14}, [2]int{r, c})
}
