package gan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsawler/trajgan/layers"
)

func TestGeneratorTopology(t *testing.T) {
	g, err := Generator(32, 64, 128)
	require.NoError(t, err)

	assert.Equal(t, "generator", g.Name())
	assert.Equal(t, "noiseInput", g.InputName())
	assert.Equal(t, "conv1d", g.OutputName())
	assert.Equal(t, []int{layers.Batch, 32}, g.InputShape())
	assert.Equal(t, []int{layers.Batch, TrajectoryChannels, 128}, g.OutputShape())
	require.Equal(t, 6, g.NumLayers())

	names := make([]string, 0, g.NumLayers())
	inputs := make([]string, 0, g.NumLayers())
	for _, l := range g.Layers() {
		names = append(names, l.Name)
		inputs = append(inputs, l.Input)
	}
	assert.Equal(t, []string{"layer1", "layer2", "layer3", "unsqueeze", "batchNorm", "conv1d"}, names)
	assert.Equal(t, []string{"noiseInput", "layer1", "layer2", "layer3", "unsqueeze", "batchNorm"}, inputs)

	l1, _ := g.Layer("layer1")
	assert.Equal(t, 32, l1.InputFeatures)
	assert.Equal(t, 64, l1.OutputFeatures)
	assert.Equal(t, layers.LeakyReLU, l1.Activation)

	l2, _ := g.Layer("layer2")
	assert.Equal(t, 128, l2.OutputFeatures)

	l3, _ := g.Layer("layer3")
	assert.Equal(t, 128, l3.InputFeatures)
	assert.Equal(t, 128, l3.OutputFeatures)

	bn, _ := g.Layer("batchNorm")
	assert.Equal(t, layers.BatchNorm, bn.Type)
	assert.Equal(t, 1, bn.InputFeatures)
	assert.Equal(t, []int{layers.Batch, 1, 128}, bn.InputShape)

	conv, _ := g.Layer("conv1d")
	assert.Equal(t, layers.Conv1D, conv.Type)
	assert.Equal(t, 1, conv.InputFeatures)
	assert.Equal(t, 3, conv.OutputFeatures)
	assert.Equal(t, 7, conv.KernelSize())
	assert.Equal(t, 3, conv.Padding())
	assert.Equal(t, 1, conv.Stride())
	assert.Equal(t, layers.Tanh, conv.Activation)

	// 2112 + 8320 + 16512 + 2 + 24
	assert.Equal(t, int64(26970), g.TotalParameters())
}

func TestGeneratorFollowsArguments(t *testing.T) {
	sizes := []struct{ noise, hidden, length int }{
		{1, 1, 1},
		{8, 16, 50},
		{100, 32, 7},
	}
	for _, s := range sizes {
		g, err := Generator(s.noise, s.hidden, s.length)
		require.NoError(t, err)

		first := g.Layers()[0]
		assert.Equal(t, s.noise, first.InputFeatures)
		l3, _ := g.Layer("layer3")
		assert.Equal(t, s.length, l3.OutputFeatures)
		assert.Equal(t, []int{layers.Batch, 3, s.length}, g.OutputShape())
	}
}

func TestDiscriminatorTopology(t *testing.T) {
	d, err := Discriminator(128, 64)
	require.NoError(t, err)

	assert.Equal(t, "discriminator", d.Name())
	assert.Equal(t, []int{layers.Batch, TrajectoryChannels, 128}, d.InputShape())
	assert.Equal(t, []int{layers.Batch, 1}, d.OutputShape())
	require.Equal(t, 6, d.NumLayers())

	squeeze, _ := d.Layer("squeeze")
	assert.Equal(t, squeeze.InputShape, squeeze.OutputShape)

	conv, _ := d.Layer("conv1d")
	assert.Equal(t, 3, conv.InputFeatures)
	assert.Equal(t, 1, conv.OutputFeatures)
	assert.Equal(t, 2, conv.Stride())
	assert.Equal(t, layers.LeakyReLU, conv.Activation)
	assert.Equal(t, []int{layers.Batch, 1, 64}, conv.OutputShape)

	squeeze2, _ := d.Layer("squeeze2")
	assert.Equal(t, []int{layers.Batch, 64}, squeeze2.OutputShape)

	dense1, _ := d.Layer("dense1")
	assert.Equal(t, 64, dense1.InputFeatures)
	assert.Equal(t, 64, dense1.OutputFeatures)
	dense2, _ := d.Layer("dense2")
	assert.Equal(t, 32, dense2.OutputFeatures)
	dense3, _ := d.Layer("dense3")
	assert.Equal(t, 32, dense3.InputFeatures)
	assert.Equal(t, 1, dense3.OutputFeatures)
	assert.Equal(t, layers.LeakyReLU, dense3.Activation)

	// 22 + 4160 + 2080 + 33
	assert.Equal(t, int64(6295), d.TotalParameters())
}

func TestDiscriminatorDenseInputIsHalfLength(t *testing.T) {
	for _, length := range []int{2, 4, 10, 64, 200} {
		d, err := Discriminator(length, 16)
		require.NoError(t, err, "length %d", length)
		dense1, _ := d.Layer("dense1")
		assert.Equal(t, length/2, dense1.InputFeatures)
	}
}

func TestDiscriminatorRejectsOddLength(t *testing.T) {
	_, err := Discriminator(127, 64)
	require.Error(t, err)

	var sm *layers.ShapeMismatchError
	require.ErrorAs(t, err, &sm)
	assert.Equal(t, "dense1", sm.Layer)
	assert.Equal(t, 63, sm.Expected)
	assert.Equal(t, 64, sm.Actual)
	assert.Contains(t, err.Error(), "[Discriminator]")
}

func TestDiscriminatorScoreActivation(t *testing.T) {
	d, err := Discriminator(16, 8, WithScoreActivation(layers.Sigmoid))
	require.NoError(t, err)
	dense3, _ := d.Layer("dense3")
	assert.Equal(t, layers.Sigmoid, dense3.Activation)

	dense2, _ := d.Layer("dense2")
	assert.Equal(t, layers.LeakyReLU, dense2.Activation)
}

func TestBuildersRejectInvalidArguments(t *testing.T) {
	tests := []struct {
		name  string
		build func() error
	}{
		{"zero noise", func() error { _, err := Generator(0, 64, 128); return err }},
		{"negative hidden", func() error { _, err := Generator(32, -1, 128); return err }},
		{"zero trajectory length", func() error { _, err := Generator(32, 64, 0); return err }},
		{"array length one", func() error { _, err := Discriminator(1, 64); return err }},
		{"hidden one", func() error { _, err := Discriminator(128, 1); return err }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.build()
			require.Error(t, err)
			assert.True(t, layers.IsInvalidArgument(err), "got %v", err)
		})
	}
}

func TestBuildersAreIdempotent(t *testing.T) {
	g1, err := Generator(32, 64, 128)
	require.NoError(t, err)
	g2, err := Generator(32, 64, 128)
	require.NoError(t, err)
	assert.True(t, g1.Equal(g2))

	d1, err := Discriminator(128, 64)
	require.NoError(t, err)
	d2, err := Discriminator(128, 64)
	require.NoError(t, err)
	assert.True(t, d1.Equal(d2))

	d3, err := Discriminator(128, 64, WithScoreActivation(layers.Tanh))
	require.NoError(t, err)
	assert.False(t, d1.Equal(d3))
}

func TestCheckComposable(t *testing.T) {
	g, err := Generator(32, 64, 128)
	require.NoError(t, err)
	d, err := Discriminator(128, 64)
	require.NoError(t, err)
	assert.NoError(t, CheckComposable(g, d))

	short, err := Generator(32, 64, 100)
	require.NoError(t, err)
	err = CheckComposable(short, d)
	var sm *layers.ShapeMismatchError
	require.ErrorAs(t, err, &sm)
	assert.Equal(t, "input", sm.Layer)
	assert.Equal(t, "length", sm.Dimension)
	assert.Equal(t, 128, sm.Expected)
	assert.Equal(t, 100, sm.Actual)

	flat, err := layers.NewGraphBuilder("flat", "z", layers.Batch, 4).
		AddDense("fc", 4, 128, layers.Tanh).
		Compile()
	require.NoError(t, err)
	err = CheckComposable(flat, d)
	require.ErrorAs(t, err, &sm)
	assert.Equal(t, "rank", sm.Dimension)

	assert.Error(t, CheckComposable(nil, d))
}

func TestScoreLoss(t *testing.T) {
	assert.Contains(t, ScoreLoss(layers.Sigmoid), "binary cross-entropy")
	assert.Contains(t, ScoreLoss(layers.LeakyReLU), "logits")
	assert.Contains(t, ScoreLoss(layers.Identity), "Wasserstein")
	assert.NotEqual(t, ScoreLoss(layers.Tanh), ScoreLoss(layers.LeakyReLU))
}
