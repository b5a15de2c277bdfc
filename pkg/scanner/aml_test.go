package scanner

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractFeaturesLengthAndRange(t *testing.T) {
	body := []byte("ACGTACGTACGTNNNNACGT")
	features := ExtractFeatures(body, 784)
	require.Len(t, features, 784)
	for _, f := range features {
		assert.GreaterOrEqual(t, f, 0.0)
		assert.LessOrEqual(t, f, 1.0)
	}
}

func TestExtractFeaturesEmptyBodyIsTotal(t *testing.T) {
	features := ExtractFeatures(nil, 784)
	require.Len(t, features, 784)
	for _, f := range features {
		assert.Equal(t, 0.0, f)
	}
}

func TestExtractFeaturesPadsToDim(t *testing.T) {
	features := ExtractFeatures([]byte("ACGT"), 100)
	assert.Len(t, features, 100)
}

func identityModel(dim int) *Model {
	enc := make([][]float64, dim)
	for i := range enc {
		enc[i] = make([]float64, dim)
		enc[i][i] = 10
	}
	dec := make([][]float64, dim)
	for i := range dec {
		dec[i] = make([]float64, dim)
		dec[i][i] = 10
	}
	return &Model{
		EncoderWeights: enc,
		EncoderBias:    make([]float64, dim),
		DecoderWeights: dec,
		DecoderBias:    make([]float64, dim),
		InputDim:       dim,
		HiddenDim:      dim,
	}
}

func TestScanAMLSkipsWithoutModel(t *testing.T) {
	r := ScanAML(nil, []byte("ACGTACGT"), 0.1, 784)
	assert.True(t, r.Skipped)
	assert.Equal(t, 784, r.Detail.FeatureDim)
}

func TestScanAMLProducesScoreWithModel(t *testing.T) {
	m := identityModel(32)
	r := ScanAML(m, []byte("ACGTACGTACGTACGT"), 0.5, 32)
	assert.False(t, r.Skipped)
	assert.GreaterOrEqual(t, r.Detail.Score, 0.0)
	assert.Equal(t, 0.5, r.Detail.Threshold)
}

func TestModelSaveLoadRoundTrip(t *testing.T) {
	m := identityModel(16)
	path := filepath.Join(t.TempDir(), "model.gob")
	require.NoError(t, SaveModel(path, m))

	loaded, err := LoadModel(path)
	require.NoError(t, err)
	assert.Equal(t, m.InputDim, loaded.InputDim)
	assert.Equal(t, m.HiddenDim, loaded.HiddenDim)
}

func TestLoadModelMissingFileErrors(t *testing.T) {
	_, err := LoadModel(filepath.Join(t.TempDir(), "missing.gob"))
	assert.Error(t, err)
}

func TestReconstructDimensionsMatchInput(t *testing.T) {
	m := identityModel(8)
	out := m.Reconstruct(make([]float64, 8))
	assert.Len(t, out, 8)
}
