package scanner

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"math"
	"os"

	"github.com/secureai/medgenomics/pkg/types"
)

const (
	defaultFeatureDim = 784
	maxBodyLength     = 250_000
)

var bases = [4]byte{'A', 'C', 'G', 'T'}

func baseIndex(c byte) (int, bool) {
	switch c {
	case 'A', 'a':
		return 0, true
	case 'C', 'c':
		return 1, true
	case 'G', 'g':
		return 2, true
	case 'T', 't':
		return 3, true
	default:
		return 0, false
	}
}

// ExtractFeatures computes the fixed-length feature vector described for
// the AML detector: 64 trinucleotide frequencies, 16 dinucleotide
// frequencies, GC fraction, normalized longest homopolymer run, and four
// per-base homopolymer-maxima means, padded with zeros to dim.
func ExtractFeatures(body []byte, dim int) []float64 {
	if dim <= 0 {
		dim = defaultFeatureDim
	}
	if len(body) > maxBodyLength {
		body = body[:maxBodyLength]
	}

	var tri [64]float64
	var di [16]float64
	triTotal, diTotal := 0, 0
	gcCount, baseCount := 0, 0

	var homopolymerMax [4]int
	curRun, curBase, longestRun := 0, -1, 0

	for i := 0; i < len(body); i++ {
		idx, ok := baseIndex(body[i])
		if !ok {
			curRun, curBase = 0, -1
			continue
		}
		baseCount++
		if idx == 1 || idx == 2 {
			gcCount++
		}

		if idx == curBase {
			curRun++
		} else {
			curBase, curRun = idx, 1
		}
		if curRun > longestRun {
			longestRun = curRun
		}
		if curRun > homopolymerMax[idx] {
			homopolymerMax[idx] = curRun
		}

		if i+1 < len(body) {
			idx2, ok2 := baseIndex(body[i+1])
			if ok2 {
				di[idx*4+idx2]++
				diTotal++
			}
		}
		if i+2 < len(body) {
			idx2, ok2 := baseIndex(body[i+1])
			idx3, ok3 := baseIndex(body[i+2])
			if ok2 && ok3 {
				tri[idx*16+idx2*4+idx3]++
				triTotal++
			}
		}
	}

	features := make([]float64, dim)
	pos := 0
	for i := 0; i < 64 && pos < dim; i++ {
		if triTotal > 0 {
			features[pos] = tri[i] / float64(triTotal)
		}
		pos++
	}
	for i := 0; i < 16 && pos < dim; i++ {
		if diTotal > 0 {
			features[pos] = di[i] / float64(diTotal)
		}
		pos++
	}

	bodyLen := len(body)
	if bodyLen == 0 {
		bodyLen = 1
	}
	if pos < dim {
		features[pos] = float64(gcCount) / float64(bodyLen)
		pos++
	}
	if pos < dim {
		features[pos] = float64(longestRun) / float64(bodyLen)
		pos++
	}
	for i := 0; i < 4 && pos < dim; i++ {
		features[pos] = float64(homopolymerMax[i]) / float64(bodyLen)
		pos++
	}

	return features
}

// Model is a denoising autoencoder: one dense encoder layer with ReLU
// down to HiddenDim, one dense decoder layer with sigmoid back up to
// InputDim.
type Model struct {
	EncoderWeights [][]float64
	EncoderBias    []float64
	DecoderWeights [][]float64
	DecoderBias    []float64
	InputDim       int
	HiddenDim      int
}

// LoadModel decodes a gob-encoded Model from path. Callers treat a missing
// or unreadable file as "no model loaded", not a fatal error.
func LoadModel(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var m Model
	if err := gob.NewDecoder(f).Decode(&m); err != nil {
		return nil, fmt.Errorf("scanner: decode model: %w", err)
	}
	if len(m.EncoderWeights) != m.HiddenDim || len(m.DecoderWeights) != m.InputDim {
		return nil, fmt.Errorf("scanner: model dimensions inconsistent")
	}
	return &m, nil
}

// SaveModel gob-encodes m to path, for tooling that trains/calibrates a
// model offline.
func SaveModel(path string, m *Model) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(m); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o600)
}

// Reconstruct runs the encoder and decoder over features, returning the
// reconstruction.
func (m *Model) Reconstruct(features []float64) []float64 {
	hidden := make([]float64, m.HiddenDim)
	for i := 0; i < m.HiddenDim; i++ {
		sum := m.EncoderBias[i]
		row := m.EncoderWeights[i]
		for j := 0; j < len(features) && j < len(row); j++ {
			sum += row[j] * features[j]
		}
		hidden[i] = relu(sum)
	}

	out := make([]float64, m.InputDim)
	for i := 0; i < m.InputDim; i++ {
		sum := m.DecoderBias[i]
		row := m.DecoderWeights[i]
		for j := 0; j < len(hidden) && j < len(row); j++ {
			sum += row[j] * hidden[j]
		}
		out[i] = sigmoid(sum)
	}
	return out
}

func relu(x float64) float64 {
	if x < 0 {
		return 0
	}
	return x
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// AMLResult is the AML detector's verdict. Skipped is true when no model
// was loaded; in that case Passed is meaningless and the pipeline must
// treat the stage as skip, not pass or fail.
type AMLResult struct {
	Passed  bool
	Skipped bool
	Detail  types.AMLDetail
}

// ScanAML extracts features from body, runs the reconstruction model if
// present, and scores reconstruction error. A nil model yields Skipped.
func ScanAML(model *Model, body []byte, threshold float64, dim int) AMLResult {
	if dim <= 0 {
		dim = defaultFeatureDim
	}
	bodyUsed := len(body)
	if bodyUsed > maxBodyLength {
		bodyUsed = maxBodyLength
	}

	if model == nil {
		return AMLResult{
			Skipped: true,
			Detail: types.AMLDetail{
				Threshold:      threshold,
				FeatureDim:     dim,
				BodyLengthUsed: bodyUsed,
			},
		}
	}

	features := ExtractFeatures(body, dim)
	reconstruction := model.Reconstruct(features)

	sumSq := 0.0
	for i := range features {
		d := features[i] - reconstruction[i]
		sumSq += d * d
	}
	score := sumSq / float64(len(features))

	return AMLResult{
		Passed: score <= threshold,
		Detail: types.AMLDetail{
			Score:          score,
			Threshold:      threshold,
			FeatureDim:     dim,
			BodyLengthUsed: bodyUsed,
		},
	}
}
