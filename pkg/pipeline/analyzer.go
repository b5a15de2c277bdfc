package pipeline

import (
	"context"
	"fmt"

	"github.com/secureai/medgenomics/pkg/scanner"
)

// Analyzer is the external analysis collaborator the analyze stage calls
// after persist succeeds. It reads the plaintext once and returns a small
// structured result. Errors are non-fatal: the pipeline records them on
// the analyze stage only and still reaches completed.
type Analyzer interface {
	Analyze(ctx context.Context, jobID string, plaintext []byte) (string, error)
}

// LocalSummaryAnalyzer is the default in-process Analyzer: it derives a
// short human-readable summary from the sequence body without any
// external network call. Deployments that want a real downstream
// collaborator implement Analyzer themselves and pass it to NewExecutor.
type LocalSummaryAnalyzer struct{}

func (LocalSummaryAnalyzer) Analyze(ctx context.Context, jobID string, plaintext []byte) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	body := scanner.SequenceBody(plaintext)
	if len(body) == 0 {
		return "", fmt.Errorf("pipeline: empty sequence body")
	}
	gc := 0
	for _, c := range body {
		if c == 'G' || c == 'C' || c == 'g' || c == 'c' {
			gc++
		}
	}
	return fmt.Sprintf("length=%d gc_fraction=%.4f", len(body), float64(gc)/float64(len(body))), nil
}
