package scanner

import (
	"strings"
	"testing"

	"github.com/secureai/medgenomics/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestValidateFormatUnknown(t *testing.T) {
	r := ValidateFormat([]byte("not a genomic file"))
	assert.False(t, r.Passed)
	assert.Equal(t, types.FormatUnknown, r.Detail.Kind)
}

func TestValidateFASTAHappyPath(t *testing.T) {
	input := []byte(">seq1\nACGTACGT\nNNNN\n>seq2\nacgt-acgt\n")
	r := ValidateFormat(input)
	assert.True(t, r.Passed)
	assert.Equal(t, types.FormatFASTA, r.Detail.Kind)
	assert.Equal(t, 2, r.Detail.Records)
	assert.Empty(t, r.Detail.Violations)
}

func TestValidateFASTARejectsBadAlphabet(t *testing.T) {
	input := []byte(">seq1\nACGTXQZ\n")
	r := ValidateFormat(input)
	assert.False(t, r.Passed)
	assert.NotEmpty(t, r.Detail.Violations)
	assert.Equal(t, byte('X'), r.Detail.Violations[0].Char)
	assert.Equal(t, ">seq1", r.Detail.Violations[0].Header)
}

func TestValidateFASTANoRecordsFails(t *testing.T) {
	input := []byte(">\n")
	r := ValidateFormat(input)
	assert.False(t, r.Passed)
}

func TestValidateFASTACapsViolationsAndTruncates(t *testing.T) {
	var b strings.Builder
	b.WriteString(">seq\n")
	for i := 0; i < 40; i++ {
		b.WriteString("Z")
	}
	b.WriteString("\n")
	r := ValidateFormat([]byte(b.String()))
	assert.False(t, r.Passed)
	assert.Len(t, r.Detail.Violations, maxFormatViolations)
	assert.True(t, r.Detail.Truncated)
}

func TestValidateFASTQHappyPath(t *testing.T) {
	input := []byte("@read1\nACGT\n+\nIIII\n@read2\nNNNN\n+read2\nJJJJ\n")
	r := ValidateFormat(input)
	assert.True(t, r.Passed)
	assert.Equal(t, types.FormatFASTQ, r.Detail.Kind)
	assert.Equal(t, 2, r.Detail.Records)
}

func TestValidateFASTQQualityLengthMismatch(t *testing.T) {
	input := []byte("@read1\nACGT\n+\nII\n")
	r := ValidateFormat(input)
	assert.False(t, r.Passed)
	assert.NotEmpty(t, r.Detail.Violations)
}

func TestValidateFASTQMissingPlusLine(t *testing.T) {
	input := []byte("@read1\nACGT\nXXXX\nIIII\n")
	r := ValidateFormat(input)
	assert.False(t, r.Passed)
	assert.NotEmpty(t, r.Detail.Violations)
}

func TestSequenceBodyFASTA(t *testing.T) {
	input := []byte(">seq1\nACGT\nACGT\n>seq2\nTTTT\n")
	body := SequenceBody(input)
	assert.Equal(t, "ACGTACGTTTTT", string(body))
}

func TestSequenceBodyFASTQ(t *testing.T) {
	input := []byte("@read1\nACGT\n+\nIIII\n@read2\nTTTT\n+\nIIII\n")
	body := SequenceBody(input)
	assert.Equal(t, "ACGTTTTT", string(body))
}
