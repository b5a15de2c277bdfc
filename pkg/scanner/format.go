package scanner

import (
	"github.com/secureai/medgenomics/pkg/types"
)

const maxFormatViolations = 32

var allowedBases = [256]bool{
	'A': true, 'C': true, 'G': true, 'T': true, 'N': true, '-': true,
	'a': true, 'c': true, 'g': true, 't': true, 'n': true,
}

func isWhitespace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\r' || b == '\n'
}

// FormatResult is the format validator's verdict.
type FormatResult struct {
	Passed bool
	Detail types.FormatDetail
}

// ValidateFormat recognizes FASTA or FASTQ by leading non-whitespace byte
// and checks every sequence line against the allowed alphabet.
func ValidateFormat(input []byte) FormatResult {
	lead := firstNonWhitespace(input)
	switch {
	case lead == '>':
		return validateFASTA(input)
	case lead == '@':
		return validateFASTQ(input)
	default:
		return FormatResult{Passed: false, Detail: types.FormatDetail{Kind: types.FormatUnknown}}
	}
}

func firstNonWhitespace(input []byte) byte {
	for _, b := range input {
		if !isWhitespace(b) {
			return b
		}
	}
	return 0
}

func splitLines(input []byte) []string {
	var lines []string
	start := 0
	for i, b := range input {
		if b == '\n' {
			line := string(input[start:i])
			if len(line) > 0 && line[len(line)-1] == '\r' {
				line = line[:len(line)-1]
			}
			lines = append(lines, line)
			start = i + 1
		}
	}
	if start < len(input) {
		lines = append(lines, string(input[start:]))
	}
	return lines
}

func validateFASTA(input []byte) FormatResult {
	lines := splitLines(input)
	detail := types.FormatDetail{Kind: types.FormatFASTA}
	currentHeader := ""
	headerOpen := false // a header has been seen with no sequence line yet
	offset := 0

	for _, line := range lines {
		lineOffset := offset
		offset += len(line) + 1

		if len(line) == 0 {
			continue
		}
		if line[0] == '>' {
			currentHeader = line
			headerOpen = true
			continue
		}
		// A record counts once its header is followed by a sequence line.
		if headerOpen {
			detail.Records++
			headerOpen = false
		}
		for i := 0; i < len(line); i++ {
			c := line[i]
			if isWhitespace(c) || allowedBases[c] {
				continue
			}
			detail.Violations = append(detail.Violations, types.FormatViolation{
				Char:   c,
				Offset: lineOffset + i,
				Header: currentHeader,
			})
			if len(detail.Violations) >= maxFormatViolations {
				detail.Truncated = true
				return FormatResult{Passed: false, Detail: detail}
			}
		}
	}

	passed := detail.Records > 0 && len(detail.Violations) == 0
	return FormatResult{Passed: passed, Detail: detail}
}

func validateFASTQ(input []byte) FormatResult {
	lines := splitLines(input)
	detail := types.FormatDetail{Kind: types.FormatFASTQ}
	offset := 0
	lineOffsets := make([]int, len(lines))
	for i, line := range lines {
		lineOffsets[i] = offset
		offset += len(line) + 1
	}

	for i := 0; i+3 < len(lines); i += 4 {
		header, seq, plus, qual := lines[i], lines[i+1], lines[i+2], lines[i+3]

		if len(header) == 0 || header[0] != '@' {
			detail.Violations = append(detail.Violations, types.FormatViolation{
				Char: firstByte(header), Offset: lineOffsets[i], Header: header,
			})
			if len(detail.Violations) >= maxFormatViolations {
				detail.Truncated = true
				return FormatResult{Passed: false, Detail: detail}
			}
			continue
		}
		if len(plus) == 0 || plus[0] != '+' {
			detail.Violations = append(detail.Violations, types.FormatViolation{
				Char: firstByte(plus), Offset: lineOffsets[i+2], Header: header,
			})
			if len(detail.Violations) >= maxFormatViolations {
				detail.Truncated = true
				return FormatResult{Passed: false, Detail: detail}
			}
			continue
		}
		if len(qual) != len(seq) {
			detail.Violations = append(detail.Violations, types.FormatViolation{
				Char: firstByte(qual), Offset: lineOffsets[i+3], Header: header,
			})
			if len(detail.Violations) >= maxFormatViolations {
				detail.Truncated = true
				return FormatResult{Passed: false, Detail: detail}
			}
			continue
		}

		detail.Records++
		for j := 0; j < len(seq); j++ {
			c := seq[j]
			if isWhitespace(c) || allowedBases[c] {
				continue
			}
			detail.Violations = append(detail.Violations, types.FormatViolation{
				Char:   c,
				Offset: lineOffsets[i+1] + j,
				Header: header,
			})
			if len(detail.Violations) >= maxFormatViolations {
				detail.Truncated = true
				return FormatResult{Passed: false, Detail: detail}
			}
		}
	}

	passed := detail.Records > 0 && len(detail.Violations) == 0
	return FormatResult{Passed: passed, Detail: detail}
}

func firstByte(s string) byte {
	if len(s) == 0 {
		return 0
	}
	return s[0]
}

// SequenceBody extracts the concatenation of sequence lines (ignoring
// headers, '+' separators, and quality lines) for use as AML detector
// input. It tolerates either format and does not validate structure.
func SequenceBody(input []byte) []byte {
	lines := splitLines(input)
	var body []byte
	fastq := firstNonWhitespace(input) == '@'

	if fastq {
		for i := 0; i+3 < len(lines); i += 4 {
			body = append(body, lines[i+1]...)
		}
		return body
	}

	for _, line := range lines {
		if len(line) == 0 || line[0] == '>' {
			continue
		}
		body = append(body, line...)
	}
	return body
}
