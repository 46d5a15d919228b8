package classify

import (
	"strings"
	"unicode"
)

const (
	// minTabularLines is the minimum non-blank line count before detection
	// is attempted at all.
	minTabularLines = 3

	// delimiterRatioThreshold flags text as tabular when any single
	// delimiter pattern is consistent across more than 30% of lines.
	delimiterRatioThreshold = 0.30

	// numericDensityThreshold flags text as tabular when more than 20% of
	// lines each carry three or more numeric tokens.
	numericDensityThreshold = 0.20
)

// DetectTabularContent reports whether extracted text looks like row/column
// structured data. The heuristic is deliberately permissive: the signal only
// biases schema selection toward line-item extraction, so false positives
// are acceptable while missed tables are not.
func DetectTabularContent(text string) bool {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) < minTabularLines {
		return false
	}

	total := float64(len(lines))
	var tabLines, commaLines, spaceRunLines, numericLines int

	for _, line := range lines {
		if strings.Contains(line, "\t") {
			tabLines++
		}
		if strings.Count(line, ",") > 2 {
			commaLines++
		}
		if countSpaceRuns(line) > 2 {
			spaceRunLines++
		}
		if countNumericTokens(line) >= 3 {
			numericLines++
		}
	}

	if float64(tabLines)/total > delimiterRatioThreshold ||
		float64(commaLines)/total > delimiterRatioThreshold ||
		float64(spaceRunLines)/total > delimiterRatioThreshold {
		return true
	}

	return float64(numericLines)/total > numericDensityThreshold
}

// countSpaceRuns counts occurrences of two-or-more consecutive spaces.
func countSpaceRuns(line string) int {
	runs := 0
	runLen := 0
	for _, r := range line {
		if r == ' ' {
			runLen++
			continue
		}
		if runLen >= 2 {
			runs++
		}
		runLen = 0
	}
	if runLen >= 2 {
		runs++
	}
	return runs
}

// countNumericTokens counts whitespace-delimited tokens containing at least
// one digit after stripping common financial punctuation.
func countNumericTokens(line string) int {
	count := 0
	for _, tok := range strings.Fields(line) {
		tok = strings.Trim(tok, "$()%,.-")
		if tok == "" {
			continue
		}
		hasDigit := true
		for _, r := range tok {
			if !unicode.IsDigit(r) && r != '.' && r != ',' {
				hasDigit = false
				break
			}
		}
		if hasDigit {
			count++
		}
	}
	return count
}
