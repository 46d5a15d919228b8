// Package classify holds the pure heuristics of the ingestion pipeline:
// document subtype inference, tabular-content detection, and extraction
// strategy routing. Nothing here performs I/O; results are hints that bias
// downstream decisions, never validated truth.
package classify

import (
	"strings"

	"findocs/internal/domain"
)

// keyword groups for filename-based subtype inference, matched
// case-insensitively as substrings.
var (
	payrollKeywords    = []string{"payroll", "salaries", "salary", "wages", "paystub", "pay_stub"}
	profitLossKeywords = []string{"p&l", "pnl", "profit", "income", "revenue", "earnings"}
	rosterKeywords     = []string{"roster", "employee", "headcount", "staff"}
)

func matchesAny(name string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(name, kw) {
			return true
		}
	}
	return false
}

// DetectPDFSubtype infers a PDF's financial subtype from its filename.
// Absence of a recognizable keyword yields SubtypeGeneric.
func DetectPDFSubtype(filename string) domain.Subtype {
	name := strings.ToLower(filename)
	switch {
	case matchesAny(name, payrollKeywords):
		return domain.SubtypePayroll
	case matchesAny(name, profitLossKeywords):
		return domain.SubtypeProfitLoss
	default:
		return domain.SubtypeGeneric
	}
}

// DetectSpreadsheetSubtype infers a spreadsheet's subtype from its filename
// and parsed header row, returning the subtype and a confidence in [0,1].
//
// Filename keywords alone give 0.6 confidence; each corroborating header
// adds 0.1 up to 0.9. Headers alone (no filename match) give 0.3 per
// matching header up to 0.7. No signal at all yields SubtypeUnknown with
// zero confidence.
func DetectSpreadsheetSubtype(filename string, headers []string) (domain.Subtype, float64) {
	name := strings.ToLower(filename)

	lowered := make([]string, len(headers))
	for i, h := range headers {
		lowered[i] = strings.ToLower(strings.TrimSpace(h))
	}

	type candidate struct {
		subtype  domain.Subtype
		nameHit  bool
		headerKw []string
	}
	candidates := []candidate{
		{domain.SubtypePayroll, matchesAny(name, payrollKeywords),
			[]string{"gross", "net pay", "hours", "employee", "wage", "salary"}},
		{domain.SubtypeProfitLoss, matchesAny(name, profitLossKeywords),
			[]string{"revenue", "expense", "income", "cost", "amount", "category"}},
		{domain.SubtypeEmployeeRoster, matchesAny(name, rosterKeywords),
			[]string{"name", "title", "department", "start date", "email"}},
	}

	best := domain.SubtypeUnknown
	bestScore := 0.0

	for _, c := range candidates {
		headerHits := 0
		for _, kw := range c.headerKw {
			for _, h := range lowered {
				if strings.Contains(h, kw) {
					headerHits++
					break
				}
			}
		}

		score := 0.0
		switch {
		case c.nameHit:
			score = 0.6 + 0.1*float64(headerHits)
			if score > 0.9 {
				score = 0.9
			}
		case headerHits > 0:
			score = 0.3 * float64(headerHits)
			if score > 0.7 {
				score = 0.7
			}
		}

		if score > bestScore {
			bestScore = score
			best = c.subtype
		}
	}

	return best, bestScore
}
