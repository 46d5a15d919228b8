// Package spreadsheet parses CSV and XLSX uploads into ordered rows and maps
// them locally onto an extraction schema. No remote model is involved for
// spreadsheets.
package spreadsheet

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"findocs/internal/classify"
	"findocs/internal/domain"
)

// ParsedData is the ephemeral result of parsing one spreadsheet: headers,
// rows in insertion order, and the detected subtype with its confidence.
type ParsedData struct {
	Headers    []string
	Rows       [][]string
	RowCount   int
	Subtype    domain.Subtype
	Confidence float64
}

// Parse decodes a spreadsheet buffer by file type and classifies its
// subtype from the filename and header row.
func Parse(buf []byte, fileType domain.FileType, filename string) (*ParsedData, error) {
	var (
		records [][]string
		err     error
	)
	switch fileType {
	case domain.FileTypeCSV:
		records, err = readCSV(buf)
	case domain.FileTypeXLSX:
		records, err = readXLSX(buf)
	default:
		return nil, fmt.Errorf("parsing spreadsheet: %w", domain.ErrUnsupportedFileType)
	}
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("parsing spreadsheet: no rows found")
	}

	parsed := &ParsedData{
		Headers:  records[0],
		Rows:     records[1:],
		RowCount: len(records) - 1,
	}
	parsed.Subtype, parsed.Confidence = classify.DetectSpreadsheetSubtype(filename, parsed.Headers)
	return parsed, nil
}

func readCSV(buf []byte) ([][]string, error) {
	r := csv.NewReader(bytes.NewReader(buf))
	r.FieldsPerRecord = -1 // ragged rows are tolerated
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading csv: %w", err)
	}
	return records, nil
}

func readXLSX(buf []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("opening xlsx: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("reading xlsx: workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("reading xlsx rows: %w", err)
	}
	return rows, nil
}

// logical field -> header keywords, used for column mapping per subtype.
var columnKeywords = map[domain.Subtype]map[string][]string{
	domain.SubtypePayroll: {
		"employee":  {"employee", "name"},
		"hours":     {"hours", "hrs"},
		"gross_pay": {"gross"},
		"net_pay":   {"net"},
	},
	domain.SubtypeProfitLoss: {
		"label":    {"category", "account", "description", "item", "line"},
		"amount":   {"amount", "total", "value"},
		"period":   {"period", "month", "quarter", "year"},
	},
	domain.SubtypeEmployeeRoster: {
		"name":       {"name", "employee"},
		"title":      {"title", "role", "position"},
		"department": {"department", "team"},
	},
}

// MapColumns resolves logical schema fields to header indexes for the given
// subtype. Fields with no matching header are absent from the result.
func MapColumns(subtype domain.Subtype, headers []string) map[string]int {
	mapping := map[string]int{}
	keywords, ok := columnKeywords[subtype]
	if !ok {
		return mapping
	}
	for field, kws := range keywords {
		for i, h := range headers {
			lowered := strings.ToLower(h)
			matched := false
			for _, kw := range kws {
				if strings.Contains(lowered, kw) {
					mapping[field] = i
					matched = true
					break
				}
			}
			if matched {
				break
			}
		}
	}
	return mapping
}

// BuildExtractedData maps parsed rows onto the typed extraction schema for
// the detected subtype. Roster and unknown spreadsheets fall back to the
// generic shape.
func BuildExtractedData(parsed *ParsedData) domain.ExtractedData {
	mapping := MapColumns(parsed.Subtype, parsed.Headers)

	switch parsed.Subtype {
	case domain.SubtypePayroll:
		return buildPayroll(parsed, mapping)
	case domain.SubtypeProfitLoss:
		return buildProfitLoss(parsed, mapping)
	default:
		return buildGeneric(parsed)
	}
}

func buildPayroll(parsed *ParsedData, mapping map[string]int) domain.PayrollData {
	data := domain.PayrollData{Entries: make([]domain.PayrollEntry, 0, len(parsed.Rows))}
	for _, row := range parsed.Rows {
		entry := domain.PayrollEntry{
			Employee: cell(row, mapping, "employee"),
			Hours:    amount(cell(row, mapping, "hours")),
			GrossPay: amount(cell(row, mapping, "gross_pay")),
			NetPay:   amount(cell(row, mapping, "net_pay")),
		}
		data.Entries = append(data.Entries, entry)
		data.TotalGross += entry.GrossPay
		data.TotalNet += entry.NetPay
	}
	return data
}

// revenue-flavored labels; anything else on a P&L row counts as an expense.
var revenueLabels = []string{"revenue", "income", "sales", "earnings"}

func buildProfitLoss(parsed *ParsedData, mapping map[string]int) domain.ProfitLossData {
	var data domain.ProfitLossData
	for _, row := range parsed.Rows {
		label := cell(row, mapping, "label")
		amt := amount(cell(row, mapping, "amount"))
		if data.Period == "" {
			data.Period = cell(row, mapping, "period")
		}

		isRevenue := false
		lowered := strings.ToLower(label)
		for _, kw := range revenueLabels {
			if strings.Contains(lowered, kw) {
				isRevenue = true
				break
			}
		}

		if isRevenue {
			data.RevenueLines = append(data.RevenueLines, domain.RevenueLine{Label: label, Amount: amt})
			data.TotalRevenue += amt
		} else {
			data.Expenses = append(data.Expenses, domain.ExpenseLine{Category: label, Amount: amt})
			data.TotalExpenses += amt
		}
	}
	data.NetIncome = data.TotalRevenue - data.TotalExpenses
	return data
}

func buildGeneric(parsed *ParsedData) domain.GenericData {
	data := domain.GenericData{LineItems: make([]domain.GenericLineItem, 0, len(parsed.Rows))}
	for _, row := range parsed.Rows {
		if len(row) == 0 {
			continue
		}
		item := domain.GenericLineItem{Label: row[0]}
		if len(row) > 1 {
			item.Value = strings.Join(row[1:], "; ")
		}
		data.LineItems = append(data.LineItems, item)
	}
	return data
}

func cell(row []string, mapping map[string]int, field string) string {
	i, ok := mapping[field]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// amount parses a financial figure, tolerating currency symbols, thousands
// separators, and accounting-style negatives.
func amount(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	negative := strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")")
	s = strings.Trim(s, "()")
	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, ",", "")
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	if negative {
		return -v
	}
	return v
}
