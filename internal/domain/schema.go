package domain

import (
	"encoding/json"
	"fmt"
)

// SchemaKind discriminates the three extraction schemas.
type SchemaKind string

const (
	SchemaProfitLoss SchemaKind = "profit_loss"
	SchemaPayroll    SchemaKind = "payroll"
	SchemaGeneric    SchemaKind = "generic"
)

// ExtractedData is the closed union of structured extraction results. The
// three shapes below are the only implementations; consumers switch on
// Schema() and can rely on exhaustiveness.
type ExtractedData interface {
	Schema() SchemaKind
}

// RevenueLine is a single revenue entry in a P&L statement.
type RevenueLine struct {
	Label  string  `json:"label"`
	Amount float64 `json:"amount"`
}

// ExpenseLine is a single categorized expense in a P&L statement.
type ExpenseLine struct {
	Category string  `json:"category"`
	Amount   float64 `json:"amount"`
}

// ProfitLossData is the extraction shape for profit-and-loss documents.
type ProfitLossData struct {
	Period        string        `json:"period"`
	RevenueLines  []RevenueLine `json:"revenue_lines"`
	Expenses      []ExpenseLine `json:"expenses"`
	TotalRevenue  float64       `json:"total_revenue"`
	TotalExpenses float64       `json:"total_expenses"`
	NetIncome     float64       `json:"net_income"`
}

func (ProfitLossData) Schema() SchemaKind { return SchemaProfitLoss }

// PayrollEntry is a per-employee (or aggregate) pay record.
type PayrollEntry struct {
	Employee string  `json:"employee"`
	Hours    float64 `json:"hours"`
	GrossPay float64 `json:"gross_pay"`
	NetPay   float64 `json:"net_pay"`
}

// PayrollData is the extraction shape for payroll documents.
type PayrollData struct {
	PayPeriod  string         `json:"pay_period"`
	Entries    []PayrollEntry `json:"entries"`
	TotalGross float64        `json:"total_gross"`
	TotalNet   float64        `json:"total_net"`
}

func (PayrollData) Schema() SchemaKind { return SchemaPayroll }

// GenericLineItem is a free-form labeled value with an optional amount.
type GenericLineItem struct {
	Label  string   `json:"label"`
	Value  string   `json:"value,omitempty"`
	Amount *float64 `json:"amount,omitempty"`
}

// GenericData is the fallback extraction shape when no specific schema
// matches: key/value fields plus optional line items.
type GenericData struct {
	Fields    map[string]string `json:"fields,omitempty"`
	LineItems []GenericLineItem `json:"line_items,omitempty"`
}

func (GenericData) Schema() SchemaKind { return SchemaGeneric }

// extractionEnvelope is the persisted/wire form of ExtractedData.
type extractionEnvelope struct {
	Schema SchemaKind      `json:"schema"`
	Data   json.RawMessage `json:"data"`
}

// MarshalExtractedData wraps a typed extraction result in a tagged envelope
// suitable for JSONB persistence and API responses.
func MarshalExtractedData(d ExtractedData) (json.RawMessage, error) {
	if d == nil {
		return nil, fmt.Errorf("marshaling extracted data: nil value")
	}
	payload, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("marshaling extracted data: %w", err)
	}
	return json.Marshal(extractionEnvelope{Schema: d.Schema(), Data: payload})
}

// UnmarshalExtractedData decodes a tagged envelope back into the matching
// typed shape. An unrecognized schema tag yields ErrUnknownSchema.
func UnmarshalExtractedData(raw json.RawMessage) (ExtractedData, error) {
	var env extractionEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("unmarshaling extraction envelope: %w", err)
	}
	switch env.Schema {
	case SchemaProfitLoss:
		var d ProfitLossData
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return nil, fmt.Errorf("unmarshaling profit_loss data: %w", err)
		}
		return d, nil
	case SchemaPayroll:
		var d PayrollData
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return nil, fmt.Errorf("unmarshaling payroll data: %w", err)
		}
		return d, nil
	case SchemaGeneric:
		var d GenericData
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return nil, fmt.Errorf("unmarshaling generic data: %w", err)
		}
		return d, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSchema, env.Schema)
	}
}

// SchemaForSubtype maps a classified document subtype to the extraction
// schema the mapper should target. The hint is best-effort: the mapper may
// return a different effective schema than initially guessed.
func SchemaForSubtype(st Subtype) SchemaKind {
	switch st {
	case SubtypeProfitLoss:
		return SchemaProfitLoss
	case SubtypePayroll:
		return SchemaPayroll
	default:
		return SchemaGeneric
	}
}
