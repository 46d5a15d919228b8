package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Document represents one uploaded financial source document and its
// processing state.
//
// Invariants enforced by the pipeline: ExtractedData is non-null if and
// only if Status is completed; ErrorMessage is non-empty if and only if
// Status is error.
type Document struct {
	ID           uuid.UUID    `db:"id" json:"id"`
	UserID       uuid.UUID    `db:"user_id" json:"user_id"`
	FileName     string       `db:"file_name" json:"file_name"`
	FileSize     int64        `db:"file_size" json:"file_size"`
	ContentType  string       `db:"content_type" json:"content_type"`
	FileType     FileType     `db:"file_type" json:"file_type"`
	Kind         DocumentKind `db:"kind" json:"kind"`
	Subtype      Subtype      `db:"subtype" json:"subtype"`
	S3Bucket     string       `db:"s3_bucket" json:"-"`
	S3Key        string       `db:"s3_key" json:"-"`

	Status DocumentStatus `db:"status" json:"status"`
	Stage  PipelineStage  `db:"stage" json:"stage"`

	ExtractedData json.RawMessage `db:"extracted_data" json:"extracted_data,omitempty"`
	RowCount      *int            `db:"row_count" json:"row_count,omitempty"`
	ColumnMapping json.RawMessage `db:"column_mapping" json:"column_mapping,omitempty"`
	ErrorMessage  string          `db:"error_message" json:"error_message,omitempty"`

	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
	ProcessedAt *time.Time `db:"processed_at" json:"processed_at,omitempty"`
}

// Clone returns a deep copy. The processing pipeline works on a clone so
// the document returned to the caller is a stable snapshot.
func (d *Document) Clone() *Document {
	out := *d
	if d.ExtractedData != nil {
		out.ExtractedData = append(json.RawMessage(nil), d.ExtractedData...)
	}
	if d.ColumnMapping != nil {
		out.ColumnMapping = append(json.RawMessage(nil), d.ColumnMapping...)
	}
	if d.RowCount != nil {
		rc := *d.RowCount
		out.RowCount = &rc
	}
	if d.ProcessedAt != nil {
		ts := *d.ProcessedAt
		out.ProcessedAt = &ts
	}
	return &out
}

// Extracted decodes the persisted extraction envelope, or returns nil when
// the document has no extracted data yet.
func (d *Document) Extracted() (ExtractedData, error) {
	if len(d.ExtractedData) == 0 {
		return nil, nil
	}
	return UnmarshalExtractedData(d.ExtractedData)
}

// InFlight reports whether the document is between upload and a terminal
// state.
func (d *Document) InFlight() bool {
	return d.Status == StatusPending || d.Status == StatusProcessing
}
