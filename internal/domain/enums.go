package domain

// DocumentKind is the top-level classification of an uploaded file.
type DocumentKind string

const (
	KindSpreadsheet DocumentKind = "spreadsheet"
	KindPDF         DocumentKind = "pdf"
)

// Subtype is the inferred financial-document category used to pick an
// extraction schema. Spreadsheets classify into {pl, payroll, roster,
// unknown}; PDFs into {pl, payroll, generic}.
type Subtype string

const (
	SubtypeProfitLoss     Subtype = "pl"
	SubtypePayroll        Subtype = "payroll"
	SubtypeEmployeeRoster Subtype = "roster"
	SubtypeGeneric        Subtype = "generic"
	SubtypeUnknown        Subtype = "unknown"
)

// FileType represents the allowed file types for upload.
type FileType string

const (
	FileTypePDF  FileType = "pdf"
	FileTypeCSV  FileType = "csv"
	FileTypeXLSX FileType = "xlsx"
)

// AllowedFileTypes maps FileType to its MIME content type.
var AllowedFileTypes = map[FileType]string{
	FileTypePDF:  "application/pdf",
	FileTypeCSV:  "text/csv",
	FileTypeXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// AllowedExtensions maps file extensions (without dot) to FileType.
var AllowedExtensions = map[string]FileType{
	"pdf":  FileTypePDF,
	"csv":  FileTypeCSV,
	"xlsx": FileTypeXLSX,
}

// KindForFileType maps a FileType to its DocumentKind.
var KindForFileType = map[FileType]DocumentKind{
	FileTypePDF:  KindPDF,
	FileTypeCSV:  KindSpreadsheet,
	FileTypeXLSX: KindSpreadsheet,
}

// DocumentStatus represents the persisted lifecycle of a document.
// Transitions are monotonic forward (pending -> processing -> completed or
// error) except an explicit user retry, which resets error -> pending.
type DocumentStatus string

const (
	StatusPending    DocumentStatus = "pending"
	StatusProcessing DocumentStatus = "processing"
	StatusCompleted  DocumentStatus = "completed"
	StatusError      DocumentStatus = "error"
)

// PipelineStage is the fine-grained stage surfaced to presentation layers.
// It distinguishes the two in-flight phases (processing vs extracting) so a
// caller can report elapsed time per phase.
type PipelineStage string

const (
	StageIdle       PipelineStage = "idle"
	StageUploading  PipelineStage = "uploading"
	StageProcessing PipelineStage = "processing"
	StageExtracting PipelineStage = "extracting"
	StageComplete   PipelineStage = "complete"
	StageError      PipelineStage = "error"
)
