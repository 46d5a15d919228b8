package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"findocs/internal/classify"
	"findocs/internal/config"
	"findocs/internal/domain"
	"findocs/internal/pdftext"
	"findocs/internal/port"
	"findocs/internal/recovery"
	"findocs/internal/spreadsheet"
	"findocs/internal/status"
)

// processTimeout bounds one background processing run, covering download,
// local parsing, and remote extraction including provider fallbacks.
const processTimeout = 5 * time.Minute

// ProgressView is the per-document progress snapshot returned to clients,
// extended with recovery advice when the document is in an error state.
type ProgressView struct {
	DocumentID uuid.UUID             `json:"document_id"`
	Status     domain.DocumentStatus `json:"status"`
	status.Snapshot
	ErrorCategory recovery.Category `json:"error_category,omitempty"`
	Actions       []recovery.Action `json:"suggested_actions,omitempty"`
}

// DocumentService orchestrates the document pipeline: upload, classification,
// extraction, and lifecycle queries.
type DocumentService interface {
	Ingest(ctx context.Context, userID uuid.UUID, fileName, contentType string, size int64, r io.Reader) (*domain.Document, error)
	GetByID(ctx context.Context, userID, docID uuid.UUID) (*domain.Document, error)
	List(ctx context.Context, userID uuid.UUID, offset, limit int) ([]domain.Document, int, error)
	Retry(ctx context.Context, userID, docID uuid.UUID) (*domain.Document, error)
	Progress(ctx context.Context, userID, docID uuid.UUID) (*ProgressView, error)
	DownloadURL(ctx context.Context, userID, docID uuid.UUID) (string, error)
	Delete(ctx context.Context, userID, docID uuid.UUID) error
}

type documentService struct {
	repo      port.DocumentRepository
	storage   port.ObjectStorage
	extractor port.StructuredExtractor
	cfg       *config.Config
	observer  port.PipelineObserver
}

// logObserver is the default PipelineObserver, writing stage changes and
// failures to the standard logger.
type logObserver struct{}

func (logObserver) StageChanged(docID uuid.UUID, stage domain.PipelineStage) {
	log.Printf("documentService: document %s entered stage %s", docID, stage)
}

func (logObserver) Failure(docID uuid.UUID, msg string) {
	log.Printf("documentService: document %s failed: %s", docID, msg)
}

// NewDocumentService creates a new DocumentService. A nil observer defaults
// to logging stage changes.
func NewDocumentService(
	repo port.DocumentRepository,
	storage port.ObjectStorage,
	extractor port.StructuredExtractor,
	cfg *config.Config,
	observer port.PipelineObserver,
) DocumentService {
	if observer == nil {
		observer = logObserver{}
	}
	return &documentService{
		repo:      repo,
		storage:   storage,
		extractor: extractor,
		cfg:       cfg,
		observer:  observer,
	}
}

func (s *documentService) Ingest(ctx context.Context, userID uuid.UUID, fileName, contentType string, size int64, r io.Reader) (*domain.Document, error) {
	fileType, err := resolveFileType(fileName)
	if err != nil {
		return nil, err
	}

	maxBytes := s.cfg.S3.MaxFileSizeMB * 1024 * 1024
	if size > maxBytes {
		return nil, fmt.Errorf("file is %d bytes, limit is %d MB: %w", size, s.cfg.S3.MaxFileSizeMB, domain.ErrFileTooLarge)
	}

	buf, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("documentService.Ingest: reading upload: %w", err)
	}
	if int64(len(buf)) > maxBytes {
		return nil, fmt.Errorf("upload stream exceeds %d MB: %w", s.cfg.S3.MaxFileSizeMB, domain.ErrFileTooLarge)
	}
	if err := checkMagicBytes(buf, fileType); err != nil {
		return nil, err
	}

	if contentType == "" {
		contentType = domain.AllowedFileTypes[fileType]
	}

	doc := &domain.Document{
		ID:          uuid.New(),
		UserID:      userID,
		FileName:    fileName,
		FileSize:    int64(len(buf)),
		ContentType: contentType,
		FileType:    fileType,
		Kind:        domain.KindForFileType[fileType],
		Subtype:     domain.SubtypeUnknown,
		S3Bucket:    s.cfg.S3.Bucket,
		S3Key:       fmt.Sprintf("users/%s/documents/%s/%s", userID, uuid.New(), fileName),
		Status:      domain.StatusPending,
		Stage:       domain.StageUploading,
	}

	if err := s.repo.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("documentService.Ingest: %w", err)
	}
	s.observer.StageChanged(doc.ID, doc.Stage)

	uploadCtx, cancel := context.WithTimeout(ctx, s.cfg.S3.UploadTimeout)
	defer cancel()

	_, err = s.storage.Upload(uploadCtx, port.UploadInput{
		Bucket:      doc.S3Bucket,
		Key:         doc.S3Key,
		Body:        bytes.NewReader(buf),
		ContentType: contentType,
		Size:        doc.FileSize,
		Metadata: map[string]string{
			"document-id":   doc.ID.String(),
			"original-name": fileName,
		},
	})
	if err != nil {
		log.Printf("documentService.Ingest: upload failed for document %s: %v", doc.ID, err)
		s.failProcessing(context.Background(), doc, fmt.Sprintf("%v: %v", domain.ErrUploadFailed, err))
		return nil, fmt.Errorf("%w: %v", domain.ErrUploadFailed, err)
	}

	// the pipeline runs on its own copy; the returned document is a
	// snapshot the handler can encode without racing the goroutine
	go s.processInBackground(doc.Clone(), buf)

	return doc, nil
}

func (s *documentService) GetByID(ctx context.Context, userID, docID uuid.UUID) (*domain.Document, error) {
	return s.repo.GetByID(ctx, userID, docID)
}

func (s *documentService) List(ctx context.Context, userID uuid.UUID, offset, limit int) ([]domain.Document, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListByUser(ctx, userID, offset, limit)
}

// Retry resets an errored document and re-runs the full pipeline. Only
// documents in the error status are retryable; retries are always
// user-initiated.
func (s *documentService) Retry(ctx context.Context, userID, docID uuid.UUID) (*domain.Document, error) {
	doc, err := s.repo.GetByID(ctx, userID, docID)
	if err != nil {
		return nil, err
	}
	if doc.Status != domain.StatusError {
		return nil, fmt.Errorf("document %s has status %s: %w", docID, doc.Status, domain.ErrDocumentNotErrored)
	}

	doc.Status = domain.StatusPending
	doc.Stage = domain.StageProcessing
	doc.ErrorMessage = ""
	doc.ExtractedData = nil
	doc.RowCount = nil
	doc.ColumnMapping = nil
	doc.ProcessedAt = nil

	if err := s.repo.UpdateResult(ctx, doc); err != nil {
		return nil, fmt.Errorf("documentService.Retry: %w", err)
	}
	s.observer.StageChanged(doc.ID, doc.Stage)

	go s.processInBackground(doc.Clone(), nil)

	return doc, nil
}

// Progress returns the current pipeline snapshot, attaching recovery advice
// when the document is errored.
func (s *documentService) Progress(ctx context.Context, userID, docID uuid.UUID) (*ProgressView, error) {
	doc, err := s.repo.GetByID(ctx, userID, docID)
	if err != nil {
		return nil, err
	}

	view := &ProgressView{
		DocumentID: doc.ID,
		Status:     doc.Status,
		Snapshot:   status.Snap(doc.Stage, doc.UpdatedAt, time.Now(), doc.ErrorMessage),
	}
	if doc.Stage == domain.StageError {
		view.ErrorCategory, view.Actions = recovery.Advise(doc.ErrorMessage)
	}
	return view, nil
}

func (s *documentService) DownloadURL(ctx context.Context, userID, docID uuid.UUID) (string, error) {
	doc, err := s.repo.GetByID(ctx, userID, docID)
	if err != nil {
		return "", err
	}
	return s.storage.GetPresignedURL(ctx, doc.S3Bucket, doc.S3Key, s.cfg.S3.PresignExpiry)
}

func (s *documentService) Delete(ctx context.Context, userID, docID uuid.UUID) error {
	doc, err := s.repo.GetByID(ctx, userID, docID)
	if err != nil {
		return err
	}
	if err := s.storage.Delete(ctx, doc.S3Bucket, doc.S3Key); err != nil {
		log.Printf("documentService.Delete: removing object %s: %v", doc.S3Key, err)
	}
	return s.repo.Delete(ctx, userID, docID)
}

// processInBackground runs the classification and extraction pipeline for
// one document. buf may carry the freshly uploaded bytes; when nil (retry
// path) the object is re-downloaded from storage.
func (s *documentService) processInBackground(doc *domain.Document, buf []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), processTimeout)
	defer cancel()

	doc.Status = domain.StatusProcessing
	doc.Stage = domain.StageProcessing
	if err := s.repo.UpdateStage(ctx, doc); err != nil {
		log.Printf("documentService.processInBackground: updating stage for %s: %v", doc.ID, err)
		return
	}
	s.observer.StageChanged(doc.ID, doc.Stage)

	if buf == nil {
		var err error
		buf, err = s.storage.Download(ctx, doc.S3Bucket, doc.S3Key)
		if err != nil {
			s.failProcessing(ctx, doc, fmt.Sprintf("network error fetching stored file: %v", err))
			return
		}
	}

	var (
		data domain.ExtractedData
		err  error
	)
	switch doc.Kind {
	case domain.KindSpreadsheet:
		data, err = s.processSpreadsheet(doc, buf)
	case domain.KindPDF:
		data, err = s.processPDF(ctx, doc, buf)
	default:
		err = fmt.Errorf("unsupported document kind %q: %w", doc.Kind, domain.ErrUnsupportedFileType)
	}
	if err != nil {
		s.failProcessing(ctx, doc, err.Error())
		return
	}

	s.finalize(ctx, doc, data)
}

// processSpreadsheet parses and maps a CSV/XLSX locally. No remote model is
// involved.
func (s *documentService) processSpreadsheet(doc *domain.Document, buf []byte) (domain.ExtractedData, error) {
	parsed, err := spreadsheet.Parse(buf, doc.FileType, doc.FileName)
	if err != nil {
		return nil, err
	}

	doc.Subtype = parsed.Subtype
	doc.RowCount = &parsed.RowCount

	mapping := spreadsheet.MapColumns(parsed.Subtype, parsed.Headers)
	if len(mapping) > 0 {
		if raw, err := json.Marshal(mapping); err == nil {
			doc.ColumnMapping = raw
		}
	}

	return spreadsheet.BuildExtractedData(parsed), nil
}

// processPDF classifies the document, picks an extraction strategy by file
// size, and runs remote extraction with the alternate path as fallback.
func (s *documentService) processPDF(ctx context.Context, doc *domain.Document, buf []byte) (domain.ExtractedData, error) {
	doc.Subtype = classify.DetectPDFSubtype(doc.FileName)
	hint := domain.SchemaForSubtype(doc.Subtype)
	strategy := classify.Route(doc.FileSize)

	doc.Stage = domain.StageExtracting
	if err := s.repo.UpdateStage(ctx, doc); err != nil {
		log.Printf("documentService.processPDF: updating stage for %s: %v", doc.ID, err)
	}
	s.observer.StageChanged(doc.ID, doc.Stage)

	if strategy == classify.StrategyTextFirst {
		data, textErr := s.extractFromText(ctx, doc, buf, hint)
		if textErr == nil {
			return data, nil
		}
		log.Printf("documentService.processPDF: text extraction for %s failed, falling back to vision: %v", doc.ID, textErr)

		data, visionErr := s.extractFromVision(ctx, doc, buf, hint)
		if visionErr == nil {
			return data, nil
		}
		return nil, fmt.Errorf("extraction failed on both paths: text: %v; vision: %w", textErr, visionErr)
	}

	data, visionErr := s.extractFromVision(ctx, doc, buf, hint)
	if visionErr == nil {
		return data, nil
	}
	log.Printf("documentService.processPDF: vision extraction for %s failed, falling back to text: %v", doc.ID, visionErr)

	data, textErr := s.extractFromText(ctx, doc, buf, hint)
	if textErr == nil {
		return data, nil
	}
	return nil, fmt.Errorf("extraction failed on both paths: vision: %v; text: %w", visionErr, textErr)
}

// extractFromText runs local PDF text extraction and sends the text to the
// remote model in text mode.
func (s *documentService) extractFromText(ctx context.Context, doc *domain.Document, buf []byte, hint domain.SchemaKind) (domain.ExtractedData, error) {
	res := pdftext.Extract(buf)
	if !res.Success {
		return nil, fmt.Errorf("local text extraction failed: %s", res.Error)
	}
	if strings.TrimSpace(res.Text) == "" {
		return nil, fmt.Errorf("local text extraction produced no data (%d pages)", res.PageCount)
	}

	out, err := s.extractor.Extract(ctx, port.ExtractInput{
		Mode:       port.ModeText,
		Text:       res.Text,
		SchemaHint: hint,
		Tabular:    classify.DetectTabularContent(res.Text),
	})
	if err != nil {
		return nil, err
	}
	return out.Data, nil
}

// extractFromVision sends the raw PDF bytes to a vision-capable model.
func (s *documentService) extractFromVision(ctx context.Context, doc *domain.Document, buf []byte, hint domain.SchemaKind) (domain.ExtractedData, error) {
	out, err := s.extractor.Extract(ctx, port.ExtractInput{
		Mode:        port.ModeVision,
		FileBytes:   buf,
		ContentType: doc.ContentType,
		SchemaHint:  hint,
	})
	if err != nil {
		return nil, err
	}
	return out.Data, nil
}

// finalize persists a successful extraction and moves the document to its
// terminal completed state.
func (s *documentService) finalize(ctx context.Context, doc *domain.Document, data domain.ExtractedData) {
	raw, err := domain.MarshalExtractedData(data)
	if err != nil {
		s.failProcessing(ctx, doc, fmt.Sprintf("encoding extraction result: %v", err))
		return
	}

	now := time.Now().UTC()
	doc.ExtractedData = raw
	doc.ErrorMessage = ""
	doc.Status = domain.StatusCompleted
	doc.Stage = domain.StageComplete
	doc.ProcessedAt = &now

	if err := s.repo.UpdateResult(ctx, doc); err != nil {
		log.Printf("documentService.finalize: persisting result for %s: %v", doc.ID, err)
		return
	}
	s.observer.StageChanged(doc.ID, doc.Stage)
}

// failProcessing records a pipeline failure. Extracted data is cleared so
// the completed-iff-extracted invariant holds.
func (s *documentService) failProcessing(ctx context.Context, doc *domain.Document, msg string) {
	doc.Status = domain.StatusError
	doc.Stage = domain.StageError
	doc.ErrorMessage = msg
	doc.ExtractedData = nil
	doc.ProcessedAt = nil

	// the pipeline ctx may itself be the expired one being reported;
	// persisting the error state must not depend on it
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
	}

	if err := s.repo.UpdateResult(ctx, doc); err != nil {
		log.Printf("documentService.failProcessing: persisting error for %s: %v", doc.ID, err)
	}
	s.observer.Failure(doc.ID, msg)
}

func resolveFileType(fileName string) (domain.FileType, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(fileName), "."))
	fileType, ok := domain.AllowedExtensions[ext]
	if !ok {
		return "", fmt.Errorf("extension %q: %w", ext, domain.ErrUnsupportedFileType)
	}
	return fileType, nil
}

// checkMagicBytes verifies the buffer's leading bytes agree with the claimed
// file type. CSV has no signature, so only a crude binary sniff applies.
func checkMagicBytes(buf []byte, fileType domain.FileType) error {
	switch fileType {
	case domain.FileTypePDF:
		if !bytes.HasPrefix(buf, []byte("%PDF-")) {
			return fmt.Errorf("file does not start with a PDF signature: %w", domain.ErrUnsupportedFileType)
		}
	case domain.FileTypeXLSX:
		if !bytes.HasPrefix(buf, []byte("PK\x03\x04")) {
			return fmt.Errorf("file does not start with a ZIP signature: %w", domain.ErrUnsupportedFileType)
		}
	case domain.FileTypeCSV:
		if bytes.ContainsRune(buf[:min(len(buf), 512)], 0) {
			return fmt.Errorf("csv contains binary data: %w", domain.ErrUnsupportedFileType)
		}
	}
	return nil
}
