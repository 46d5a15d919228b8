package service_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"findocs/internal/config"
	"findocs/internal/domain"
	"findocs/internal/port"
	"findocs/internal/recovery"
	"findocs/internal/service"
	"findocs/mocks"
)

const payrollCSV = "Employee,Hours,Gross Pay,Net Pay\nAlice,40,1500,1200\nBob,38,1400,1100\n"

// pipelineRecorder captures observer callbacks so tests can wait for the
// background pipeline to reach a terminal state.
type pipelineRecorder struct {
	mu       sync.Mutex
	stages   []domain.PipelineStage
	complete chan struct{}
	failed   chan string
}

func newRecorder() *pipelineRecorder {
	return &pipelineRecorder{
		complete: make(chan struct{}, 1),
		failed:   make(chan string, 1),
	}
}

func (r *pipelineRecorder) StageChanged(docID uuid.UUID, stage domain.PipelineStage) {
	r.mu.Lock()
	r.stages = append(r.stages, stage)
	r.mu.Unlock()
	if stage == domain.StageComplete {
		r.complete <- struct{}{}
	}
}

func (r *pipelineRecorder) Failure(docID uuid.UUID, msg string) {
	r.failed <- msg
}

func (r *pipelineRecorder) waitComplete(t *testing.T) {
	t.Helper()
	select {
	case <-r.complete:
	case msg := <-r.failed:
		t.Fatalf("pipeline failed instead of completing: %s", msg)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for pipeline to complete")
	}
}

func (r *pipelineRecorder) waitFailure(t *testing.T) string {
	t.Helper()
	select {
	case msg := <-r.failed:
		return msg
	case <-r.complete:
		t.Fatal("pipeline completed instead of failing")
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for pipeline failure")
	}
	return ""
}

func (r *pipelineRecorder) sawStage(stage domain.PipelineStage) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.stages {
		if s == stage {
			return true
		}
	}
	return false
}

func testConfig() *config.Config {
	return &config.Config{
		S3: config.S3Config{
			Bucket:        "test-bucket",
			MaxFileSizeMB: 50,
			PresignExpiry: 3600,
			UploadTimeout: 5 * time.Second,
		},
	}
}

type fixture struct {
	repo     *mocks.MockDocumentRepo
	storage  *mocks.MockObjectStorage
	ext      *mocks.MockStructuredExtractor
	recorder *pipelineRecorder
	svc      service.DocumentService

	mu    sync.Mutex
	saved []*domain.Document
}

func newFixture() *fixture {
	f := &fixture{
		repo:     new(mocks.MockDocumentRepo),
		storage:  new(mocks.MockObjectStorage),
		ext:      new(mocks.MockStructuredExtractor),
		recorder: newRecorder(),
	}
	f.svc = service.NewDocumentService(f.repo, f.storage, f.ext, testConfig(), f.recorder)
	return f
}

// expectPersistence accepts stage and result updates, capturing every
// document handed to UpdateResult. The pipeline works on its own copy, so
// terminal state is observed through what it persists.
func (f *fixture) expectPersistence() {
	f.repo.On("UpdateStage", mock.Anything, mock.Anything).Return(nil)
	f.repo.On("UpdateResult", mock.Anything, mock.AnythingOfType("*domain.Document")).
		Run(func(args mock.Arguments) {
			f.mu.Lock()
			f.saved = append(f.saved, args.Get(1).(*domain.Document))
			f.mu.Unlock()
		}).Return(nil)
}

func (f *fixture) lastSaved(t *testing.T) *domain.Document {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.saved, "no document was persisted")
	return f.saved[len(f.saved)-1]
}

func TestIngest_SpreadsheetCompletes(t *testing.T) {
	f := newFixture()
	userID := uuid.New()

	f.repo.On("Create", mock.Anything, mock.AnythingOfType("*domain.Document")).Return(nil)
	f.expectPersistence()
	f.storage.On("Upload", mock.Anything, mock.MatchedBy(func(in port.UploadInput) bool {
		return in.Metadata["document-id"] != "" && in.Metadata["original-name"] == "payroll_june.csv"
	})).Return(&port.UploadOutput{}, nil)

	doc, err := f.svc.Ingest(context.Background(), userID, "payroll_june.csv", "text/csv",
		int64(len(payrollCSV)), strings.NewReader(payrollCSV))
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, domain.KindSpreadsheet, doc.Kind)
	assert.Equal(t, domain.FileTypeCSV, doc.FileType)

	f.recorder.waitComplete(t)

	saved := f.lastSaved(t)
	assert.Equal(t, domain.StatusCompleted, saved.Status)
	assert.Equal(t, domain.StageComplete, saved.Stage)
	assert.Equal(t, domain.SubtypePayroll, saved.Subtype)
	require.NotNil(t, saved.RowCount)
	assert.Equal(t, 2, *saved.RowCount)
	assert.NotEmpty(t, saved.ColumnMapping)
	require.NotNil(t, saved.ProcessedAt)

	// extracted data exists iff the document completed
	data, err := saved.Extracted()
	require.NoError(t, err)
	require.NotNil(t, data)
	assert.Equal(t, domain.SchemaPayroll, data.Schema())

	// spreadsheets never touch the remote model
	f.ext.AssertNotCalled(t, "Extract", mock.Anything, mock.Anything)
}

func TestIngest_RejectsUnsupportedExtension(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Ingest(context.Background(), uuid.New(), "notes.txt", "text/plain",
		10, strings.NewReader("hello world"))

	assert.ErrorIs(t, err, domain.ErrUnsupportedFileType)
	f.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestIngest_RejectsOversizedFile(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Ingest(context.Background(), uuid.New(), "big.pdf", "application/pdf",
		51*1024*1024, strings.NewReader("%PDF-"))

	assert.ErrorIs(t, err, domain.ErrFileTooLarge)
}

func TestIngest_RejectsMismatchedMagicBytes(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Ingest(context.Background(), uuid.New(), "doc.pdf", "application/pdf",
		11, strings.NewReader("hello world"))

	assert.ErrorIs(t, err, domain.ErrUnsupportedFileType)
	f.storage.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything)
}

func TestIngest_UploadFailureMarksError(t *testing.T) {
	f := newFixture()

	f.repo.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.repo.On("UpdateResult", mock.Anything, mock.Anything).Return(nil)
	f.storage.On("Upload", mock.Anything, mock.Anything).Return(nil, errors.New("connection reset"))

	doc, err := f.svc.Ingest(context.Background(), uuid.New(), "payroll.csv", "text/csv",
		int64(len(payrollCSV)), strings.NewReader(payrollCSV))

	assert.ErrorIs(t, err, domain.ErrUploadFailed)
	assert.Nil(t, doc)
	msg := f.recorder.waitFailure(t)
	assert.Contains(t, msg, "upload")
}

func TestIngest_SmallPDFFallsBackToVision(t *testing.T) {
	f := newFixture()

	// under the text-first threshold, but the bytes are not parseable
	// locally so extraction falls through to the vision path
	pdfBytes := append([]byte("%PDF-1.4\n"), bytes.Repeat([]byte("x"), 40_000)...)

	f.repo.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.expectPersistence()
	f.storage.On("Upload", mock.Anything, mock.Anything).Return(&port.UploadOutput{}, nil)

	payroll := domain.PayrollData{PayPeriod: "Q3", TotalGross: 100, TotalNet: 80}
	f.ext.On("Extract", mock.Anything, mock.MatchedBy(func(in port.ExtractInput) bool {
		return in.Mode == port.ModeVision && in.SchemaHint == domain.SchemaPayroll
	})).Return(&port.ExtractOutput{Data: payroll, ModelUsed: "gpt-4o"}, nil)

	_, err := f.svc.Ingest(context.Background(), uuid.New(), "Q3_Payroll_Report.pdf",
		"application/pdf", int64(len(pdfBytes)), bytes.NewReader(pdfBytes))
	require.NoError(t, err)

	f.recorder.waitComplete(t)

	saved := f.lastSaved(t)
	assert.Equal(t, domain.StatusCompleted, saved.Status)
	assert.Equal(t, domain.SubtypePayroll, saved.Subtype)
	assert.True(t, f.recorder.sawStage(domain.StageExtracting))
	f.ext.AssertNumberOfCalls(t, "Extract", 1)
}

func TestIngest_LargePDFGoesStraightToVision(t *testing.T) {
	f := newFixture()

	pdfBytes := append([]byte("%PDF-1.4\n"), bytes.Repeat([]byte("x"), 250_000)...)

	f.repo.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.expectPersistence()
	f.storage.On("Upload", mock.Anything, mock.Anything).Return(&port.UploadOutput{}, nil)

	f.ext.On("Extract", mock.Anything, mock.MatchedBy(func(in port.ExtractInput) bool {
		return in.Mode == port.ModeVision && len(in.FileBytes) == len(pdfBytes)
	})).Return(&port.ExtractOutput{Data: domain.GenericData{}}, nil)

	_, err := f.svc.Ingest(context.Background(), uuid.New(), "scan.pdf",
		"application/pdf", int64(len(pdfBytes)), bytes.NewReader(pdfBytes))
	require.NoError(t, err)

	f.recorder.waitComplete(t)

	saved := f.lastSaved(t)
	assert.Equal(t, domain.StatusCompleted, saved.Status)
	assert.Equal(t, domain.SubtypeGeneric, saved.Subtype)
	f.ext.AssertNumberOfCalls(t, "Extract", 1)
}

func TestIngest_PDFBothPathsFailMarksError(t *testing.T) {
	f := newFixture()

	pdfBytes := []byte("%PDF-1.4\nnot really a pdf")

	f.repo.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.expectPersistence()
	f.storage.On("Upload", mock.Anything, mock.Anything).Return(&port.UploadOutput{}, nil)
	f.ext.On("Extract", mock.Anything, mock.Anything).Return(nil, errors.New("could not extract data"))

	_, err := f.svc.Ingest(context.Background(), uuid.New(), "invoice.pdf",
		"application/pdf", int64(len(pdfBytes)), bytes.NewReader(pdfBytes))
	require.NoError(t, err)

	msg := f.recorder.waitFailure(t)
	assert.NotEmpty(t, msg)
	saved := f.lastSaved(t)
	assert.Equal(t, domain.StatusError, saved.Status)
	assert.Equal(t, domain.StageError, saved.Stage)
	assert.NotEmpty(t, saved.ErrorMessage)
	assert.Nil(t, saved.ExtractedData)
}

func TestIngest_UnreadablePDFReportsFormatFailure(t *testing.T) {
	f := newFixture()

	// passes the signature check but is not a decodable PDF, and the
	// remote model cannot make sense of it either
	pdfBytes := []byte("%PDF-1.4\nnot really a pdf")

	f.repo.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.expectPersistence()
	f.storage.On("Upload", mock.Anything, mock.Anything).Return(&port.UploadOutput{}, nil)
	f.ext.On("Extract", mock.Anything, mock.Anything).Return(nil, errors.New("model could not read the document"))

	_, err := f.svc.Ingest(context.Background(), uuid.New(), "statement.pdf",
		"application/pdf", int64(len(pdfBytes)), bytes.NewReader(pdfBytes))
	require.NoError(t, err)

	msg := f.recorder.waitFailure(t)
	cat, actions := recovery.Advise(msg)
	assert.Equal(t, recovery.CategoryFormat, cat)
	assert.Equal(t, []recovery.Action{recovery.ActionUploadDifferent, recovery.ActionManualEntry}, actions)
}

func TestIngest_ReturnedDocumentIsStableSnapshot(t *testing.T) {
	f := newFixture()

	f.repo.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.expectPersistence()
	f.storage.On("Upload", mock.Anything, mock.Anything).Return(&port.UploadOutput{}, nil)

	doc, err := f.svc.Ingest(context.Background(), uuid.New(), "payroll_june.csv", "text/csv",
		int64(len(payrollCSV)), strings.NewReader(payrollCSV))
	require.NoError(t, err)

	// encode the response while the pipeline runs, as the handler does
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			if _, err := json.Marshal(doc); err != nil {
				t.Errorf("marshaling response snapshot: %v", err)
				return
			}
		}
	}()

	f.recorder.waitComplete(t)
	<-done

	// the caller's document keeps its pending snapshot; completion is
	// visible only through persistence
	assert.Equal(t, domain.StatusPending, doc.Status)
	assert.Equal(t, domain.StatusCompleted, f.lastSaved(t).Status)
}

func TestRetry_RequiresErrorState(t *testing.T) {
	f := newFixture()
	userID, docID := uuid.New(), uuid.New()

	f.repo.On("GetByID", mock.Anything, userID, docID).Return(&domain.Document{
		ID:     docID,
		UserID: userID,
		Status: domain.StatusCompleted,
	}, nil)

	_, err := f.svc.Retry(context.Background(), userID, docID)
	assert.ErrorIs(t, err, domain.ErrDocumentNotErrored)
}

func TestRetry_ReprocessesFromStorage(t *testing.T) {
	f := newFixture()
	userID, docID := uuid.New(), uuid.New()

	errored := &domain.Document{
		ID:           docID,
		UserID:       userID,
		FileName:     "payroll_june.csv",
		FileType:     domain.FileTypeCSV,
		Kind:         domain.KindSpreadsheet,
		S3Bucket:     "test-bucket",
		S3Key:        "users/u/documents/d/payroll_june.csv",
		Status:       domain.StatusError,
		Stage:        domain.StageError,
		ErrorMessage: "network error fetching stored file",
	}

	f.repo.On("GetByID", mock.Anything, userID, docID).Return(errored, nil)
	f.expectPersistence()
	f.storage.On("Download", mock.Anything, "test-bucket", errored.S3Key).Return([]byte(payrollCSV), nil)

	doc, err := f.svc.Retry(context.Background(), userID, docID)
	require.NoError(t, err)

	// the returned document reflects the reset, not the eventual outcome
	assert.Equal(t, domain.StatusPending, doc.Status)
	assert.Empty(t, doc.ErrorMessage)

	f.recorder.waitComplete(t)

	saved := f.lastSaved(t)
	assert.Equal(t, domain.StatusCompleted, saved.Status)
	assert.Empty(t, saved.ErrorMessage)
	require.NotNil(t, saved.RowCount)
	assert.Equal(t, 2, *saved.RowCount)
}

func TestProgress_ErroredDocIncludesRecoveryAdvice(t *testing.T) {
	f := newFixture()
	userID, docID := uuid.New(), uuid.New()

	f.repo.On("GetByID", mock.Anything, userID, docID).Return(&domain.Document{
		ID:           docID,
		UserID:       userID,
		Status:       domain.StatusError,
		Stage:        domain.StageError,
		ErrorMessage: "Request timeout after 30s",
		UpdatedAt:    time.Now().Add(-time.Minute),
	}, nil)

	view, err := f.svc.Progress(context.Background(), userID, docID)
	require.NoError(t, err)

	assert.Equal(t, domain.StageError, view.Stage)
	assert.Equal(t, "Request timeout after 30s", view.ErrorMessage)
	assert.Equal(t, recovery.CategoryTimeout, view.ErrorCategory)
	assert.Equal(t, []recovery.Action{recovery.ActionSimplerFormat, recovery.ActionManualEntry}, view.Actions)
}

func TestProgress_ElapsedRespectsDebounce(t *testing.T) {
	f := newFixture()
	userID := uuid.New()

	fresh := &domain.Document{ID: uuid.New(), UserID: userID,
		Status: domain.StatusProcessing, Stage: domain.StageProcessing,
		UpdatedAt: time.Now().Add(-time.Second)}
	stale := &domain.Document{ID: uuid.New(), UserID: userID,
		Status: domain.StatusProcessing, Stage: domain.StageExtracting,
		UpdatedAt: time.Now().Add(-10 * time.Second)}

	f.repo.On("GetByID", mock.Anything, userID, fresh.ID).Return(fresh, nil)
	f.repo.On("GetByID", mock.Anything, userID, stale.ID).Return(stale, nil)

	view, err := f.svc.Progress(context.Background(), userID, fresh.ID)
	require.NoError(t, err)
	assert.Nil(t, view.ElapsedSeconds)

	view, err = f.svc.Progress(context.Background(), userID, stale.ID)
	require.NoError(t, err)
	require.NotNil(t, view.ElapsedSeconds)
	assert.GreaterOrEqual(t, *view.ElapsedSeconds, 10)
}

func TestList_ClampsPagination(t *testing.T) {
	f := newFixture()
	userID := uuid.New()

	f.repo.On("ListByUser", mock.Anything, userID, 0, 20).Return([]domain.Document{}, 0, nil)

	_, _, err := f.svc.List(context.Background(), userID, -5, 1000)
	require.NoError(t, err)
	f.repo.AssertExpectations(t)
}

func TestDownloadURL(t *testing.T) {
	f := newFixture()
	userID, docID := uuid.New(), uuid.New()

	f.repo.On("GetByID", mock.Anything, userID, docID).Return(&domain.Document{
		ID: docID, UserID: userID, S3Bucket: "test-bucket", S3Key: "some/key",
	}, nil)
	f.storage.On("GetPresignedURL", mock.Anything, "test-bucket", "some/key", int64(3600)).
		Return("https://example.com/presigned", nil)

	url, err := f.svc.DownloadURL(context.Background(), userID, docID)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/presigned", url)
}

func TestDelete_RemovesObjectAndRow(t *testing.T) {
	f := newFixture()
	userID, docID := uuid.New(), uuid.New()

	f.repo.On("GetByID", mock.Anything, userID, docID).Return(&domain.Document{
		ID: docID, UserID: userID, S3Bucket: "test-bucket", S3Key: "some/key",
	}, nil)
	f.storage.On("Delete", mock.Anything, "test-bucket", "some/key").Return(nil)
	f.repo.On("Delete", mock.Anything, userID, docID).Return(nil)

	err := f.svc.Delete(context.Background(), userID, docID)
	require.NoError(t, err)
	f.repo.AssertExpectations(t)
	f.storage.AssertExpectations(t)
}

func TestGetByID_NotFound(t *testing.T) {
	f := newFixture()
	userID, docID := uuid.New(), uuid.New()

	f.repo.On("GetByID", mock.Anything, userID, docID).Return(nil, domain.ErrNotFound)

	_, err := f.svc.GetByID(context.Background(), userID, docID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
