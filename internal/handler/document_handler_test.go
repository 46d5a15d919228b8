package handler_test

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"findocs/internal/domain"
	"findocs/internal/handler"
	"findocs/internal/middleware"
	"findocs/internal/service"
)

func setupRouter(svc service.DocumentService, userID uuid.UUID) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.ContextKeyUserID, userID)
		c.Next()
	})

	h := handler.NewDocumentHandler(svc)
	docs := r.Group("/api/v1/documents")
	docs.POST("", h.Upload)
	docs.GET("", h.List)
	docs.GET("/:id", h.GetByID)
	docs.GET("/:id/status", h.Status)
	docs.POST("/:id/retry", h.Retry)
	docs.DELETE("/:id", h.Delete)
	return r
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) handler.APIResponse {
	t.Helper()
	var resp handler.APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestUpload_MissingFileField(t *testing.T) {
	svc := new(MockDocumentService)
	r := setupRouter(svc, uuid.New())

	body := new(bytes.Buffer)
	mw := multipart.NewWriter(body)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeResponse(t, w)
	assert.False(t, resp.Success)
	assert.Equal(t, "MISSING_FILE", resp.Error.Code)
}

func TestUpload_Accepted(t *testing.T) {
	userID := uuid.New()
	svc := new(MockDocumentService)
	doc := &domain.Document{ID: uuid.New(), UserID: userID, FileName: "payroll.csv",
		Status: domain.StatusPending, Stage: domain.StageUploading}
	svc.On("Ingest", mock.Anything, userID, "payroll.csv", mock.Anything, mock.Anything, mock.Anything).
		Return(doc, nil)

	r := setupRouter(svc, userID)

	body := new(bytes.Buffer)
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile("file", "payroll.csv")
	require.NoError(t, err)
	_, _ = part.Write([]byte("Employee,Hours\nAlice,40\n"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)
	resp := decodeResponse(t, w)
	assert.True(t, resp.Success)
}

func TestUpload_UnsupportedType(t *testing.T) {
	userID := uuid.New()
	svc := new(MockDocumentService)
	svc.On("Ingest", mock.Anything, userID, "notes.txt", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, domain.ErrUnsupportedFileType)

	r := setupRouter(svc, userID)

	body := new(bytes.Buffer)
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile("file", "notes.txt")
	require.NoError(t, err)
	_, _ = part.Write([]byte("hello"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeResponse(t, w)
	assert.Equal(t, "UNSUPPORTED_FILE_TYPE", resp.Error.Code)
}

func TestGetByID_InvalidUUID(t *testing.T) {
	svc := new(MockDocumentService)
	r := setupRouter(svc, uuid.New())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/documents/not-a-uuid", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeResponse(t, w)
	assert.Equal(t, "INVALID_ID", resp.Error.Code)
}

func TestGetByID_NotFound(t *testing.T) {
	userID, docID := uuid.New(), uuid.New()
	svc := new(MockDocumentService)
	svc.On("GetByID", mock.Anything, userID, docID).Return(nil, domain.ErrNotFound)

	r := setupRouter(svc, userID)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/documents/"+docID.String(), nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStatus_ReturnsProgressView(t *testing.T) {
	userID, docID := uuid.New(), uuid.New()
	svc := new(MockDocumentService)
	svc.On("Progress", mock.Anything, userID, docID).Return(&service.ProgressView{
		DocumentID: docID,
		Status:     domain.StatusProcessing,
	}, nil)

	r := setupRouter(svc, userID)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/documents/"+docID.String()+"/status", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	assert.True(t, resp.Success)
}

func TestRetry_Conflict(t *testing.T) {
	userID, docID := uuid.New(), uuid.New()
	svc := new(MockDocumentService)
	svc.On("Retry", mock.Anything, userID, docID).Return(nil, domain.ErrDocumentNotErrored)

	r := setupRouter(svc, userID)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents/"+docID.String()+"/retry", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
	resp := decodeResponse(t, w)
	assert.Equal(t, "DOCUMENT_NOT_ERRORED", resp.Error.Code)
}

func TestList_ReturnsPaginationMeta(t *testing.T) {
	userID := uuid.New()
	svc := new(MockDocumentService)
	svc.On("List", mock.Anything, userID, 0, 20).Return([]domain.Document{
		{ID: uuid.New(), UserID: userID, FileName: "a.csv"},
	}, 1, nil)

	r := setupRouter(svc, userID)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, 1, resp.Meta.Total)
	assert.Equal(t, 20, resp.Meta.Limit)
}
