package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"papyr/backend/features/chunk"
)

func newTestMux(f *fixture) *http.ServeMux {
	h := NewHandler(f.svc, 50)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /documents", h.Upload)
	mux.HandleFunc("GET /documents", h.List)
	mux.HandleFunc("GET /documents/{id}", h.Get)
	mux.HandleFunc("DELETE /documents/{id}", h.Delete)
	mux.HandleFunc("POST /documents/{id}/process", h.Process)
	mux.HandleFunc("GET /documents/{id}/chunks", h.GetChunks)
	return mux
}

func multipartBody(t *testing.T, filename, content, metadata string) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	if filename != "" {
		part, err := writer.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	if metadata != "" {
		require.NoError(t, writer.WriteField("metadata", metadata))
	}
	require.NoError(t, writer.Close())

	return body, writer.FormDataContentType()
}

func TestHandler_Upload(t *testing.T) {
	f := newFixture()
	mux := newTestMux(f)

	f.blobs.On("Save", mock.Anything, "notes.txt", []byte("hello world")).Return("h1", nil)
	f.repo.On("Create", mock.Anything, mock.Anything).Return(nil)

	body, contentType := multipartBody(t, "notes.txt", "hello world", `{"title":"Notes","tags":["a","b"]}`)
	req := httptest.NewRequest(http.MethodPost, "/documents", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var doc Document
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "notes.txt", doc.Filename)
	assert.Equal(t, StatusPending, doc.Status)
	require.NotNil(t, doc.Metadata)
	assert.Equal(t, "Notes", doc.Metadata.Title)
	assert.Equal(t, []string{"a", "b"}, doc.Metadata.Tags)

	// The storage handle is internal and must never leak over the wire.
	assert.NotContains(t, rec.Body.String(), "storage")
}

func TestHandler_Upload_MissingFile(t *testing.T) {
	f := newFixture()
	mux := newTestMux(f)

	body, contentType := multipartBody(t, "", "", "")
	req := httptest.NewRequest(http.MethodPost, "/documents", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "VALIDATION_ERROR")
	f.blobs.AssertNotCalled(t, "Save", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandler_Upload_InvalidMetadata(t *testing.T) {
	f := newFixture()
	mux := newTestMux(f)

	body, contentType := multipartBody(t, "a.txt", "content", `{not json`)
	req := httptest.NewRequest(http.MethodPost, "/documents", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "VALIDATION_ERROR")
}

func TestHandler_List(t *testing.T) {
	f := newFixture()
	mux := newTestMux(f)

	docs := []Document{
		{ID: "doc_1", Filename: "a.txt", Status: StatusCompleted, ChunkCount: 3},
		{ID: "doc_2", Filename: "b.txt", Status: StatusPending},
	}
	f.repo.On("List", mock.Anything, 20, 0).Return(docs, nil)
	f.repo.On("Count", mock.Anything).Return(17, nil)

	req := httptest.NewRequest(http.MethodGet, "/documents", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Documents []Document `json:"documents"`
		Total     int        `json:"total"`
		Limit     int        `json:"limit"`
		Offset    int        `json:"offset"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Documents, 2)
	assert.Equal(t, 17, resp.Total)
	assert.Equal(t, 20, resp.Limit)
	assert.Equal(t, 0, resp.Offset)
}

func TestHandler_List_ValidatesPagination(t *testing.T) {
	f := newFixture()
	mux := newTestMux(f)

	for _, target := range []string{
		"/documents?limit=0",
		"/documents?limit=101",
		"/documents?limit=abc",
		"/documents?offset=-1",
	} {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}

	f.repo.AssertNotCalled(t, "List", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandler_Get_NotFound(t *testing.T) {
	f := newFixture()
	mux := newTestMux(f)

	f.repo.On("Get", mock.Anything, "doc_missing").Return(nil, ErrNotFound)

	req := httptest.NewRequest(http.MethodGet, "/documents/doc_missing", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)

	var resp struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "NOT_FOUND", resp.Error.Code)
}

func TestHandler_Delete(t *testing.T) {
	f := newFixture()
	mux := newTestMux(f)

	doc := &Document{ID: "doc_1", StorageHandle: "h1", Status: StatusCompleted}
	f.repo.On("Get", mock.Anything, "doc_1").Return(doc, nil)
	f.chunks.On("DeleteByDocument", mock.Anything, "doc_1").Return(nil)
	f.blobs.On("Delete", mock.Anything, "h1").Return(nil)
	f.repo.On("Delete", mock.Anything, "doc_1").Return(nil)

	req := httptest.NewRequest(http.MethodDelete, "/documents/doc_1", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestHandler_Process_AlwaysReportsProcessing(t *testing.T) {
	// The endpoint acknowledges the run with 202/"processing" regardless of
	// the terminal outcome; clients poll the document for completed/failed.
	f := newFixture()
	mux := newTestMux(f)

	doc := &Document{ID: "doc_1", Filename: "a.txt", StorageHandle: "h1", Status: StatusPending}
	f.repo.On("Get", mock.Anything, "doc_1").Return(doc, nil)
	f.repo.On("UpdateStatus", mock.Anything, "doc_1", StatusProcessing).Return(nil)
	f.blobs.On("Read", mock.Anything, "h1").Return(nil, errors.New("blob gone"))
	f.chunks.On("DeleteByDocument", mock.Anything, "doc_1").Return(nil)
	f.repo.On("UpdateChunkCount", mock.Anything, "doc_1", 0).Return(nil)
	f.repo.On("UpdateStatus", mock.Anything, "doc_1", StatusFailed).Return(nil)

	req := httptest.NewRequest(http.MethodPost, "/documents/doc_1/process", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "processing", resp["status"])
	assert.Contains(t, resp["message"], "failed")
}

func TestHandler_Process_ConflictWhileProcessing(t *testing.T) {
	f := newFixture()
	mux := newTestMux(f)

	doc := &Document{ID: "doc_1", Status: StatusProcessing}
	f.repo.On("Get", mock.Anything, "doc_1").Return(doc, nil)

	req := httptest.NewRequest(http.MethodPost, "/documents/doc_1/process", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "CONFLICT")
}

func TestHandler_GetChunks(t *testing.T) {
	f := newFixture()
	mux := newTestMux(f)

	doc := &Document{ID: "doc_1", Status: StatusCompleted}
	page := 2
	f.repo.On("Get", mock.Anything, "doc_1").Return(doc, nil)
	f.chunks.On("GetByDocument", mock.Anything, "doc_1").Return([]chunk.Chunk{
		{ID: "chunk_aaa", DocumentID: "doc_1", Content: "first", Position: 0},
		{ID: "chunk_bbb", DocumentID: "doc_1", Content: "second", Position: 1, Metadata: &chunk.Metadata{Page: &page}},
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/documents/doc_1/chunks", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Chunks []chunk.Chunk `json:"chunks"`
		Total  int           `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Chunks, 2)
	assert.Equal(t, 2, resp.Total)
	assert.Equal(t, 0, resp.Chunks[0].Position)
	assert.Equal(t, 1, resp.Chunks[1].Position)
}

func TestHandler_GetChunks_EmptySet(t *testing.T) {
	f := newFixture()
	mux := newTestMux(f)

	doc := &Document{ID: "doc_1", Status: StatusPending}
	f.repo.On("Get", mock.Anything, "doc_1").Return(doc, nil)
	f.chunks.On("GetByDocument", mock.Anything, "doc_1").Return(nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/documents/doc_1/chunks", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"chunks":[],"total":0}`, rec.Body.String())
}

func TestHandler_InternalError(t *testing.T) {
	f := newFixture()
	mux := newTestMux(f)

	f.repo.On("Get", mock.Anything, "doc_1").Return(nil, errors.New("connection reset"))

	req := httptest.NewRequest(http.MethodGet, "/documents/doc_1", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "INTERNAL_ERROR")
	// Internal detail must not leak to clients.
	assert.NotContains(t, rec.Body.String(), "connection reset")
}
