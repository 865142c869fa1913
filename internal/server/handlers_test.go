package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"vlmodel/internal/core"
	"vlmodel/internal/files"
)

// stubChat implements ChatService for testing
type stubChat struct {
	resp   *core.ChatResponse
	err    error
	models *core.ModelList
}

func (s *stubChat) ChatCompletion(ctx context.Context, req *core.ChatRequest) (*core.ChatResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.resp, nil
}

func (s *stubChat) ListModels() *core.ModelList {
	return s.models
}

// stubFiles implements FileService over an in-memory map
type stubFiles struct {
	records   map[string]*files.Record
	content   map[string][]byte
	uploadErr error
}

func newStubFiles() *stubFiles {
	return &stubFiles{
		records: make(map[string]*files.Record),
		content: make(map[string][]byte),
	}
}

func (s *stubFiles) Upload(ctx context.Context, r io.Reader, filename, contentType, purpose string) (*files.Record, error) {
	if s.uploadErr != nil {
		return nil, s.uploadErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	rec := &files.Record{
		ID:          files.NewFileID(),
		Filename:    filename,
		Bytes:       int64(len(data)),
		Purpose:     purpose,
		ContentType: contentType,
		CreatedAt:   time.Now(),
	}
	s.records[rec.ID] = rec
	s.content[rec.ID] = data
	return rec, nil
}

func (s *stubFiles) GetMetadata(ctx context.Context, id string) (*files.Record, error) {
	rec, ok := s.records[id]
	if !ok {
		return nil, core.NewFileNotFoundError(id)
	}
	return rec, nil
}

func (s *stubFiles) GetContent(ctx context.Context, id string) (io.ReadCloser, *files.Record, error) {
	rec, err := s.GetMetadata(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return io.NopCloser(bytes.NewReader(s.content[id])), rec, nil
}

func (s *stubFiles) Delete(ctx context.Context, id string) error {
	if _, ok := s.records[id]; !ok {
		return core.NewFileNotFoundError(id)
	}
	delete(s.records, id)
	delete(s.content, id)
	return nil
}

func (s *stubFiles) List(ctx context.Context) error {
	return core.NewListNotSupportedError()
}

func TestChatCompletionHandler(t *testing.T) {
	chat := &stubChat{resp: core.NewChatResponse("qwen/Qwen-VL-Chat", "Hello!")}

	e := echo.New()
	handler := NewHandler(chat, newStubFiles())

	reqBody := `{"model": "qwen/Qwen-VL-Chat", "messages": [{"role": "user", "content": "Hi"}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := handler.ChatCompletion(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Hello!") {
		t.Errorf("response missing completion text, got: %s", body)
	}
	if !strings.Contains(body, "chat.completion") {
		t.Errorf("response missing object field, got: %s", body)
	}
}

func TestChatCompletionHandlerModelNotFound(t *testing.T) {
	chat := &stubChat{err: core.NewModelNotFoundError("gpt-4")}

	e := echo.New()
	handler := NewHandler(chat, newStubFiles())

	reqBody := `{"model": "gpt-4", "messages": [{"role": "user", "content": "Hi"}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := handler.ChatCompletion(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rec.Code)
	}

	var envelope map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if envelope["object"] != "error" {
		t.Errorf("expected object=error, got %v", envelope["object"])
	}
	if envelope["type"] != "NotFoundError" {
		t.Errorf("expected type=NotFoundError, got %v", envelope["type"])
	}
	if envelope["message"] != "The model `gpt-4` does not exist." {
		t.Errorf("unexpected message: %v", envelope["message"])
	}
	if _, ok := envelope["param"]; !ok {
		t.Error("envelope missing param field")
	}
}

func TestChatCompletionHandlerStreamRejected(t *testing.T) {
	chat := &stubChat{err: core.NewNotImplementedError("Stream chat is not implemented.")}

	e := echo.New()
	handler := NewHandler(chat, newStubFiles())

	reqBody := `{"model": "qwen/Qwen-VL-Chat", "stream": true, "messages": [{"role": "user", "content": "Hi"}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := handler.ChatCompletion(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}

	if rec.Code != http.StatusNotImplemented {
		t.Errorf("expected status 501, got %d", rec.Code)
	}
	var envelope map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if envelope["message"] != "Stream chat is not implemented." {
		t.Errorf("unexpected message: %v", envelope["message"])
	}
	if envelope["type"] != "NotImplementedError" {
		t.Errorf("unexpected type: %v", envelope["type"])
	}
}

func TestChatCompletionHandlerBadJSON(t *testing.T) {
	e := echo.New()
	handler := NewHandler(&stubChat{}, newStubFiles())

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := handler.ChatCompletion(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rec.Code)
	}
}

func TestListModelsHandler(t *testing.T) {
	chat := &stubChat{models: &core.ModelList{
		Object: "list",
		Data: []core.ModelCard{
			{ID: "qwen/Qwen-VL-Chat", Object: "model", OwnedBy: "qwen"},
		},
	}}

	e := echo.New()
	handler := NewHandler(chat, newStubFiles())

	req := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := handler.ListModels(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "qwen/Qwen-VL-Chat") {
		t.Errorf("response missing model id, got: %s", rec.Body.String())
	}
}

func multipartUpload(t *testing.T, content []byte, filename, purpose string) (*http.Request, string) {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write(content); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := w.WriteField("purpose", purpose); err != nil {
		t.Fatalf("write purpose field: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/files", &buf)
	return req, w.FormDataContentType()
}

func TestUploadFileHandler(t *testing.T) {
	fs := newStubFiles()
	e := echo.New()
	handler := NewHandler(&stubChat{}, fs)

	req, contentType := multipartUpload(t, []byte("hello world"), "notes.txt", "assistants")
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := handler.UploadFile(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var obj core.FileObject
	if err := json.Unmarshal(rec.Body.Bytes(), &obj); err != nil {
		t.Fatalf("unmarshal file object: %v", err)
	}
	if obj.Object != "file" {
		t.Errorf("expected object=file, got %q", obj.Object)
	}
	if !strings.HasPrefix(obj.ID, "file-") {
		t.Errorf("expected file- id prefix, got %q", obj.ID)
	}
	if obj.Bytes != int64(len("hello world")) {
		t.Errorf("expected %d bytes, got %d", len("hello world"), obj.Bytes)
	}
	if obj.Filename != "notes.txt" {
		t.Errorf("expected filename notes.txt, got %q", obj.Filename)
	}
	if obj.Purpose != "assistants" {
		t.Errorf("expected purpose assistants, got %q", obj.Purpose)
	}
}

func TestUploadFileHandlerMissingFile(t *testing.T) {
	e := echo.New()
	handler := NewHandler(&stubChat{}, newStubFiles())

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("purpose", "assistants"); err != nil {
		t.Fatalf("write purpose: %v", err)
	}
	w.Close()

	req := httptest.NewRequest(http.MethodPost, "/v1/files", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := handler.UploadFile(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rec.Code)
	}
}

func TestFileLifecycleThroughRouter(t *testing.T) {
	fs := newStubFiles()
	srv := New(&stubChat{}, fs, nil)

	// Upload
	req, contentType := multipartUpload(t, []byte("image bytes"), "cat.png", "fine-tune")
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("upload: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var obj core.FileObject
	if err := json.Unmarshal(rec.Body.Bytes(), &obj); err != nil {
		t.Fatalf("unmarshal upload response: %v", err)
	}

	// Retrieve metadata
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/files/"+obj.ID, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("retrieve: expected 200, got %d", rec.Code)
	}

	// Download content
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/files/"+obj.ID+"/content", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("content: expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != "image bytes" {
		t.Errorf("content mismatch: %q", rec.Body.String())
	}
	if cd := rec.Header().Get(echo.HeaderContentDisposition); !strings.Contains(cd, "cat.png") {
		t.Errorf("Content-Disposition missing filename: %q", cd)
	}

	// Delete
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/v1/files/"+obj.ID, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", rec.Code)
	}
	var del core.FileDeleteResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &del); err != nil {
		t.Fatalf("unmarshal delete response: %v", err)
	}
	if !del.Deleted || del.ID != obj.ID {
		t.Errorf("unexpected delete response: %+v", del)
	}

	// Gone afterwards
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/files/"+obj.ID, nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", rec.Code)
	}
}

func TestListFilesAlwaysRejected(t *testing.T) {
	srv := New(&stubChat{}, newStubFiles(), nil)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/files", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	var envelope map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if envelope["message"] != "List files api not supported." {
		t.Errorf("unexpected message: %v", envelope["message"])
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv := New(&stubChat{}, newStubFiles(), nil)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "ok") {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestMetricsEndpointToggle(t *testing.T) {
	srv := New(&stubChat{}, newStubFiles(), &Config{MetricsEnabled: true})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("metrics enabled: expected 200, got %d", rec.Code)
	}

	srv = New(&stubChat{}, newStubFiles(), &Config{MetricsEnabled: false})
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("metrics disabled: expected 404, got %d", rec.Code)
	}
}
