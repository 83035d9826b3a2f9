package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/AV-Sohan-Aiyappa/TumourScope/internal/api"
)

func multipartImageRequest(t *testing.T, field, filename string, payload []byte) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(payload); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/process-image", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestProcessImage(t *testing.T) {
	srv := newTestServer(t)
	h := srv.routes()

	req := multipartImageRequest(t, uploadFieldName, "scan.jpg", []byte("fake-image-bytes"))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}

	var resp api.ProcessImageResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !strings.HasPrefix(resp.ProcessedImageURL, "/artifacts/processed_") {
		t.Fatalf("unexpected processed image url: %s", resp.ProcessedImageURL)
	}
	if resp.Timestamp <= 0 {
		t.Fatalf("expected positive timestamp, got %d", resp.Timestamp)
	}

	name := strings.TrimPrefix(resp.ProcessedImageURL, "/artifacts/")
	if _, err := os.Stat(filepath.Join(srv.artifacts.Dir(), name)); err != nil {
		t.Fatalf("expected artifact on disk: %v", err)
	}
}

func TestProcessImageNoFile(t *testing.T) {
	srv := newTestServer(t)
	h := srv.routes()

	req := multipartImageRequest(t, "attachment", "scan.jpg", []byte("payload"))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d (%s)", w.Code, w.Body.String())
	}

	var errResp api.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &errResp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if errResp.ErrorCode != ErrCodeNoImageFile {
		t.Fatalf("expected error_code %d, got %d", ErrCodeNoImageFile, errResp.ErrorCode)
	}
	if errResp.Error != "no image file provided" {
		t.Fatalf("unexpected error message: %s", errResp.Error)
	}
}

func TestProcessImageEmptyPayload(t *testing.T) {
	srv := newTestServer(t)
	h := srv.routes()

	req := multipartImageRequest(t, uploadFieldName, "scan.jpg", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d (%s)", w.Code, w.Body.String())
	}
}

func TestProcessImageAnalyzerFailure(t *testing.T) {
	srv := newTestServer(t)
	srv.runner.exitCode = 1
	srv.runner.stderr = "Traceback: boom"
	h := srv.routes()

	req := multipartImageRequest(t, uploadFieldName, "scan.jpg", []byte("payload"))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d (%s)", w.Code, w.Body.String())
	}

	var errResp api.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &errResp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if errResp.Error != "internal error" {
		t.Fatalf("expected scrubbed error message, got %q", errResp.Error)
	}
	if errResp.ErrorCode != ErrCodeProcessingFailed {
		t.Fatalf("expected error_code %d, got %d", ErrCodeProcessingFailed, errResp.ErrorCode)
	}
	if !strings.Contains(errResp.Details, "boom") {
		t.Fatalf("expected analyzer stderr in details, got %q", errResp.Details)
	}
}

func TestProcessImageMissingOutput(t *testing.T) {
	srv := newTestServer(t)
	srv.runner.skipWrite = true
	h := srv.routes()

	req := multipartImageRequest(t, uploadFieldName, "scan.jpg", []byte("payload"))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d (%s)", w.Code, w.Body.String())
	}

	var errResp api.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &errResp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if errResp.ErrorCode != ErrCodeMissingOutput {
		t.Fatalf("expected error_code %d, got %d", ErrCodeMissingOutput, errResp.ErrorCode)
	}
}

func TestListProcessedImages(t *testing.T) {
	srv := newTestServer(t)
	h := srv.routes()

	// Artifacts written out of timestamp order.
	for _, ts := range []int64{200, 100, 300} {
		name := fmt.Sprintf("processed_%d.jpg", ts)
		if err := os.WriteFile(filepath.Join(srv.artifacts.Dir(), name), []byte("x"), 0o644); err != nil {
			t.Fatalf("write artifact: %v", err)
		}
	}
	if err := os.WriteFile(filepath.Join(srv.artifacts.Dir(), "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write foreign file: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/get-processed-images", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}

	var resp api.ProcessedImagesResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Images) != 3 {
		t.Fatalf("expected 3 images, got %d", len(resp.Images))
	}
	want := []int64{300, 200, 100}
	for i, image := range resp.Images {
		if image.Timestamp != want[i] {
			t.Fatalf("expected timestamp %d at index %d, got %d", want[i], i, image.Timestamp)
		}
	}
}

func TestServeArtifact(t *testing.T) {
	srv := newTestServer(t)
	h := srv.routes()

	name := fmt.Sprintf("processed_%d.jpg", time.Now().UnixMilli())
	if err := os.WriteFile(filepath.Join(srv.artifacts.Dir(), name), []byte("jpeg-bytes"), 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}

	t.Run("serves stored artifact", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/artifacts/"+name, nil)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		if w.Body.String() != "jpeg-bytes" {
			t.Fatalf("unexpected body: %q", w.Body.String())
		}
	})

	t.Run("rejects foreign names", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/artifacts/secrets.txt", nil)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		if w.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", w.Code)
		}
	})
}
