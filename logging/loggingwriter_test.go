package logging

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWritesAndCounts(t *testing.T) {
	rr := httptest.NewRecorder()
	w := NewLoggingWriter(rr)

	body := "Hello, world!"
	w.Write([]byte(body))
	back := rr.Body.String()

	if back != body {
		t.Error("failed to write body")
	}

	if w.GetBytes() != int64(len(body)) {
		t.Error("failed to count bytes")
	}

	if w.GetCode() != http.StatusOK {
		t.Error("failed to set the implicit status code")
	}
}

func TestWritesAndStoresStatusCode(t *testing.T) {
	rr := httptest.NewRecorder()
	w := NewLoggingWriter(rr)
	w.WriteHeader(http.StatusTeapot)

	if rr.Code != http.StatusTeapot {
		t.Error("failed to write status code")
	}

	if w.GetCode() != http.StatusTeapot {
		t.Error("failed to store status code")
	}
}

func TestReturnsUnderlyingHeader(t *testing.T) {
	rr := httptest.NewRecorder()
	w := NewLoggingWriter(rr)
	w.Header().Set("X-Test-Header", "test-value")
	if rr.Header().Get("X-Test-Header") != "test-value" {
		t.Error("failed to set the header")
	}
}

func TestFlushesPartialPayload(t *testing.T) {
	rr := httptest.NewRecorder()
	w := NewLoggingWriter(rr)
	w.Write([]byte("Hello, world!"))
	w.Flush()
	if !rr.Flushed {
		t.Error("failed to flush underlying writer")
	}
}

func TestSets200OnMissingStatus(t *testing.T) {
	rr := httptest.NewRecorder()
	w := NewLoggingWriter(rr)
	w.WriteHeader(0)

	if w.GetCode() != http.StatusOK {
		t.Errorf("failed to overwrite status code. Expected 200 but got %d", w.GetCode())
	}
}

func TestHijackUnsupported(t *testing.T) {
	w := NewLoggingWriter(httptest.NewRecorder())
	if _, _, err := w.Hijack(); err == nil {
		t.Error("failed to fail hijacking a recorder")
	}
}
