package remote

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"neuroreverse/internal/upload"
)

func writeFile(t *testing.T, dir, name, body, mime string) upload.File {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return upload.File{Name: name, Path: path, MIME: mime, Size: int64(len(body))}
}

func TestNewTrimsBaseURL(t *testing.T) {
	c := New(" http://svc.local/ ")
	if c.BaseURL() != "http://svc.local" {
		t.Fatalf("unexpected base url %q", c.BaseURL())
	}
	c = New("http://svc.local", WithTimeout(3*time.Second))
	if c.httpClient.Timeout != 3*time.Second {
		t.Fatalf("expected timeout to be applied, got %v", c.httpClient.Timeout)
	}
}

func TestUploadSendsRepeatedFilesField(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.pdf", "%PDF-a", "application/pdf")
	b := writeFile(t, dir, "b.txt", "bee", "text/plain")

	var gotNames []string
	var gotTypes []string
	var gotID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/upload" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		gotID = r.Header.Get(requestIDHeader)
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		for _, fh := range r.MultipartForm.File["files"] {
			gotNames = append(gotNames, fh.Filename)
			gotTypes = append(gotTypes, fh.Header.Get("Content-Type"))
		}
		_, _ = io.WriteString(w, `{"uploaded_files":[{"name":"a.pdf","size":6},{"name":"b.txt"}]}`)
	}))
	defer srv.Close()

	c := New(srv.URL)
	c.newID = func() string { return "req-1" }
	res, err := c.Upload(t.Context(), []upload.File{a, b})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if !reflect.DeepEqual(gotNames, []string{"a.pdf", "b.txt"}) {
		t.Fatalf("unexpected part names %v", gotNames)
	}
	if !reflect.DeepEqual(gotTypes, []string{"application/pdf", "text/plain"}) {
		t.Fatalf("unexpected part types %v", gotTypes)
	}
	if gotID != "req-1" {
		t.Fatalf("expected request id header, got %q", gotID)
	}
	if len(res.UploadedFiles) != 2 || res.UploadedFiles[0].Name != "a.pdf" || res.UploadedFiles[0].Size != 6 {
		t.Fatalf("unexpected response %#v", res)
	}
}

func TestUploadMissingFileFailsBeforeSending(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	_, err := New(srv.URL).Upload(t.Context(), []upload.File{{Name: "gone.pdf", Path: filepath.Join(t.TempDir(), "gone.pdf")}})
	if err == nil {
		t.Fatalf("expected error for missing file")
	}
	if called {
		t.Fatalf("request should not be sent")
	}
}

func TestInitPostsJSON(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/init" || r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("unexpected request %s %s", r.URL.Path, r.Header.Get("Content-Type"))
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = io.WriteString(w, "ok")
	}))
	defer srv.Close()

	if err := New(srv.URL).Init(t.Context(), InitRequest{SessionID: "session_1"}); err != nil {
		t.Fatalf("init: %v", err)
	}
	urls, ok := got["urls"].([]any)
	if !ok || len(urls) != 0 {
		t.Fatalf("expected empty urls array, got %#v", got["urls"])
	}
	if got["session_id"] != "session_1" {
		t.Fatalf("unexpected session id %#v", got["session_id"])
	}
}

func TestNon2xxIsStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad session", http.StatusBadRequest)
	}))
	defer srv.Close()

	err := New(srv.URL).RegisterQuery(t.Context(), QueryRequest{SessionID: "s", Query: "q"})
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if se.StatusCode != http.StatusBadRequest || !strings.Contains(se.Error(), "bad session") {
		t.Fatalf("unexpected status error %v", se)
	}
}

func TestTransportFailureIsWrapped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := New(url).Ask(t.Context(), QueryRequest{SessionID: "s", Query: "q"})
	if err == nil || !strings.HasPrefix(err.Error(), "ask: ") {
		t.Fatalf("expected wrapped transport error, got %v", err)
	}
}

func TestAskQueryParameters(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if r.Method != http.MethodGet || r.URL.Path != "/" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if q.Get("session_id") != "session_9" || q.Get("query") != "how?" {
			t.Errorf("unexpected query %v", q)
		}
		_, _ = io.WriteString(w, `{"response":"like this"}`)
	}))
	defer srv.Close()

	a, err := New(srv.URL).Ask(t.Context(), QueryRequest{SessionID: "session_9", Query: "how?"})
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if a.Response != "like this" {
		t.Fatalf("unexpected answer %#v", a)
	}
}

func TestAskCombinedQueryParameters(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("message") != "compare" || q.Get("sessionId") != "42" {
			t.Errorf("unexpected scalar params %v", q)
		}
		if !reflect.DeepEqual(q["files[]"], []string{"a.pdf", "b.pdf"}) {
			t.Errorf("unexpected files %v", q["files[]"])
		}
		if !reflect.DeepEqual(q["urls[]"], []string{"http://x.com"}) {
			t.Errorf("unexpected urls %v", q["urls[]"])
		}
		_, _ = io.WriteString(w, `{}`)
	}))
	defer srv.Close()

	a, err := New(srv.URL).AskCombined(t.Context(), CombinedQuery{
		Message:   "compare",
		Files:     []string{"a.pdf", "b.pdf"},
		URLs:      []string{"http://x.com"},
		SessionID: "42",
	})
	if err != nil {
		t.Fatalf("ask combined: %v", err)
	}
	if a.Response != "" {
		t.Fatalf("expected empty response, got %q", a.Response)
	}
}

func TestAskNonJSONBodyIsEmptyAnswer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "<html>hello</html>")
	}))
	defer srv.Close()

	a, err := New(srv.URL).Ask(t.Context(), QueryRequest{SessionID: "s", Query: "q"})
	if err != nil {
		t.Fatalf("non-JSON 2xx should not fail: %v", err)
	}
	if a.Response != "" {
		t.Fatalf("expected empty answer, got %#v", a)
	}
}

func TestUploadNonJSONBodyIsEmptyList(t *testing.T) {
	file := writeFile(t, t.TempDir(), "a.txt", "hello", "text/plain")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "Files received")
	}))
	defer srv.Close()

	res, err := New(srv.URL).Upload(t.Context(), []upload.File{file})
	if err != nil {
		t.Fatalf("non-JSON 2xx upload should not fail: %v", err)
	}
	if len(res.UploadedFiles) != 0 {
		t.Fatalf("expected no uploaded files, got %#v", res)
	}
}

func TestStatusErrorTruncatesOnRuneBoundary(t *testing.T) {
	err := &StatusError{Op: "ask", StatusCode: http.StatusBadGateway, Body: strings.Repeat("€", 300)}
	msg := err.Error()
	if !utf8.ValidString(msg) {
		t.Fatalf("error message is not valid UTF-8: %q", msg)
	}
	if !strings.HasSuffix(msg, "...") || strings.Count(msg, "€") >= 300 {
		t.Fatalf("expected truncated body, got %q", msg)
	}
}

func TestBenchmarkUploadAndAnalysis(t *testing.T) {
	dir := t.TempDir()
	mine := writeFile(t, dir, "mine.csv", "a,b", "text/csv")
	theirs := writeFile(t, dir, "theirs.pdf", "%PDF", "application/pdf")

	var calls []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		switch r.URL.Path {
		case "/upload/":
			if err := r.ParseMultipartForm(1 << 20); err != nil {
				t.Errorf("parse multipart: %v", err)
				return
			}
			if len(r.MultipartForm.File["user_files"]) != 1 || len(r.MultipartForm.File["competitor_files"]) != 1 {
				t.Errorf("unexpected parts %v", r.MultipartForm.File)
			}
			_, _ = io.WriteString(w, "uploaded")
		case "/response":
			var body map[string]bool
			_ = json.NewDecoder(r.Body).Decode(&body)
			if !body["start_analysis"] {
				t.Errorf("expected start_analysis=true, got %v", body)
			}
			_, _ = io.WriteString(w, `{"message":"you win on price"}`)
		}
	}))
	defer srv.Close()

	c := New(srv.URL)
	if err := c.UploadBenchmark(t.Context(), []upload.File{mine}, []upload.File{theirs}); err != nil {
		t.Fatalf("upload benchmark: %v", err)
	}
	msg, err := c.StartAnalysis(t.Context())
	if err != nil {
		t.Fatalf("start analysis: %v", err)
	}
	if msg != "you win on price" {
		t.Fatalf("unexpected message %q", msg)
	}
	if !reflect.DeepEqual(calls, []string{"POST /upload/", "POST /response"}) {
		t.Fatalf("unexpected calls %v", calls)
	}
}
