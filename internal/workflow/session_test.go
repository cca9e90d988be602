package workflow

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"testing"
	"time"

	"neuroreverse/internal/conversation"
	"neuroreverse/internal/remote"
	"neuroreverse/internal/upload"
)

type fakeChat struct {
	calls     []string
	uploadErr error
	initErr   error
	queryErr  error
	askErr    error
	answer    string
	combined  remote.CombinedQuery
	init      remote.InitRequest
	asked     remote.QueryRequest
}

func (f *fakeChat) Upload(_ context.Context, files []upload.File) (remote.UploadResponse, error) {
	f.calls = append(f.calls, "upload")
	if f.uploadErr != nil {
		return remote.UploadResponse{}, f.uploadErr
	}
	var out remote.UploadResponse
	for _, file := range files {
		out.UploadedFiles = append(out.UploadedFiles, remote.UploadedFile{Name: file.Name})
	}
	return out, nil
}

func (f *fakeChat) Init(_ context.Context, in remote.InitRequest) error {
	f.calls = append(f.calls, "init")
	f.init = in
	return f.initErr
}

func (f *fakeChat) RegisterQuery(_ context.Context, in remote.QueryRequest) error {
	f.calls = append(f.calls, "query")
	return f.queryErr
}

func (f *fakeChat) Ask(_ context.Context, in remote.QueryRequest) (remote.Answer, error) {
	f.calls = append(f.calls, "ask")
	f.asked = in
	return remote.Answer{Response: f.answer}, f.askErr
}

func (f *fakeChat) AskCombined(_ context.Context, in remote.CombinedQuery) (remote.Answer, error) {
	f.calls = append(f.calls, "combined")
	f.combined = in
	return remote.Answer{Response: f.answer}, f.askErr
}

var fixedNow = time.Date(2025, 2, 14, 10, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func TestRandomSessionIDRange(t *testing.T) {
	for i := 0; i < 500; i++ {
		n, err := strconv.Atoi(RandomSessionID())
		if err != nil || n < 1 || n > 2000 {
			t.Fatalf("session id out of range: %d (%v)", n, err)
		}
	}
	if got := TimestampSessionID(fixedNow); got != "session_"+strconv.FormatInt(fixedNow.UnixMilli(), 10) {
		t.Fatalf("unexpected timestamp id %q", got)
	}
}

func TestParseVariant(t *testing.T) {
	cases := map[string]Variant{
		"combined":       VariantCombined,
		"Session-Query":  VariantSessionQuery,
		"":               VariantSessionQuery,
		"register-query": VariantRegisterQuery,
	}
	for in, want := range cases {
		got, err := ParseVariant(in)
		if err != nil || got != want {
			t.Fatalf("ParseVariant(%q)=%v,%v want %v", in, got, err, want)
		}
	}
	if _, err := ParseVariant("websocket"); err == nil {
		t.Fatalf("expected error for unknown variant")
	}
}

func TestCombinedEmptySubmissionIsNoOp(t *testing.T) {
	svc := &fakeChat{}
	s := NewSession(VariantCombined, svc, nil, WithClock(clock))
	req, err := s.Begin(Input{Message: "   ", URLs: []string{"", "  "}})
	if !errors.Is(err, ErrEmptySubmission) || req != nil {
		t.Fatalf("expected ErrEmptySubmission, got req=%v err=%v", req, err)
	}
	if s.Log().Len() != 0 || len(svc.calls) != 0 || s.Busy() {
		t.Fatalf("empty submission must not log, call, or mark busy")
	}
}

func TestCombinedSubmitAppendsUserEntryBeforeCall(t *testing.T) {
	svc := &fakeChat{answer: "looks solid"}
	s := NewSession(VariantCombined, svc, nil, WithClock(clock), WithSessionID("77"))
	files := []upload.File{{Name: "brochure.pdf"}}

	req, err := s.Begin(Input{Message: "assess", Files: files, URLs: []string{"http://x.com", ""}})
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if s.Log().Len() != 1 || len(svc.calls) != 0 {
		t.Fatalf("expected one user entry and no calls yet, got len=%d calls=%v", s.Log().Len(), svc.calls)
	}
	user := s.Log().Entries()[0]
	if user.Kind != conversation.KindUser || user.Text != "assess" || !user.Time.Equal(fixedNow) {
		t.Fatalf("unexpected user entry %#v", user)
	}
	if !reflect.DeepEqual(user.Files, []string{"brochure.pdf"}) || !reflect.DeepEqual(user.URLs, []string{"http://x.com"}) {
		t.Fatalf("unexpected attachments %#v", user)
	}
	if !s.Busy() || s.State() != StateQuerying {
		t.Fatalf("expected busy querying, got busy=%v state=%s", s.Busy(), s.State())
	}
	if _, err := s.Begin(Input{Message: "again"}); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy while in flight, got %v", err)
	}

	res := s.Execute(t.Context(), req)
	if svc.combined.SessionID != "77" || svc.combined.Message != "assess" {
		t.Fatalf("unexpected combined query %#v", svc.combined)
	}
	e := s.Complete(res)
	if e.Kind != conversation.KindAssistant || e.Text != "looks solid" {
		t.Fatalf("unexpected assistant entry %#v", e)
	}
	if s.Busy() || s.State() != StateReady || s.Log().Len() != 2 {
		t.Fatalf("unexpected end state busy=%v state=%s len=%d", s.Busy(), s.State(), s.Log().Len())
	}
}

func TestCombinedURLOnlySubmissionIsAccepted(t *testing.T) {
	s := NewSession(VariantCombined, &fakeChat{}, nil)
	if _, err := s.Begin(Input{URLs: []string{"http://x.com"}}); err != nil {
		t.Fatalf("url-only submission should pass: %v", err)
	}
}

func TestMissingResponseUsesPlaceholder(t *testing.T) {
	s := NewSession(VariantCombined, &fakeChat{}, nil)
	req, err := s.Begin(Input{Message: "hi"})
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	e := s.Complete(s.Execute(t.Context(), req))
	if e.Kind != conversation.KindAssistant || e.Text != NoResponsePlaceholder {
		t.Fatalf("expected placeholder assistant entry, got %#v", e)
	}
}

func TestFailureAppendsErrorWithoutRollback(t *testing.T) {
	svc := &fakeChat{askErr: errors.New("connection refused")}
	s := NewSession(VariantCombined, svc, nil)
	req, _ := s.Begin(Input{Message: "hi"})
	e := s.Complete(s.Execute(t.Context(), req))
	if e.Kind != conversation.KindError || e.Text != RequestFailedMessage {
		t.Fatalf("unexpected error entry %#v", e)
	}
	entries := s.Log().Entries()
	if len(entries) != 2 || entries[0].Kind != conversation.KindUser {
		t.Fatalf("user entry should remain, got %#v", entries)
	}
	if s.State() != StateFailed || s.Busy() {
		t.Fatalf("expected failed idle session, got %s busy=%v", s.State(), s.Busy())
	}
	if len(svc.calls) != 1 {
		t.Fatalf("expected a single attempt, got %v", svc.calls)
	}
	if _, err := s.Begin(Input{Message: "retry by hand"}); err != nil {
		t.Fatalf("manual resubmit should be allowed: %v", err)
	}
}

func TestQueryRequiresSession(t *testing.T) {
	svc := &fakeChat{}
	s := NewSession(VariantSessionQuery, svc, nil)
	if _, err := s.Begin(Input{Message: "hello"}); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
	s = NewSession(VariantSessionQuery, svc, nil, WithSessionID("session_1"))
	if _, err := s.Begin(Input{Message: "  "}); !errors.Is(err, ErrEmptyQuery) {
		t.Fatalf("expected ErrEmptyQuery, got %v", err)
	}
	if s.Log().Len() != 0 || len(svc.calls) != 0 {
		t.Fatalf("rejections must not log or call")
	}
}

func TestUploadThenInitAssignsSession(t *testing.T) {
	svc := &fakeChat{}
	s := NewSession(VariantSessionQuery, svc, nil, WithClock(clock))
	if s.SessionID() != "" {
		t.Fatalf("session-query flow starts without a session")
	}

	req, err := s.BeginUpload([]upload.File{{Name: "a.pdf"}}, []string{"http://x.com", ""})
	if err != nil {
		t.Fatalf("begin upload: %v", err)
	}
	if s.State() != StateUploading || !s.Busy() {
		t.Fatalf("expected uploading, got %s", s.State())
	}
	initReq, err := s.CompleteUpload(s.ExecuteUpload(t.Context(), req))
	if err != nil {
		t.Fatalf("complete upload: %v", err)
	}
	want := TimestampSessionID(fixedNow)
	if s.SessionID() != want || initReq.SessionID != want {
		t.Fatalf("expected optimistic session id %q, got %q/%q", want, s.SessionID(), initReq.SessionID)
	}
	if s.State() != StateInitializing || !s.Busy() {
		t.Fatalf("expected initializing and busy, got %s busy=%v", s.State(), s.Busy())
	}
	if err := s.CompleteInit(s.ExecuteInit(t.Context(), initReq)); err != nil {
		t.Fatalf("complete init: %v", err)
	}
	if !reflect.DeepEqual(svc.init.URLs, []string{"http://x.com"}) || svc.init.SessionID != want {
		t.Fatalf("unexpected init payload %#v", svc.init)
	}
	if s.State() != StateReady || s.Busy() {
		t.Fatalf("expected ready, got %s", s.State())
	}
	if got := s.Uploaded(); len(got) != 1 || got[0].Name != "a.pdf" {
		t.Fatalf("unexpected uploaded list %#v", got)
	}
	if !reflect.DeepEqual(svc.calls, []string{"upload", "init"}) {
		t.Fatalf("unexpected call order %v", svc.calls)
	}
}

func TestUploadFailureKeepsPreviousSession(t *testing.T) {
	svc := &fakeChat{uploadErr: errors.New("413")}
	s := NewSession(VariantSessionQuery, svc, nil, WithSessionID("session_old"))
	req, _ := s.BeginUpload([]upload.File{{Name: "big.pdf"}}, nil)
	initReq, err := s.CompleteUpload(s.ExecuteUpload(t.Context(), req))
	if err == nil || initReq != nil {
		t.Fatalf("expected upload failure")
	}
	if s.SessionID() != "session_old" || s.State() != StateFailed || s.Busy() {
		t.Fatalf("unexpected state after failed upload: id=%q state=%s busy=%v", s.SessionID(), s.State(), s.Busy())
	}
	if !reflect.DeepEqual(svc.calls, []string{"upload"}) {
		t.Fatalf("init must not run after failed upload: %v", svc.calls)
	}
}

func TestUploadValidation(t *testing.T) {
	if _, err := NewSession(VariantCombined, &fakeChat{}, nil).BeginUpload([]upload.File{{Name: "a"}}, nil); !errors.Is(err, ErrUploadUnsupported) {
		t.Fatalf("expected ErrUploadUnsupported, got %v", err)
	}
	s := NewSession(VariantSessionQuery, &fakeChat{}, nil)
	if _, err := s.BeginUpload(nil, nil); !errors.Is(err, ErrNoFiles) {
		t.Fatalf("expected ErrNoFiles, got %v", err)
	}
	if _, err := s.BeginUpload([]upload.File{{Name: "a"}}, nil); err != nil {
		t.Fatalf("begin upload: %v", err)
	}
	if _, err := s.BeginUpload([]upload.File{{Name: "b"}}, nil); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
}

func TestRegisterQueryVariantPostsThenGets(t *testing.T) {
	svc := &fakeChat{answer: "ok"}
	s := NewSession(VariantRegisterQuery, svc, nil, WithSessionID("session_5"))
	req, err := s.Begin(Input{Message: " why? "})
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	s.Complete(s.Execute(t.Context(), req))
	if !reflect.DeepEqual(svc.calls, []string{"query", "ask"}) {
		t.Fatalf("unexpected call order %v", svc.calls)
	}
	if svc.asked.Query != "why?" || svc.asked.SessionID != "session_5" {
		t.Fatalf("unexpected ask %#v", svc.asked)
	}
}

func TestRegisterQueryFailureSkipsGet(t *testing.T) {
	svc := &fakeChat{queryErr: errors.New("500")}
	s := NewSession(VariantRegisterQuery, svc, nil, WithSessionID("session_5"))
	req, _ := s.Begin(Input{Message: "why?"})
	e := s.Complete(s.Execute(t.Context(), req))
	if e.Kind != conversation.KindError {
		t.Fatalf("expected error entry, got %#v", e)
	}
	if !reflect.DeepEqual(svc.calls, []string{"query"}) {
		t.Fatalf("GET must not follow a failed POST: %v", svc.calls)
	}
}

type blockingChat struct {
	fakeChat
}

func (b *blockingChat) Ask(ctx context.Context, in remote.QueryRequest) (remote.Answer, error) {
	<-ctx.Done()
	return remote.Answer{}, ctx.Err()
}

func TestTimeoutBoundsExecute(t *testing.T) {
	s := NewSession(VariantSessionQuery, &blockingChat{}, nil, WithSessionID("s"), WithTimeout(20*time.Millisecond))
	req, _ := s.Begin(Input{Message: "q"})
	res := s.Execute(context.Background(), req)
	if !errors.Is(res.Err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", res.Err)
	}
}

func TestInitFailureKeepsSessionAndQueriesProceed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.pdf")
	if err := os.WriteFile(path, []byte("%PDF"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	var asked []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/upload":
			_, _ = io.WriteString(w, `{"uploaded_files":[{"name":"a.pdf"}]}`)
		case "/init":
			http.Error(w, "boom", http.StatusInternalServerError)
		case "/":
			asked = append(asked, r.URL.Query().Get("session_id"))
			_, _ = io.WriteString(w, `{"response":"answered anyway"}`)
		}
	}))
	defer srv.Close()

	s := NewSession(VariantSessionQuery, remote.New(srv.URL), nil, WithClock(clock))
	up, err := s.BeginUpload([]upload.File{{Name: "a.pdf", Path: path, MIME: "application/pdf"}}, nil)
	if err != nil {
		t.Fatalf("begin upload: %v", err)
	}
	initReq, err := s.CompleteUpload(s.ExecuteUpload(t.Context(), up))
	if err != nil {
		t.Fatalf("upload should succeed: %v", err)
	}
	if err := s.CompleteInit(s.ExecuteInit(t.Context(), initReq)); err == nil {
		t.Fatalf("expected init failure")
	}
	want := TimestampSessionID(fixedNow)
	if s.SessionID() != want {
		t.Fatalf("session id should remain %q, got %q", want, s.SessionID())
	}

	req, err := s.Begin(Input{Message: "still there?"})
	if err != nil {
		t.Fatalf("query after failed init should proceed: %v", err)
	}
	e := s.Complete(s.Execute(t.Context(), req))
	if e.Text != "answered anyway" {
		t.Fatalf("unexpected entry %#v", e)
	}
	if !reflect.DeepEqual(asked, []string{want}) {
		t.Fatalf("unexpected session ids sent %v", asked)
	}
}
