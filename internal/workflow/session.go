package workflow

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"neuroreverse/internal/conversation"
	"neuroreverse/internal/remote"
	"neuroreverse/internal/upload"
)

// ChatService is the remote side of a chat page.
type ChatService interface {
	Upload(ctx context.Context, files []upload.File) (remote.UploadResponse, error)
	Init(ctx context.Context, in remote.InitRequest) error
	RegisterQuery(ctx context.Context, in remote.QueryRequest) error
	Ask(ctx context.Context, in remote.QueryRequest) (remote.Answer, error)
	AskCombined(ctx context.Context, in remote.CombinedQuery) (remote.Answer, error)
}

// Input is what the user entered at submit time. URLs are already qualified.
type Input struct {
	Message string
	Files   []upload.File
	URLs    []string
}

// Request is the snapshot taken by Begin.
type Request struct {
	Variant   Variant
	SessionID string
	Message   string
	Files     []string
	URLs      []string
	At        time.Time
}

type Result struct {
	Request *Request
	Answer  string
	Err     error
}

type UploadRequest struct {
	Files []upload.File
	URLs  []string
}

type UploadResult struct {
	Request  *UploadRequest
	Uploaded []remote.UploadedFile
	Err      error
}

type InitRequest struct {
	SessionID string
	URLs      []string
}

type InitResult struct {
	Request *InitRequest
	Err     error
}

// Session sequences upload, init and query calls for one page visit.
//
// Begin*/Complete* mutate state and must be called from a single goroutine.
// Execute* only read configuration and may run anywhere.
type Session struct {
	variant Variant
	svc     ChatService
	log     *conversation.Log
	logger  *slog.Logger
	now     func() time.Time
	timeout time.Duration

	state     State
	busy      bool
	sessionID string
	uploaded  []remote.UploadedFile
}

type Option func(*Session)

func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSessionID overrides the id generated at construction.
func WithSessionID(id string) Option {
	return func(s *Session) { s.sessionID = id }
}

// WithTimeout bounds each Execute call. Zero waits indefinitely.
func WithTimeout(d time.Duration) Option {
	return func(s *Session) { s.timeout = d }
}

func NewSession(variant Variant, svc ChatService, log *conversation.Log, opts ...Option) *Session {
	s := &Session{
		variant: variant,
		svc:     svc,
		log:     log,
		logger:  slog.Default(),
		now:     time.Now,
	}
	if variant == VariantCombined {
		s.sessionID = RandomSessionID()
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = conversation.NewLog()
	}
	s.logger = s.logger.With("component", "workflow", "variant", variant.String())
	return s
}

func (s *Session) Variant() Variant { return s.variant }
func (s *Session) State() State { return s.state }
func (s *Session) Busy() bool { return s.busy }
func (s *Session) SessionID() string { return s.sessionID }
func (s *Session) Log() *conversation.Log { return s.log }
func (s *Session) Uploaded() []remote.UploadedFile { return append([]remote.UploadedFile(nil), s.uploaded...) }

func (s *Session) setState(next State) {
	if next == s.state {
		return
	}
	s.logger.Debug("state change", "from", s.state.String(), "to", next.String(), "session_id", s.sessionID)
	s.state = next
}

// Begin validates and snapshots a submission, marks the session busy and
// appends the user entry before any call is made.
func (s *Session) Begin(in Input) (*Request, error) {
	if s.busy {
		return nil, ErrBusy
	}
	message := strings.TrimSpace(in.Message)

	switch s.variant {
	case VariantCombined:
		if message == "" && len(in.Files) == 0 && !hasURL(in.URLs) {
			return nil, ErrEmptySubmission
		}
	default:
		if s.sessionID == "" {
			return nil, ErrNoSession
		}
		if message == "" {
			return nil, ErrEmptyQuery
		}
	}

	req := &Request{
		Variant:   s.variant,
		SessionID: s.sessionID,
		Message:   in.Message,
		URLs:      nonBlank(in.URLs),
		At:        s.now(),
	}
	if s.variant != VariantCombined {
		req.Message = message
	}
	for _, f := range in.Files {
		req.Files = append(req.Files, f.Name)
	}

	s.busy = true
	s.setState(StateQuerying)
	s.log.Append(conversation.UserEntry(req.Message, req.Files, req.URLs, req.At))
	s.logger.Info("query submitted", "session_id", req.SessionID, "files", len(req.Files), "urls", len(req.URLs))
	return req, nil
}

// Execute issues the calls for req in order and reports the outcome.
func (s *Session) Execute(ctx context.Context, req *Request) Result {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	res := Result{Request: req}
	switch req.Variant {
	case VariantCombined:
		a, err := s.svc.AskCombined(ctx, remote.CombinedQuery{
			Message:   req.Message,
			Files:     req.Files,
			URLs:      req.URLs,
			SessionID: req.SessionID,
		})
		res.Answer, res.Err = a.Response, err
	case VariantRegisterQuery:
		q := remote.QueryRequest{SessionID: req.SessionID, Query: req.Message}
		if err := s.svc.RegisterQuery(ctx, q); err != nil {
			res.Err = err
			return res
		}
		a, err := s.svc.Ask(ctx, q)
		res.Answer, res.Err = a.Response, err
	default:
		a, err := s.svc.Ask(ctx, remote.QueryRequest{SessionID: req.SessionID, Query: req.Message})
		res.Answer, res.Err = a.Response, err
	}
	return res
}

// Complete records the reply. The user entry from Begin is never removed.
func (s *Session) Complete(res Result) conversation.Entry {
	s.busy = false
	if res.Err != nil {
		s.logger.Error("query failed", "session_id", s.sessionID, "error", res.Err)
		s.setState(StateFailed)
		e := conversation.ErrorEntry(RequestFailedMessage)
		s.log.Append(e)
		return e
	}

	text := res.Answer
	if text == "" {
		text = NoResponsePlaceholder
	}
	s.setState(StateReady)
	e := conversation.AssistantEntry(text, s.now())
	s.log.Append(e)
	return e
}

// BeginUpload starts the upload/init sub-flow.
func (s *Session) BeginUpload(files []upload.File, urls []string) (*UploadRequest, error) {
	if s.variant == VariantCombined {
		return nil, ErrUploadUnsupported
	}
	if s.busy {
		return nil, ErrBusy
	}
	if len(files) == 0 {
		return nil, ErrNoFiles
	}
	s.busy = true
	s.setState(StateUploading)
	return &UploadRequest{
		Files: append([]upload.File(nil), files...),
		URLs:  nonBlank(urls),
	}, nil
}

func (s *Session) ExecuteUpload(ctx context.Context, req *UploadRequest) UploadResult {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	resp, err := s.svc.Upload(ctx, req.Files)
	return UploadResult{Request: req, Uploaded: resp.UploadedFiles, Err: err}
}

// CompleteUpload assigns a fresh session id as soon as the upload succeeds,
// before the service has acknowledged it, and returns the init call to make.
func (s *Session) CompleteUpload(res UploadResult) (*InitRequest, error) {
	if res.Err != nil {
		s.busy = false
		s.logger.Error("upload failed", "error", res.Err)
		s.setState(StateFailed)
		return nil, res.Err
	}
	s.uploaded = append([]remote.UploadedFile(nil), res.Uploaded...)
	s.sessionID = TimestampSessionID(s.now())
	s.setState(StateInitializing)
	s.logger.Info("files uploaded", "count", len(res.Uploaded), "session_id", s.sessionID)
	return &InitRequest{SessionID: s.sessionID, URLs: res.Request.URLs}, nil
}

func (s *Session) ExecuteInit(ctx context.Context, req *InitRequest) InitResult {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	err := s.svc.Init(ctx, remote.InitRequest{URLs: req.URLs, SessionID: req.SessionID})
	return InitResult{Request: req, Err: err}
}

// CompleteInit finishes the sub-flow. A failed init keeps the session id.
func (s *Session) CompleteInit(res InitResult) error {
	s.busy = false
	if res.Err != nil {
		s.logger.Error("session init failed", "session_id", s.sessionID, "error", res.Err)
		s.setState(StateFailed)
		return res.Err
	}
	s.setState(StateReady)
	s.logger.Info("session initialized", "session_id", s.sessionID)
	return nil
}

func (s *Session) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout > 0 {
		return context.WithTimeout(ctx, s.timeout)
	}
	return context.WithCancel(ctx)
}

func hasURL(urls []string) bool {
	for _, u := range urls {
		if strings.TrimSpace(u) != "" {
			return true
		}
	}
	return false
}

func nonBlank(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}
