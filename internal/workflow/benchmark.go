package workflow

import (
	"context"
	"log/slog"
	"time"

	"neuroreverse/internal/upload"
)

type BenchmarkService interface {
	UploadBenchmark(ctx context.Context, userFiles, competitorFiles []upload.File) error
	StartAnalysis(ctx context.Context) (string, error)
}

type BenchmarkRequest struct {
	UserFiles       []upload.File
	CompetitorFiles []upload.File
}

type BenchmarkResult struct {
	Request *BenchmarkRequest
	Message string
	Err     error
}

// Benchmark uploads the user's and a competitor's product data and asks the
// service to compare them.
type Benchmark struct {
	svc        BenchmarkService
	logger     *slog.Logger
	timeout    time.Duration
	User       *upload.Field
	Competitor *upload.Field

	busy   bool
	result string
}

func NewBenchmark(svc BenchmarkService, logger *slog.Logger, timeout time.Duration) *Benchmark {
	if logger == nil {
		logger = slog.Default()
	}
	return &Benchmark{
		svc:        svc,
		logger:     logger.With("component", "benchmark"),
		timeout:    timeout,
		User:       upload.NewField(0),
		Competitor: upload.NewField(0),
	}
}

func (b *Benchmark) Busy() bool { return b.busy }

// Result is the last analysis message, empty until one succeeds.
func (b *Benchmark) Result() string { return b.result }

func (b *Benchmark) Begin() (*BenchmarkRequest, error) {
	if b.busy {
		return nil, ErrBusy
	}
	if b.User.Len() == 0 && b.Competitor.Len() == 0 {
		return nil, ErrNoBenchmarkFiles
	}
	b.busy = true
	b.result = ""
	b.logger.Info("analysis submitted", "user_files", b.User.Len(), "competitor_files", b.Competitor.Len())
	return &BenchmarkRequest{
		UserFiles:       b.User.Files(),
		CompetitorFiles: b.Competitor.Files(),
	}, nil
}

// Execute uploads both selections and then starts the analysis. The second
// call is skipped when the upload fails.
func (b *Benchmark) Execute(ctx context.Context, req *BenchmarkRequest) BenchmarkResult {
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}
	res := BenchmarkResult{Request: req}
	if err := b.svc.UploadBenchmark(ctx, req.UserFiles, req.CompetitorFiles); err != nil {
		res.Err = err
		return res
	}
	res.Message, res.Err = b.svc.StartAnalysis(ctx)
	return res
}

func (b *Benchmark) Complete(res BenchmarkResult) error {
	b.busy = false
	if res.Err != nil {
		b.logger.Error("analysis failed", "error", res.Err)
		return res.Err
	}
	b.result = res.Message
	b.logger.Info("analysis completed", "bytes", len(res.Message))
	return nil
}
