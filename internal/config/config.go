package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const DefaultGlamourStyle = "dark"

const (
	DefaultChatBaseURL      = "https://reverse-engineer-production.up.railway.app"
	DefaultBenchmarkBaseURL = "https://2ndcompo-production.up.railway.app"
)

// envConfig holds the environment defaults that flags may override.
type envConfig struct {
	ChatBaseURL      string        `env:"NEURO_CHAT_BASE_URL" envDefault:"https://reverse-engineer-production.up.railway.app"`
	BenchmarkBaseURL string        `env:"NEURO_BENCHMARK_BASE_URL" envDefault:"https://2ndcompo-production.up.railway.app"`
	AssistantVariant string        `env:"NEURO_ASSISTANT_VARIANT" envDefault:"session-query"`
	ExportDir        string        `env:"NEURO_EXPORT_DIR"`
	LogFile          string        `env:"NEURO_LOG_FILE"`
	LogLevel         string        `env:"NEURO_LOG_LEVEL" envDefault:"info"`
	RequestTimeout   time.Duration `env:"NEURO_REQUEST_TIMEOUT" envDefault:"0s"`
	StartPage        string        `env:"NEURO_START_PAGE" envDefault:"/"`
}

type AppConfig struct {
	ChatBaseURL      string
	BenchmarkBaseURL string
	AssistantVariant string
	ExportDir        string
	LogFile          string
	LogLevel         slog.Level
	RequestTimeout   time.Duration
	StartPage        string
}

// Parse reads .env, the environment and then command line flags, in
// increasing order of precedence.
func Parse() (AppConfig, error) {
	return ParseArgs(flag.CommandLine, os.Args[1:])
}

func ParseArgs(fset *flag.FlagSet, args []string) (AppConfig, error) {
	var cfg AppConfig

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}

	var defaults envConfig
	if err := env.Parse(&defaults); err != nil {
		return cfg, fmt.Errorf("parse environment: %w", err)
	}

	var level string
	fset.StringVar(&cfg.ChatBaseURL, "chat-url", defaults.ChatBaseURL, "base URL of the chat analysis service")
	fset.StringVar(&cfg.BenchmarkBaseURL, "benchmark-url", defaults.BenchmarkBaseURL, "base URL of the benchmarking service")
	fset.StringVar(&cfg.AssistantVariant, "assistant-variant", defaults.AssistantVariant, "AI assistant query contract: session-query or register-query")
	fset.StringVar(&cfg.ExportDir, "export-dir", defaults.ExportDir, "override transcript export directory")
	fset.StringVar(&cfg.LogFile, "log-file", defaults.LogFile, "path to the log file")
	fset.StringVar(&level, "log-level", defaults.LogLevel, "log level: debug, info, warn or error")
	fset.DurationVar(&cfg.RequestTimeout, "request-timeout", defaults.RequestTimeout, "per-request timeout, 0 waits indefinitely")
	fset.StringVar(&cfg.StartPage, "page", defaults.StartPage, "route to open at startup, e.g. /bench or /chat")
	if err := fset.Parse(args); err != nil {
		return cfg, err
	}

	for name, u := range map[string]string{"chat-url": cfg.ChatBaseURL, "benchmark-url": cfg.BenchmarkBaseURL} {
		if strings.TrimSpace(u) == "" {
			return cfg, fmt.Errorf("%s must not be empty", name)
		}
	}
	if cfg.RequestTimeout < 0 {
		return cfg, fmt.Errorf("request-timeout must not be negative")
	}
	if err := cfg.LogLevel.UnmarshalText([]byte(level)); err != nil {
		return cfg, fmt.Errorf("parse log level: %w", err)
	}

	if cfg.LogFile == "" {
		path, err := DefaultLogFile()
		if err != nil {
			return cfg, err
		}
		cfg.LogFile = path
	}
	if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o755); err != nil {
		return cfg, fmt.Errorf("create log dir: %w", err)
	}

	return cfg, nil
}

func DefaultLogFile() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("resolve cache directory: %w", err)
	}
	return filepath.Join(dir, "neuroreverse", "neuroreverse.log"), nil
}
