package main

import (
	"fmt"
	"log/slog"
	"os"

	"neuroreverse/internal/clipboard"
	"neuroreverse/internal/config"
	"neuroreverse/internal/export"
	"neuroreverse/internal/remote"
	"neuroreverse/internal/ui"
	"neuroreverse/internal/workflow"

	tea "github.com/charmbracelet/bubbletea"
)

func main() {
	cfg, err := config.Parse()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	// The terminal belongs to the program, so logs go to a file.
	logFile, err := tea.LogToFile(cfg.LogFile, "neuroreverse")
	if err != nil {
		fmt.Fprintf(os.Stderr, "open log file: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()

	logger := slog.New(slog.NewJSONHandler(logFile, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	variant, err := workflow.ParseVariant(cfg.AssistantVariant)
	if err != nil || variant == workflow.VariantCombined {
		fmt.Fprintf(os.Stderr, "invalid assistant variant %q\n", cfg.AssistantVariant)
		os.Exit(1)
	}

	exp, err := export.New(cfg.ExportDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "exporter init error: %v\n", err)
		os.Exit(1)
	}

	chat := remote.New(cfg.ChatBaseURL, remote.WithLogger(logger), remote.WithTimeout(cfg.RequestTimeout))
	bench := remote.New(cfg.BenchmarkBaseURL, remote.WithLogger(logger), remote.WithTimeout(cfg.RequestTimeout))
	logger.Info("starting",
		"chat_url", chat.BaseURL(),
		"benchmark_url", bench.BaseURL(),
		"assistant_variant", variant.String(),
		"start_page", cfg.StartPage,
	)

	model := ui.NewModel(cfg, ui.Deps{
		Chat:      chat,
		Benchmark: bench,
		Variant:   variant,
		Exporter:  exp,
		Copier:    clipboard.New(),
		Logger:    logger,
		Timeout:   cfg.RequestTimeout,
	})
	if _, err := tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
		logger.Error("program exited", "error", err)
		fmt.Fprintf(os.Stderr, "tui error: %v\n", err)
		os.Exit(1)
	}
}
