// Command typewatch watches a chat-style web page and emits phase events
// (idle / waiting / writing) inferred from output growth.
//
// Usage:
//
//	typewatch -config typewatch.yaml          # full config: sinks, status, journal
//	typewatch -url https://claude.ai/chat/x   # quick single-page watch (stdout sink)
//	typewatch -probe https://example.com      # propose profile selectors and exit
//	typewatch -config c.yaml -mcp             # also expose MCP tools on stdio
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/typewatch/typewatch"
	"github.com/typewatch/typewatch/idgen"
	"github.com/typewatch/typewatch/internal/probe"
)

func main() {
	configPath := flag.String("config", "", "path to typewatch.yaml config file")
	singleURL := flag.String("url", "", "watch a single URL (stdout sink)")
	probeURL := flag.String("probe", "", "probe a URL for profile selector candidates and exit")
	mcpStdio := flag.Bool("mcp", false, "expose MCP tools on stdio alongside watching")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *configPath, *singleURL, *probeURL, *mcpStdio); err != nil {
		logger.Error("typewatch: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath, singleURL, probeURL string, mcpStdio bool) error {
	if probeURL != "" {
		return runProbe(ctx, probeURL)
	}

	var cfg *typewatch.Config
	switch {
	case singleURL != "":
		cfg = &typewatch.Config{
			Page: typewatch.PageConfig{ID: idgen.New(), URL: singleURL},
		}
		cfg.ApplyDefaults()
	case configPath != "":
		var err error
		cfg, err = typewatch.LoadConfigFile(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	default:
		fmt.Fprintln(os.Stderr, "usage: typewatch -config <file> | -url <url> | -probe <url>")
		os.Exit(1)
		return nil
	}

	var sinks []typewatch.Sink
	for _, sc := range cfg.Sinks {
		switch sc.Type {
		case "stdout":
			sinks = append(sinks, typewatch.NewStdoutSink(nil))
		case "webhook":
			sinks = append(sinks, typewatch.NewWebhookSink(sc.URL, logger))
		default:
			logger.Warn("typewatch: unknown sink type", "type", sc.Type)
		}
	}
	if len(sinks) == 0 {
		sinks = append(sinks, typewatch.NewStdoutSink(nil))
	}

	w := typewatch.New(cfg, logger, sinks...)
	if err := w.Start(ctx); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	defer w.Stop()

	if mcpStdio {
		srv := mcp.NewServer(&mcp.Implementation{
			Name:    "typewatch",
			Version: "1.0.0",
		}, nil)
		w.RegisterMCP(srv)
		go func() {
			if err := srv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
				logger.Error("typewatch: mcp serve failed", "error", err)
			}
		}()
	}

	<-ctx.Done()
	return nil
}

func runProbe(ctx context.Context, url string) error {
	report, err := probe.Run(ctx, url, probe.Config{})
	if err != nil {
		return fmt.Errorf("probe: %w", err)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
