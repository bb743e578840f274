// Package main provides the CLI entry point for eurofeeds.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/alecthomas/kong"

	"github.com/lepinkainen/eurofeeds/internal/config"
	"github.com/lepinkainen/eurofeeds/internal/feedgen"
	"github.com/lepinkainen/eurofeeds/internal/logger"
	"github.com/lepinkainen/eurofeeds/internal/server"
	"github.com/lepinkainen/eurofeeds/pkg/feed"
	"github.com/lepinkainen/eurofeeds/pkg/filesystem"
	"github.com/lepinkainen/eurofeeds/pkg/preview"
)

// CLI structure
var CLI struct {
	Config    string `help:"Configuration file path (default: config.yaml next to the working directory or binary)"`
	Debug     bool   `help:"Enable debug logging" default:"false"`
	LogFormat string `help:"Log output format" enum:"text,json" default:"text"`

	Serve struct {
		Addr string `help:"Listen address, overrides server.addr"`
	} `cmd:"serve" help:"Serve the feeds over HTTP."`

	Generate struct {
		Feed    string `arg:"" help:"Feed key, e.g. eeas/press-material"`
		Outfile string `help:"Output file path; stdout when empty" short:"o"`
		Format  string `help:"Output format" enum:"rss,atom,json" default:"rss"`
	} `cmd:"generate" help:"Generate a single feed once."`

	List struct{} `cmd:"list" help:"List the available feeds."`

	Preview struct {
		Feed  string `arg:"" help:"Feed key, e.g. nato/news"`
		Index int    `help:"Output XML for specific item index (0-based) to stdout" default:"-1"`
	} `cmd:"preview" help:"Preview feed items interactively."`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("eurofeeds"),
		kong.Description("RSS feeds for European institutions that do not publish their own."),
		kong.UsageOnError(),
	)
	command := ctx.Command()

	level := slog.LevelWarn
	switch {
	case CLI.Debug:
		level = slog.LevelDebug
	case command == "serve":
		level = slog.LevelInfo
	}
	if err := logger.Setup(CLI.LogFormat, level); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	cfg, err := config.LoadConfig(CLI.Config)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(runCtx, cfg)
	if err != nil {
		slog.Error("Failed to initialize", "error", err)
		os.Exit(1)
	}

	switch command {
	case "serve":
		err = serve(runCtx, a, CLI.Serve.Addr)
	case "generate <feed>":
		err = generateFeed(runCtx, a, CLI.Generate.Feed, CLI.Generate.Format, CLI.Generate.Outfile)
	case "list":
		err = listFeeds(a)
	case "preview <feed>":
		err = previewFeed(runCtx, a, CLI.Preview.Feed, CLI.Preview.Index)
	default:
		panic(command)
	}

	if err != nil {
		if errors.Is(err, feedgen.ErrUnknownFeed) {
			slog.Error("Unknown feed, run 'eurofeeds list' to see the available keys", "error", err)
		} else {
			slog.Error("Command failed", "command", command, "error", err)
		}
		os.Exit(1)
	}
}

func serve(ctx context.Context, a *app, addr string) error {
	if addr == "" {
		addr = a.config.Server.Addr
	}

	handler := server.NewRouter(server.Deps{
		Service:  a.service,
		Registry: a.registry,
		Gatherer: a.gatherer,
		Metrics:  a.collector,
	})

	slog.Info("Serving feeds", "feeds", a.registry.Len(), "cache_expiry", a.config.Cache.Expiry, "base_url", a.config.Server.BaseURL)
	return server.Serve(ctx, server.NewHTTPServer(addr, handler, 2*time.Minute))
}

// generateFeed renders one feed, bypassing the cache, to outfile or stdout
func generateFeed(ctx context.Context, a *app, key, formatName, outfile string) error {
	slog.Debug("Generating feed", "feed", key, "format", formatName)

	format, err := feed.ParseFormat(formatName)
	if err != nil {
		return err
	}

	doc, outcome, err := a.service.Generate(ctx, key, format)
	if err != nil {
		return err
	}
	if outcome.Fallback() {
		slog.Warn("Feed generated from fallback items", "feed", key, "outcome", outcome)
	}

	if outfile == "" {
		_, err = os.Stdout.Write(doc.Body)
		return err
	}

	if err := filesystem.WriteFile(outfile, doc.Body); err != nil {
		return err
	}
	slog.Info("Feed written", "feed", key, "path", outfile, "items", len(doc.Items))
	return nil
}

func listFeeds(a *app) error {
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tKIND\tTITLE")
	for _, key := range a.registry.List() {
		info, err := a.registry.Get(key)
		if err != nil {
			return err
		}
		meta := info.Provider.Metadata()
		fmt.Fprintf(tw, "%s\t%s\t%s\n", key, meta.Kind, meta.Channel.Title)
	}
	return tw.Flush()
}

// previewFeed fetches a feed's items and shows them in the TUI, or prints one item's XML
func previewFeed(ctx context.Context, a *app, key string, index int) error {
	slog.Debug("Previewing feed", "feed", key)

	items, meta, err := a.service.Items(ctx, key)
	if err != nil {
		return err
	}

	source := preview.Source{
		Key:      key,
		Channel:  meta.Channel,
		SelfURL:  a.service.SelfURL(key),
		Renderer: a.renderer,
	}

	if index >= 0 {
		if index >= len(items) {
			return fmt.Errorf("index %d out of range, feed has %d items", index, len(items))
		}
		fmt.Println(preview.FormatXMLItem(source.Renderer, source.Channel, source.SelfURL, items[index]))
		return nil
	}

	return preview.Run(items, source)
}
