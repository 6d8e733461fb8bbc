// Command megaphone-tail subscribes to megaphone streams and prints the
// events it receives.
//
// The channel and streams are given on the command line or joined later from
// the interactive shell. The server base URL comes from -url, the config
// file, or mDNS discovery.
//
// Usage:
//
//	megaphone-tail [flags]
//
// Flags:
//
//	-config string     Configuration file path (YAML)
//	-url string        Long-poll base URL (overrides the config file)
//	-discover          Look up the server with mDNS
//	-instance string   mDNS instance name to look for (any if empty)
//	-channel string    Channel address to join
//	-streams string    Comma-separated stream ids
//	-once              Print the first event and exit
//	-retry             Reconnect with backoff after failures
//	-trace string      Write a trace file (.mtrace) for megaphone-log
//	-log-level string  Log level: debug, info, warn, error
//	-interactive       Start the interactive shell
//
// Examples:
//
//	# Follow two streams of a channel
//	megaphone-tail -url http://localhost:8080 -channel agent1.c42 -streams orders,alerts
//
//	# Wait for a single reply
//	megaphone-tail -url http://localhost:8080 -channel agent1.c42 -streams reply-7 -once
//
//	# Find the server on the LAN and pick channels interactively
//	megaphone-tail -discover -interactive
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/megaphone-protocol/megaphone-go/cmd/megaphone-tail/interactive"
	"github.com/megaphone-protocol/megaphone-go/pkg/client"
	"github.com/megaphone-protocol/megaphone-go/pkg/config"
	"github.com/megaphone-protocol/megaphone-go/pkg/discovery"
	"github.com/megaphone-protocol/megaphone-go/pkg/log"
	"github.com/megaphone-protocol/megaphone-go/pkg/subscription"
)

// Options holds the command line settings.
type Options struct {
	ConfigFile  string
	URL         string
	Discover    bool
	Instance    string
	Channel     string
	Streams     string
	Once        bool
	Retry       bool
	TraceFile   string
	LogLevel    string
	Interactive bool
}

var opts Options

func init() {
	flag.StringVar(&opts.ConfigFile, "config", "", "Configuration file path (YAML)")
	flag.StringVar(&opts.URL, "url", "", "Long-poll base URL (overrides the config file)")
	flag.BoolVar(&opts.Discover, "discover", false, "Look up the server with mDNS")
	flag.StringVar(&opts.Instance, "instance", "", "mDNS instance name to look for (any if empty)")
	flag.StringVar(&opts.Channel, "channel", "", "Channel address to join")
	flag.StringVar(&opts.Streams, "streams", "", "Comma-separated stream ids")
	flag.BoolVar(&opts.Once, "once", false, "Print the first event and exit")
	flag.BoolVar(&opts.Retry, "retry", false, "Reconnect with backoff after failures")
	flag.StringVar(&opts.TraceFile, "trace", "", "Write a trace file for megaphone-log")
	flag.StringVar(&opts.LogLevel, "log-level", "", "Log level: debug, info, warn, error")
	flag.BoolVar(&opts.Interactive, "interactive", false, "Start the interactive shell")
}

func main() {
	flag.Parse()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "megaphone-tail: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	if err := validateOptions(opts); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var shell *interactive.Shell
	var stdout, stderr io.Writer = os.Stdout, os.Stderr
	if opts.Interactive {
		shell, err = interactive.New()
		if err != nil {
			return err
		}
		stdout, stderr = shell.Stdout(), shell.Stderr()
	}

	logger := cfg.NewLogger(stderr)

	baseURL := cfg.BaseURL
	if cfg.Discovery.Enabled {
		baseURL, err = discoverBaseURL(ctx, cfg, logger)
		if err != nil {
			return err
		}
	}

	var trace log.Logger
	if cfg.TraceLog != "" {
		fl, err := log.NewFileLogger(cfg.TraceLog)
		if err != nil {
			return err
		}
		defer func() {
			if err := fl.Close(); err != nil {
				logger.Warn("closing trace file", "path", fl.Path(), "error", err)
			}
			if n := fl.Dropped(); n > 0 {
				logger.Warn("trace events dropped", "count", n)
			}
		}()
		trace = log.NewMultiLogger(fl, log.NewSlogAdapter(logger).WithLevel(slog.LevelDebug))
	}

	clientConfig, err := cfg.ClientConfig(baseURL, logger, trace)
	if err != nil {
		return err
	}
	c, err := client.New(clientConfig)
	if err != nil {
		return err
	}
	defer c.Close()
	logger.Info("client ready", "baseUrl", baseURL)

	printer := NewPrinter(stdout)

	if opts.Once {
		ev, err := client.DelayedResponse[json.RawMessage](ctx, c, client.Static(opts.Channel, splitStreams(opts.Streams)...))
		if err != nil {
			return err
		}
		printer.PrintBody(ev)
		return nil
	}

	if opts.Channel != "" {
		endpoint, err := c.Register(ctx, client.Static(opts.Channel, splitStreams(opts.Streams)...))
		if err != nil {
			return err
		}
		if shell == nil {
			err := follow(ctx, endpoint, printer)
			if errors.Is(err, subscription.ErrEndOfStream) {
				logger.Info("stream ended", "channel", opts.Channel)
				return nil
			}
			return err
		}
		go func() {
			if err := follow(ctx, endpoint, printer); err != nil {
				logger.Info("stream ended", "channel", opts.Channel, "error", err)
			}
		}()
	}

	if shell != nil {
		shell.Run(ctx, cancel, c, printer)
		return nil
	}

	<-ctx.Done()
	return nil
}

func loadConfig(o Options) (*config.Config, error) {
	cfg := config.Default()
	if o.ConfigFile != "" {
		var err error
		if cfg, err = config.Read(o.ConfigFile); err != nil {
			return nil, err
		}
	}

	if o.URL != "" {
		cfg.BaseURL = o.URL
	}
	if o.Discover {
		cfg.Discovery.Enabled = true
	}
	if o.Instance != "" {
		cfg.Discovery.Instance = o.Instance
	}
	if o.Retry {
		cfg.Retry.Enabled = true
	}
	if o.TraceFile != "" {
		cfg.TraceLog = o.TraceFile
	}
	if o.LogLevel != "" {
		cfg.Log.Level = o.LogLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validateOptions(o Options) error {
	if o.Once && o.Channel == "" {
		return errors.New("-once needs -channel")
	}
	if o.Channel != "" && len(splitStreams(o.Streams)) == 0 {
		return errors.New("-channel needs at least one stream in -streams")
	}
	if o.Channel == "" && !o.Interactive {
		return errors.New("nothing to do: give -channel or -interactive")
	}
	return nil
}

func discoverBaseURL(ctx context.Context, cfg *config.Config, logger *slog.Logger) (string, error) {
	browser := discovery.NewMDNSBrowser(cfg.BrowserConfig(logger))
	logger.Info("looking for megaphone server", "service", cfg.Discovery.Service, "instance", cfg.Discovery.Instance)

	svc, err := browser.Find(ctx, cfg.Discovery.Instance)
	if err != nil {
		return "", fmt.Errorf("discovery: %w", err)
	}
	baseURL, err := svc.BaseURL()
	if err != nil {
		return "", fmt.Errorf("discovery: %w", err)
	}
	logger.Info("found megaphone server", "instance", svc.Instance, "baseUrl", baseURL)
	return baseURL, nil
}

// follow prints events until the endpoint ends or ctx is done.
func follow(ctx context.Context, endpoint *subscription.Endpoint, printer *Printer) error {
	defer endpoint.Close()
	for {
		event, err := endpoint.Receive(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		printer.PrintEvent(event)
	}
}

func splitStreams(s string) []string {
	var streams []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			streams = append(streams, part)
		}
	}
	return streams
}
