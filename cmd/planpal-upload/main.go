// planpal-upload sends images through a PlanPal relay endpoint and prints
// the hosted URL of each one.
//
//	planpal-upload --endpoint https://api.planpal.app/api/upload-image --folder planpal/trips/t1 a.jpg b.png
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/pflag"

	"github.com/AnshRaj112/planpal-backend/internal/relay"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	var (
		endpoint string
		folder   string
		maxMB    int64
		timeout  time.Duration
		verbose  bool
	)

	flagSet := pflag.NewFlagSet("planpal-upload", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVar(&endpoint, "endpoint", envOr("PLANPAL_RELAY_URL", "http://localhost:8080/api/upload-image"), "relay endpoint URL")
	flagSet.StringVarP(&folder, "folder", "f", relay.DefaultFolder, "image-host folder")
	flagSet.Int64Var(&maxMB, "max-mb", 10, "reject files larger than this many megabytes before sending")
	flagSet.DurationVar(&timeout, "timeout", 60*time.Second, "per-file upload timeout")
	flagSet.BoolVarP(&verbose, "verbose", "v", false, "log upload state changes")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	files := flagSet.Args()
	if len(files) == 0 {
		flagSet.Usage()
		return errors.New("no files given")
	}

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	transport := relay.NewHTTPTransport(endpoint)
	transport.Client.Timeout = timeout
	r := relay.New(transport, maxMB<<20)

	var failed int
	for _, path := range files {
		url, err := uploadFile(ctx, r, path, folder, timeout, logger)
		if err != nil {
			failed++
			fmt.Fprintf(stderr, "%s: %s\n", path, describe(err))
			continue
		}
		fmt.Fprintf(stdout, "%s\t%s\n", path, url)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d uploads failed", failed, len(files))
	}
	return nil
}

func uploadFile(ctx context.Context, r *relay.Relay, path, folder string, timeout time.Duration, logger *slog.Logger) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	up := r.NewUpload(data, folder)
	up.Observe(func(s relay.State) {
		logger.Debug("upload state", "file", path, "state", s.String(), "bytes", len(data))
	})
	res, err := up.Run(ctx)
	if err != nil {
		return "", err
	}
	return res.URL, nil
}

// describe prefers the message the relay or image host reported.
func describe(err error) string {
	var rerr *relay.Error
	if errors.As(err, &rerr) {
		msg := rerr.Message()
		if len(rerr.Details) > 0 {
			msg += " (" + string(rerr.Details) + ")"
		}
		return msg
	}
	return err.Error()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
