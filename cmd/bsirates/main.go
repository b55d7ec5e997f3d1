// Command bsirates prints a gap-filled daily exchange-rate series built from
// the Bank of Slovenia reference rate feed.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/damon-houk/bsi-rate-series/internal/app"
	"github.com/damon-houk/bsi-rate-series/internal/config"
	"github.com/damon-houk/bsi-rate-series/internal/domain/entity"
	"github.com/damon-houk/bsi-rate-series/internal/infrastructure/logger"
	"github.com/damon-houk/bsi-rate-series/internal/infrastructure/middleware"
	"github.com/damon-houk/bsi-rate-series/internal/infrastructure/report"
	"github.com/spf13/cobra"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
)

const (
	exitOK          = 0
	exitUsage       = 1
	exitFetch       = 2
	exitFeedFormat  = 3
	exitInterrupted = 130
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes the command line and returns the process exit status
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}

	code := exitCode(err)
	if code == exitInterrupted {
		fmt.Fprintln(stderr, "Aborting...")
		fmt.Fprintln(stderr, "Bye.")
		return code
	}

	fmt.Fprintf(stderr, "error: %v\n", err)
	return code
}

func exitCode(err error) int {
	var fetchErr *entity.FetchError
	var formatErr *entity.FeedFormatError

	switch {
	case errors.Is(err, context.Canceled):
		return exitInterrupted
	case errors.As(err, &fetchErr):
		return exitFetch
	case errors.As(err, &formatErr):
		return exitFeedFormat
	default:
		return exitUsage
	}
}

type options struct {
	start       string
	end         string
	currency    string
	cacheFile   string
	noCacheFile bool
	logLevel    string
	limit       int
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "bsirates",
		Short: "Daily exchange-rate series from the Bank of Slovenia feed",
		Long: `bsirates downloads the Bank of Slovenia reference rate feed and prints one
row per calendar day between --start and --end. Days without a published
rate (weekends, holidays) carry the most recent earlier rate forward.

Settings are read from the environment and an optional .env file:

` + config.Usage(),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeries(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.start, "start", "", "first day of the series (DD.MM.YYYY)")
	cmd.Flags().StringVar(&opts.end, "end", "", "last day of the series (DD.MM.YYYY, default today)")
	_ = cmd.MarkFlagRequired("start")

	cmd.PersistentFlags().StringVar(&opts.currency, "currency", "", "currency code (default FEED_CURRENCY or USD)")
	cmd.PersistentFlags().StringVar(&opts.cacheFile, "cache-file", "", "where to keep a raw copy of the feed (default ARCHIVE_FILE)")
	cmd.PersistentFlags().BoolVar(&opts.noCacheFile, "no-cache-file", false, "do not keep a raw copy of the feed")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level override (debug, info, warn, error)")

	cmd.AddCommand(newCurrenciesCmd(opts))
	cmd.AddCommand(newSnapshotsCmd(opts))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// loadApp reads the configuration, applies flag overrides and wires the app.
// Logs go to the command's error stream.
func loadApp(cmd *cobra.Command, opts *options) (*app.App, error) {
	cfg, err := config.NewConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if opts.currency != "" {
		currency, err := entity.NormalizeCurrency(opts.currency)
		if err != nil {
			return nil, err
		}
		cfg.Feed.Currency = currency
	}

	if opts.logLevel != "" {
		if _, err := logger.ParseLevel(opts.logLevel); err != nil {
			return nil, err
		}
		cfg.LogLevel = opts.logLevel
	}

	switch {
	case opts.noCacheFile && opts.cacheFile != "":
		return nil, errors.New("--cache-file and --no-cache-file cannot be combined")
	case opts.noCacheFile:
		cfg.Archive.File = app.ArchiveDisabled
	case opts.cacheFile != "":
		cfg.Archive.File = opts.cacheFile
	}

	return app.New(cfg, cmd.ErrOrStderr())
}

func closeApp(a *app.App) {
	if err := a.Close(); err != nil {
		a.Logger().Warn("Failed to close snapshot archive", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func parseWindow(opts *options) (entity.DateWindow, error) {
	start, err := entity.ParseInputDate(opts.start)
	if err != nil {
		return entity.DateWindow{}, err
	}

	end := time.Now()
	if opts.end != "" {
		end, err = entity.ParseInputDate(opts.end)
		if err != nil {
			return entity.DateWindow{}, err
		}
	}

	return entity.NewDateWindow(start, end)
}

func runSeries(cmd *cobra.Command, opts *options) error {
	window, err := parseWindow(opts)
	if err != nil {
		return err
	}

	a, err := loadApp(cmd, opts)
	if err != nil {
		return err
	}
	defer closeApp(a)

	ctx := middleware.WithRequestID(cmd.Context(), "")
	a.Logger().Debug("Starting run", map[string]interface{}{
		"request_id": middleware.GetRequestID(ctx),
		"version":    version,
		"start":      entity.FormatDay(window.Start),
		"end":        entity.FormatDay(window.End),
	})

	_, err = a.Service().StreamSeries(ctx, window, a.Config().Feed.Currency, report.NewTextReport(cmd.OutOrStdout()))
	return err
}

func newCurrenciesCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "currencies",
		Short: "List the currencies present in the feed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd, opts)
			if err != nil {
				return err
			}
			defer closeApp(a)

			ctx := middleware.WithRequestID(cmd.Context(), "")
			set, err := a.Service().AvailableCurrencies(ctx)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Available currencies: %s\n", set.String())
			return nil
		},
	}
}

func newSnapshotsCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshots [id]",
		Short: "List archived feed snapshots, or print one by id",
		Long: `Without arguments, lists the snapshots kept in ARCHIVE_BADGER_DIR, newest
first. With an id, prints the raw feed stored under it.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd, opts)
			if err != nil {
				return err
			}
			defer closeApp(a)

			archive := a.Snapshots()
			if archive == nil {
				return errors.New("snapshot archive is disabled; set ARCHIVE_BADGER_DIR")
			}

			out := cmd.OutOrStdout()
			if len(args) == 1 {
				snapshot, err := archive.FindByID(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				_, err = out.Write(snapshot.Body)
				return err
			}

			snapshots, err := archive.List(cmd.Context(), opts.limit)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, "id\tfetched_at\tbytes\tsource")
			for _, s := range snapshots {
				fmt.Fprintf(out, "%s\t%s\t%d\t%s\n", s.ID, s.FetchedAt.Format(time.RFC3339), s.Size, s.Source)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&opts.limit, "limit", 20, "maximum number of snapshots to list (0 for all)")

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "bsirates %s\n", version)
			fmt.Fprintf(cmd.OutOrStdout(), "  commit:  %s\n", commit)
		},
	}
}
