// Package cli defines the f1bot command tree: the bot itself plus
// one-shot calendar and standings printers.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ykvlv/f1-schedule-bot/internal/app"
	"github.com/ykvlv/f1-schedule-bot/internal/calendar"
	"github.com/ykvlv/f1-schedule-bot/internal/config"
	"github.com/ykvlv/f1-schedule-bot/internal/domain"
	"github.com/ykvlv/f1-schedule-bot/internal/logger"
	"github.com/ykvlv/f1-schedule-bot/internal/scheduler"
	"github.com/ykvlv/f1-schedule-bot/internal/standings"
)

const (
	ExitSuccess     = 0
	ExitError       = 1
	ExitConfigError = 2
)

// ConfigError marks failures that happen before a logger exists.
type ConfigError struct{ Err error }

func (e *ConfigError) Error() string { return "config error: " + e.Err.Error() }
func (e *ConfigError) Unwrap() error { return e.Err }

// ExitCode maps an Execute error to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var ce *ConfigError
	if errors.As(err, &ce) {
		return ExitConfigError
	}
	return ExitError
}

var now = time.Now

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "f1bot",
		Short: "Telegram bot with Formula 1 session reminders",
		Long: `Runs the F1 schedule Telegram bot. Configuration comes from the
environment (and an optional .env file).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runBot,
	}
	cmd.AddCommand(newCalendarCmd(), newStandingsCmd())
	return cmd
}

func runBot(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return &ConfigError{Err: err}
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return &ConfigError{Err: fmt.Errorf("logger init: %w", err)}
	}
	// Ensure logger flush; ignore sync error (common on some platforms).
	defer func() { _ = log.Sync() }()

	application, err := app.New(cfg, log)
	if err != nil {
		log.Error("app init failed", zap.Error(err))
		return err
	}
	if err := application.Run(cmd.Context()); err != nil {
		log.Error("app run failed", zap.Error(err))
		return err
	}
	return nil
}

func newCalendarCmd() *cobra.Command {
	var (
		url       string
		timeout   time.Duration
		tz        string
		lookahead time.Duration
	)
	cmd := &cobra.Command{
		Use:   "calendar",
		Short: "Print upcoming qualifying and race sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			loc, err := domain.ValidateTZ(tz)
			if err != nil {
				return err
			}
			events, err := calendar.NewICSFetcher(url, timeout).Fetch(cmd.Context())
			if err != nil {
				return fmt.Errorf("fetching calendar: %w", err)
			}
			writeCalendar(cmd.OutOrStdout(), events, now(), lookahead, loc)
			return nil
		},
	}
	cmd.Flags().StringVar(&url, "url", calendar.DefaultURL, "iCalendar feed URL")
	cmd.Flags().DurationVar(&timeout, "timeout", calendar.DefaultTimeout, "HTTP timeout")
	cmd.Flags().StringVar(&tz, "tz", "Europe/Amsterdam", "Timezone for printed times")
	cmd.Flags().DurationVar(&lookahead, "lookahead", scheduler.DefaultLookahead, "How far ahead to list sessions")
	return cmd
}

// writeCalendar prints qualifying and race sessions starting within
// lookahead, earliest first.
func writeCalendar(w io.Writer, events []domain.Event, now time.Time, lookahead time.Duration, loc *time.Location) {
	var upcoming []domain.Event
	for _, e := range events {
		if domain.IsCanceled(e.Name) || !(domain.IsRace(e.Name) || domain.IsQualifying(e.Name)) {
			continue
		}
		if domain.InWindow(e.Start, now, lookahead) {
			upcoming = append(upcoming, e)
		}
	}
	if len(upcoming) == 0 {
		fmt.Fprintln(w, "No sessions in the next", lookahead)
		return
	}
	for _, e := range domain.SortByStart(upcoming) {
		fmt.Fprintf(w, "%s  %s\n", e.Start.In(loc).Format("Mon 2 Jan 15:04"), e.Name)
	}
}

func newStandingsCmd() *cobra.Command {
	var (
		url     string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "standings",
		Short: "Print driver and constructor standings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := standings.NewClient(url, timeout).Fetch(cmd.Context())
			if err != nil {
				return fmt.Errorf("fetching standings: %w", err)
			}
			fmt.Fprint(cmd.OutOrStdout(), standings.Text(s))
			return nil
		},
	}
	cmd.Flags().StringVar(&url, "url", standings.DefaultBaseURL, "Ergast-compatible API base URL")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "HTTP timeout")
	return cmd
}

// Execute runs the command tree and returns the process exit code.
func Execute() int {
	err := NewRootCmd().Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	return ExitCode(err)
}
