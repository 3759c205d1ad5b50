package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/ykvlv/f1-schedule-bot/internal/calendar"
	"github.com/ykvlv/f1-schedule-bot/internal/config"
	"github.com/ykvlv/f1-schedule-bot/internal/jobqueue"
	"github.com/ykvlv/f1-schedule-bot/internal/scheduler"
	"github.com/ykvlv/f1-schedule-bot/internal/standings"
	"github.com/ykvlv/f1-schedule-bot/internal/store"
	"github.com/ykvlv/f1-schedule-bot/internal/telegram"
)

// Job names shown by /schedule.
const (
	JobSyncCalendar = "sync_ical"
	JobRaceWeek     = "check_race_week"
	JobWeekend      = "send_weekend_calendar"
)

// syncDelay postpones the first sync until the update loop is running.
const syncDelay = time.Second

type App struct {
	cfg     config.Config
	log     *zap.Logger
	bot     *tgbotapi.BotAPI
	httpSrv *http.Server

	repo     store.Repo
	queue    *jobqueue.Queue
	router   *telegram.Router
	notifier *scheduler.Notifier
}

func New(cfg config.Config, log *zap.Logger) (*App, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, err
	}
	bot.Debug = false

	a := &App{cfg: cfg, log: log, bot: bot}
	if cfg.HTTPAddr != "" {
		mux := http.NewServeMux()
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
		a.httpSrv = &http.Server{
			Addr:         cfg.HTTPAddr,
			Handler:      mux,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		}
	}
	return a, nil
}

// wire opens the registry and builds the queue, router and notifier.
func (a *App) wire(ctx context.Context, bot telegram.Bot) error {
	repo, err := store.Open(ctx, a.cfg.DBDriver, a.cfg.DBPath, a.cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("open registry: %w", err)
	}
	a.repo = repo
	a.log.Info("registry ready", zap.String("driver", a.cfg.DBDriver))

	created, err := repo.EnsureOperator(ctx, a.cfg.ChatIDDev)
	if err != nil {
		return fmt.Errorf("ensure operator: %w", err)
	}
	if created {
		a.log.Info("operator chat registered", zap.Int64("chatID", a.cfg.ChatIDDev))
	}

	loc := a.cfg.Location()
	a.queue = jobqueue.New(a.log.Named("jobs"), jobqueue.WithLocation(loc))
	a.router = telegram.NewRouter(bot, a.log.Named("telegram"), repo, a.queue,
		standings.NewClient(a.cfg.StandingsURL, a.cfg.FeedTimeout),
		telegram.Options{
			Location:        loc,
			StandingsFormat: a.cfg.StandingsFormat,
			RatePerSec:      a.cfg.BroadcastRPS,
		})
	a.notifier = scheduler.New(
		scheduler.Config{Offsets: a.cfg.NotifyOffsets, Lookahead: a.cfg.Lookahead, Location: loc},
		calendar.NewICSFetcher(a.cfg.ICalURL, a.cfg.FeedTimeout),
		repo, a.router, a.queue, a.log.Named("scheduler"),
	)

	if _, err := a.queue.RunRepeating(JobSyncCalendar, a.cfg.CheckInterval, syncDelay, nil,
		func(ctx context.Context, _ *jobqueue.Job) error { return a.notifier.Sync(ctx) }); err != nil {
		return err
	}
	if _, err := a.queue.RunCron(JobRaceWeek, a.cfg.RaceWeekCron, nil,
		func(ctx context.Context, _ *jobqueue.Job) error { return a.notifier.CheckRaceWeek(ctx) }); err != nil {
		return err
	}
	if _, err := a.queue.RunCron(JobWeekend, a.cfg.WeekendCron, nil,
		func(ctx context.Context, _ *jobqueue.Job) error { return a.notifier.SendWeekendCalendar(ctx) }); err != nil {
		return err
	}
	return nil
}

func (a *App) Run(ctx context.Context) error {
	a.log.Info("starting f1-schedule-bot",
		zap.String("http", a.cfg.HTTPAddr),
		zap.String("timezone", a.cfg.Timezone),
	)

	if err := a.wire(ctx, a.bot); err != nil {
		a.log.Error("startup failed", zap.Error(err))
		if a.repo != nil {
			_ = a.repo.Close()
		}
		return err
	}

	if _, err := a.bot.Request(tgbotapi.NewSetMyCommands(telegram.Commands()...)); err != nil {
		a.log.Warn("set commands failed", zap.Error(err))
	}

	if a.httpSrv != nil {
		go func() {
			if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.log.Error("http server error", zap.Error(err))
			}
		}()
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updCh := a.bot.GetUpdatesChan(u)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := a.serve(ctx, updCh)
	a.bot.StopReceivingUpdates()
	return err
}

// serve is the single loop every handler and job body runs on. It returns
// nil on shutdown and the first fatal handler or job error otherwise.
func (a *App) serve(ctx context.Context, updCh tgbotapi.UpdatesChannel) error {
	a.queue.Start()
	defer a.shutdown()

	for {
		select {
		case <-ctx.Done():
			a.log.Info("shutdown signal received")
			return nil

		case upd, ok := <-updCh:
			if !ok {
				return errors.New("updates channel closed")
			}
			if err := a.router.HandleUpdate(ctx, upd); err != nil {
				return fmt.Errorf("handle update %d: %w", upd.UpdateID, err)
			}

		case job := <-a.queue.Fired():
			if err := job.Run(ctx); err != nil {
				return fmt.Errorf("job %s: %w", job.Name, err)
			}
		}
	}
}

func (a *App) shutdown() {
	// Create a short-lived shutdown context and cancel it immediately after use.
	shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	a.queue.Stop(shCtx)
	if a.httpSrv != nil {
		if err := a.httpSrv.Shutdown(shCtx); err != nil {
			a.log.Warn("http server shutdown error", zap.Error(err))
		}
	}
	if a.repo != nil {
		_ = a.repo.Close()
	}
}
