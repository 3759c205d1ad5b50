package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ykvlv/f1-schedule-bot/internal/calendar"
	"github.com/ykvlv/f1-schedule-bot/internal/domain"
	"github.com/ykvlv/f1-schedule-bot/internal/jobqueue"
)

// ParseModeHTML marks a message body as Telegram HTML.
const ParseModeHTML = "HTML"

// DefaultLookahead is the window within which events get reminders.
const DefaultLookahead = 7 * 24 * time.Hour

// DefaultOffsets are the reminder lead times before a session starts.
var DefaultOffsets = []time.Duration{60 * time.Minute, 5 * time.Minute}

// Sender is a minimal interface the notifier needs to deliver a message.
// telegram.Router implements it.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text, parseMode string) error
}

// ChatLister returns the chats that receive broadcasts.
type ChatLister interface {
	ListChats(ctx context.Context) ([]domain.Chat, error)
}

// Jobs is the part of the job queue the notifier drives.
type Jobs interface {
	RunOnce(name string, at time.Time, data any, fn jobqueue.Func) *jobqueue.Job
	JobsByName(name string) []*jobqueue.Job
}

type Config struct {
	Offsets   []time.Duration
	Lookahead time.Duration
	Location  *time.Location
}

// Notifier syncs the calendar into reminder jobs and sends the weekly digests.
type Notifier struct {
	cfg    Config
	source calendar.Source
	chats  ChatLister
	sender Sender
	jobs   Jobs
	log    *zap.Logger
	now    func() time.Time
}

var errSkipCycle = errors.New("skip cycle")

func New(cfg Config, source calendar.Source, chats ChatLister, sender Sender, jobs Jobs, log *zap.Logger) *Notifier {
	if len(cfg.Offsets) == 0 {
		cfg.Offsets = DefaultOffsets
	}
	if cfg.Lookahead <= 0 {
		cfg.Lookahead = DefaultLookahead
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Notifier{
		cfg:    cfg,
		source: source,
		chats:  chats,
		sender: sender,
		jobs:   jobs,
		log:    log,
		now:    time.Now,
	}
}

// SetClock replaces time.Now.
func (n *Notifier) SetClock(now func() time.Time) {
	n.now = now
}

// Sync runs one sync cycle. A temporarily unavailable feed skips the cycle;
// any other fetch failure is returned.
func (n *Notifier) Sync(ctx context.Context) error {
	log := n.log.With(zap.String("cycle", uuid.NewString()))

	events, err := n.fetch(ctx, log)
	if err != nil {
		if errors.Is(err, errSkipCycle) {
			return nil
		}
		return err
	}

	scheduled := n.SyncEvents(events)
	log.Info("calendar synced", zap.Int("events", len(events)), zap.Int("scheduled", scheduled))
	return nil
}

// SyncEvents replaces the reminder jobs of every event starting within the
// lookahead window and returns how many jobs were scheduled.
func (n *Notifier) SyncEvents(events []domain.Event) int {
	now := n.now()
	scheduled := 0
	for _, e := range events {
		if domain.IsCanceled(e.Name) || !domain.InWindow(e.Start, now, n.cfg.Lookahead) {
			continue
		}
		// Old reminders go before new ones are added.
		for _, old := range n.jobs.JobsByName(e.UID) {
			old.Remove()
		}
		for _, off := range n.cfg.Offsets {
			n.jobs.RunOnce(e.UID, e.Start.Add(-off), e, n.remind)
			scheduled++
		}
	}
	return scheduled
}

func (n *Notifier) remind(ctx context.Context, job *jobqueue.Job) error {
	e, ok := job.Data.(domain.Event)
	if !ok {
		n.log.Error("reminder without event payload", zap.String("job", job.Name))
		return nil
	}
	n.Broadcast(ctx, domain.ReminderText(e, n.now()), "")
	return nil
}

// SendWeekendCalendar broadcasts this weekend's qualifying and race times.
func (n *Notifier) SendWeekendCalendar(ctx context.Context) error {
	events, err := n.fetch(ctx, n.log)
	if err != nil {
		if errors.Is(err, errSkipCycle) {
			return nil
		}
		return err
	}

	text := domain.WeekendCalendar(events, n.now(), n.cfg.Location)
	if text == "" {
		n.log.Debug("no sessions this weekend")
		return nil
	}
	n.Broadcast(ctx, text, ParseModeHTML)
	return nil
}

// CheckRaceWeek announces the next grand prix or the start of the offseason.
func (n *Notifier) CheckRaceWeek(ctx context.Context) error {
	events, err := n.fetch(ctx, n.log)
	if err != nil {
		if errors.Is(err, errSkipCycle) {
			return nil
		}
		return err
	}

	text, ok := domain.RaceWeekText(events, n.now())
	if !ok {
		return nil
	}
	n.Broadcast(ctx, text, "")
	return nil
}

// Broadcast sends text to every registered chat and returns how many sends
// succeeded. Failed sends are logged and skipped.
func (n *Notifier) Broadcast(ctx context.Context, text, parseMode string) int {
	chats, err := n.chats.ListChats(ctx)
	if err != nil {
		n.log.Error("ListChats failed", zap.Error(err))
		return 0
	}

	sent := 0
	for _, c := range chats {
		if err := n.sender.SendMessage(ctx, c.ID, text, parseMode); err != nil {
			n.log.Error("send failed", zap.Error(err), zap.Int64("chatID", c.ID))
			continue
		}
		sent++
	}
	n.log.Info("broadcast sent", zap.Int("chats", len(chats)), zap.Int("sent", sent))
	return sent
}

func (n *Notifier) fetch(ctx context.Context, log *zap.Logger) ([]domain.Event, error) {
	events, err := n.source.Fetch(ctx)
	if err == nil {
		return events, nil
	}
	if calendar.IsRetryable(err) {
		log.Warn("unable to get calendar, skipping", zap.Error(err))
		return nil, errSkipCycle
	}
	return nil, err
}
