package telegram

import (
	"context"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ykvlv/f1-schedule-bot/internal/jobqueue"
	"github.com/ykvlv/f1-schedule-bot/internal/standings"
	"github.com/ykvlv/f1-schedule-bot/internal/store"
)

const (
	FormatImage = "image"
	FormatText  = "text"
)

// Bot is the part of the Telegram API the router needs; *tgbotapi.BotAPI implements it.
type Bot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// StandingsSource fetches the current championship standings.
type StandingsSource interface {
	Fetch(ctx context.Context) (*standings.Standings, error)
}

// JobLister exposes pending jobs for /schedule.
type JobLister interface {
	Jobs() []*jobqueue.Job
}

type Options struct {
	Location        *time.Location
	StandingsFormat string
	RatePerSec      int
}

// Router wires Telegram updates to handlers and sends outbound messages.
type Router struct {
	bot       Bot
	log       *zap.Logger
	repo      store.Repo
	jobs      JobLister
	standings StandingsSource
	limiter   *rate.Limiter
	loc       *time.Location
	format    string
}

// NewRouter creates a new Telegram router.
func NewRouter(bot Bot, log *zap.Logger, repo store.Repo, jobs JobLister, st StandingsSource, opts Options) *Router {
	rps := opts.RatePerSec
	if rps <= 0 {
		rps = 20
	}
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	format := opts.StandingsFormat
	if format != FormatText {
		format = FormatImage
	}
	return &Router{
		bot:       bot,
		log:       log,
		repo:      repo,
		jobs:      jobs,
		standings: st,
		limiter:   rate.NewLimiter(rate.Limit(rps), rps),
		loc:       loc,
		format:    format,
	}
}

// HandleUpdate routes a single update to its command handler. A returned
// error means the registry is unusable and the process should stop.
func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) error {
	msg := upd.Message
	if msg == nil || msg.Chat == nil || !msg.IsCommand() {
		return nil
	}
	chatID := msg.Chat.ID

	switch msg.Command() {
	case "start":
		r.log.Info("received /start", zap.Int64("chatID", chatID))
		return r.handleStart(ctx, msg.Chat)
	case "schedule":
		r.log.Info("received /schedule", zap.Int64("chatID", chatID))
		r.handleSchedule(ctx, chatID)
	case "chats":
		r.log.Info("received /chats", zap.Int64("chatID", chatID))
		r.handleChats(ctx, chatID)
	case "standings":
		r.log.Info("received /standings", zap.Int64("chatID", chatID))
		r.handleStandings(ctx, chatID)
	default:
		// Unknown commands are ignored.
	}
	return nil
}

// SendMessage sends a text message to the given chat, waiting for the rate
// limiter first. This makes Router satisfy scheduler.Sender.
func (r *Router) SendMessage(ctx context.Context, chatID int64, text, parseMode string) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = parseMode
	_, err := r.bot.Send(msg)
	return err
}

func (r *Router) sendPhoto(ctx context.Context, chatID int64, name string, png []byte) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return err
	}
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: name, Bytes: png})
	_, err := r.bot.Send(photo)
	return err
}

// reply sends and only logs failures; a lost reply is not fatal.
func (r *Router) reply(ctx context.Context, chatID int64, text, parseMode string) {
	if err := r.SendMessage(ctx, chatID, text, parseMode); err != nil {
		r.log.Error("send failed", zap.Error(err), zap.Int64("chatID", chatID))
	}
}
