package telegram

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/ykvlv/f1-schedule-bot/internal/domain"
	"github.com/ykvlv/f1-schedule-bot/internal/jobqueue"
	"github.com/ykvlv/f1-schedule-bot/internal/standings"
	"github.com/ykvlv/f1-schedule-bot/internal/store"
)

// chatName is the username for private chats and the title otherwise.
// A chat named like the operator gets its id appended.
func chatName(c *tgbotapi.Chat) string {
	var name string
	if c.IsPrivate() {
		name = c.UserName
		if name == "" {
			name = strings.TrimSpace(c.FirstName + " " + c.LastName)
		}
	} else {
		name = c.Title
	}
	if name == "" {
		name = strconv.FormatInt(c.ID, 10)
	}
	if name == domain.OperatorChatName {
		// the operator name is reserved for the configured operator chat
		name = fmt.Sprintf("%s %d", name, c.ID)
	}
	return name
}

func (r *Router) handleStart(ctx context.Context, chat *tgbotapi.Chat) error {
	_, err := r.repo.GetChat(ctx, chat.ID)
	if err == nil {
		r.reply(ctx, chat.ID, alreadyRegisteredText, "")
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("lookup chat %d: %w", chat.ID, err)
	}

	c := domain.Chat{ID: chat.ID, Kind: domain.ChatKind(chat.Type), Name: chatName(chat)}
	if err := r.repo.Register(ctx, c); err != nil {
		if errors.Is(err, store.ErrAlreadyRegistered) {
			r.reply(ctx, chat.ID, alreadyRegisteredText, "")
			return nil
		}
		return fmt.Errorf("register chat %d: %w", chat.ID, err)
	}
	r.log.Info("chat registered",
		zap.Int64("chatID", c.ID),
		zap.String("kind", string(c.Kind)),
		zap.String("name", c.Name),
	)
	r.reply(ctx, chat.ID, welcomeText, "")
	return nil
}

// isOperator compares chatID with the operator row.
func (r *Router) isOperator(ctx context.Context, chatID int64) bool {
	op, err := r.repo.GetOperator(ctx)
	if err != nil {
		r.log.Warn("GetOperator failed", zap.Error(err))
		return false
	}
	r.log.Debug("operator check", zap.Int64("operator", op.ID), zap.Bool("match", op.ID == chatID))
	return op.ID == chatID
}

func (r *Router) handleSchedule(ctx context.Context, chatID int64) {
	if !r.isOperator(ctx, chatID) {
		return
	}

	var b strings.Builder
	b.WriteString(scheduleTitle)
	for _, j := range r.jobs.Jobs() {
		fmt.Fprintf(&b, "%s: %s\n", j.Next().In(r.loc).Format("2 Jan, 15:04:05"), jobLabel(j))
	}
	r.reply(ctx, chatID, b.String(), "")
}

func jobLabel(j *jobqueue.Job) string {
	if e, ok := j.Data.(domain.Event); ok && e.Name != "" {
		return e.Name
	}
	if j.Name != "" {
		return j.Name
	}
	return "unknown job name"
}

func (r *Router) handleChats(ctx context.Context, chatID int64) {
	if !r.isOperator(ctx, chatID) {
		return
	}

	chats, err := r.repo.ListChats(ctx)
	if err != nil {
		r.log.Error("ListChats failed", zap.Error(err))
		return
	}

	var b strings.Builder
	b.WriteString(chatsTitle)
	for _, c := range chats {
		fmt.Fprintf(&b, "%s (%s, <code>%d</code>)\n", html.EscapeString(c.Name), html.EscapeString(string(c.Kind)), c.ID)
	}
	r.reply(ctx, chatID, b.String(), tgbotapi.ModeHTML)
}

func (r *Router) handleStandings(ctx context.Context, chatID int64) {
	s, err := r.standings.Fetch(ctx)
	if err != nil {
		r.log.Error("standings fetch failed", zap.Error(err))
		r.reply(ctx, chatID, standingsUnavailableText, "")
		return
	}

	if r.format == FormatImage {
		err := r.sendStandingsImages(ctx, chatID, s)
		if err == nil {
			return
		}
		if !errors.Is(err, standings.ErrEncoding) {
			r.log.Error("send standings images failed", zap.Error(err), zap.Int64("chatID", chatID))
			return
		}
		r.log.Warn("standings image rendering failed, sending text", zap.Error(err))
	}

	r.reply(ctx, chatID, "<pre>"+html.EscapeString(standings.Text(s))+"</pre>", tgbotapi.ModeHTML)
}

func (r *Router) sendStandingsImages(ctx context.Context, chatID int64, s *standings.Standings) error {
	drivers, err := standings.RenderDrivers(s)
	if err != nil {
		return err
	}
	constructors, err := standings.RenderConstructors(s)
	if err != nil {
		return err
	}
	if err := r.sendPhoto(ctx, chatID, "drivers.png", drivers); err != nil {
		return err
	}
	return r.sendPhoto(ctx, chatID, "constructors.png", constructors)
}
