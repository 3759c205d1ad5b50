package scheduler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ykvlv/f1-schedule-bot/internal/calendar"
	"github.com/ykvlv/f1-schedule-bot/internal/domain"
	"github.com/ykvlv/f1-schedule-bot/internal/jobqueue"
)

type fakeSource struct {
	events []domain.Event
	err    error
	calls  int
}

func (f *fakeSource) Fetch(context.Context) ([]domain.Event, error) {
	f.calls++
	return f.events, f.err
}

type fakeChats struct {
	chats []domain.Chat
	err   error
}

func (f *fakeChats) ListChats(context.Context) ([]domain.Chat, error) {
	return f.chats, f.err
}

type sentMessage struct {
	ChatID    int64
	Text      string
	ParseMode string
}

type fakeSender struct {
	mu       sync.Mutex
	messages []sentMessage
	failFor  map[int64]bool
}

func (f *fakeSender) SendMessage(_ context.Context, chatID int64, text, parseMode string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[chatID] {
		return errors.New("forbidden: bot was blocked by the user")
	}
	f.messages = append(f.messages, sentMessage{ChatID: chatID, Text: text, ParseMode: parseMode})
	return nil
}

type fixture struct {
	now      time.Time
	source   *fakeSource
	chats    *fakeChats
	sender   *fakeSender
	queue    *jobqueue.Queue
	notifier *Notifier
}

func newFixture(t *testing.T, now time.Time, chats ...domain.Chat) *fixture {
	t.Helper()
	clock := func() time.Time { return now }

	q := jobqueue.New(zap.NewNop(), jobqueue.WithClock(clock))
	q.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		q.Stop(ctx)
	})

	loc, err := domain.ValidateTZ("Europe/Amsterdam")
	require.NoError(t, err)

	f := &fixture{
		now:    now,
		source: &fakeSource{},
		chats:  &fakeChats{chats: chats},
		sender: &fakeSender{failFor: map[int64]bool{}},
		queue:  q,
	}
	f.notifier = New(Config{Location: loc}, f.source, f.chats, f.sender, q, zap.NewNop())
	f.notifier.SetClock(clock)
	return f
}

var now = time.Date(2023, time.October, 19, 20, 0, 0, 0, time.UTC)

func usWeekend() []domain.Event {
	return []domain.Event{
		{UID: "q", Name: "F1: Qualifying (United States Grand Prix)", Start: time.Date(2023, time.October, 19, 23, 0, 0, 0, time.UTC)},
		{UID: "gp", Name: "F1: Grand Prix (United States Grand Prix)", Start: time.Date(2023, time.October, 20, 21, 0, 0, 0, time.UTC)},
	}
}

func TestSyncEvents_NothingInWindow(t *testing.T) {
	f := newFixture(t, now)
	events := []domain.Event{
		{UID: "past", Name: "F1: Grand Prix (Mexico City Grand Prix)", Start: now.Add(-time.Hour)},
		{UID: "far", Name: "F1: Grand Prix (Brazilian Grand Prix)", Start: now.Add(8 * 24 * time.Hour)},
	}

	assert.Zero(t, f.notifier.SyncEvents(events))
	assert.Zero(t, f.notifier.SyncEvents(nil))
	assert.Empty(t, f.queue.Jobs())
}

func TestSyncEvents_IsIdempotent(t *testing.T) {
	f := newFixture(t, now)
	events := usWeekend()

	assert.Equal(t, 4, f.notifier.SyncEvents(events))
	assert.Equal(t, 4, f.notifier.SyncEvents(events))

	require.Len(t, f.queue.Jobs(), 4)
	for _, e := range events {
		jobs := f.queue.JobsByName(e.UID)
		require.Len(t, jobs, 2, "one notification set per uid")
		assert.True(t, jobs[0].Next().Equal(e.Start.Add(-60*time.Minute)))
		assert.True(t, jobs[1].Next().Equal(e.Start.Add(-5*time.Minute)))
	}
}

func TestSyncEvents_SkipsCanceled(t *testing.T) {
	f := newFixture(t, now)
	events := []domain.Event{
		{UID: "sprint", Name: "F1: Sprint (United States Grand Prix) - Canceled", Start: now.Add(2 * time.Hour)},
	}

	assert.Zero(t, f.notifier.SyncEvents(events))
	assert.Empty(t, f.queue.Jobs())
}

func TestSyncEvents_PastOffsetFiresImmediately(t *testing.T) {
	f := newFixture(t, now,
		domain.Chat{ID: 15, Kind: domain.KindPrivate, Name: "max"},
		domain.Chat{ID: 16, Kind: domain.KindGroup, Name: "Tifosi"},
	)
	f.sender.failFor[16] = true
	e := domain.Event{UID: "gp", Name: "F1: Grand Prix (United States Grand Prix)", Start: now.Add(2 * time.Minute)}

	require.Equal(t, 2, f.notifier.SyncEvents([]domain.Event{e}))

	for i := 0; i < 2; i++ {
		select {
		case j := <-f.queue.Fired():
			require.NoError(t, j.Run(context.Background()))
		case <-time.After(time.Second):
			t.Fatal("reminder did not fire")
		}
	}

	require.Len(t, f.sender.messages, 2, "chat 16 fails, chat 15 still gets both reminders")
	for _, m := range f.sender.messages {
		assert.Equal(t, int64(15), m.ChatID)
		assert.Equal(t, "F1: Grand Prix (United States Grand Prix) will begin 2 minutes from now", m.Text)
	}
}

func TestSync_RetryableErrorSkipsCycle(t *testing.T) {
	f := newFixture(t, now)
	f.source.err = &calendar.FetchError{Retryable: true, Err: context.DeadlineExceeded}

	require.NoError(t, f.notifier.Sync(context.Background()))
	assert.Empty(t, f.queue.Jobs())
}

func TestSync_FatalErrorIsReturned(t *testing.T) {
	f := newFixture(t, now)
	f.source.err = &calendar.FetchError{Err: errors.New("no such host")}

	err := f.notifier.Sync(context.Background())
	require.Error(t, err)
	assert.False(t, calendar.IsRetryable(err))
}

func TestSync_SchedulesFromSource(t *testing.T) {
	f := newFixture(t, now)
	f.source.events = usWeekend()

	require.NoError(t, f.notifier.Sync(context.Background()))
	assert.Len(t, f.queue.Jobs(), 4)
}

func TestSendWeekendCalendar_OneChat(t *testing.T) {
	f := newFixture(t, now, domain.Chat{ID: 15, Kind: domain.KindPrivate, Name: "the_name"})
	f.source.events = usWeekend()

	require.NoError(t, f.notifier.SendWeekendCalendar(context.Background()))

	require.Len(t, f.sender.messages, 1)
	m := f.sender.messages[0]
	assert.Equal(t, int64(15), m.ChatID)
	assert.Equal(t, ParseModeHTML, m.ParseMode)
	assert.Equal(t, "<b>United States Grand Prix</b>\nQualifying: 01:00\nGrand Prix: 23:00\n", m.Text)
	assert.Equal(t, 1, strings.Count(m.Text, "<b>"))
}

func TestSendWeekendCalendar_TooEarly(t *testing.T) {
	f := newFixture(t, time.Date(2023, time.October, 12, 20, 0, 0, 0, time.UTC),
		domain.Chat{ID: 15, Kind: domain.KindPrivate, Name: "the_name"})
	f.source.events = usWeekend()

	require.NoError(t, f.notifier.SendWeekendCalendar(context.Background()))
	assert.Empty(t, f.sender.messages)
}

func TestSendWeekendCalendar_NoChats(t *testing.T) {
	f := newFixture(t, now)
	f.source.events = usWeekend()

	require.NoError(t, f.notifier.SendWeekendCalendar(context.Background()))
	assert.Empty(t, f.sender.messages)
}

func TestCheckRaceWeek(t *testing.T) {
	f := newFixture(t, time.Date(2023, time.October, 16, 8, 0, 0, 0, time.UTC),
		domain.Chat{ID: 15, Kind: domain.KindPrivate, Name: "max"})
	f.source.events = usWeekend()

	require.NoError(t, f.notifier.CheckRaceWeek(context.Background()))
	require.Len(t, f.sender.messages, 1)
	assert.Equal(t, "It's rawe ceek!\n\nUnited States Grand Prix", f.sender.messages[0].Text)
}

func TestBroadcast_RegistryErrorSendsNothing(t *testing.T) {
	f := newFixture(t, now)
	f.chats.err = errors.New("database is locked")

	assert.Zero(t, f.notifier.Broadcast(context.Background(), "hello", ""))
	assert.Empty(t, f.sender.messages)
}
