package store

import (
	"context"
	"errors"

	"github.com/ykvlv/f1-schedule-bot/internal/domain"
)

var (
	ErrNotFound          = errors.New("chat not found")
	ErrAlreadyRegistered = errors.New("chat already registered")
	ErrNoOperator        = errors.New("no operator chat configured")
	ErrInvalidChat       = errors.New("chat kind and name must not be empty")
	ErrReservedName      = errors.New("chat name is reserved for the operator")
)

// Repo is the chat registry.
type Repo interface {
	// Register inserts a new chat; ErrAlreadyRegistered if the id exists,
	// ErrReservedName if it carries the operator name.
	Register(ctx context.Context, c domain.Chat) error
	// GetChat returns the chat or ErrNotFound.
	GetChat(ctx context.Context, chatID int64) (*domain.Chat, error)
	// GetOperator returns the operator chat or ErrNoOperator.
	GetOperator(ctx context.Context) (*domain.Chat, error)
	// ListChats returns every chat except the operator.
	ListChats(ctx context.Context) ([]domain.Chat, error)
	// EnsureOperator registers the operator chat with fallbackID when none exists.
	EnsureOperator(ctx context.Context, fallbackID int64) (bool, error)
	Close() error
}
