package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"salesbridge/internal/models"

	"github.com/sirupsen/logrus"
)

// ConversationStore is the persistence surface the tracker drives.
type ConversationStore interface {
	UpsertConversation(ctx context.Context, phone, lastMessage string, at time.Time) error
	GetConversation(ctx context.Context, phone string) (*models.Conversation, error)
	ListConversations(ctx context.Context, status models.ConversationStatus, limit, offset int) ([]models.Conversation, error)
	SetConversationStatus(ctx context.Context, phone string, status models.ConversationStatus) error
}

// Tracker maintains one conversation row per customer phone. Touches
// for the same phone are serialized with a keyed mutex so concurrent
// webhook deliveries cannot interleave upserts for one customer;
// different phones proceed in parallel.
type Tracker struct {
	store  ConversationStore
	logger *logrus.Logger

	mu    sync.Mutex
	locks map[string]*phoneLock
}

type phoneLock struct {
	mu   sync.Mutex
	refs int
}

func NewTracker(store ConversationStore, logger *logrus.Logger) *Tracker {
	return &Tracker{
		store:  store,
		logger: logger,
		locks:  make(map[string]*phoneLock),
	}
}

func (t *Tracker) lockPhone(phone string) *phoneLock {
	t.mu.Lock()
	l, ok := t.locks[phone]
	if !ok {
		l = &phoneLock{}
		t.locks[phone] = l
	}
	l.refs++
	t.mu.Unlock()

	l.mu.Lock()
	return l
}

func (t *Tracker) unlockPhone(phone string, l *phoneLock) {
	l.mu.Unlock()

	t.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(t.locks, phone)
	}
	t.mu.Unlock()
}

// Touch records activity on a conversation, creating it active or
// reactivating a closed one, and updating the last-message snapshot.
func (t *Tracker) Touch(ctx context.Context, phone, lastMessage string, at time.Time) error {
	l := t.lockPhone(phone)
	defer t.unlockPhone(phone, l)

	if err := t.store.UpsertConversation(ctx, phone, lastMessage, at); err != nil {
		return fmt.Errorf("failed to touch conversation: %w", err)
	}

	t.logger.WithField(LogFieldPhone, SanitizePhoneNumber(phone)).Debug("Conversation touched")
	return nil
}

// Get returns the conversation for phone, nil when none exists.
func (t *Tracker) Get(ctx context.Context, phone string) (*models.Conversation, error) {
	return t.store.GetConversation(ctx, phone)
}

// List returns conversations, newest activity first. An empty status
// returns all conversations.
func (t *Tracker) List(ctx context.Context, status models.ConversationStatus, limit, offset int) ([]models.Conversation, error) {
	return t.store.ListConversations(ctx, status, limit, offset)
}

// Close marks a conversation closed. The next inbound message from the
// customer reactivates it.
func (t *Tracker) Close(ctx context.Context, phone string) error {
	return t.setStatus(ctx, phone, models.ConversationStatusClosed)
}

// Archive marks a conversation archived.
func (t *Tracker) Archive(ctx context.Context, phone string) error {
	return t.setStatus(ctx, phone, models.ConversationStatusArchived)
}

func (t *Tracker) setStatus(ctx context.Context, phone string, status models.ConversationStatus) error {
	l := t.lockPhone(phone)
	defer t.unlockPhone(phone, l)

	if err := t.store.SetConversationStatus(ctx, phone, status); err != nil {
		return fmt.Errorf("failed to set conversation status: %w", err)
	}

	t.logger.WithFields(logrus.Fields{
		LogFieldPhone: SanitizePhoneNumber(phone),
		"status":      status,
	}).Info("Conversation status changed")
	return nil
}
