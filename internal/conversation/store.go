// Package conversation holds per-session refinement history in process memory.
package conversation

import (
	"context"
	"sync"
	"time"

	apperrors "car-advisor/internal/common/errors"
	"car-advisor/internal/common/logger"
	"car-advisor/internal/common/metrics"
	"car-advisor/internal/models"
)

// Store is the only state shared across pipeline invocations.
type Store interface {
	Get(ctx context.Context, sessionID string) (models.Conversation, bool)
	GetOrCreate(ctx context.Context, sessionID, language string) models.Conversation
	AppendTurn(ctx context.Context, sessionID string, turn models.Turn) error
	SetRequirements(ctx context.Context, sessionID, requirements string) error
	Delete(ctx context.Context, sessionID string) bool
	Sweep(now time.Time) int
}

type Config struct {
	TTL           time.Duration
	SweepInterval time.Duration
}

func DefaultConfig() *Config {
	return &Config{
		TTL:           time.Hour,
		SweepInterval: time.Minute,
	}
}

type entry struct {
	mu      sync.Mutex
	conv    models.Conversation
	removed bool
}

type MemoryStore struct {
	config *Config
	logger logger.Logger
	now    func() time.Time

	mu      sync.RWMutex
	entries map[string]*entry

	lifecycle sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
}

type Option func(*MemoryStore)

// WithClock replaces time.Now for creation stamps and sweeps.
func WithClock(now func() time.Time) Option {
	return func(s *MemoryStore) { s.now = now }
}

func NewMemoryStore(config *Config, log logger.Logger, opts ...Option) *MemoryStore {
	if config == nil {
		config = DefaultConfig()
	}
	s := &MemoryStore{
		config:  config,
		logger:  log.With(map[string]interface{}{"component": "conversation-store"}),
		now:     time.Now,
		entries: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) lookup(sessionID string) *entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries[sessionID]
}

// Get returns a snapshot; later appends do not show up in it.
func (s *MemoryStore) Get(_ context.Context, sessionID string) (models.Conversation, bool) {
	e := s.lookup(sessionID)
	if e == nil {
		return models.Conversation{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return models.Conversation{}, false
	}
	return e.conv.Clone(), true
}

// GetOrCreate updates the stored language when one is given.
func (s *MemoryStore) GetOrCreate(ctx context.Context, sessionID, language string) models.Conversation {
	for {
		e := s.lookup(sessionID)
		if e == nil {
			e = s.create(sessionID, language)
		}
		e.mu.Lock()
		if e.removed {
			// swept between lookup and lock
			e.mu.Unlock()
			continue
		}
		if language != "" {
			e.conv.UserLanguage = language
		}
		conv := e.conv.Clone()
		e.mu.Unlock()
		return conv
	}
}

func (s *MemoryStore) create(sessionID, language string) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[sessionID]; ok {
		return e
	}
	now := s.now()
	e := &entry{conv: models.Conversation{
		SessionID:    sessionID,
		CreatedAt:    now,
		UpdatedAt:    now,
		UserLanguage: language,
		History:      []models.Turn{},
	}}
	s.entries[sessionID] = e
	metrics.ConversationsActive.Inc()
	s.logger.Debug("conversation created", map[string]interface{}{"sessionId": sessionID})
	return e
}

func (s *MemoryStore) update(sessionID string, fn func(*models.Conversation)) error {
	e := s.lookup(sessionID)
	if e == nil {
		return apperrors.NewConversationNotFoundError(sessionID)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return apperrors.NewConversationNotFoundError(sessionID)
	}
	fn(&e.conv)
	e.conv.UpdatedAt = s.now()
	return nil
}

func (s *MemoryStore) AppendTurn(_ context.Context, sessionID string, turn models.Turn) error {
	return s.update(sessionID, func(c *models.Conversation) {
		c.History = append(c.History, turn)
	})
}

func (s *MemoryStore) SetRequirements(_ context.Context, sessionID, requirements string) error {
	return s.update(sessionID, func(c *models.Conversation) {
		c.Requirements = requirements
	})
}

func (s *MemoryStore) Delete(_ context.Context, sessionID string) bool {
	s.mu.Lock()
	e, ok := s.entries[sessionID]
	if ok {
		delete(s.entries, sessionID)
	}
	s.mu.Unlock()
	if !ok {
		return false
	}

	e.mu.Lock()
	e.removed = true
	e.mu.Unlock()
	metrics.ConversationsActive.Dec()
	return true
}

// Sweep removes conversations created more than TTL before now.
func (s *MemoryStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, e := range s.entries {
		e.mu.Lock()
		if now.Sub(e.conv.CreatedAt) > s.config.TTL {
			e.removed = true
			delete(s.entries, id)
			removed++
		}
		e.mu.Unlock()
	}

	if removed > 0 {
		metrics.ConversationsActive.Sub(float64(removed))
		metrics.ConversationsSwept.Add(float64(removed))
		s.logger.Info("expired conversations swept", map[string]interface{}{
			"removed":   removed,
			"remaining": len(s.entries),
		})
	}
	return removed
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Start runs the sweeper until ctx is cancelled or Close is called. Calling it twice is a no-op.
func (s *MemoryStore) Start(ctx context.Context) {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)
		ticker := time.NewTicker(s.config.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Sweep(s.now())
			}
		}
	}(s.done)
}

// Close stops the sweeper and waits for it to exit.
func (s *MemoryStore) Close() {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil
}
