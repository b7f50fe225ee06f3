// Package session is the consensus state machine: lobby lifecycle, vote
// intake and tally, scene traversal with the side-quest stack, battle
// encounters, checkpoints and expedition bookkeeping.
package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/playperu/coopquest/internal/camp"
	"github.com/playperu/coopquest/internal/expedition"
	"github.com/playperu/coopquest/internal/graph"
	"github.com/playperu/coopquest/internal/random"
)

// Notifier receives the recomputed room state after every mutation.
// Delivery is best effort.
type Notifier interface {
	Publish(code string, state RoomState)
}

// Content bundles the immutable collaborators loaded at boot.
type Content struct {
	Graph      *graph.Store
	Scheduler  *expedition.Scheduler
	Resolver   *expedition.Resolver
	Catalog    *camp.Catalog
	StartNode  string
	MinPlayers int
	MaxPlayers int
}

type Engine struct {
	store    Store
	content  Content
	notifier Notifier
	rng      random.Source
	logger   *slog.Logger
	now      func() time.Time
}

type Option func(*Engine)

func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

func WithRandom(src random.Source) Option {
	return func(e *Engine) { e.rng = src }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(store Store, content Content, logger *slog.Logger, opts ...Option) *Engine {
	if content.MinPlayers <= 0 {
		content.MinPlayers = 2
	}
	if content.MaxPlayers <= 0 {
		content.MaxPlayers = 4
	}
	if content.StartNode == "" {
		content.StartNode = "start"
	}
	e := &Engine{
		store:   store,
		content: content,
		rng:     random.Default(),
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// modify wraps Store.Modify with repair logging and the updated timestamp.
func (e *Engine) modify(ctx context.Context, code string, fn func(*Session) error) (*Session, error) {
	sess, err := e.store.Modify(ctx, code, func(s *Session) error {
		if err := fn(s); err != nil {
			return err
		}
		s.UpdatedAt = e.now()
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.logRepairs(sess)
	return sess, nil
}

func (e *Engine) logRepairs(s *Session) {
	for _, r := range s.State.Repairs() {
		e.logger.Warn("session state repaired", "code", s.Code, "repair", r)
	}
	s.State.repairs = nil
}

func (e *Engine) publish(s *Session) {
	if e.notifier == nil || s == nil {
		return
	}
	e.notifier.Publish(s.Code, e.buildRoomState(s))
}

// Room returns the current room state.
func (e *Engine) Room(ctx context.Context, code string) (RoomState, error) {
	s, err := e.store.Get(ctx, code)
	if err != nil {
		return RoomState{}, err
	}
	e.logRepairs(s)
	return e.buildRoomState(s), nil
}
