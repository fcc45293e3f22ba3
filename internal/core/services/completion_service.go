package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/comitanigiacomo/kanso-companion/internal/core/domain"
	"github.com/comitanigiacomo/kanso-companion/internal/core/ledger"
)

const (
	DefaultRequestTimeout = 10 * time.Second
	DefaultNoticeTTL      = 3 * time.Second
)

// CompletionAPI is the confirmation side of a toggle. The response
// body is not needed; the client re-derives its streak locally.
type CompletionAPI interface {
	ToggleCompletion(ctx context.Context, habitID, dateKey string, completed bool) error
}

// StreakFunc receives every republished streak for immediate display.
type StreakFunc func(habitID string, streak int)

type cellKey struct {
	habitID string
	dateKey string
}

type notice struct {
	message   string
	expiresAt time.Time
}

// CompletionService is the optimistic mutation coordinator. A toggle
// writes the flipped map into the ledger and publishes the recomputed
// streak before the network round-trip starts; on failure the exact
// prior map is restored wholesale. The restore must be a full replace,
// not a second flip, so it stays correct if anything else wrote the
// habit's map in between.
type CompletionService struct {
	ledger    *ledger.Ledger
	api       CompletionAPI
	timeout   time.Duration
	noticeTTL time.Duration
	now       func() time.Time
	onStreak  StreakFunc

	mu       sync.Mutex
	inflight map[cellKey]string
	notices  map[string]notice
	streaks  map[string]int
}

func NewCompletionService(led *ledger.Ledger, api CompletionAPI) *CompletionService {
	return &CompletionService{
		ledger:    led,
		api:       api,
		timeout:   DefaultRequestTimeout,
		noticeTTL: DefaultNoticeTTL,
		now:       time.Now,
		inflight:  make(map[cellKey]string),
		notices:   make(map[string]notice),
		streaks:   make(map[string]int),
	}
}

// SetTimeout overrides the per-request confirmation timeout. A timeout
// is treated exactly like a failed request: the toggle rolls back.
func (s *CompletionService) SetTimeout(d time.Duration) {
	if d > 0 {
		s.timeout = d
	}
}

// SetNoticeTTL overrides how long a toggle-failure notice stays
// visible.
func (s *CompletionService) SetNoticeTTL(d time.Duration) {
	if d > 0 {
		s.noticeTTL = d
	}
}

// SetClock injects a clock for tests.
func (s *CompletionService) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// OnStreak registers the display callback. Must be set before toggles
// start.
func (s *CompletionService) OnStreak(fn StreakFunc) {
	s.onStreak = fn
}

// Toggle flips one day's completion for a habit. The optimistic write
// and streak publish happen synchronously before this method blocks on
// the confirmation request, so readers of the ledger observe the new
// state immediately.
//
// Only one toggle per (habit, date) cell may be in flight; a second
// one is rejected with domain.ErrToggleInFlight rather than racing the
// first. The earlier client simply let both run, which could commit a
// stale map on rollback.
func (s *CompletionService) Toggle(ctx context.Context, habitID, dateKey string) error {
	if _, err := domain.ParseDay(dateKey); err != nil {
		return err
	}

	cell := cellKey{habitID: habitID, dateKey: dateKey}
	token := uuid.NewString()

	s.mu.Lock()
	if _, busy := s.inflight[cell]; busy {
		s.mu.Unlock()
		return domain.ErrToggleInFlight
	}
	s.inflight[cell] = token
	s.mu.Unlock()

	defer s.release(cell, token)

	prior := s.ledger.Get(habitID)
	next := prior.Clone()
	next[dateKey] = !prior.Completed(dateKey)

	s.ledger.Replace(habitID, next)
	s.publishStreak(habitID, next)

	reqCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.api.ToggleCompletion(reqCtx, habitID, dateKey, next.Completed(dateKey)); err != nil {
		s.ledger.Replace(habitID, prior)
		s.publishStreak(habitID, prior)
		s.recordNotice(habitID, "could not save completion, change reverted")
		log.Printf("Toggle %s/%s failed, rolled back: %v", habitID, dateKey, err)
		return fmt.Errorf("toggling completion for habit %s on %s: %w", habitID, dateKey, err)
	}

	return nil
}

// Streak returns the last published streak for a habit.
func (s *CompletionService) Streak(habitID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streaks[habitID]
}

// Notice returns the habit's transient failure message, if one is
// still live. Notices expire on their own after the configured TTL.
func (s *CompletionService) Notice(habitID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notices[habitID]
	if !ok {
		return "", false
	}
	if s.now().After(n.expiresAt) {
		delete(s.notices, habitID)
		return "", false
	}
	return n.message, true
}

func (s *CompletionService) release(cell cellKey, token string) {
	s.mu.Lock()
	if s.inflight[cell] == token {
		delete(s.inflight, cell)
	}
	s.mu.Unlock()
}

func (s *CompletionService) publishStreak(habitID string, m domain.CompletionMap) {
	streak := domain.Streak(m, s.now())

	s.mu.Lock()
	s.streaks[habitID] = streak
	s.mu.Unlock()

	if s.onStreak != nil {
		s.onStreak(habitID, streak)
	}
}

func (s *CompletionService) recordNotice(habitID, message string) {
	s.mu.Lock()
	s.notices[habitID] = notice{
		message:   message,
		expiresAt: s.now().Add(s.noticeTTL),
	}
	s.mu.Unlock()
}
