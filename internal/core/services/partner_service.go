package services

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/comitanigiacomo/kanso-companion/internal/core/domain"
)

// PartnerAPI is the request/response side of partner management. None
// of these calls mutate the local partner list: list changes arrive
// back through the stream, so every session converges on the same
// state instead of each caller patching its own copy.
type PartnerAPI interface {
	AddPartner(ctx context.Context, identifier string) error
	RemovePartner(ctx context.Context, partnerID string) error
	PartnerHabits(ctx context.Context, partnerID string) ([]domain.Habit, error)
	CopyHabit(ctx context.Context, habitID string) (*domain.Habit, error)
}

// PartnerService is the partner action gateway. Its surface never
// propagates a transport error to the caller: failures become a false/
// nil/empty sentinel plus a stored message readable via LastError,
// which the next successful operation clears.
type PartnerService struct {
	api     PartnerAPI
	timeout time.Duration

	// onRefresh runs after a successful add/remove/copy so the UI can
	// refetch whatever it derives from those operations. Never invoked
	// on failure.
	onRefresh func()

	mu      sync.Mutex
	lastErr string
}

func NewPartnerService(api PartnerAPI) *PartnerService {
	return &PartnerService{
		api:     api,
		timeout: DefaultRequestTimeout,
	}
}

func (s *PartnerService) SetTimeout(d time.Duration) {
	if d > 0 {
		s.timeout = d
	}
}

func (s *PartnerService) OnRefresh(fn func()) {
	s.onRefresh = fn
}

// AddPartner requests an accountability relationship with the user
// named by identifier (username or email). The partner list itself
// updates via the next partners_update stream event.
func (s *PartnerService) AddPartner(ctx context.Context, identifier string) bool {
	reqCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.api.AddPartner(reqCtx, identifier); err != nil {
		s.fail("could not add partner", err)
		return false
	}

	s.succeed()
	return true
}

// RemovePartner ends the relationship with a partner. Same contract as
// AddPartner: the response only signals success.
func (s *PartnerService) RemovePartner(ctx context.Context, partnerID string) bool {
	reqCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.api.RemovePartner(reqCtx, partnerID); err != nil {
		s.fail("could not remove partner", err)
		return false
	}

	s.succeed()
	return true
}

// PartnerHabits fetches a partner's habits, completions included.
// Read-only, so it does not trigger the refresh callback. Returns an
// empty slice on failure.
func (s *PartnerService) PartnerHabits(ctx context.Context, partnerID string) []domain.Habit {
	reqCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	habits, err := s.api.PartnerHabits(reqCtx, partnerID)
	if err != nil {
		s.fail("could not load partner habits", err)
		return []domain.Habit{}
	}

	s.clearError()
	return habits
}

// CopyHabit creates a caller-owned copy of a partner's habit and
// returns it, or nil on failure.
func (s *PartnerService) CopyHabit(ctx context.Context, habitID string) *domain.Habit {
	reqCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	habit, err := s.api.CopyHabit(reqCtx, habitID)
	if err != nil {
		s.fail("could not copy habit", err)
		return nil
	}

	s.succeed()
	return habit
}

// LastError returns the message from the most recent failed operation,
// or "" if the last operation succeeded.
func (s *PartnerService) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *PartnerService) fail(message string, err error) {
	log.Printf("Partner gateway: %s: %v", message, err)

	s.mu.Lock()
	s.lastErr = message
	s.mu.Unlock()
}

func (s *PartnerService) clearError() {
	s.mu.Lock()
	s.lastErr = ""
	s.mu.Unlock()
}

func (s *PartnerService) succeed() {
	s.clearError()
	if s.onRefresh != nil {
		s.onRefresh()
	}
}
