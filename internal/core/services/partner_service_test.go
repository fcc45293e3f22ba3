package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/comitanigiacomo/kanso-companion/internal/core/domain"
	"github.com/comitanigiacomo/kanso-companion/internal/core/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MockPartnerAPI struct {
	simulateError error
	habits        []domain.Habit
	copied        *domain.Habit

	addedIdentifiers []string
	removedIDs       []string
}

func (m *MockPartnerAPI) AddPartner(ctx context.Context, identifier string) error {
	m.addedIdentifiers = append(m.addedIdentifiers, identifier)
	return m.simulateError
}

func (m *MockPartnerAPI) RemovePartner(ctx context.Context, partnerID string) error {
	m.removedIDs = append(m.removedIDs, partnerID)
	return m.simulateError
}

func (m *MockPartnerAPI) PartnerHabits(ctx context.Context, partnerID string) ([]domain.Habit, error) {
	if m.simulateError != nil {
		return nil, m.simulateError
	}
	return m.habits, nil
}

func (m *MockPartnerAPI) CopyHabit(ctx context.Context, habitID string) (*domain.Habit, error) {
	if m.simulateError != nil {
		return nil, m.simulateError
	}
	return m.copied, nil
}

func TestAddPartner_Success(t *testing.T) {
	api := &MockPartnerAPI{}
	svc := services.NewPartnerService(api)

	refreshed := 0
	svc.OnRefresh(func() { refreshed++ })

	ok := svc.AddPartner(context.Background(), "ada@example.com")

	assert.True(t, ok)
	assert.Equal(t, []string{"ada@example.com"}, api.addedIdentifiers)
	assert.Equal(t, 1, refreshed)
	assert.Empty(t, svc.LastError())
}

func TestAddPartner_FailureReturnsSentinelAndMessage(t *testing.T) {
	api := &MockPartnerAPI{simulateError: errors.New("http 404")}
	svc := services.NewPartnerService(api)

	refreshed := 0
	svc.OnRefresh(func() { refreshed++ })

	ok := svc.AddPartner(context.Background(), "nobody")

	assert.False(t, ok)
	assert.Equal(t, 0, refreshed, "refresh must not fire on failure")
	assert.Equal(t, "could not add partner", svc.LastError())
}

func TestRemovePartner_Success(t *testing.T) {
	api := &MockPartnerAPI{}
	svc := services.NewPartnerService(api)

	assert.True(t, svc.RemovePartner(context.Background(), "p1"))
	assert.Equal(t, []string{"p1"}, api.removedIDs)
}

func TestPartnerHabits_EmptyOnFailure(t *testing.T) {
	api := &MockPartnerAPI{simulateError: errors.New("boom")}
	svc := services.NewPartnerService(api)

	habits := svc.PartnerHabits(context.Background(), "p1")

	require.NotNil(t, habits)
	assert.Empty(t, habits)
	assert.Equal(t, "could not load partner habits", svc.LastError())
}

func TestPartnerHabits_DoesNotTriggerRefresh(t *testing.T) {
	api := &MockPartnerAPI{habits: []domain.Habit{{ID: "h1", Name: "Read"}}}
	svc := services.NewPartnerService(api)

	refreshed := 0
	svc.OnRefresh(func() { refreshed++ })

	habits := svc.PartnerHabits(context.Background(), "p1")

	require.Len(t, habits, 1)
	assert.Equal(t, 0, refreshed)
}

func TestCopyHabit_NilOnFailure(t *testing.T) {
	api := &MockPartnerAPI{simulateError: errors.New("boom")}
	svc := services.NewPartnerService(api)

	assert.Nil(t, svc.CopyHabit(context.Background(), "h1"))
	assert.Equal(t, "could not copy habit", svc.LastError())
}

func TestCopyHabit_SuccessTriggersRefresh(t *testing.T) {
	api := &MockPartnerAPI{copied: &domain.Habit{ID: "h2", Name: "Read"}}
	svc := services.NewPartnerService(api)

	refreshed := 0
	svc.OnRefresh(func() { refreshed++ })

	habit := svc.CopyHabit(context.Background(), "h1")

	require.NotNil(t, habit)
	assert.Equal(t, "h2", habit.ID)
	assert.Equal(t, 1, refreshed)
}

func TestLastError_ClearedByNextSuccess(t *testing.T) {
	api := &MockPartnerAPI{simulateError: errors.New("boom")}
	svc := services.NewPartnerService(api)

	svc.AddPartner(context.Background(), "nobody")
	require.NotEmpty(t, svc.LastError())

	api.simulateError = nil
	svc.AddPartner(context.Background(), "ada")

	assert.Empty(t, svc.LastError())
}
