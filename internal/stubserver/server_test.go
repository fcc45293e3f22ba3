package stubserver_test

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comitanigiacomo/kanso-companion/internal/core/domain"
	"github.com/comitanigiacomo/kanso-companion/internal/stubserver"
)

func setup(t *testing.T) (*stubserver.Server, *gin.Engine, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	server := stubserver.New("test-secret")
	server.AddUser("u1", "demo", "demo@example.com")

	token, err := server.IssueToken("u1")
	require.NoError(t, err)

	return server, server.Router(), token
}

func request(router *gin.Engine, method, path, token, body string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, bytes.NewBufferString(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAuth_MissingTokenIsRejected(t *testing.T) {
	_, router, _ := setup(t)

	w := request(router, http.MethodPost, "/api/v1/partners", "", `{"identifier":"x"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuth_GarbageTokenIsRejected(t *testing.T) {
	_, router, _ := setup(t)

	w := request(router, http.MethodPost, "/api/v1/partners", "garbage", `{"identifier":"x"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestToggle_UnknownHabitIs404(t *testing.T) {
	_, router, token := setup(t)

	w := request(router, http.MethodPut, "/api/v1/habits/h9/completions/2024-06-10", token, `{"completed":true}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestToggle_ForeignHabitIs404(t *testing.T) {
	server, router, token := setup(t)
	server.AddUser("u2", "other", "other@example.com")
	habit := server.SeedHabit("u2", domain.Habit{Name: "Theirs"})

	w := request(router, http.MethodPut, "/api/v1/habits/"+habit.ID+"/completions/2024-06-10", token, `{"completed":true}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestToggle_BadDateIs400(t *testing.T) {
	server, router, token := setup(t)
	habit := server.SeedHabit("u1", domain.Habit{Name: "Mine"})

	w := request(router, http.MethodPut, "/api/v1/habits/"+habit.ID+"/completions/June-10", token, `{"completed":true}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAddPartner_UnknownUserIs404(t *testing.T) {
	_, router, token := setup(t)

	w := request(router, http.MethodPost, "/api/v1/partners", token, `{"identifier":"ghost"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAddPartner_DuplicateIs409(t *testing.T) {
	server, router, token := setup(t)
	server.AddUser("u2", "other", "other@example.com")

	w := request(router, http.MethodPost, "/api/v1/partners", token, `{"identifier":"other"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w = request(router, http.MethodPost, "/api/v1/partners", token, `{"identifier":"other"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestPartnerHabits_NonPartnerIs404(t *testing.T) {
	server, router, token := setup(t)
	server.AddUser("u2", "other", "other@example.com")

	w := request(router, http.MethodGet, "/api/v1/partners/u2/habits", token, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCopyHabit_RequiresPartnership(t *testing.T) {
	server, router, token := setup(t)
	server.AddUser("u2", "other", "other@example.com")
	habit := server.SeedHabit("u2", domain.Habit{Name: "Theirs"})

	w := request(router, http.MethodPost, "/api/v1/habits/"+habit.ID+"/copy", token, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	server.Link("u1", "u2")
	w = request(router, http.MethodPost, "/api/v1/habits/"+habit.ID+"/copy", token, "")
	assert.Equal(t, http.StatusCreated, w.Code)
}
