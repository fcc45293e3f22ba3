package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comitanigiacomo/kanso-companion/internal/core/services"
)

func TestSSEReceiver_FramesEvents(t *testing.T) {
	raw := "event: partners_update\n" +
		"data: [{\"id\":\"p1\"}]\n" +
		"\n" +
		": heartbeat\n" +
		"\n" +
		"event: habit_update\n" +
		"data: {}\n" +
		"\n"

	recv := newSSEReceiver(io.NopCloser(strings.NewReader(raw)))

	name, data, err := recv.Next()
	require.NoError(t, err)
	assert.Equal(t, "partners_update", name)
	assert.Equal(t, `[{"id":"p1"}]`, string(data))

	name, _, err = recv.Next()
	require.NoError(t, err)
	assert.Equal(t, "habit_update", name)

	_, _, err = recv.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestSSEReceiver_MultiLineData(t *testing.T) {
	raw := "event: partners_update\n" +
		"data: [\n" +
		"data: ]\n" +
		"\n"

	recv := newSSEReceiver(io.NopCloser(strings.NewReader(raw)))

	_, data, err := recv.Next()
	require.NoError(t, err)
	assert.Equal(t, "[\n]", string(data))
}

func TestSSEReceiver_DefaultsEventName(t *testing.T) {
	recv := newSSEReceiver(io.NopCloser(strings.NewReader("data: x\n\n")))

	name, data, err := recv.Next()
	require.NoError(t, err)
	assert.Equal(t, "message", name)
	assert.Equal(t, "x", string(data))
}

func sseSession(t *testing.T, baseURL string) *services.Session {
	t.Helper()

	claims := jwt.MapClaims{"sub": "user-1", "exp": time.Now().Add(time.Hour).Unix()}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("s"))
	require.NoError(t, err)

	session, err := services.NewSession(baseURL, signed)
	require.NoError(t, err)
	return session
}

func TestStreamTransport_ConnectAndReceive(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, eventStreamPath, r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		fmt.Fprint(w, "event: initial_partners\ndata: []\n\n")
		flusher.Flush()
	}))
	defer server.Close()

	transport := NewStreamTransport(sseSession(t, server.URL))

	recv, err := transport.Connect(context.Background())
	require.NoError(t, err)
	defer recv.Close()

	name, data, err := recv.Next()
	require.NoError(t, err)
	assert.Equal(t, "initial_partners", name)
	assert.Equal(t, "[]", string(data))
}

func TestStreamTransport_RejectsNonStreamResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, "{}")
	}))
	defer server.Close()

	transport := NewStreamTransport(sseSession(t, server.URL))

	_, err := transport.Connect(context.Background())
	assert.Error(t, err)
}

func TestStreamTransport_RejectsErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	transport := NewStreamTransport(sseSession(t, server.URL))

	_, err := transport.Connect(context.Background())
	assert.Error(t, err)
}

func TestStreamTransport_RefusesExpiredToken(t *testing.T) {
	claims := jwt.MapClaims{"sub": "user-1", "exp": time.Now().Add(-time.Hour).Unix()}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("s"))
	require.NoError(t, err)

	session, err := services.NewSession("http://localhost:9", signed)
	require.NoError(t, err)

	transport := NewStreamTransport(session)

	_, err = transport.Connect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expired")
}
