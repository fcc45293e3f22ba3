// Package api implements the HTTP transport to a kanso backend: the
// request/response calls the gateways need and the SSE channel the
// stream client rides on. Every call carries the session's bearer
// token; nothing here keeps state of its own.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/comitanigiacomo/kanso-companion/internal/core/domain"
	"github.com/comitanigiacomo/kanso-companion/internal/core/services"
)

type Client struct {
	session *services.Session
	http    *http.Client
}

func NewClient(session *services.Session) *Client {
	return &Client{
		session: session,
		http:    &http.Client{},
	}
}

// SetHTTPClient swaps the underlying client, for tests.
func (c *Client) SetHTTPClient(h *http.Client) {
	if h != nil {
		c.http = h
	}
}

// ToggleCompletion confirms one day's completion state. The response
// body is ignored; only the status matters.
func (c *Client) ToggleCompletion(ctx context.Context, habitID, dateKey string, completed bool) error {
	path := fmt.Sprintf("/api/v1/habits/%s/completions/%s", habitID, dateKey)
	body := map[string]bool{"completed": completed}
	return c.do(ctx, http.MethodPut, path, body, nil)
}

// AddPartner requests a partnership with the user named by identifier.
func (c *Client) AddPartner(ctx context.Context, identifier string) error {
	body := map[string]string{"identifier": identifier}
	return c.do(ctx, http.MethodPost, "/api/v1/partners", body, nil)
}

// RemovePartner deletes a partnership.
func (c *Client) RemovePartner(ctx context.Context, partnerID string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/partners/"+partnerID, nil, nil)
}

// PartnerHabits fetches a partner's habits, completions included.
func (c *Client) PartnerHabits(ctx context.Context, partnerID string) ([]domain.Habit, error) {
	var habits []domain.Habit
	if err := c.do(ctx, http.MethodGet, "/api/v1/partners/"+partnerID+"/habits", nil, &habits); err != nil {
		return nil, err
	}
	return habits, nil
}

// CopyHabit creates a copy of a partner's habit owned by this session's
// user and returns the new record.
func (c *Client) CopyHabit(ctx context.Context, habitID string) (*domain.Habit, error) {
	var habit domain.Habit
	if err := c.do(ctx, http.MethodPost, "/api/v1/habits/"+habitID+"/copy", nil, &habit); err != nil {
		return nil, err
	}
	return &habit, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.session.BaseURL()+path, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.session.Token())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding %s %s response: %w", method, path, err)
		}
	}

	return nil
}
