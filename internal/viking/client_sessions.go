package viking

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
)

// CreateSession creates a store session and returns its id.
func (c *Client) CreateSession(ctx context.Context) (string, error) {
	raw, err := c.do(ctx, "createSession", http.MethodPost, "/api/v1/sessions", nil, map[string]any{}, nil)
	if err != nil {
		return "", err
	}
	out, err := decode[struct {
		SessionID string `json:"session_id"`
	}](raw, "createSession")
	if err != nil {
		return "", err
	}
	if out.SessionID == "" {
		return "", &ProtocolError{Op: "createSession", Message: "missing session_id in result"}
	}
	return out.SessionID, nil
}

// ListSessions lists store sessions.
func (c *Client) ListSessions(ctx context.Context) ([]SessionInfo, error) {
	raw, err := c.do(ctx, "listSessions", http.MethodGet, "/api/v1/sessions", nil, nil, nil)
	if err != nil {
		return nil, err
	}
	return decode[[]SessionInfo](raw, "listSessions")
}

// GetSession fetches one session.
func (c *Client) GetSession(ctx context.Context, id string) (json.RawMessage, error) {
	return c.do(ctx, "getSession", http.MethodGet, "/api/v1/sessions/"+url.PathEscape(id), nil, nil, nil)
}

// DeleteSession deletes a store session.
func (c *Client) DeleteSession(ctx context.Context, id string) error {
	_, err := c.do(ctx, "deleteSession", http.MethodDelete, "/api/v1/sessions/"+url.PathEscape(id), nil, nil, nil)
	return err
}

// ExtractSession asks the store to extract memories from a session.
func (c *Client) ExtractSession(ctx context.Context, id string) (json.RawMessage, error) {
	return c.do(ctx, "extractSession", http.MethodPost, "/api/v1/sessions/"+url.PathEscape(id)+"/extract", nil, map[string]any{}, nil)
}

// AddSessionMessage appends a single role/content message to a session.
func (c *Client) AddSessionMessage(ctx context.Context, id, role, content string) error {
	body := map[string]string{"role": role, "content": content}
	_, err := c.do(ctx, "addSessionMessage", http.MethodPost, "/api/v1/sessions/"+url.PathEscape(id)+"/messages", nil, body, nil)
	return err
}

// AddEventsBatch appends a batch of session events.
func (c *Client) AddEventsBatch(ctx context.Context, id string, events []SessionEvent) error {
	body := map[string]any{"events": events}
	_, err := c.do(ctx, "addEventsBatch", http.MethodPost, "/api/v1/sessions/"+url.PathEscape(id)+"/events/batch", nil, body, nil)
	return err
}

// CommitSession signals a logical checkpoint; drives indexing and extraction.
func (c *Client) CommitSession(ctx context.Context, id, cause string) error {
	body := map[string]string{"cause": cause}
	_, err := c.do(ctx, "commitSession", http.MethodPost, "/api/v1/sessions/"+url.PathEscape(id)+"/commit", nil, body, nil)
	return err
}
