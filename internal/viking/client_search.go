package viking

import (
	"context"
	"net/http"
	"net/url"
)

// Search runs the planner-backed semantic search.
func (c *Client) Search(ctx context.Context, req SearchRequest) (*SearchResult, error) {
	raw, err := c.do(ctx, "search", http.MethodPost, "/api/v1/search/search", nil, req, nil)
	if err != nil {
		return nil, err
	}
	out, err := decode[SearchResult](raw, "search")
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Find runs the keyword fallback search.
func (c *Client) Find(ctx context.Context, req SearchRequest) (*SearchResult, error) {
	raw, err := c.do(ctx, "find", http.MethodPost, "/api/v1/search/find", nil, req, nil)
	if err != nil {
		return nil, err
	}
	out, err := decode[SearchResult](raw, "find")
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Grep searches content under a uri for a pattern.
func (c *Client) Grep(ctx context.Context, uri, pattern string, caseInsensitive bool) ([]GrepMatch, error) {
	body := map[string]any{"uri": uri, "pattern": pattern, "case_insensitive": caseInsensitive}
	raw, err := c.do(ctx, "grep", http.MethodPost, "/api/v1/search/grep", nil, body, nil)
	if err != nil {
		return nil, err
	}
	return decode[[]GrepMatch](raw, "grep")
}

// Glob matches uris under a root by glob pattern.
func (c *Client) Glob(ctx context.Context, pattern, uri string) ([]string, error) {
	body := map[string]any{"pattern": pattern, "uri": uri}
	raw, err := c.do(ctx, "glob", http.MethodPost, "/api/v1/search/glob", nil, body, nil)
	if err != nil {
		return nil, err
	}
	return decode[[]string](raw, "glob")
}

// content fetches one content layer for a uri.
func (c *Client) content(ctx context.Context, op, layer, uri string) (string, error) {
	q := url.Values{"uri": []string{uri}}
	raw, err := c.do(ctx, op, http.MethodGet, "/api/v1/content/"+layer, q, nil, nil)
	if err != nil {
		return "", err
	}
	return decode[string](raw, op)
}

// Read returns the full content of a uri (layer l2).
func (c *Client) Read(ctx context.Context, uri string) (string, error) {
	return c.content(ctx, "read", "read", uri)
}

// Abstract returns the abstract layer of a uri (layer l0).
func (c *Client) Abstract(ctx context.Context, uri string) (string, error) {
	return c.content(ctx, "abstract", "abstract", uri)
}

// Overview returns the overview layer of a uri (layer l1).
func (c *Client) Overview(ctx context.Context, uri string) (string, error) {
	return c.content(ctx, "overview", "overview", uri)
}
