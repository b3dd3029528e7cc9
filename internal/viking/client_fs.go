package viking

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

// FSLs lists direct children of a uri.
func (c *Client) FSLs(ctx context.Context, uri string) ([]FSEntry, error) {
	q := url.Values{"uri": []string{uri}}
	raw, err := c.do(ctx, "fsLs", http.MethodGet, "/api/v1/fs/ls", q, nil, nil)
	if err != nil {
		return nil, err
	}
	return decode[[]FSEntry](raw, "fsLs")
}

// FSTree lists the subtree under a uri.
func (c *Client) FSTree(ctx context.Context, uri string) ([]FSEntry, error) {
	q := url.Values{"uri": []string{uri}}
	raw, err := c.do(ctx, "fsTree", http.MethodGet, "/api/v1/fs/tree", q, nil, nil)
	if err != nil {
		return nil, err
	}
	return decode[[]FSEntry](raw, "fsTree")
}

// FSStat stats one uri.
func (c *Client) FSStat(ctx context.Context, uri string) (*FSStat, error) {
	q := url.Values{"uri": []string{uri}}
	raw, err := c.do(ctx, "fsStat", http.MethodGet, "/api/v1/fs/stat", q, nil, nil)
	if err != nil {
		return nil, err
	}
	out, err := decode[FSStat](raw, "fsStat")
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// FSMkdir creates a directory. Callers must vet the uri through the policy
// gate first.
func (c *Client) FSMkdir(ctx context.Context, uri string) error {
	_, err := c.do(ctx, "fsMkdir", http.MethodPost, "/api/v1/fs/mkdir", nil, map[string]string{"uri": uri}, nil)
	return err
}

// FSRm removes a uri. Callers must vet the uri through the policy gate first.
func (c *Client) FSRm(ctx context.Context, uri string, recursive bool) error {
	q := url.Values{
		"uri":       []string{uri},
		"recursive": []string{strconv.FormatBool(recursive)},
	}
	_, err := c.do(ctx, "fsRm", http.MethodDelete, "/api/v1/fs", q, nil, nil)
	return err
}

// FSMv moves a uri. Callers must vet both uris through the policy gate first.
func (c *Client) FSMv(ctx context.Context, fromURI, toURI string) error {
	body := map[string]string{"from_uri": fromURI, "to_uri": toURI}
	_, err := c.do(ctx, "fsMv", http.MethodPost, "/api/v1/fs/mv", nil, body, nil)
	return err
}

// Relations returns the relation-graph neighbors of a uri.
func (c *Client) Relations(ctx context.Context, uri string) ([]RelationEntry, error) {
	q := url.Values{"uri": []string{uri}}
	raw, err := c.do(ctx, "relations", http.MethodGet, "/api/v1/relations", q, nil, nil)
	if err != nil {
		return nil, err
	}
	return decode[[]RelationEntry](raw, "relations")
}

// LinkRelation links two uris in the relation graph.
func (c *Client) LinkRelation(ctx context.Context, fromURI, toURI, reason string) error {
	body := map[string]string{"from_uri": fromURI, "to_uri": toURI, "reason": reason}
	_, err := c.do(ctx, "linkRelation", http.MethodPost, "/api/v1/relations/link", nil, body, nil)
	return err
}

// UnlinkRelation removes a relation link.
func (c *Client) UnlinkRelation(ctx context.Context, fromURI, toURI string) error {
	body := map[string]string{"from_uri": fromURI, "to_uri": toURI}
	_, err := c.do(ctx, "unlinkRelation", http.MethodDelete, "/api/v1/relations/link", nil, body, nil)
	return err
}
