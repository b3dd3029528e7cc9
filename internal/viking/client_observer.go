package viking

import (
	"context"
	"encoding/json"
	"net/http"
)

// AddResource enqueues a local path for ingestion as a resource.
func (c *Client) AddResource(ctx context.Context, req AddResourceRequest) (*IngestResult, error) {
	raw, err := c.do(ctx, "addResource", http.MethodPost, "/api/v1/resources", nil, req, nil)
	if err != nil {
		return nil, err
	}
	out, err := decode[IngestResult](raw, "addResource")
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// AddSkill enqueues a skill document for ingestion.
func (c *Client) AddSkill(ctx context.Context, req AddSkillRequest) (*IngestResult, error) {
	raw, err := c.do(ctx, "addSkill", http.MethodPost, "/api/v1/skills", nil, req, nil)
	if err != nil {
		return nil, err
	}
	out, err := decode[IngestResult](raw, "addSkill")
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// WaitProcessed blocks server-side until pending ingestion settles.
func (c *Client) WaitProcessed(ctx context.Context, timeoutSec int) error {
	body := map[string]any{}
	if timeoutSec > 0 {
		body["timeout"] = timeoutSec
	}
	_, err := c.do(ctx, "waitProcessed", http.MethodPost, "/api/v1/system/wait", nil, body, nil)
	return err
}

// observer fetches one observer component's status.
func (c *Client) observer(ctx context.Context, name string) (*ObserverStatus, error) {
	raw, err := c.do(ctx, "observer-"+name, http.MethodGet, "/api/v1/observer/"+name, nil, nil, nil)
	if err != nil {
		return nil, err
	}
	out, err := decode[ObserverStatus](raw, "observer-"+name)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ObserverQueue reports ingestion queue health.
func (c *Client) ObserverQueue(ctx context.Context) (*ObserverStatus, error) {
	return c.observer(ctx, "queue")
}

// ObserverVikingDB reports vector index health.
func (c *Client) ObserverVikingDB(ctx context.Context) (*ObserverStatus, error) {
	return c.observer(ctx, "vikingdb")
}

// ObserverVLM reports embedding/VLM health.
func (c *Client) ObserverVLM(ctx context.Context) (*ObserverStatus, error) {
	return c.observer(ctx, "vlm")
}

// ObserverTransaction reports transaction log health.
func (c *Client) ObserverTransaction(ctx context.Context) (*ObserverStatus, error) {
	return c.observer(ctx, "transaction")
}

// ObserverSystem reports aggregate store health.
func (c *Client) ObserverSystem(ctx context.Context) (*SystemStatus, error) {
	raw, err := c.do(ctx, "observer-system", http.MethodGet, "/api/v1/observer/system", nil, nil, nil)
	if err != nil {
		return nil, err
	}
	out, err := decode[SystemStatus](raw, "observer-system")
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// PackExport exports a portable pack of store contents.
func (c *Client) PackExport(ctx context.Context, body map[string]any) (json.RawMessage, error) {
	if body == nil {
		body = map[string]any{}
	}
	return c.do(ctx, "packExport", http.MethodPost, "/api/v1/pack/export", nil, body, nil)
}

// PackImport imports a previously exported pack.
func (c *Client) PackImport(ctx context.Context, body map[string]any) (json.RawMessage, error) {
	if body == nil {
		body = map[string]any{}
	}
	return c.do(ctx, "packImport", http.MethodPost, "/api/v1/pack/import", nil, body, nil)
}
