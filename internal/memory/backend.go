// Package memory defines the host-facing backend interface and its store
// implementation. The host supports pluggable memory backends; this package
// holds the contract they all satisfy.
package memory

import (
	"context"

	"github.com/nextlevelbuilder/vikingbridge/internal/bridge"
	"github.com/nextlevelbuilder/vikingbridge/internal/outbox"
	"github.com/nextlevelbuilder/vikingbridge/internal/retrieve"
)

// FileContent is the result of a backend file read.
type FileContent struct {
	Text string `json:"text"`
	Path string `json:"path"`
}

// StatusSnapshot summarizes a backend's health for the host status surface.
type StatusSnapshot struct {
	Backend    string             `json:"backend"`
	Endpoint   string             `json:"endpoint"`
	Healthy    bool               `json:"healthy"`
	Error      string             `json:"error,omitempty"`
	Outbox     *outbox.Stats      `json:"outbox,omitempty"`
	Bridge     bridge.Stats       `json:"bridge"`
	LastSearch *retrieve.Snapshot `json:"lastSearch,omitempty"`
}

// Backend is the retrieval and persistence surface the host programs against.
type Backend interface {
	// Search returns ranked snippets for injection into the next turn.
	Search(ctx context.Context, query string, opts retrieve.SearchOptions) ([]retrieve.Result, error)
	// ReadFile reads a file from the store, optionally a line window.
	ReadFile(ctx context.Context, path string, from, lines int) (FileContent, error)
	// Status reports backend health and write-path statistics.
	Status(ctx context.Context) StatusSnapshot
	// Sync drains pending writes and waits for the store to process them.
	Sync(ctx context.Context) error
	// ProbeEmbeddingAvailability reports whether the store's embedding
	// model is serving.
	ProbeEmbeddingAvailability(ctx context.Context) error
	// ProbeVectorAvailability reports whether the store's vector index is
	// serving.
	ProbeVectorAvailability(ctx context.Context) error
	// Close releases backend resources. Idempotent.
	Close() error
}
