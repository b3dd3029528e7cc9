// Package sessionlink maps host session keys to store session ids and tracks
// last-commit metadata in the host's session store file.
package sessionlink

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Entry is one session's link metadata. The file holds a single JSON object
// keyed by sessionKey. The file is shared with the host, so fields this
// subsystem does not model ride along in extra and survive rewrites.
type Entry struct {
	SessionID           string `json:"sessionId,omitempty"`
	UpdatedAt           string `json:"updatedAt,omitempty"`
	SessionFile         string `json:"sessionFile,omitempty"`
	OpenVikingSessionID string `json:"openvikingSessionId,omitempty"`
	LastSyncedSeq       int64  `json:"lastSyncedSeq,omitempty"`
	LastCommitAt        int64  `json:"lastCommitAt,omitempty"` // unix ms, 0 if none

	extra map[string]json.RawMessage // host-owned fields, passed through verbatim
}

var entryKeys = []string{
	"sessionId", "updatedAt", "sessionFile",
	"openvikingSessionId", "lastSyncedSeq", "lastCommitAt",
}

func (e *Entry) UnmarshalJSON(data []byte) error {
	type plain Entry
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	raw := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for _, k := range entryKeys {
		delete(raw, k)
	}
	*e = Entry(p)
	if len(raw) > 0 {
		e.extra = raw
	}
	return nil
}

func (e Entry) MarshalJSON() ([]byte, error) {
	type plain Entry
	data, err := json.Marshal(plain(e))
	if err != nil {
		return nil, err
	}
	if len(e.extra) == 0 {
		return data, nil
	}
	merged := make(map[string]json.RawMessage, len(e.extra))
	for k, v := range e.extra {
		merged[k] = v
	}
	own := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &own); err != nil {
		return nil, err
	}
	for k, v := range own {
		merged[k] = v
	}
	return json.Marshal(merged)
}

// Registry serializes writes to the session store file via an atomic
// read-modify-write. Reads never block on writers beyond the file read.
// The write lock is never held across an HTTP call.
type Registry struct {
	path string
	mu   sync.Mutex
}

// NewRegistry creates a registry over the given session store file.
func NewRegistry(path string) *Registry {
	return &Registry{path: path}
}

// Path returns the backing file path.
func (r *Registry) Path() string { return r.path }

// Get returns the entry for a sessionKey, if present.
func (r *Registry) Get(sessionKey string) (Entry, bool, error) {
	entries, err := r.read()
	if err != nil {
		return Entry{}, false, err
	}
	e, ok := entries[sessionKey]
	return e, ok, nil
}

// StoreSessionID returns the linked store session id, or "" when unlinked.
func (r *Registry) StoreSessionID(sessionKey string) (string, error) {
	e, ok, err := r.Get(sessionKey)
	if err != nil || !ok {
		return "", err
	}
	return e.OpenVikingSessionID, nil
}

// EnsureLink returns the store session id for a sessionKey, creating one via
// create on first use. Once set, the id is immutable for that key. The
// create call runs without holding the write lock; if two callers race, the
// first write wins and the loser's created session is simply unused.
func (r *Registry) EnsureLink(ctx context.Context, sessionKey string, create func(context.Context) (string, error)) (string, error) {
	if sessionKey == "" {
		return "", fmt.Errorf("sessionlink: empty session key")
	}

	e, ok, err := r.Get(sessionKey)
	if err != nil {
		return "", err
	}
	if ok && e.OpenVikingSessionID != "" {
		return e.OpenVikingSessionID, nil
	}

	created, err := create(ctx)
	if err != nil {
		return "", fmt.Errorf("sessionlink: create store session: %w", err)
	}

	var id string
	err = r.update(func(entries map[string]Entry) {
		e := entries[sessionKey]
		if e.OpenVikingSessionID == "" {
			e.OpenVikingSessionID = created
		}
		e.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
		entries[sessionKey] = e
		id = e.OpenVikingSessionID
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// BumpSeq increments lastSyncedSeq by max(1, delta) and returns the new value.
func (r *Registry) BumpSeq(sessionKey string, delta int) (int64, error) {
	if delta < 1 {
		delta = 1
	}
	var seq int64
	err := r.update(func(entries map[string]Entry) {
		e := entries[sessionKey]
		e.LastSyncedSeq += int64(delta)
		e.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
		entries[sessionKey] = e
		seq = e.LastSyncedSeq
	})
	return seq, err
}

// MarkCommitQueued records that a commit was queued for the sessionKey now.
func (r *Registry) MarkCommitQueued(sessionKey string) error {
	return r.update(func(entries map[string]Entry) {
		e := entries[sessionKey]
		e.LastCommitAt = time.Now().UnixMilli()
		e.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
		entries[sessionKey] = e
	})
}

// LastCommitAt returns the last queued commit time (zero if none).
func (r *Registry) LastCommitAt(sessionKey string) (time.Time, error) {
	e, ok, err := r.Get(sessionKey)
	if err != nil || !ok || e.LastCommitAt == 0 {
		return time.Time{}, err
	}
	return time.UnixMilli(e.LastCommitAt), nil
}

// LastSyncedSeq returns the count of events queued for the sessionKey.
func (r *Registry) LastSyncedSeq(sessionKey string) (int64, error) {
	e, _, err := r.Get(sessionKey)
	return e.LastSyncedSeq, err
}

func (r *Registry) read() (map[string]Entry, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]Entry{}, nil
		}
		return nil, err
	}
	entries := map[string]Entry{}
	if len(data) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("sessionlink: parse %s: %w", r.path, err)
	}
	return entries, nil
}

// update performs an atomic read-modify-write of the whole file.
func (r *Registry) update(mutate func(map[string]Entry)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := r.read()
	if err != nil {
		return err
	}
	mutate(entries)
	return r.write(entries)
}

// write persists atomically via temp file and rename.
func (r *Registry) write(entries map[string]Entry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "sessions-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	cleanup := true
	defer func() {
		if cleanup {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, r.path); err != nil {
		return err
	}
	cleanup = false
	return nil
}
