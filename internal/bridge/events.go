package bridge

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/vikingbridge/internal/viking"
)

// maxContentBytes caps event content; longer content is cut at a rune
// boundary and marked.
const maxContentBytes = 16000

// truncationMarker is the stable literal appended to truncated content.
const truncationMarker = "\n\n[truncated]"

// TruncateContent enforces the content cap. The marker is appended only when
// content was actually cut.
func TruncateContent(content string) string {
	if len(content) <= maxContentBytes {
		return content
	}
	cut := maxContentBytes
	for cut > 0 && !utf8.RuneStart(content[cut]) {
		cut--
	}
	return content[:cut] + truncationMarker
}

// NewMessageEvent builds a message event. Returns ok=false when the trimmed
// content is empty (the write is a no-op).
func NewMessageEvent(role, content string) (viking.SessionEvent, bool) {
	content = strings.TrimSpace(content)
	if content == "" {
		return viking.SessionEvent{}, false
	}
	return viking.SessionEvent{
		EventID:   uuid.NewString(),
		EventType: viking.EventMessage,
		Role:      role,
		Content:   TruncateContent(content),
	}, true
}

// NewToolResultEvent builds a tool_result event whose content is a JSON
// description of the tool call.
func NewToolResultEvent(toolName string, payload any) (viking.SessionEvent, error) {
	body := map[string]any{"tool": toolName}
	if payload != nil {
		body["result"] = payload
	}
	data, err := json.Marshal(body)
	if err != nil {
		return viking.SessionEvent{}, fmt.Errorf("encode tool result: %w", err)
	}
	return viking.SessionEvent{
		EventID:   uuid.NewString(),
		EventType: viking.EventToolResult,
		Content:   TruncateContent(string(data)),
	}, nil
}

// NewCommitEvent builds a commit event with the given cause.
func NewCommitEvent(cause string) viking.SessionEvent {
	return viking.SessionEvent{
		EventID:   uuid.NewString(),
		EventType: viking.EventCommit,
		Cause:     cause,
	}
}
