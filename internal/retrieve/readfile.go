package retrieve

import (
	"context"
	"strings"
)

// ResolveURI maps a host file path to a store URI. viking:// URIs pass
// through untouched; absolute paths land under viking://resource verbatim;
// relative paths are rooted there.
func ResolveURI(path string) string {
	switch {
	case strings.HasPrefix(path, "viking://"):
		return path
	case strings.HasPrefix(path, "/"):
		return "viking://resource" + path
	default:
		return "viking://resource/" + path
	}
}

// ReadFile reads a store entry's full content, optionally slicing a
// 1-indexed line window [from, from+lines).
func (p *Pipeline) ReadFile(ctx context.Context, path string, from, lines int) (string, error) {
	content, err := p.client.Read(ctx, ResolveURI(path))
	if err != nil {
		return "", err
	}
	if from <= 0 && lines <= 0 {
		return content, nil
	}
	return sliceLines(content, from, lines), nil
}

// sliceLines returns the 1-indexed window [from, from+lines) of content.
// A non-positive from starts at the first line; non-positive lines means
// everything from there on.
func sliceLines(content string, from, lines int) string {
	all := strings.Split(content, "\n")
	if from < 1 {
		from = 1
	}
	if from > len(all) {
		return ""
	}
	end := len(all)
	if lines > 0 && from-1+lines < end {
		end = from - 1 + lines
	}
	return strings.Join(all[from-1:end], "\n")
}
