// Package fspolicy vets mutating store-fs operations against the configured
// allow/deny/protected URI rules before any request leaves the process.
package fspolicy

import (
	"fmt"
	"strings"

	"github.com/nextlevelbuilder/vikingbridge/internal/config"
)

const uriScheme = "viking://"

// PolicyError names the rule that rejected an operation.
type PolicyError struct {
	Rule   string
	Detail string
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("fs write denied: %s: %s", e.Rule, e.Detail)
}

func deny(rule, format string, args ...any) error {
	return &PolicyError{Rule: rule, Detail: fmt.Sprintf(format, args...)}
}

// Gate enforces the fs-write policy for one resolved config.
type Gate struct {
	cfg *config.FSWriteConfig
}

// NewGate builds a gate over the given policy config.
func NewGate(cfg *config.FSWriteConfig) *Gate {
	return &Gate{cfg: cfg}
}

// CheckMkdir vets a directory creation and returns the normalized URI.
func (g *Gate) CheckMkdir(uri string) (string, error) {
	return g.check(uri, false)
}

// CheckRm vets a removal and returns the normalized URI.
func (g *Gate) CheckRm(uri string, recursive bool) (string, error) {
	return g.check(uri, recursive)
}

// CheckMv vets a move. Both ends must pass and must be distinct after
// normalization.
func (g *Gate) CheckMv(source, dest string) (string, string, error) {
	src, err := g.check(source, false)
	if err != nil {
		return "", "", err
	}
	dst, err := g.check(dest, false)
	if err != nil {
		return "", "", err
	}
	if src == dst {
		return "", "", deny("mv-distinct", "source and destination are the same uri %q", src)
	}
	return src, dst, nil
}

// check runs the ordered policy rules against one target URI.
func (g *Gate) check(uri string, recursive bool) (string, error) {
	if !g.cfg.Enabled {
		return "", deny("enabled", "fs write operations are disabled")
	}
	if recursive && !g.cfg.AllowRecursiveRm {
		return "", deny("allowRecursiveRm", "recursive rm is disabled")
	}

	normalized, err := Normalize(uri)
	if err != nil {
		return "", err
	}

	if len(g.cfg.AllowURIPrefixes) == 0 {
		return "", deny("allowUriPrefixes", "no allowed uri prefixes configured")
	}
	for _, protected := range g.cfg.ProtectedURIs {
		if normalized == protected {
			return "", deny("protectedUris", "%q is protected", normalized)
		}
	}
	for _, prefix := range g.cfg.DenyURIPrefixes {
		if prefixMatches(prefix, normalized) {
			return "", deny("denyUriPrefixes", "%q matches denied prefix %q", normalized, prefix)
		}
	}
	for _, prefix := range g.cfg.AllowURIPrefixes {
		if prefixMatches(prefix, normalized) {
			return normalized, nil
		}
	}
	return "", deny("allowUriPrefixes", "%q matches no allowed prefix", normalized)
}

// Normalize validates the scheme and strips trailing slashes from non-root
// URIs.
func Normalize(uri string) (string, error) {
	uri = strings.TrimSpace(uri)
	if !strings.HasPrefix(uri, uriScheme) {
		return "", deny("uri-scheme", "%q does not start with %s", uri, uriScheme)
	}
	if uri == uriScheme {
		return uri, nil
	}
	trimmed := strings.TrimRight(uri, "/")
	if trimmed == strings.TrimRight(uriScheme, "/") {
		return uriScheme, nil
	}
	return trimmed, nil
}

// prefixMatches reports whether prefix covers uri, honoring path boundaries.
// The bare scheme matches everything.
func prefixMatches(prefix, uri string) bool {
	if prefix == uriScheme {
		return true
	}
	prefix = strings.TrimRight(prefix, "/")
	return uri == prefix || strings.HasPrefix(uri, prefix+"/")
}
