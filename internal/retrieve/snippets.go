package retrieve

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Snippet layers, cheapest to richest.
const (
	layerAbstract = "l0"
	layerOverview = "l1"
	layerFull     = "l2"
)

// assembleSnippets turns selected candidates into injectable results, pulling
// content at the configured layer and degrading to cheaper layers on misses,
// under the per-snippet and total injection budgets.
func (p *Pipeline) assembleSnippets(ctx context.Context, selected []candidate, snap *Snapshot) []Result {
	sc := &p.cfg.Search
	snap.Layering.RequestedLayer = sc.ReadLayer

	results := make([]Result, 0, len(selected))
	budget := sc.MaxInjectedChars

	for i, c := range selected {
		text, layer := p.resolveSnippet(ctx, c, sc.ReadLayer, sc.MaxSnippetChars)
		text = strings.TrimSpace(text)
		if text == "" {
			snap.Ranking.SkippedEmptySnippet++
			continue
		}

		if sc.RelationExpansion {
			text = snippetPrefix(c) + text
		}
		text = trimSnippet(text, sc.MaxSnippetChars)

		if budget <= 0 {
			snap.Layering.TruncatedByBudget = true
			snap.Ranking.DroppedByBudget = len(selected) - i
			break
		}
		if len(text) > budget {
			// The last snippet that fits is cut down to the remaining budget.
			text = trimSnippet(text, budget)
			if strings.TrimSpace(text) == "" {
				snap.Layering.TruncatedByBudget = true
				snap.Ranking.DroppedByBudget = len(selected) - i
				break
			}
		}
		budget -= len(text)

		switch layer {
		case layerAbstract:
			snap.Layering.L0Count++
		case layerOverview:
			snap.Layering.L1Count++
		case layerFull:
			snap.Layering.L2Count++
		}
		snap.Layering.SnippetChars += len(text)

		results = append(results, Result{
			Path:      c.ctx.URI,
			StartLine: 1,
			EndLine:   1,
			Score:     c.score,
			Snippet:   text,
			Source:    c.origin,
		})
	}

	snap.Layering.Entries = len(results)
	snap.Layering.InjectedChars = sc.MaxInjectedChars - budget
	return results
}

// snippetPrefix tags each snippet with its provenance so the host can tell
// direct hits from graph-expanded context.
func snippetPrefix(c candidate) string {
	if c.origin == originRelation {
		return fmt.Sprintf("[relation-expanded d%d from %s] ", c.relDepth, c.relFrom)
	}
	return "[direct-hit] "
}

// trimSnippet caps text at maxChars, marking the cut with an ellipsis when
// there is room for one.
func trimSnippet(text string, maxChars int) string {
	if maxChars <= 0 || len(text) <= maxChars {
		return text
	}
	if maxChars >= 4 {
		return text[:maxChars-3] + "..."
	}
	return text[:maxChars]
}

// resolveSnippet fetches text for one candidate at the requested layer,
// falling back through cheaper layers on empty or failed fetches. Inline
// fields from the search response are preferred over extra HTTP round trips.
func (p *Pipeline) resolveSnippet(ctx context.Context, c candidate, readLayer string, maxSnippetChars int) (string, string) {
	switch readLayer {
	case layerFull:
		return p.firstNonEmpty(ctx, c,
			layerFull, layerOverview, layerAbstract)
	case layerAbstract:
		return p.firstNonEmpty(ctx, c,
			layerAbstract, layerOverview, layerFull)
	case "progressive":
		return p.progressiveSnippet(ctx, c, maxSnippetChars)
	default: // l1
		return p.firstNonEmpty(ctx, c,
			layerOverview, layerAbstract, layerFull)
	}
}

// firstNonEmpty tries layers in order and returns the first non-empty text
// together with the layer that produced it.
func (p *Pipeline) firstNonEmpty(ctx context.Context, c candidate, layers ...string) (string, string) {
	for _, layer := range layers {
		if text := p.fetchLayer(ctx, c, layer); strings.TrimSpace(text) != "" {
			return text, layer
		}
	}
	return "", ""
}

// progressiveSnippet picks the cheapest layer that still fills a useful share
// of the snippet budget, escalating to the full read when summaries run
// short.
func (p *Pipeline) progressiveSnippet(ctx context.Context, c candidate, maxSnippetChars int) (string, string) {
	minUseful := maxSnippetChars / 6
	if minUseful < 40 {
		minUseful = 40
	}

	overview := strings.TrimSpace(p.fetchLayer(ctx, c, layerOverview))
	if len(overview) >= minUseful {
		return overview, layerOverview
	}
	abstract := strings.TrimSpace(p.fetchLayer(ctx, c, layerAbstract))
	if len(abstract) >= minUseful {
		return abstract, layerAbstract
	}
	if full := strings.TrimSpace(p.fetchLayer(ctx, c, layerFull)); full != "" {
		return full, layerFull
	}
	if len(overview) >= len(abstract) && overview != "" {
		return overview, layerOverview
	}
	if abstract != "" {
		return abstract, layerAbstract
	}
	return "", ""
}

// fetchLayer returns text for one layer: inline search-response fields first,
// then the store's content endpoints. Fetch errors degrade to empty so the
// caller can fall through.
func (p *Pipeline) fetchLayer(ctx context.Context, c candidate, layer string) string {
	switch layer {
	case layerAbstract:
		if c.ctx.Abstract != "" {
			return c.ctx.Abstract
		}
		if c.ctx.MatchReason != "" {
			return c.ctx.MatchReason
		}
		text, err := p.client.Abstract(ctx, c.ctx.URI)
		if err != nil {
			slog.Debug("abstract fetch failed", "uri", c.ctx.URI, "error", err)
			return ""
		}
		return text
	case layerOverview:
		if c.ctx.Overview != "" {
			return c.ctx.Overview
		}
		text, err := p.client.Overview(ctx, c.ctx.URI)
		if err != nil {
			slog.Debug("overview fetch failed", "uri", c.ctx.URI, "error", err)
			return ""
		}
		return text
	case layerFull:
		text, err := p.client.Read(ctx, c.ctx.URI)
		if err != nil {
			slog.Debug("content fetch failed", "uri", c.ctx.URI, "error", err)
			return ""
		}
		return text
	}
	return ""
}
