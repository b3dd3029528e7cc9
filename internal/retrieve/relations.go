package retrieve

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/nextlevelbuilder/vikingbridge/internal/viking"
)

// Relation ranking penalties. A related entry inherits its anchor's score
// discounted per hop so it never outranks the direct hit that surfaced it.
const (
	relationDepthDecay   = 0.12
	relationBaseDecay    = 0.08
	relationRankPenalty  = 0.25
	relationDepthPenalty = 0.05
)

// anchor is a BFS start point: a direct hit or a planner-seeded directory.
type anchor struct {
	uri   string
	score float64
	seed  bool
}

// expandRelations walks the relation graph out from the strongest direct hits
// (plus planner target-directory seeds) and returns discovered candidates.
// Traversal is breadth-first and sequential so budget accounting stays
// deterministic.
func (p *Pipeline) expandRelations(ctx context.Context, direct []candidate, plan *viking.QueryPlan, decision Decision, snap *RelationSnapshot) []candidate {
	sc := &p.cfg.Search

	maxDepth := sc.RelationMaxDepth
	maxAnchors := sc.RelationMaxAnchors
	maxExpanded := sc.RelationMaxExpandedEntries
	boost := sc.RelationPriorityBudgetBoost && decision.Priority != viking.ContextMemory
	if boost {
		maxDepth += sc.RelationPriorityDepthBonus
		maxAnchors += sc.RelationPriorityAnchorsBonus
		maxExpanded += sc.RelationPriorityExpandedBonus
	}

	snap.Enabled = true
	snap.BoostApplied = boost
	snap.MaxDepth = maxDepth
	snap.MaxAnchors = maxAnchors
	snap.MaxExpandedEntries = maxExpanded

	directURIs := make(map[string]bool, len(direct))
	for _, c := range direct {
		if c.ctx.URI != "" {
			directURIs[c.ctx.URI] = true
		}
	}

	anchors := selectAnchors(direct, plan, maxAnchors, sc.RelationSeedAnchorScore)
	for _, a := range anchors {
		if a.seed {
			snap.SeedAnchors++
		}
	}
	snap.Anchors = len(anchors)
	if len(anchors) == 0 || maxDepth < 1 {
		return nil
	}

	maxQueries := maxAnchors
	if q := maxExpanded * maxDepth; q > maxQueries {
		maxQueries = q
	}

	type frontier struct {
		uri         string
		depth       int
		anchorScore float64
	}
	queue := make([]frontier, 0, len(anchors))
	for _, a := range anchors {
		queue = append(queue, frontier{uri: a.uri, depth: 0, anchorScore: a.score})
	}

	queried := map[string]bool{}
	best := map[string]candidate{}

	for len(queue) > 0 && snap.RelationQueries < maxQueries {
		node := queue[0]
		queue = queue[1:]
		if node.depth >= maxDepth || queried[node.uri] {
			continue
		}
		queried[node.uri] = true
		snap.RelationQueries++

		rels, err := p.client.Relations(ctx, node.uri)
		if err != nil {
			slog.Debug("relation expansion skipped node", "uri", node.uri, "error", err)
			continue
		}
		depth := node.depth + 1
		for _, rel := range rels {
			if rel.URI == "" || directURIs[rel.URI] {
				continue
			}
			relationScore := node.anchorScore - float64(depth)*relationDepthDecay - relationBaseDecay
			if relationScore < 0 {
				relationScore = 0
			}
			kind := rel.ContextType
			if kind == "" {
				kind = inferKind(rel.URI)
			}
			rank := relationScore + rankBonus(kind, decision.Priority) - relationRankPenalty - float64(depth)*relationDepthPenalty

			prev, seen := best[rel.URI]
			if !seen && len(best) >= maxExpanded {
				continue
			}
			if !seen || rank > prev.rank {
				best[rel.URI] = candidate{
					kind:      kind,
					ctx:       viking.ContextRef{URI: rel.URI, ContextType: kind, MatchReason: rel.Reason},
					score:     relationScore,
					rank:      rank,
					origin:    originRelation,
					relFrom:   node.uri,
					relDepth:  depth,
					relReason: rel.Reason,
				}
			}
			if depth < maxDepth && !queried[rel.URI] {
				queue = append(queue, frontier{uri: rel.URI, depth: depth, anchorScore: node.anchorScore})
			}
		}
	}

	snap.Discovered = len(best)
	out := make([]candidate, 0, len(best))
	for _, c := range best {
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].rank != out[j].rank {
			return out[i].rank > out[j].rank
		}
		return out[i].ctx.URI < out[j].ctx.URI
	})
	return out
}

// selectAnchors picks BFS start points: the top direct hits by rank, then
// planner target directories as low-score seeds, deduped by URI and capped.
func selectAnchors(direct []candidate, plan *viking.QueryPlan, maxAnchors int, seedScore float64) []anchor {
	ranked := append([]candidate{}, direct...)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].rank != ranked[j].rank {
			return ranked[i].rank > ranked[j].rank
		}
		return ranked[i].score > ranked[j].score
	})

	seen := map[string]bool{}
	anchors := make([]anchor, 0, maxAnchors)
	for _, c := range ranked {
		if len(anchors) >= maxAnchors {
			return anchors
		}
		if c.ctx.URI == "" || seen[c.ctx.URI] {
			continue
		}
		seen[c.ctx.URI] = true
		anchors = append(anchors, anchor{uri: c.ctx.URI, score: c.score})
	}

	if plan != nil {
		for _, q := range plan.Queries {
			for _, dir := range q.TargetDirectories {
				if len(anchors) >= maxAnchors {
					return anchors
				}
				dir = strings.TrimSpace(dir)
				if dir == "" || seen[dir] {
					continue
				}
				seen[dir] = true
				anchors = append(anchors, anchor{uri: dir, score: seedScore, seed: true})
			}
		}
	}
	return anchors
}

// inferKind guesses a context type from URI shape when the store omits it.
func inferKind(uri string) string {
	switch {
	case strings.Contains(uri, "/skills/"):
		return viking.ContextSkill
	case strings.Contains(uri, "/session/"), strings.Contains(uri, "/memories/"):
		return viking.ContextMemory
	default:
		return viking.ContextResource
	}
}
