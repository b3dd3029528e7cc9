package retrieve

import (
	"context"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/nextlevelbuilder/vikingbridge/internal/config"
	"github.com/nextlevelbuilder/vikingbridge/internal/sessionlink"
	"github.com/nextlevelbuilder/vikingbridge/internal/viking"
)

// StoreClient is the slice of the viking client the pipeline needs.
type StoreClient interface {
	Search(ctx context.Context, req viking.SearchRequest) (*viking.SearchResult, error)
	Find(ctx context.Context, req viking.SearchRequest) (*viking.SearchResult, error)
	Relations(ctx context.Context, uri string) ([]viking.RelationEntry, error)
	Read(ctx context.Context, uri string) (string, error)
	Abstract(ctx context.Context, uri string) (string, error)
	Overview(ctx context.Context, uri string) (string, error)
	Endpoint() string
}

// SearchOptions tunes one retrieval.
type SearchOptions struct {
	MaxResults int
	MinScore   *float64
	SessionKey string
}

// Result is one ranked snippet fit for prompt injection.
type Result struct {
	Path      string  `json:"path"`
	StartLine int     `json:"startLine"`
	EndLine   int     `json:"endLine"`
	Score     float64 `json:"score"`
	Snippet   string  `json:"snippet"`
	Source    string  `json:"source"`
}

// Candidate origins.
const (
	originDirect   = "direct"
	originRelation = "relation"
)

// candidate is a transient per-search ranking record.
type candidate struct {
	kind      string // memory | resource | skill
	ctx       viking.ContextRef
	score     float64
	rank      float64
	origin    string
	relFrom   string
	relDepth  int
	relReason string
}

// Pipeline executes retrievals for one (agentID, endpoint).
type Pipeline struct {
	agentID string
	cfg     *config.MemoryConfig
	client  StoreClient
	links   *sessionlink.Registry // may be nil
	diag    *Diagnostics          // may be nil
}

// NewPipeline wires a read pipeline.
func NewPipeline(agentID string, cfg *config.MemoryConfig, client StoreClient, links *sessionlink.Registry, diag *Diagnostics) *Pipeline {
	return &Pipeline{agentID: agentID, cfg: cfg, client: client, links: links, diag: diag}
}

// rankBonus favors the planner's priority kind; memory keeps a small edge
// otherwise.
func rankBonus(kind, priority string) float64 {
	switch {
	case kind == priority:
		return 0.15
	case kind == viking.ContextMemory:
		return 0.05
	default:
		return 0
	}
}

// Search runs one complete retrieval: primary search, planning, gathering,
// fallback, ranking, optional relation expansion, filter/sort, and layered
// snippet assembly under the injection budget.
func (p *Pipeline) Search(ctx context.Context, query string, opts SearchOptions) ([]Result, error) {
	ctx, span := otel.Tracer("vikingbridge/retrieve").Start(ctx, "pipeline.search")
	defer span.End()

	// Phase A: primary search.
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	sc := &p.cfg.Search
	limit := sc.Limit
	if opts.MaxResults > 0 && opts.MaxResults < limit {
		limit = opts.MaxResults
	}
	threshold := sc.ScoreThreshold
	if opts.MinScore != nil {
		threshold = opts.MinScore
	}

	sessionID := ""
	if opts.SessionKey != "" && p.links != nil {
		if id, err := p.links.StoreSessionID(opts.SessionKey); err == nil {
			sessionID = id
		}
	}

	req := viking.SearchRequest{
		Query:          query,
		TargetURI:      sc.TargetURI,
		SessionID:      sessionID,
		Limit:          limit,
		ScoreThreshold: threshold,
	}
	res, err := p.client.Search(ctx, req)
	if err != nil {
		return nil, err
	}

	// Phase B: planning.
	decision := Plan(sc, query, opts.SessionKey != "", res.QueryPlan, res.QueryResults)

	snap := Snapshot{Strategy: decision}
	snap.Explain.Query = query
	if res.QueryPlan != nil {
		snap.Explain.TypedQueries = res.QueryPlan.Queries
		for i, q := range res.QueryPlan.Queries {
			if i >= 5 {
				break
			}
			snap.Explain.TopQueries = append(snap.Explain.TopQueries, q.Query)
		}
	}

	// Phase C: context gathering.
	contexts := gatherContexts(res, decision)

	// Phase D: fallback to keyword find.
	queryPlan := res.QueryPlan
	if len(contexts) == 0 {
		if fb, err := p.client.Find(ctx, req); err == nil {
			contexts = gatherContexts(fb, decision)
			snap.Explain.FallbackKind = "find"
			snap.Explain.FallbackHits = len(contexts)
			if queryPlan == nil {
				queryPlan = fb.QueryPlan
			}
		}
	}

	// Phase E: direct ranking.
	direct := make([]candidate, 0, len(contexts))
	for _, tc := range contexts {
		score := 0.0
		if tc.ctx.Score != nil {
			score = *tc.ctx.Score
		}
		direct = append(direct, candidate{
			kind:   tc.kind,
			ctx:    tc.ctx,
			score:  score,
			rank:   score + rankBonus(tc.kind, decision.Priority),
			origin: originDirect,
		})
	}

	// Phase F: relation expansion.
	var related []candidate
	if sc.RelationExpansion {
		related = p.expandRelations(ctx, direct, queryPlan, decision, &snap.Relation)
	} else {
		snap.Relation.Enabled = false
	}

	// Phase G: filter and sort.
	combined := append(append([]candidate{}, direct...), related...)
	filtered := combined
	if opts.MinScore != nil {
		filtered = filtered[:0]
		for _, c := range combined {
			if c.score >= *opts.MinScore {
				filtered = append(filtered, c)
			}
		}
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		if filtered[i].rank != filtered[j].rank {
			return filtered[i].rank > filtered[j].rank
		}
		return filtered[i].score > filtered[j].score
	})

	hardLimit := limit
	if sc.MaxEntries < hardLimit {
		hardLimit = sc.MaxEntries
	}
	if hardLimit < 1 {
		hardLimit = 1
	}
	selected := filtered
	if len(selected) > hardLimit {
		selected = selected[:hardLimit]
	}

	snap.Ranking = RankingSnapshot{
		TotalCandidates:     len(combined),
		DirectCandidates:    len(direct),
		RelationCandidates:  len(related),
		FilteredCandidates:  len(filtered),
		SelectedCandidates:  len(selected),
		DroppedByMaxEntries: len(filtered) - len(selected),
	}

	// Phase H: layered snippet assembly.
	results := p.assembleSnippets(ctx, selected, &snap)

	snap.Ranking.EmittedCandidates = len(results)
	snap.Explain.ResultCount = len(results)
	p.diag.record(p.agentID, p.client.Endpoint(), snap)

	span.SetAttributes(
		attribute.Int("search.candidates", len(combined)),
		attribute.Int("search.results", len(results)),
		attribute.String("search.priority", decision.Priority),
	)
	return results, nil
}

type typedContext struct {
	kind string
	ctx  viking.ContextRef
}

// gatherContexts concatenates memories (always), then resources and skills
// when the decision includes them.
func gatherContexts(res *viking.SearchResult, decision Decision) []typedContext {
	if res == nil {
		return nil
	}
	var out []typedContext
	for _, c := range res.Memories {
		out = append(out, typedContext{kind: viking.ContextMemory, ctx: c})
	}
	if decision.IncludeResources {
		for _, c := range res.Resources {
			out = append(out, typedContext{kind: viking.ContextResource, ctx: c})
		}
	}
	if decision.IncludeSkills {
		for _, c := range res.Skills {
			out = append(out, typedContext{kind: viking.ContextSkill, ctx: c})
		}
	}
	return out
}

// Diagnostics exposes the diagnostics store (may be nil).
func (p *Pipeline) Diagnostics() *Diagnostics { return p.diag }

// LastSnapshot returns the diagnostics of the most recent search.
func (p *Pipeline) LastSnapshot() (Snapshot, bool) {
	return p.diag.Last(p.agentID, p.client.Endpoint())
}
