// Package retrieve implements the read path: planner-ranked, budgeted,
// layered retrieval from the store with optional relation expansion.
package retrieve

import (
	"strings"
	"unicode"

	"github.com/nextlevelbuilder/vikingbridge/internal/config"
	"github.com/nextlevelbuilder/vikingbridge/internal/viking"
)

// Decision is the planner's verdict for one search.
type Decision struct {
	Strategy         string `json:"strategy"`
	Reason           string `json:"reason"`
	Priority         string `json:"priority"` // memory | resource | skill
	IncludeResources bool   `json:"includeResources"`
	IncludeSkills    bool   `json:"includeSkills"`
}

// resourceSignals are query tokens that imply resource retrieval.
var resourceSignals = map[string]bool{
	"file": true, "files": true, "path": true, "readme": true,
	"markdown": true, "resource": true, "resources": true, "code": true,
	"config": true, "api": true, "document": true, "documentation": true,
	"docs": true, "doc": true, "repo": true, "repository": true,
	"folder": true, "directory": true, "json": true, "yaml": true,
	"schema": true, "changelog": true, "manifest": true, "source": true,
	"script": true,
}

// skillSignals are query tokens that imply skill retrieval.
var skillSignals = map[string]bool{
	"how": true, "plan": true, "steps": true, "step": true,
	"workflow": true, "playbook": true, "guide": true, "template": true,
	"skill": true, "skills": true, "strategy": true, "process": true,
	"procedure": true, "checklist": true, "tutorial": true, "recipe": true,
	"instructions": true, "setup": true, "howto": true, "method": true,
}

// planPriorityWeight maps a typed-query priority to a weight (1 is highest).
func planPriorityWeight(priority int) int {
	switch priority {
	case 1:
		return 5
	case 2:
		return 4
	case 3:
		return 3
	case 4:
		return 2
	default:
		return 1
	}
}

// Plan decides context-type priority from the configured strategy, the
// store's planner signals, the query lexicon, and session presence. Pure.
func Plan(cfg *config.SearchConfig, query string, hasSession bool, plan *viking.QueryPlan, results []viking.QueryResultStat) Decision {
	d := Decision{
		Strategy:         cfg.Strategy,
		Priority:         viking.ContextMemory,
		IncludeResources: cfg.IncludeResources,
		IncludeSkills:    cfg.IncludeSkills,
	}

	switch cfg.Strategy {
	case "memory_first":
		d.Reason = "configured-memory-first"
		return d
	case "resource_first":
		d.Priority = viking.ContextResource
		d.IncludeResources = true
		d.Reason = "configured-resource-first"
		return d
	case "skill_first":
		d.Priority = viking.ContextSkill
		d.IncludeSkills = true
		d.Reason = "configured-skill-first"
		return d
	}

	// Planner signals: weights by context type from the query plan and from
	// per-query result stats.
	planWeights := map[string]int{}
	if plan != nil {
		for _, q := range plan.Queries {
			if q.ContextType == "" {
				continue
			}
			planWeights[q.ContextType] += planPriorityWeight(q.Priority)
		}
	}
	resultWeights := map[string]int{}
	for _, r := range results {
		if r.ContextType == "" {
			continue
		}
		w := r.MatchedContexts
		if w < 1 {
			w = 1
		}
		if w > 5 {
			w = 5
		}
		resultWeights[r.ContextType] += w
	}

	combined := map[string]int{}
	for t, w := range planWeights {
		combined[t] += w
	}
	for t, w := range resultWeights {
		combined[t] += w
	}

	if dominant, ok := dominantType(combined); ok {
		d.Priority = dominant
		switch {
		case len(planWeights) > 0 && len(resultWeights) > 0:
			d.Reason = "auto-planner-combined"
		case len(planWeights) > 0:
			d.Reason = "auto-planner-plan"
		default:
			d.Reason = "auto-planner-results"
		}
		if hasSession {
			d.Reason += "-session"
		}
		d.IncludeResources = d.IncludeResources || combined[viking.ContextResource] > 0 || dominant == viking.ContextResource
		d.IncludeSkills = d.IncludeSkills || combined[viking.ContextSkill] > 0 || dominant == viking.ContextSkill
		return d
	}

	// Lexical heuristics over the raw query.
	resourceHits, skillHits := countSignals(query)
	switch {
	case resourceHits > skillHits:
		d.Priority = viking.ContextResource
	case skillHits > resourceHits:
		d.Priority = viking.ContextSkill
	case resourceHits > 0: // tie with both > 0
		d.Priority = viking.ContextResource
	default: // tie at zero
		d.Priority = viking.ContextMemory
	}
	d.IncludeResources = d.IncludeResources || resourceHits > 0
	d.IncludeSkills = d.IncludeSkills || skillHits > 0
	d.Reason = "auto-lexical-" + d.Priority
	if hasSession {
		d.Reason += "-session"
	}
	return d
}

// dominantType returns the context type whose weight strictly exceeds every
// other's, if any.
func dominantType(weights map[string]int) (string, bool) {
	best := ""
	bestW := 0
	unique := false
	for t, w := range weights {
		if w <= 0 {
			continue
		}
		switch {
		case w > bestW:
			best, bestW, unique = t, w, true
		case w == bestW:
			unique = false
		}
	}
	if best == "" || !unique {
		return "", false
	}
	return best, true
}

// countSignals tokenizes the query on non-alphanumeric boundaries and counts
// lexicon hits.
func countSignals(query string) (resourceHits, skillHits int) {
	tokens := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, tok := range tokens {
		if resourceSignals[tok] {
			resourceHits++
		}
		if skillSignals[tok] {
			skillHits++
		}
	}
	return resourceHits, skillHits
}
