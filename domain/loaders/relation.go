package loaders

import (
	"context"
	"log/slog"
	"sort"

	"github.com/uptrace/bun/dialect/pgdialect"

	"github.com/archgraph-io/archgraph/domain/arch"
	"github.com/archgraph-io/archgraph/domain/graph"
)

// Collection loaders resolve one-to-many traversals: all requirements of a
// project, the requirements a decision addresses, and the dependency,
// conflict, and similarity neighborhoods of a requirement. A key with no
// matching rows resolves to an empty slice, never nil.

// newListBatch builds a BatchFunc that groups rows by their for_id column.
// The query takes the key array nArgs times (UNION ALL queries bind it once
// per branch).
func newListBatch[V any](exec graph.Executor, query string, nArgs int, mapRow func(graph.Row) (string, V, error)) BatchFunc[[]V] {
	return func(ctx context.Context, keys []string) ([]Result[[]V], error) {
		args := make([]any, nArgs)
		for i := range args {
			args[i] = pgdialect.Array(keys)
		}
		rows, err := exec.ExecuteQuery(ctx, query, args...)
		if err != nil {
			return nil, err
		}

		byKey := make(map[string][]V, len(keys))
		for _, row := range rows {
			forID, item, err := mapRow(row)
			if err != nil {
				return nil, err
			}
			byKey[forID] = append(byKey[forID], item)
		}

		results := make([]Result[[]V], len(keys))
		for i, key := range keys {
			items := byKey[key]
			if items == nil {
				items = []V{}
			}
			results[i] = Result[[]V]{Value: items}
		}
		return results, nil
	}
}

func mapRequirementFor(row graph.Row) (string, *arch.Requirement, error) {
	forID, err := rowString(row, "for_id")
	if err != nil {
		return "", nil, err
	}
	_, req, err := mapRequirement(row)
	return forID, req, err
}

const requirementsByProjectQuery = `
SELECT gn.project_id::text AS for_id, gn.id::text AS id,
       gn.project_id::text AS project_id,
       gn.properties, gn.created_at, gn.updated_at
FROM kb.graph_nodes gn
WHERE gn.type = 'Requirement'
  AND gn.deleted_at IS NULL
  AND gn.project_id::text = ANY(?)
ORDER BY gn.created_at`

// NewRequirementsByProjectLoader loads every requirement of a project,
// keyed by project id.
func NewRequirementsByProjectLoader(exec graph.Executor, metrics *Collector, log *slog.Logger, cfg Config) (*Loader[[]*arch.Requirement], error) {
	return New(cfg, newListBatch(exec, requirementsByProjectQuery, 1, mapRequirementFor), metrics, log)
}

const requirementIDsByDecisionQuery = `
SELECT e.src_id::text AS for_id, e.dst_id::text AS requirement_id
FROM kb.graph_edges e
JOIN kb.graph_nodes gn ON gn.id = e.dst_id
WHERE e.type = 'ADDRESSES'
  AND e.deleted_at IS NULL
  AND gn.type = 'Requirement'
  AND gn.deleted_at IS NULL
  AND e.src_id::text = ANY(?)
ORDER BY e.created_at`

// NewRequirementsByDecisionLoader loads the requirements a decision
// addresses. It resolves edge targets with an id-only query and delegates
// entity hydration to the requirement loader, so the two loaders share one
// cache and one batch window for requirement bodies.
func NewRequirementsByDecisionLoader(exec graph.Executor, requirements *Loader[*arch.Requirement], metrics *Collector, log *slog.Logger, cfg Config) (*Loader[[]*arch.Requirement], error) {
	fetch := func(ctx context.Context, keys []string) ([]Result[[]*arch.Requirement], error) {
		rows, err := exec.ExecuteQuery(ctx, requirementIDsByDecisionQuery, pgdialect.Array(keys))
		if err != nil {
			return nil, err
		}

		idsByDecision := make(map[string][]string, len(keys))
		var unique []string
		seen := make(map[string]struct{})
		for _, row := range rows {
			decisionID, err := rowString(row, "for_id")
			if err != nil {
				return nil, err
			}
			reqID, err := rowString(row, "requirement_id")
			if err != nil {
				return nil, err
			}
			idsByDecision[decisionID] = append(idsByDecision[decisionID], reqID)
			if _, ok := seen[reqID]; !ok {
				seen[reqID] = struct{}{}
				unique = append(unique, reqID)
			}
		}

		hydrated := requirements.LoadMany(ctx, unique)
		byID := make(map[string]Result[*arch.Requirement], len(unique))
		for i, id := range unique {
			byID[id] = hydrated[i]
		}

		results := make([]Result[[]*arch.Requirement], len(keys))
		for i, decisionID := range keys {
			reqs := []*arch.Requirement{}
			var keyErr error
			for _, reqID := range idsByDecision[decisionID] {
				r := byID[reqID]
				if r.Err != nil {
					keyErr = r.Err
					break
				}
				if r.Value != nil {
					reqs = append(reqs, r.Value)
				}
			}
			if keyErr != nil {
				results[i] = Result[[]*arch.Requirement]{Err: keyErr}
				continue
			}
			results[i] = Result[[]*arch.Requirement]{Value: reqs}
		}
		return results, nil
	}
	return New(cfg, fetch, metrics, log)
}

const dependenciesQuery = `
SELECT e.src_id::text AS for_id, gn.id::text AS id,
       gn.project_id::text AS project_id,
       gn.properties, gn.created_at, gn.updated_at
FROM kb.graph_edges e
JOIN kb.graph_nodes gn ON gn.id = e.dst_id
WHERE e.type = 'DEPENDS_ON'
  AND e.deleted_at IS NULL
  AND gn.type = 'Requirement'
  AND gn.deleted_at IS NULL
  AND e.src_id::text = ANY(?)
ORDER BY gn.created_at`

// NewDependenciesLoader loads the requirements a requirement depends on
// (outgoing DEPENDS_ON edges only; reverse dependents go through the
// relationship loader with direction "in").
func NewDependenciesLoader(exec graph.Executor, metrics *Collector, log *slog.Logger, cfg Config) (*Loader[[]*arch.Requirement], error) {
	return New(cfg, newListBatch(exec, dependenciesQuery, 1, mapRequirementFor), metrics, log)
}

// Conflicts are symmetric: an edge stored in either direction counts for
// both endpoints, hence the UNION ALL over src and dst.
const conflictsQuery = `
SELECT x.for_id, gn.id::text AS id,
       gn.project_id::text AS project_id,
       gn.properties, gn.created_at, gn.updated_at
FROM (
    SELECT e.src_id::text AS for_id, e.dst_id AS other_id
    FROM kb.graph_edges e
    WHERE e.type = 'CONFLICTS_WITH' AND e.deleted_at IS NULL
      AND e.src_id::text = ANY(?)
    UNION ALL
    SELECT e.dst_id::text, e.src_id
    FROM kb.graph_edges e
    WHERE e.type = 'CONFLICTS_WITH' AND e.deleted_at IS NULL
      AND e.dst_id::text = ANY(?)
) x
JOIN kb.graph_nodes gn ON gn.id = x.other_id
WHERE gn.type = 'Requirement'
  AND gn.deleted_at IS NULL
ORDER BY gn.created_at`

// NewConflictsLoader loads the requirements in conflict with a requirement,
// regardless of which endpoint the edge was stored on.
func NewConflictsLoader(exec graph.Executor, metrics *Collector, log *slog.Logger, cfg Config) (*Loader[[]*arch.Requirement], error) {
	return New(cfg, newListBatch(exec, conflictsQuery, 2, mapRequirementFor), metrics, log)
}

const similarQuery = `
SELECT x.for_id, x.score, gn.id::text AS id,
       gn.project_id::text AS project_id,
       gn.properties, gn.created_at, gn.updated_at
FROM (
    SELECT e.src_id::text AS for_id, e.dst_id AS other_id, e.weight AS score
    FROM kb.graph_edges e
    WHERE e.type = 'SIMILAR_TO' AND e.deleted_at IS NULL
      AND e.src_id::text = ANY(?)
    UNION ALL
    SELECT e.dst_id::text, e.src_id, e.weight
    FROM kb.graph_edges e
    WHERE e.type = 'SIMILAR_TO' AND e.deleted_at IS NULL
      AND e.dst_id::text = ANY(?)
) x
JOIN kb.graph_nodes gn ON gn.id = x.other_id
WHERE gn.type = 'Requirement'
  AND gn.deleted_at IS NULL`

func mapScoredRequirement(row graph.Row) (string, arch.ScoredRequirement, error) {
	forID, err := rowString(row, "for_id")
	if err != nil {
		return "", arch.ScoredRequirement{}, err
	}
	score, err := rowFloat(row, "score")
	if err != nil {
		return "", arch.ScoredRequirement{}, err
	}
	_, req, err := mapRequirement(row)
	if err != nil {
		return "", arch.ScoredRequirement{}, err
	}
	return forID, arch.ScoredRequirement{Requirement: req, Score: score}, nil
}

// NewSimilarRequirementsLoader loads similarity neighbors with their edge
// weight as the score, most similar first.
func NewSimilarRequirementsLoader(exec graph.Executor, metrics *Collector, log *slog.Logger, cfg Config) (*Loader[[]arch.ScoredRequirement], error) {
	base := newListBatch(exec, similarQuery, 2, mapScoredRequirement)
	fetch := func(ctx context.Context, keys []string) ([]Result[[]arch.ScoredRequirement], error) {
		results, err := base(ctx, keys)
		if err != nil {
			return nil, err
		}
		for _, r := range results {
			sort.SliceStable(r.Value, func(i, j int) bool {
				return r.Value[i].Score > r.Value[j].Score
			})
		}
		return results, nil
	}
	return New(cfg, fetch, metrics, log)
}
