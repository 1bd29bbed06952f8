package loaders

import (
	"context"
	"log/slog"
	"time"

	"github.com/uptrace/bun/dialect/pgdialect"

	"github.com/archgraph-io/archgraph/domain/arch"
	"github.com/archgraph-io/archgraph/domain/graph"
)

// Entity loaders translate a deduplicated id set into typed entities with
// exactly one graph query per batch. Results come back in requested order;
// an id with no matching row maps to nil, which is not an error.

// newEntityBatch builds a BatchFunc for one node kind. mapRow converts a
// raw row into (id, entity); a mapping failure is a contract error for the
// whole batch.
func newEntityBatch[E any](exec graph.Executor, query string, mapRow func(graph.Row) (string, *E, error)) BatchFunc[*E] {
	return func(ctx context.Context, keys []string) ([]Result[*E], error) {
		rows, err := exec.ExecuteQuery(ctx, query, pgdialect.Array(keys))
		if err != nil {
			return nil, err
		}

		byID := make(map[string]*E, len(rows))
		for _, row := range rows {
			id, entity, err := mapRow(row)
			if err != nil {
				return nil, err
			}
			byID[id] = entity
		}

		results := make([]Result[*E], len(keys))
		for i, key := range keys {
			results[i] = Result[*E]{Value: byID[key]}
		}
		return results, nil
	}
}

const requirementQuery = `
SELECT gn.id::text AS id, gn.project_id::text AS project_id,
       gn.properties, gn.created_at, gn.updated_at
FROM kb.graph_nodes gn
WHERE gn.type = 'Requirement'
  AND gn.deleted_at IS NULL
  AND gn.id::text = ANY(?)`

// NewRequirementLoader creates the Requirement entity loader.
func NewRequirementLoader(exec graph.Executor, metrics *Collector, log *slog.Logger, cfg Config) (*Loader[*arch.Requirement], error) {
	return New(cfg, newEntityBatch(exec, requirementQuery, mapRequirement), metrics, log)
}

func mapRequirement(row graph.Row) (string, *arch.Requirement, error) {
	id, err := rowString(row, "id")
	if err != nil {
		return "", nil, err
	}
	projectID, err := rowStringOpt(row, "project_id")
	if err != nil {
		return "", nil, err
	}
	props, err := rowProps(row, "properties")
	if err != nil {
		return "", nil, err
	}
	createdAt, err := rowTime(row, "created_at")
	if err != nil {
		return "", nil, err
	}
	updatedAt, err := rowTime(row, "updated_at")
	if err != nil {
		return "", nil, err
	}

	return id, &arch.Requirement{
		ID:          id,
		ProjectID:   projectID,
		Title:       propString(props, "title"),
		Description: propString(props, "description"),
		Type:        propString(props, "type"),
		Priority:    propString(props, "priority"),
		Status:      propString(props, "status"),
		Tags:        propStringList(props, "tags"),
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
	}, nil
}

// The decision query pulls the referenced technology stack and pattern
// names in the same round trip; attaching them at map time keeps the
// one-query-per-batch contract.
const decisionQuery = `
SELECT gn.id::text AS id, gn.project_id::text AS project_id,
       gn.properties, gn.created_at, gn.updated_at,
       ts.id AS stack_id, ts.properties AS stack_properties,
       ts.created_at AS stack_created_at, ts.updated_at AS stack_updated_at,
       COALESCE(pat.names, '[]'::jsonb) AS pattern_names
FROM kb.graph_nodes gn
LEFT JOIN LATERAL (
    SELECT n.id::text AS id, n.properties, n.created_at, n.updated_at
    FROM kb.graph_edges e
    JOIN kb.graph_nodes n ON n.id = e.dst_id
    WHERE e.src_id = gn.id AND e.type = 'USES_STACK'
      AND e.deleted_at IS NULL AND n.deleted_at IS NULL
    ORDER BY e.created_at DESC
    LIMIT 1
) ts ON true
LEFT JOIN LATERAL (
    SELECT jsonb_agg(n.properties -> 'name') AS names
    FROM kb.graph_edges e
    JOIN kb.graph_nodes n ON n.id = e.dst_id
    WHERE e.src_id = gn.id AND e.type = 'APPLIES_PATTERN'
      AND e.deleted_at IS NULL AND n.deleted_at IS NULL
) pat ON true
WHERE gn.type = 'ArchitectureDecision'
  AND gn.deleted_at IS NULL
  AND gn.id::text = ANY(?)`

// NewDecisionLoader creates the ArchitectureDecision entity loader.
func NewDecisionLoader(exec graph.Executor, metrics *Collector, log *slog.Logger, cfg Config) (*Loader[*arch.ArchitectureDecision], error) {
	return New(cfg, newEntityBatch(exec, decisionQuery, mapDecision), metrics, log)
}

func mapDecision(row graph.Row) (string, *arch.ArchitectureDecision, error) {
	id, err := rowString(row, "id")
	if err != nil {
		return "", nil, err
	}
	projectID, err := rowStringOpt(row, "project_id")
	if err != nil {
		return "", nil, err
	}
	props, err := rowProps(row, "properties")
	if err != nil {
		return "", nil, err
	}
	createdAt, err := rowTime(row, "created_at")
	if err != nil {
		return "", nil, err
	}
	updatedAt, err := rowTime(row, "updated_at")
	if err != nil {
		return "", nil, err
	}
	patterns, err := rowStringList(row, "pattern_names")
	if err != nil {
		return "", nil, err
	}

	decision := &arch.ArchitectureDecision{
		ID:          id,
		ProjectID:   projectID,
		Title:       propString(props, "title"),
		Description: propString(props, "description"),
		Rationale:   propString(props, "rationale"),
		Status:      propString(props, "status"),
		Patterns:    patterns,
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
	}

	stackID, err := rowStringOpt(row, "stack_id")
	if err != nil {
		return "", nil, err
	}
	if stackID != "" {
		stackProps, err := rowProps(row, "stack_properties")
		if err != nil {
			return "", nil, err
		}
		stackCreated, err := rowTime(row, "stack_created_at")
		if err != nil {
			return "", nil, err
		}
		stackUpdated, err := rowTime(row, "stack_updated_at")
		if err != nil {
			return "", nil, err
		}
		decision.Stack = stackFromProps(stackID, stackProps, stackCreated, stackUpdated)
	}

	return id, decision, nil
}

const patternQuery = `
SELECT gn.id::text AS id, gn.properties, gn.created_at, gn.updated_at
FROM kb.graph_nodes gn
WHERE gn.type = 'ArchitecturePattern'
  AND gn.deleted_at IS NULL
  AND gn.id::text = ANY(?)`

// NewPatternLoader creates the ArchitecturePattern entity loader.
// Patterns change rarely, so factories give this loader a long TTL.
func NewPatternLoader(exec graph.Executor, metrics *Collector, log *slog.Logger, cfg Config) (*Loader[*arch.ArchitecturePattern], error) {
	return New(cfg, newEntityBatch(exec, patternQuery, mapPattern), metrics, log)
}

func mapPattern(row graph.Row) (string, *arch.ArchitecturePattern, error) {
	id, err := rowString(row, "id")
	if err != nil {
		return "", nil, err
	}
	props, err := rowProps(row, "properties")
	if err != nil {
		return "", nil, err
	}
	createdAt, err := rowTime(row, "created_at")
	if err != nil {
		return "", nil, err
	}
	updatedAt, err := rowTime(row, "updated_at")
	if err != nil {
		return "", nil, err
	}

	return id, &arch.ArchitecturePattern{
		ID:            id,
		Name:          propString(props, "name"),
		Category:      propString(props, "category"),
		Description:   propString(props, "description"),
		Applicability: propString(props, "applicability"),
		Benefits:      propStringList(props, "benefits"),
		Drawbacks:     propStringList(props, "drawbacks"),
		CreatedAt:     createdAt,
		UpdatedAt:     updatedAt,
	}, nil
}

const technologyStackQuery = `
SELECT gn.id::text AS id, gn.properties, gn.created_at, gn.updated_at
FROM kb.graph_nodes gn
WHERE gn.type = 'TechnologyStack'
  AND gn.deleted_at IS NULL
  AND gn.id::text = ANY(?)`

// NewTechnologyStackLoader creates the TechnologyStack entity loader.
func NewTechnologyStackLoader(exec graph.Executor, metrics *Collector, log *slog.Logger, cfg Config) (*Loader[*arch.TechnologyStack], error) {
	return New(cfg, newEntityBatch(exec, technologyStackQuery, mapTechnologyStack), metrics, log)
}

func mapTechnologyStack(row graph.Row) (string, *arch.TechnologyStack, error) {
	id, err := rowString(row, "id")
	if err != nil {
		return "", nil, err
	}
	props, err := rowProps(row, "properties")
	if err != nil {
		return "", nil, err
	}
	createdAt, err := rowTime(row, "created_at")
	if err != nil {
		return "", nil, err
	}
	updatedAt, err := rowTime(row, "updated_at")
	if err != nil {
		return "", nil, err
	}

	return id, stackFromProps(id, props, createdAt, updatedAt), nil
}

func stackFromProps(id string, props map[string]any, createdAt, updatedAt time.Time) *arch.TechnologyStack {
	return &arch.TechnologyStack{
		ID:             id,
		Name:           propString(props, "name"),
		Frontend:       propStringList(props, "frontend"),
		Backend:        propStringList(props, "backend"),
		Database:       propStringList(props, "database"),
		Infrastructure: propStringList(props, "infrastructure"),
		CreatedAt:      createdAt,
		UpdatedAt:      updatedAt,
	}
}

const userQuery = `
SELECT gn.id::text AS id, gn.properties, gn.created_at, gn.updated_at
FROM kb.graph_nodes gn
WHERE gn.type = 'User'
  AND gn.deleted_at IS NULL
  AND gn.id::text = ANY(?)`

// NewUserLoader creates the User entity loader.
func NewUserLoader(exec graph.Executor, metrics *Collector, log *slog.Logger, cfg Config) (*Loader[*arch.User], error) {
	return New(cfg, newEntityBatch(exec, userQuery, mapUser), metrics, log)
}

func mapUser(row graph.Row) (string, *arch.User, error) {
	id, err := rowString(row, "id")
	if err != nil {
		return "", nil, err
	}
	props, err := rowProps(row, "properties")
	if err != nil {
		return "", nil, err
	}
	createdAt, err := rowTime(row, "created_at")
	if err != nil {
		return "", nil, err
	}
	updatedAt, err := rowTime(row, "updated_at")
	if err != nil {
		return "", nil, err
	}

	return id, &arch.User{
		ID:        id,
		Email:     propString(props, "email"),
		Name:      propString(props, "name"),
		Role:      propString(props, "role"),
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}, nil
}
