package knowledge

import (
	"github.com/google/uuid"

	"github.com/archgraph-io/archgraph/domain/arch"
	"github.com/archgraph-io/archgraph/domain/graph"
)

// CreateRequirementRequest is the payload for creating a requirement node.
type CreateRequirementRequest struct {
	ProjectID   string   `json:"project_id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Type        string   `json:"type"`
	Priority    string   `json:"priority"`
	Status      string   `json:"status"`
	Tags        []string `json:"tags"`
}

// UpdateRequirementRequest carries the replacement attribute set. Related
// ids widen the invalidation blast radius beyond the entity itself.
type UpdateRequirementRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Type        string   `json:"type"`
	Priority    string   `json:"priority"`
	Status      string   `json:"status"`
	Tags        []string `json:"tags"`

	RelatedDecisionIDs []string `json:"related_decision_ids"`
}

// CreateDecisionRequest is the payload for creating a decision node,
// optionally linked to a stack, patterns, and the requirements it addresses.
type CreateDecisionRequest struct {
	ProjectID   string `json:"project_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Rationale   string `json:"rationale"`
	Status      string `json:"status"`

	TechnologyStackID string   `json:"technology_stack_id"`
	PatternIDs        []string `json:"pattern_ids"`
	RequirementIDs    []string `json:"requirement_ids"`
}

// UpdateDecisionRequest carries the replacement attribute set.
type UpdateDecisionRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Rationale   string `json:"rationale"`
	Status      string `json:"status"`
}

// CreateRelationshipRequest links two existing nodes with a typed edge.
type CreateRelationshipRequest struct {
	Type       string         `json:"type"`
	SourceID   string         `json:"source_id"`
	TargetID   string         `json:"target_id"`
	Properties map[string]any `json:"properties"`
	Weight     *float64       `json:"weight"`
}

// RequirementNeighborhood aggregates every relation of one requirement,
// assembled from the relationship loaders in a single request.
type RequirementNeighborhood struct {
	Requirement  *arch.Requirement        `json:"requirement"`
	Dependencies []*arch.Requirement      `json:"dependencies"`
	Conflicts    []*arch.Requirement      `json:"conflicts"`
	Similar      []arch.ScoredRequirement `json:"similar"`
}

func requirementProperties(r CreateRequirementRequest) map[string]any {
	props := map[string]any{
		"title":       r.Title,
		"description": r.Description,
		"type":        r.Type,
		"priority":    r.Priority,
		"status":      r.Status,
	}
	if len(r.Tags) > 0 {
		props["tags"] = r.Tags
	}
	return props
}

func decisionProperties(r CreateDecisionRequest) map[string]any {
	return map[string]any{
		"title":       r.Title,
		"description": r.Description,
		"rationale":   r.Rationale,
		"status":      r.Status,
	}
}

// requirementFromNode maps a freshly written node back to the read model,
// so mutation responses and cache priming agree with what loaders return.
func requirementFromNode(node *graph.GraphNode) *arch.Requirement {
	req := &arch.Requirement{
		ID:          node.ID.String(),
		Title:       stringProp(node.Properties, "title"),
		Description: stringProp(node.Properties, "description"),
		Type:        stringProp(node.Properties, "type"),
		Priority:    stringProp(node.Properties, "priority"),
		Status:      stringProp(node.Properties, "status"),
		Tags:        stringListProp(node.Properties, "tags"),
		CreatedAt:   node.CreatedAt,
		UpdatedAt:   node.UpdatedAt,
	}
	if node.ProjectID != nil {
		req.ProjectID = node.ProjectID.String()
	}
	return req
}

func decisionFromNode(node *graph.GraphNode) *arch.ArchitectureDecision {
	d := &arch.ArchitectureDecision{
		ID:          node.ID.String(),
		Title:       stringProp(node.Properties, "title"),
		Description: stringProp(node.Properties, "description"),
		Rationale:   stringProp(node.Properties, "rationale"),
		Status:      stringProp(node.Properties, "status"),
		CreatedAt:   node.CreatedAt,
		UpdatedAt:   node.UpdatedAt,
	}
	if node.ProjectID != nil {
		d.ProjectID = node.ProjectID.String()
	}
	return d
}

func stringProp(props map[string]any, key string) string {
	if v, ok := props[key].(string); ok {
		return v
	}
	return ""
}

func stringListProp(props map[string]any, key string) []string {
	switch v := props[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func parseUUID(id string) (uuid.UUID, bool) {
	parsed, err := uuid.Parse(id)
	return parsed, err == nil
}

func optionalUUID(id string) *uuid.UUID {
	if id == "" {
		return nil
	}
	if parsed, ok := parseUUID(id); ok {
		return &parsed
	}
	return nil
}
