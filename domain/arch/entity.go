// Package arch defines the architecture-knowledge entities served by the
// loader subsystem. Entities are materialized from property-graph rows at
// load time; they are read models and are never persisted back as-is.
package arch

import "time"

// Requirement is a single product or system requirement.
type Requirement struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"project_id,omitempty"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Type        string    `json:"type,omitempty"`
	Priority    string    `json:"priority,omitempty"`
	Status      string    `json:"status,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ArchitectureDecision records a decision made for a project, together with
// the technology stack and pattern names it references. Stack and Patterns
// are denormalized from the same graph query that fetched the decision.
type ArchitectureDecision struct {
	ID          string           `json:"id"`
	ProjectID   string           `json:"project_id,omitempty"`
	Title       string           `json:"title"`
	Description string           `json:"description,omitempty"`
	Rationale   string           `json:"rationale,omitempty"`
	Status      string           `json:"status,omitempty"`
	Stack       *TechnologyStack `json:"technology_stack,omitempty"`
	Patterns    []string         `json:"patterns,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// ArchitecturePattern is a reusable architecture pattern (e.g. CQRS,
// event sourcing). Patterns change rarely and are cached with a long TTL.
type ArchitecturePattern struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Category      string    `json:"category,omitempty"`
	Description   string    `json:"description,omitempty"`
	Applicability string    `json:"applicability,omitempty"`
	Benefits      []string  `json:"benefits,omitempty"`
	Drawbacks     []string  `json:"drawbacks,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TechnologyStack describes a set of technologies per layer.
type TechnologyStack struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Frontend       []string  `json:"frontend,omitempty"`
	Backend        []string  `json:"backend,omitempty"`
	Database       []string  `json:"database,omitempty"`
	Infrastructure []string  `json:"infrastructure,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// User is an account that owns or edits knowledge-base content.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	Role      string    `json:"role,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Relationship is a typed edge between two graph nodes. The store keeps
// edges directed; loaders symmetrize them for the queried node, so SourceID
// is not necessarily the node the edge was requested for.
type Relationship struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	SourceID   string         `json:"source_id"`
	TargetID   string         `json:"target_id"`
	Properties map[string]any `json:"properties,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// ScoredRequirement pairs a requirement with a similarity score.
// Collections of these are sorted by descending score.
type ScoredRequirement struct {
	Requirement *Requirement `json:"requirement"`
	Score       float64      `json:"score"`
}
