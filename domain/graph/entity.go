package graph

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Node type names used across the knowledge base.
const (
	NodeRequirement          = "Requirement"
	NodeArchitectureDecision = "ArchitectureDecision"
	NodeArchitecturePattern  = "ArchitecturePattern"
	NodeTechnologyStack      = "TechnologyStack"
	NodeUser                 = "User"
)

// Edge type names.
const (
	EdgeAddresses      = "ADDRESSES"       // decision -> requirement
	EdgeDependsOn      = "DEPENDS_ON"      // requirement -> requirement
	EdgeConflictsWith  = "CONFLICTS_WITH"  // requirement <-> requirement
	EdgeSimilarTo      = "SIMILAR_TO"      // requirement <-> requirement, weighted
	EdgeUsesStack      = "USES_STACK"      // decision -> technology stack
	EdgeAppliesPattern = "APPLIES_PATTERN" // decision -> pattern
)

// GraphNode is a property-graph node. All entity kinds share this table;
// the Type column discriminates, domain attributes live in Properties.
type GraphNode struct {
	bun.BaseModel `bun:"table:kb.graph_nodes,alias:gn"`

	ID         uuid.UUID      `bun:"id,pk,type:uuid,default:uuid_generate_v4()" json:"id"`
	ProjectID  *uuid.UUID     `bun:"project_id,type:uuid" json:"project_id,omitempty"`
	Type       string         `bun:"type,notnull" json:"type"`
	Properties map[string]any `bun:"properties,type:jsonb,notnull,default:'{}'" json:"properties"`
	Labels     []string       `bun:"labels,array,notnull,default:'{}'" json:"labels"`

	CreatedAt time.Time  `bun:"created_at,notnull,default:now()" json:"created_at"`
	UpdatedAt time.Time  `bun:"updated_at,notnull,default:now()" json:"updated_at"`
	DeletedAt *time.Time `bun:"deleted_at" json:"deleted_at,omitempty"`
}

// GraphEdge is a directed, typed edge between two nodes.
type GraphEdge struct {
	bun.BaseModel `bun:"table:kb.graph_edges,alias:ge"`

	ID         uuid.UUID      `bun:"id,pk,type:uuid,default:uuid_generate_v4()" json:"id"`
	Type       string         `bun:"type,notnull" json:"type"`
	SrcID      uuid.UUID      `bun:"src_id,type:uuid,notnull" json:"src_id"`
	DstID      uuid.UUID      `bun:"dst_id,type:uuid,notnull" json:"dst_id"`
	Properties map[string]any `bun:"properties,type:jsonb,notnull,default:'{}'" json:"properties"`
	Weight     *float64       `bun:"weight" json:"weight,omitempty"`

	CreatedAt time.Time  `bun:"created_at,notnull,default:now()" json:"created_at"`
	DeletedAt *time.Time `bun:"deleted_at" json:"deleted_at,omitempty"`
}
