package knowledge

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/archgraph-io/archgraph/domain/graph"
)

func TestRequirementProperties(t *testing.T) {
	props := requirementProperties(CreateRequirementRequest{
		Title:    "Support offline mode",
		Type:     "functional",
		Priority: "high",
		Status:   "draft",
		Tags:     []string{"mobile", "sync"},
	})

	assert.Equal(t, "Support offline mode", props["title"])
	assert.Equal(t, "high", props["priority"])
	assert.Equal(t, []string{"mobile", "sync"}, props["tags"])
}

func TestRequirementProperties_NoTagsKey(t *testing.T) {
	props := requirementProperties(CreateRequirementRequest{Title: "t"})

	_, ok := props["tags"]
	assert.False(t, ok, "empty tag list should not be written as a property")
}

func TestRequirementFromNode(t *testing.T) {
	projectID := uuid.New()
	now := time.Now().UTC()
	node := &graph.GraphNode{
		ID:        uuid.New(),
		Type:      graph.NodeRequirement,
		ProjectID: &projectID,
		Properties: map[string]any{
			"title":    "Support offline mode",
			"priority": "high",
			"status":   "draft",
			// jsonb round trips lists as []any
			"tags": []any{"mobile", "sync"},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	req := requirementFromNode(node)
	require.NotNil(t, req)

	assert.Equal(t, node.ID.String(), req.ID)
	assert.Equal(t, projectID.String(), req.ProjectID)
	assert.Equal(t, "Support offline mode", req.Title)
	assert.Equal(t, []string{"mobile", "sync"}, req.Tags)
	assert.Equal(t, now, req.CreatedAt)
}

func TestDecisionFromNode_NoProject(t *testing.T) {
	node := &graph.GraphNode{
		ID:   uuid.New(),
		Type: graph.NodeArchitectureDecision,
		Properties: map[string]any{
			"title":     "Adopt event sourcing",
			"rationale": "auditability",
		},
	}

	d := decisionFromNode(node)
	require.NotNil(t, d)

	assert.Empty(t, d.ProjectID)
	assert.Equal(t, "Adopt event sourcing", d.Title)
	assert.Equal(t, "auditability", d.Rationale)
}

func TestStringListProp(t *testing.T) {
	props := map[string]any{
		"strings": []string{"a", "b"},
		"anys":    []any{"a", 3, "b"},
		"scalar":  "not a list",
	}

	assert.Equal(t, []string{"a", "b"}, stringListProp(props, "strings"))
	assert.Equal(t, []string{"a", "b"}, stringListProp(props, "anys"))
	assert.Nil(t, stringListProp(props, "scalar"))
	assert.Nil(t, stringListProp(props, "missing"))
}

func TestParseUUID(t *testing.T) {
	id := uuid.New()

	parsed, ok := parseUUID(id.String())
	require.True(t, ok)
	assert.Equal(t, id, parsed)

	_, ok = parseUUID("not-a-uuid")
	assert.False(t, ok)
}

func TestOptionalUUID(t *testing.T) {
	id := uuid.New()

	assert.Nil(t, optionalUUID(""))
	assert.Nil(t, optionalUUID("garbage"))

	got := optionalUUID(id.String())
	require.NotNil(t, got)
	assert.Equal(t, id, *got)
}
