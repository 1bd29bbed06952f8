package loaders

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/archgraph-io/archgraph/domain/graph"
	"github.com/archgraph-io/archgraph/pkg/logger"
)

// Mutation operations recognized by the invalidation service.
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// Entity type names accepted by the generic Invalidate entry point.
const (
	EntityRequirement     = "requirement"
	EntityDecision        = "architecture_decision"
	EntityPattern         = "architecture_pattern"
	EntityTechnologyStack = "technology_stack"
	EntityUser            = "user"
)

// RelatedIDs carries the foreign ids a mutation touches. The service only
// clears what it is told about plus what it can derive from the entity id
// itself; transitive neighbors the caller does not name stay cached until
// their TTL runs out. That bounded staleness is deliberate: eager transitive
// invalidation would cost a graph query per mutation.
type RelatedIDs struct {
	ProjectID         string
	DecisionIDs       []string
	RequirementIDs    []string
	TechnologyStackID string
}

// Invalidator maps domain mutations onto the loader cache entries they make
// stale. It operates on one request's bundle; clearing is always eviction,
// never in-place patching.
type Invalidator struct {
	loaders *DataLoaders
	log     *slog.Logger
}

func NewInvalidator(dl *DataLoaders, log *slog.Logger) *Invalidator {
	return &Invalidator{
		loaders: dl,
		log:     log.With(logger.Scope("loaders.invalidation")),
	}
}

// Invalidate dispatches to the per-entity method by type name.
func (s *Invalidator) Invalidate(entityType, id, op string, related RelatedIDs) error {
	switch entityType {
	case EntityRequirement:
		s.InvalidateRequirementCaches(id, related, op)
	case EntityDecision:
		s.InvalidateDecisionCaches(id, related, op)
	case EntityPattern:
		s.InvalidatePatternCaches(id, related, op)
	case EntityTechnologyStack:
		s.InvalidateTechnologyStackCaches(id, related, op)
	case EntityUser:
		s.InvalidateUserCaches(id, related, op)
	default:
		return fmt.Errorf("invalidate: unknown entity type %q", entityType)
	}
	return nil
}

// InvalidateRequirementCaches clears everything a requirement mutation can
// make stale: the entity itself, its neighborhood loaders, the collections
// named in related, and on delete every collection that could contain it.
func (s *Invalidator) InvalidateRequirementCaches(id string, related RelatedIDs, op string) {
	dl := s.loaders

	dl.Requirements.Clear(id)
	dl.Dependencies.Clear(id)
	dl.Conflicts.Clear(id)
	dl.Similar.Clear(id)
	s.clearRelationshipsFor(id)

	if related.ProjectID != "" {
		dl.RequirementsByProject.Clear(related.ProjectID)
	}
	for _, decisionID := range related.DecisionIDs {
		dl.RequirementsByDecision.Clear(decisionID)
	}
	// Paired requirements cache this one inside their own neighborhoods.
	for _, reqID := range related.RequirementIDs {
		dl.Dependencies.Clear(reqID)
		dl.Conflicts.Clear(reqID)
		dl.Similar.Clear(reqID)
		s.clearRelationshipsFor(reqID)
	}

	if op == OpDelete {
		dl.RequirementsByProject.ClearAll()
		dl.RequirementsByDecision.ClearAll()
		dl.Dependencies.ClearAll()
		dl.Conflicts.ClearAll()
		dl.Similar.ClearAll()
		dl.Relationships.ClearAll()
	}

	s.logInvalidation(EntityRequirement, id, op)
}

// InvalidateDecisionCaches clears a decision and the requirement lists
// keyed by it. Requirement entities themselves are untouched: their bodies
// do not embed decision data.
func (s *Invalidator) InvalidateDecisionCaches(id string, related RelatedIDs, op string) {
	dl := s.loaders

	dl.Decisions.Clear(id)
	dl.RequirementsByDecision.Clear(id)
	s.clearRelationshipsFor(id)

	for _, reqID := range related.RequirementIDs {
		s.clearRelationshipsFor(reqID)
	}

	if op == OpDelete {
		dl.Relationships.ClearAll()
	}

	s.logInvalidation(EntityDecision, id, op)
}

// InvalidatePatternCaches clears a pattern. Decisions denormalize pattern
// names at load time, so the named decisions (or, lacking them, all
// decisions) are cleared too.
func (s *Invalidator) InvalidatePatternCaches(id string, related RelatedIDs, op string) {
	dl := s.loaders

	dl.Patterns.Clear(id)
	s.clearRelationshipsFor(id)

	if len(related.DecisionIDs) > 0 {
		for _, decisionID := range related.DecisionIDs {
			dl.Decisions.Clear(decisionID)
		}
	} else {
		dl.Decisions.ClearAll()
	}

	if op == OpDelete {
		dl.Relationships.ClearAll()
	}

	s.logInvalidation(EntityPattern, id, op)
}

// InvalidateTechnologyStackCaches clears a stack and the decisions that
// embed it. Precise when the caller names the decisions, conservative
// otherwise.
func (s *Invalidator) InvalidateTechnologyStackCaches(id string, related RelatedIDs, op string) {
	dl := s.loaders

	dl.TechnologyStacks.Clear(id)
	s.clearRelationshipsFor(id)

	if len(related.DecisionIDs) > 0 {
		for _, decisionID := range related.DecisionIDs {
			dl.Decisions.Clear(decisionID)
		}
	} else {
		dl.Decisions.ClearAll()
	}

	if op == OpDelete {
		dl.Relationships.ClearAll()
	}

	s.logInvalidation(EntityTechnologyStack, id, op)
}

// InvalidateUserCaches clears a user. Users appear in no collection loader,
// so only the entity entry and its raw edges are affected.
func (s *Invalidator) InvalidateUserCaches(id string, related RelatedIDs, op string) {
	s.loaders.Users.Clear(id)
	s.clearRelationshipsFor(id)

	if op == OpDelete {
		s.loaders.Relationships.ClearAll()
	}

	s.logInvalidation(EntityUser, id, op)
}

// InvalidateRelationshipCaches clears the caches affected by creating or
// deleting one typed edge. Both endpoints' composite keys go, plus the
// collection loader that materializes that edge type.
func (s *Invalidator) InvalidateRelationshipCaches(edgeType, sourceID, targetID string) {
	dl := s.loaders

	s.clearRelationshipsFor(sourceID)
	s.clearRelationshipsFor(targetID)

	switch edgeType {
	case graph.EdgeDependsOn:
		dl.Dependencies.Clear(sourceID)
		dl.Dependencies.Clear(targetID)
	case graph.EdgeConflictsWith:
		dl.Conflicts.Clear(sourceID)
		dl.Conflicts.Clear(targetID)
	case graph.EdgeSimilarTo:
		dl.Similar.Clear(sourceID)
		dl.Similar.Clear(targetID)
	case graph.EdgeAddresses:
		dl.RequirementsByDecision.Clear(sourceID)
	case graph.EdgeUsesStack, graph.EdgeAppliesPattern:
		// Decisions denormalize stacks and patterns at load time.
		dl.Decisions.Clear(sourceID)
	}

	s.log.Debug("relationship caches invalidated",
		slog.String("edge_type", edgeType),
		slog.String("source", sourceID),
		slog.String("target", targetID),
	)
}

// clearRelationshipsFor evicts every composite relationship key rooted at
// nodeID, across all edge types and directions.
func (s *Invalidator) clearRelationshipsFor(nodeID string) {
	prefix := nodeID + "|"
	s.loaders.Relationships.ClearWhere(func(key string) bool {
		return strings.HasPrefix(key, prefix)
	})
}

func (s *Invalidator) logInvalidation(entityType, id, op string) {
	s.log.Debug("caches invalidated",
		slog.String("entity", entityType),
		slog.String("id", id),
		slog.String("op", op),
	)
}
