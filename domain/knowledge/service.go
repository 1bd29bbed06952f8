package knowledge

import (
	"context"
	"errors"
	"log/slog"

	"github.com/archgraph-io/archgraph/domain/arch"
	"github.com/archgraph-io/archgraph/domain/graph"
	"github.com/archgraph-io/archgraph/pkg/apperror"
	"github.com/archgraph-io/archgraph/pkg/logger"
)

// relationshipTypes lists the edge types mutations may create directly.
var relationshipTypes = map[string]bool{
	graph.EdgeAddresses:      true,
	graph.EdgeDependsOn:      true,
	graph.EdgeConflictsWith:  true,
	graph.EdgeSimilarTo:      true,
	graph.EdgeUsesStack:      true,
	graph.EdgeAppliesPattern: true,
}

// Service is the write side of the knowledge base. Reads never come through
// here; they go through the request's loader bundle.
type Service struct {
	repo *graph.Repository
	log  *slog.Logger
}

// NewService creates a new knowledge service
func NewService(repo *graph.Repository, log *slog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log.With(logger.Scope("knowledge.service")),
	}
}

// CreateRequirement writes a requirement node and returns its read model.
func (s *Service) CreateRequirement(ctx context.Context, req CreateRequirementRequest) (*arch.Requirement, error) {
	if req.Title == "" {
		return nil, apperror.ErrValidation.WithMessage("title is required")
	}

	node := &graph.GraphNode{
		Type:       graph.NodeRequirement,
		ProjectID:  optionalUUID(req.ProjectID),
		Properties: requirementProperties(req),
		Labels:     []string{},
	}
	if err := s.repo.CreateNode(ctx, node); err != nil {
		return nil, err
	}
	return requirementFromNode(node), nil
}

// UpdateRequirement replaces a requirement's attributes.
func (s *Service) UpdateRequirement(ctx context.Context, id string, req UpdateRequirementRequest) (*arch.Requirement, error) {
	nodeID, ok := parseUUID(id)
	if !ok {
		return nil, apperror.ErrBadRequest.WithMessage("invalid requirement id")
	}

	props := requirementProperties(CreateRequirementRequest{
		Title:       req.Title,
		Description: req.Description,
		Type:        req.Type,
		Priority:    req.Priority,
		Status:      req.Status,
		Tags:        req.Tags,
	})
	node, err := s.repo.UpdateNodeProperties(ctx, nodeID, props)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.ErrRequirementNotFound
		}
		return nil, err
	}
	return requirementFromNode(node), nil
}

// DeleteRequirement soft-deletes a requirement and its edges.
func (s *Service) DeleteRequirement(ctx context.Context, id string) error {
	nodeID, ok := parseUUID(id)
	if !ok {
		return apperror.ErrBadRequest.WithMessage("invalid requirement id")
	}
	if err := s.repo.SoftDeleteNode(ctx, nodeID); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return apperror.ErrRequirementNotFound
		}
		return err
	}
	return nil
}

// CreateDecision writes a decision node and its outgoing link edges.
func (s *Service) CreateDecision(ctx context.Context, req CreateDecisionRequest) (*arch.ArchitectureDecision, error) {
	if req.Title == "" {
		return nil, apperror.ErrValidation.WithMessage("title is required")
	}

	node := &graph.GraphNode{
		Type:       graph.NodeArchitectureDecision,
		ProjectID:  optionalUUID(req.ProjectID),
		Properties: decisionProperties(req),
		Labels:     []string{},
	}
	if err := s.repo.CreateNode(ctx, node); err != nil {
		return nil, err
	}

	links := make([]linkSpec, 0, 2+len(req.PatternIDs)+len(req.RequirementIDs))
	if req.TechnologyStackID != "" {
		links = append(links, linkSpec{graph.EdgeUsesStack, req.TechnologyStackID})
	}
	for _, patternID := range req.PatternIDs {
		links = append(links, linkSpec{graph.EdgeAppliesPattern, patternID})
	}
	for _, reqID := range req.RequirementIDs {
		links = append(links, linkSpec{graph.EdgeAddresses, reqID})
	}
	for _, link := range links {
		dst, ok := parseUUID(link.targetID)
		if !ok {
			return nil, apperror.ErrBadRequest.WithMessage("invalid linked id " + link.targetID)
		}
		edge := &graph.GraphEdge{
			Type:       link.edgeType,
			SrcID:      node.ID,
			DstID:      dst,
			Properties: map[string]any{},
		}
		if err := s.repo.CreateEdge(ctx, edge); err != nil {
			return nil, err
		}
	}

	s.log.Info("decision created",
		slog.String("id", node.ID.String()),
		slog.Int("links", len(links)),
	)
	return decisionFromNode(node), nil
}

type linkSpec struct {
	edgeType string
	targetID string
}

// UpdateDecision replaces a decision's attributes.
func (s *Service) UpdateDecision(ctx context.Context, id string, req UpdateDecisionRequest) (*arch.ArchitectureDecision, error) {
	nodeID, ok := parseUUID(id)
	if !ok {
		return nil, apperror.ErrBadRequest.WithMessage("invalid decision id")
	}
	node, err := s.repo.UpdateNodeProperties(ctx, nodeID, decisionProperties(CreateDecisionRequest{
		Title:       req.Title,
		Description: req.Description,
		Rationale:   req.Rationale,
		Status:      req.Status,
	}))
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.ErrDecisionNotFound
		}
		return nil, err
	}
	return decisionFromNode(node), nil
}

// DeleteDecision soft-deletes a decision and its edges.
func (s *Service) DeleteDecision(ctx context.Context, id string) error {
	nodeID, ok := parseUUID(id)
	if !ok {
		return apperror.ErrBadRequest.WithMessage("invalid decision id")
	}
	if err := s.repo.SoftDeleteNode(ctx, nodeID); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return apperror.ErrDecisionNotFound
		}
		return err
	}
	return nil
}

// CreateRelationship links two nodes with a typed edge.
func (s *Service) CreateRelationship(ctx context.Context, req CreateRelationshipRequest) (*arch.Relationship, error) {
	if !relationshipTypes[req.Type] {
		return nil, apperror.ErrValidation.WithMessage("unknown relationship type " + req.Type)
	}
	src, ok := parseUUID(req.SourceID)
	if !ok {
		return nil, apperror.ErrBadRequest.WithMessage("invalid source id")
	}
	dst, ok := parseUUID(req.TargetID)
	if !ok {
		return nil, apperror.ErrBadRequest.WithMessage("invalid target id")
	}

	props := req.Properties
	if props == nil {
		props = map[string]any{}
	}
	edge := &graph.GraphEdge{
		Type:       req.Type,
		SrcID:      src,
		DstID:      dst,
		Properties: props,
		Weight:     req.Weight,
	}
	if err := s.repo.CreateEdge(ctx, edge); err != nil {
		return nil, err
	}

	return &arch.Relationship{
		ID:         edge.ID.String(),
		Type:       edge.Type,
		SourceID:   req.SourceID,
		TargetID:   req.TargetID,
		Properties: edge.Properties,
		CreatedAt:  edge.CreatedAt,
	}, nil
}

// DeleteRelationship removes the typed edge between two nodes, whichever
// direction it was stored in.
func (s *Service) DeleteRelationship(ctx context.Context, edgeType, sourceID, targetID string) error {
	if !relationshipTypes[edgeType] {
		return apperror.ErrValidation.WithMessage("unknown relationship type " + edgeType)
	}
	src, ok := parseUUID(sourceID)
	if !ok {
		return apperror.ErrBadRequest.WithMessage("invalid source id")
	}
	dst, ok := parseUUID(targetID)
	if !ok {
		return apperror.ErrBadRequest.WithMessage("invalid target id")
	}
	return s.repo.SoftDeleteEdge(ctx, edgeType, src, dst)
}
