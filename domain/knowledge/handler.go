package knowledge

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/archgraph-io/archgraph/domain/arch"
	"github.com/archgraph-io/archgraph/domain/loaders"
	"github.com/archgraph-io/archgraph/pkg/apperror"
)

// Handler exposes the knowledge base over HTTP. Reads resolve through the
// request's loader bundle; writes go through the Service and then prime or
// invalidate the bundle so a read later in the same request sees the write.
type Handler struct {
	svc *Service
}

// NewHandler creates a new knowledge handler
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// GetRequirement returns a single requirement by id
// GET /api/requirements/:id
func (h *Handler) GetRequirement(c echo.Context) error {
	req, err := Bundle(c).Requirements.Load(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	if req == nil {
		return apperror.ErrRequirementNotFound
	}
	return c.JSON(http.StatusOK, req)
}

// ListRequirements returns the requirements for a comma-separated id list
// GET /api/requirements?ids=a,b,c
func (h *Handler) ListRequirements(c echo.Context) error {
	idsParam := c.QueryParam("ids")
	if idsParam == "" {
		return apperror.ErrBadRequest.WithMessage("ids query parameter is required")
	}
	ids := strings.Split(idsParam, ",")

	results := Bundle(c).Requirements.LoadMany(c.Request().Context(), ids)
	out := make([]*arch.Requirement, 0, len(results))
	for _, r := range results {
		if r.Err != nil {
			return r.Err
		}
		if r.Value != nil {
			out = append(out, r.Value)
		}
	}
	return c.JSON(http.StatusOK, out)
}

// GetProjectRequirements returns every requirement of a project
// GET /api/projects/:id/requirements
func (h *Handler) GetProjectRequirements(c echo.Context) error {
	reqs, err := Bundle(c).RequirementsByProject.Load(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, reqs)
}

// GetRequirementNeighborhood returns a requirement with its dependency,
// conflict, and similarity neighborhoods
// GET /api/requirements/:id/neighborhood
func (h *Handler) GetRequirementNeighborhood(c echo.Context) error {
	ctx := c.Request().Context()
	dl := Bundle(c)
	id := c.Param("id")

	req, err := dl.Requirements.Load(ctx, id)
	if err != nil {
		return err
	}
	if req == nil {
		return apperror.ErrRequirementNotFound
	}
	deps, err := dl.Dependencies.Load(ctx, id)
	if err != nil {
		return err
	}
	conflicts, err := dl.Conflicts.Load(ctx, id)
	if err != nil {
		return err
	}
	similar, err := dl.Similar.Load(ctx, id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, RequirementNeighborhood{
		Requirement:  req,
		Dependencies: deps,
		Conflicts:    conflicts,
		Similar:      similar,
	})
}

// GetNodeRelationships returns the raw edges of a node
// GET /api/nodes/:id/relationships?type=DEPENDS_ON&direction=out
func (h *Handler) GetNodeRelationships(c echo.Context) error {
	direction := c.QueryParam("direction")
	if direction == "" {
		direction = loaders.DirectionBoth
	}
	key := loaders.RelationshipKey{
		NodeID:    c.Param("id"),
		Type:      c.QueryParam("type"),
		Direction: direction,
	}
	if _, err := loaders.ParseRelationshipKey(key.String()); err != nil {
		return apperror.ErrBadRequest.WithMessage(err.Error())
	}

	rels, err := Bundle(c).Relationships.Load(c.Request().Context(), key.String())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rels)
}

// GetDecision returns a single decision with its stack and patterns
// GET /api/decisions/:id
func (h *Handler) GetDecision(c echo.Context) error {
	d, err := Bundle(c).Decisions.Load(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	if d == nil {
		return apperror.ErrDecisionNotFound
	}
	return c.JSON(http.StatusOK, d)
}

// GetDecisionRequirements returns the requirements a decision addresses
// GET /api/decisions/:id/requirements
func (h *Handler) GetDecisionRequirements(c echo.Context) error {
	reqs, err := Bundle(c).RequirementsByDecision.Load(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, reqs)
}

// GetPattern returns a single architecture pattern
// GET /api/patterns/:id
func (h *Handler) GetPattern(c echo.Context) error {
	p, err := Bundle(c).Patterns.Load(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	if p == nil {
		return apperror.NewNotFound("pattern", c.Param("id"))
	}
	return c.JSON(http.StatusOK, p)
}

// GetTechnologyStack returns a single technology stack
// GET /api/stacks/:id
func (h *Handler) GetTechnologyStack(c echo.Context) error {
	s, err := Bundle(c).TechnologyStacks.Load(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	if s == nil {
		return apperror.NewNotFound("technology stack", c.Param("id"))
	}
	return c.JSON(http.StatusOK, s)
}

// GetUser returns a single user
// GET /api/users/:id
func (h *Handler) GetUser(c echo.Context) error {
	u, err := Bundle(c).Users.Load(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	if u == nil {
		return apperror.NewNotFound("user", c.Param("id"))
	}
	return c.JSON(http.StatusOK, u)
}

// CreateRequirement creates a requirement
// POST /api/requirements
func (h *Handler) CreateRequirement(c echo.Context) error {
	var req CreateRequirementRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid request body")
	}

	created, err := h.svc.CreateRequirement(c.Request().Context(), req)
	if err != nil {
		return err
	}

	InvalidatorFrom(c).InvalidateRequirementCaches(created.ID,
		loaders.RelatedIDs{ProjectID: created.ProjectID}, loaders.OpCreate)
	Bundle(c).Requirements.Prime(created.ID, created)

	return c.JSON(http.StatusCreated, created)
}

// UpdateRequirement updates a requirement
// PATCH /api/requirements/:id
func (h *Handler) UpdateRequirement(c echo.Context) error {
	var req UpdateRequirementRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid request body")
	}

	updated, err := h.svc.UpdateRequirement(c.Request().Context(), c.Param("id"), req)
	if err != nil {
		return err
	}

	InvalidatorFrom(c).InvalidateRequirementCaches(updated.ID, loaders.RelatedIDs{
		ProjectID:   updated.ProjectID,
		DecisionIDs: req.RelatedDecisionIDs,
	}, loaders.OpUpdate)
	Bundle(c).Requirements.Prime(updated.ID, updated)

	return c.JSON(http.StatusOK, updated)
}

// DeleteRequirement soft-deletes a requirement
// DELETE /api/requirements/:id
func (h *Handler) DeleteRequirement(c echo.Context) error {
	id := c.Param("id")
	if err := h.svc.DeleteRequirement(c.Request().Context(), id); err != nil {
		return err
	}
	InvalidatorFrom(c).InvalidateRequirementCaches(id, loaders.RelatedIDs{}, loaders.OpDelete)
	return c.NoContent(http.StatusNoContent)
}

// CreateDecision creates a decision with its link edges
// POST /api/decisions
func (h *Handler) CreateDecision(c echo.Context) error {
	var req CreateDecisionRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid request body")
	}

	created, err := h.svc.CreateDecision(c.Request().Context(), req)
	if err != nil {
		return err
	}

	InvalidatorFrom(c).InvalidateDecisionCaches(created.ID, loaders.RelatedIDs{
		RequirementIDs:    req.RequirementIDs,
		TechnologyStackID: req.TechnologyStackID,
	}, loaders.OpCreate)

	return c.JSON(http.StatusCreated, created)
}

// UpdateDecision updates a decision
// PATCH /api/decisions/:id
func (h *Handler) UpdateDecision(c echo.Context) error {
	var req UpdateDecisionRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid request body")
	}

	updated, err := h.svc.UpdateDecision(c.Request().Context(), c.Param("id"), req)
	if err != nil {
		return err
	}
	InvalidatorFrom(c).InvalidateDecisionCaches(updated.ID, loaders.RelatedIDs{}, loaders.OpUpdate)

	return c.JSON(http.StatusOK, updated)
}

// DeleteDecision soft-deletes a decision
// DELETE /api/decisions/:id
func (h *Handler) DeleteDecision(c echo.Context) error {
	id := c.Param("id")
	if err := h.svc.DeleteDecision(c.Request().Context(), id); err != nil {
		return err
	}
	InvalidatorFrom(c).InvalidateDecisionCaches(id, loaders.RelatedIDs{}, loaders.OpDelete)
	return c.NoContent(http.StatusNoContent)
}

// CreateRelationship creates a typed edge
// POST /api/relationships
func (h *Handler) CreateRelationship(c echo.Context) error {
	var req CreateRelationshipRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid request body")
	}

	rel, err := h.svc.CreateRelationship(c.Request().Context(), req)
	if err != nil {
		return err
	}
	InvalidatorFrom(c).InvalidateRelationshipCaches(rel.Type, rel.SourceID, rel.TargetID)

	return c.JSON(http.StatusCreated, rel)
}

// DeleteRelationship removes a typed edge
// DELETE /api/relationships?type=DEPENDS_ON&source_id=...&target_id=...
func (h *Handler) DeleteRelationship(c echo.Context) error {
	edgeType := c.QueryParam("type")
	sourceID := c.QueryParam("source_id")
	targetID := c.QueryParam("target_id")

	if err := h.svc.DeleteRelationship(c.Request().Context(), edgeType, sourceID, targetID); err != nil {
		return err
	}
	InvalidatorFrom(c).InvalidateRelationshipCaches(edgeType, sourceID, targetID)
	return c.NoContent(http.StatusNoContent)
}

// ClearCaches empties the request's loader caches, optionally by pattern
// POST /api/loaders/clear?pattern=^requirements
func (h *Handler) ClearCaches(c echo.Context) error {
	dl := Bundle(c)
	if pattern := c.QueryParam("pattern"); pattern != "" {
		if err := dl.ClearByPattern(pattern); err != nil {
			return apperror.ErrBadRequest.WithMessage(err.Error())
		}
	} else {
		dl.ClearAll()
	}
	return c.JSON(http.StatusOK, map[string]any{"cleared": true})
}
