package knowledge

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes registers knowledge base routes. Every route runs behind
// the loader middleware so handlers always find a bundle on the context.
func RegisterRoutes(e *echo.Echo, h *Handler, m *LoaderMiddleware) {
	g := e.Group("/api", m.Attach())

	g.GET("/requirements", h.ListRequirements)
	g.POST("/requirements", h.CreateRequirement)
	g.GET("/requirements/:id", h.GetRequirement)
	g.PATCH("/requirements/:id", h.UpdateRequirement)
	g.DELETE("/requirements/:id", h.DeleteRequirement)
	g.GET("/requirements/:id/neighborhood", h.GetRequirementNeighborhood)

	g.GET("/projects/:id/requirements", h.GetProjectRequirements)

	g.POST("/decisions", h.CreateDecision)
	g.GET("/decisions/:id", h.GetDecision)
	g.PATCH("/decisions/:id", h.UpdateDecision)
	g.DELETE("/decisions/:id", h.DeleteDecision)
	g.GET("/decisions/:id/requirements", h.GetDecisionRequirements)

	g.GET("/patterns/:id", h.GetPattern)
	g.GET("/stacks/:id", h.GetTechnologyStack)
	g.GET("/users/:id", h.GetUser)

	g.GET("/nodes/:id/relationships", h.GetNodeRelationships)
	g.POST("/relationships", h.CreateRelationship)
	g.DELETE("/relationships", h.DeleteRelationship)

	g.POST("/loaders/clear", h.ClearCaches)
}
