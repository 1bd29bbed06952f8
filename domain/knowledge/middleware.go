package knowledge

import (
	"log/slog"

	"github.com/labstack/echo/v4"

	"github.com/archgraph-io/archgraph/domain/loaders"
	"github.com/archgraph-io/archgraph/pkg/apperror"
	"github.com/archgraph-io/archgraph/pkg/logger"
)

const (
	bundleContextKey      = "archgraph.loaders"
	invalidatorContextKey = "archgraph.invalidator"
)

// LoaderMiddleware attaches a fresh DataLoaders bundle to every request and
// closes it when the request ends. Caches therefore live exactly as long as
// one request, which is the consistency model the loaders are built around.
type LoaderMiddleware struct {
	factory *loaders.Factory
	log     *slog.Logger
}

func NewLoaderMiddleware(factory *loaders.Factory, log *slog.Logger) *LoaderMiddleware {
	return &LoaderMiddleware{
		factory: factory,
		log:     log.With(logger.Scope("knowledge.middleware")),
	}
}

// Attach is the echo middleware.
func (m *LoaderMiddleware) Attach() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			dl, err := m.factory.NewDataLoaders()
			if err != nil {
				m.log.Error("building loader bundle failed", logger.Error(err))
				return apperror.ErrInternal.WithInternal(err)
			}
			defer dl.Close()

			c.Set(bundleContextKey, dl)
			c.Set(invalidatorContextKey, loaders.NewInvalidator(dl, m.log))
			return next(c)
		}
	}
}

// Bundle returns the request's loader bundle, or nil outside the middleware.
func Bundle(c echo.Context) *loaders.DataLoaders {
	dl, _ := c.Get(bundleContextKey).(*loaders.DataLoaders)
	return dl
}

// InvalidatorFrom returns the request's invalidation service.
func InvalidatorFrom(c echo.Context) *loaders.Invalidator {
	inv, _ := c.Get(invalidatorContextKey).(*loaders.Invalidator)
	return inv
}
