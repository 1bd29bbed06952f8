package knowledge

import (
	"go.uber.org/fx"
)

// Module provides the knowledge domain
var Module = fx.Module("knowledge",
	fx.Provide(NewService),
	fx.Provide(NewHandler),
	fx.Provide(NewLoaderMiddleware),
	fx.Invoke(RegisterRoutes),
)
