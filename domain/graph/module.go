package graph

import (
	"go.uber.org/fx"
)

// Module provides the graph store collaborator: the read-side query
// executor used by loaders and the write-side repository used by mutations.
var Module = fx.Module("graph",
	fx.Provide(
		NewRepository,
		fx.Annotate(
			NewExecutor,
			fx.As(new(Executor)),
		),
	),
)
