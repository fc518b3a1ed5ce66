package genlock

import "go.uber.org/fx"

var Module = fx.Module("genlock",
	fx.Provide(NewGenerationGuard),
)
