package tracker

import (
	"github.com/benjask5360/tuckandtale/internal/tracker/service"
	"go.uber.org/fx"
)

var Module = fx.Module("tracker.service",
	fx.Provide(service.NewService),
)
