package usagelimits

import (
	"github.com/benjask5360/tuckandtale/internal/usagelimits/service"
	"go.uber.org/fx"
)

var Module = fx.Module("usagelimits",
	fx.Provide(
		service.NewService,
	),
)
