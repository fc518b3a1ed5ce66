package profile

import (
	"github.com/benjask5360/tuckandtale/internal/profile/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("profile.repository",
	fx.Provide(repository.NewRepository),
)
