package story

import (
	"github.com/benjask5360/tuckandtale/internal/story/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("story.repository",
	fx.Provide(repository.NewRepository),
)
