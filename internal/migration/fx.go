package migration

import (
	"strings"

	"github.com/benjask5360/tuckandtale/internal/config"
	profiledomain "github.com/benjask5360/tuckandtale/internal/profile/domain"
	storydomain "github.com/benjask5360/tuckandtale/internal/story/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		// The versioned SQL runs against postgres; other dialects (dev
		// sqlite databases) fall back to schema sync.
		if !strings.EqualFold(cfg.DBType, "postgres") {
			return conn.AutoMigrate(
				&profiledomain.UserProfile{},
				&storydomain.Story{},
			)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
