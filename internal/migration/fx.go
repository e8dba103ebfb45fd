package migration

import (
	"github.com/smallbiznis/invoiceledger/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Module migrates on startup unless DATABASE_AUTO_MIGRATE is off.
var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
		if !cfg.DBAutoMigrate {
			log.Info("automatic migration disabled")
			return nil
		}
		return Run(conn)
	}),
)
