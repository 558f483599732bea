package db

import (
	"github.com/smallbiznis/paygate/internal/config"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func New(cfg config.Config) (*gorm.DB, error) {
	dialector, err := Dialect(cfg)
	if err != nil {
		return nil, err
	}
	return gorm.Open(dialector, &gorm.Config{TranslateError: true})
}

// Module provides the shared gorm connection.
var Module = fx.Module("db",
	fx.Provide(New),
)
