package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/paygate/internal/config"
	"github.com/smallbiznis/paygate/internal/logger"
	"github.com/smallbiznis/paygate/internal/migration"
	"github.com/smallbiznis/paygate/internal/server"
	"github.com/smallbiznis/paygate/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		fx.Provide(registerSnowflake),
		db.Module,
		migration.Module,
		server.Module,
	)
	app.Run()
}

func registerSnowflake() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}
