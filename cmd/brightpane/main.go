package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/brightpane/brightpane/internal/clock"
	"github.com/brightpane/brightpane/internal/config"
	"github.com/brightpane/brightpane/internal/migration"
	"github.com/brightpane/brightpane/internal/server"
	"github.com/brightpane/brightpane/pkg/db"
	"github.com/brightpane/brightpane/pkg/log"
)

func main() {
	app := fx.New(
		config.Module,
		log.Module,
		fx.Provide(registerSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		server.Module,
	)

	app.Run()
}

func registerSnowflake() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}
