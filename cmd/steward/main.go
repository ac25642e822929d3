package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/parishkit/steward/internal/clock"
	"github.com/parishkit/steward/internal/config"
	"github.com/parishkit/steward/internal/migration"
	"github.com/parishkit/steward/internal/observability"
	"github.com/parishkit/steward/internal/scheduler"
	"github.com/parishkit/steward/internal/server"
	"github.com/parishkit/steward/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		server.Module,
		scheduler.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
