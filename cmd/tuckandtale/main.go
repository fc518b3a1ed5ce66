package main

import (
	"github.com/benjask5360/tuckandtale/internal/clock"
	"github.com/benjask5360/tuckandtale/internal/observability"
	"github.com/benjask5360/tuckandtale/internal/server"
	"github.com/benjask5360/tuckandtale/pkg/db"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		observability.Module,
		fx.Provide(registerSnowflake),
		db.Module,
		clock.Module,
		server.Module,
	)
	app.Run()
}

func registerSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
