package main

import (
	"context"
	"os"

	"github.com/dmitrijs2005/redactvault/internal/client/cli"
	"github.com/dmitrijs2005/redactvault/internal/client/config"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()
	app := cli.NewApp(cfg)

	err := app.Execute(ctx, os.Args[1:])
	_ = app.Close()

	if err != nil {
		os.Exit(1)
	}

}
