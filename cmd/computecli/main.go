package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	_ "github.com/gogpu/compute/driver/cl"
	_ "github.com/gogpu/compute/driver/soft"
)

func main() {
	app := &cli.Command{
		Name:  "computecli",
		Usage: "Device compute CLI",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return cli.ShowAppHelp(cmd)
		},
		Commands: []*cli.Command{
			infoCmd(),
			runCmd(),
			imageCmd(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
