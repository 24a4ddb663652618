// hpcworker is the worker process spawned on every rank: it connects back to
// the controller and executes dispatched function calls until closed.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/urfave/cli/v3"

	"github.com/viant/hpcpool"
	"github.com/viant/hpcpool/service/worker"
	"github.com/viant/hpcpool/tracing"
)

func main() {
	cmd := &cli.Command{
		Name:  "hpcworker",
		Usage: "Execute function calls dispatched by an hpcpool controller",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Value: "localhost",
				Usage: "Controller host to connect back to",
			},
			&cli.IntFlag{
				Name:     "port",
				Required: true,
				Usage:    "Controller port to connect back to",
			},
			&cli.StringFlag{
				Name:  "trace",
				Usage: "File to write trace spans to",
			},
		},
		Action: run,
	}
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	if traceFile := cmd.String("trace"); traceFile != "" {
		if err := tracing.Init("hpcworker", "1.0", traceFile); err != nil {
			return err
		}
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	address := fmt.Sprintf("%s:%d", cmd.String("host"), cmd.Int("port"))
	return worker.New(hpcpool.DefaultRegistry()).Run(ctx, address)
}
