// The connector service accepts scheduling requests over HTTP and publishes
// them to the schedule log, replying only after the broker acknowledged the
// write.
package main

import (
	"fmt"
	"os"

	"github.com/reactiveblueprint/schedule-pipeline/internal/connector"
	"github.com/reactiveblueprint/schedule-pipeline/pkg/bus"
	"github.com/reactiveblueprint/schedule-pipeline/pkg/core/config"
	"github.com/reactiveblueprint/schedule-pipeline/pkg/core/health"
	"github.com/reactiveblueprint/schedule-pipeline/pkg/core/logger"
	"github.com/reactiveblueprint/schedule-pipeline/pkg/httpx"
	"github.com/reactiveblueprint/schedule-pipeline/pkg/kafka"
	"github.com/reactiveblueprint/schedule-pipeline/pkg/kafka/producer"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "schedule-connector",
		Short:   "HTTP ingress for schedule requests, published to the schedule log",
		Version: version,
		Run: func(cmd *cobra.Command, args []string) {
			newApp().Run()
		},
	}
}

func newApp() *fx.App {
	return fx.New(
		logger.NewZapLoggingModule(),
		config.NewAppConfigModule(),
		health.NewHealthModule(),
		bus.NewBusModule(),
		kafka.NewKafkaConfigModule(),
		producer.NewProducerModule(),
		httpx.NewServerConfigModule(),
		httpx.NewHTTPServerModule(),
		connector.NewConnectorModule(),
	)
}
