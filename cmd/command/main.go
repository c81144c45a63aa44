// The command service consumes the schedule log and persists accepted
// schedules to the wide-column store, committing each offset only after the
// row is written.
package main

import (
	"fmt"
	"os"

	"github.com/reactiveblueprint/schedule-pipeline/internal/command"
	"github.com/reactiveblueprint/schedule-pipeline/pkg/bus"
	"github.com/reactiveblueprint/schedule-pipeline/pkg/cassandra"
	"github.com/reactiveblueprint/schedule-pipeline/pkg/core/config"
	"github.com/reactiveblueprint/schedule-pipeline/pkg/core/health"
	"github.com/reactiveblueprint/schedule-pipeline/pkg/core/logger"
	"github.com/reactiveblueprint/schedule-pipeline/pkg/kafka"
	"github.com/reactiveblueprint/schedule-pipeline/pkg/kafka/consumer"
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
		Use:     "schedule-command",
		Short:   "Consumes the schedule log and persists schedules to the store",
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
		consumer.NewConsumerModule(),
		cassandra.NewCassandraConfigModule(),
		cassandra.NewSessionModule(),
		command.NewCommandModule(),
	)
}
