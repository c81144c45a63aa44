package cassandra

import (
	"context"
	"fmt"

	"github.com/gocql/gocql"
	"github.com/reactiveblueprint/schedule-pipeline/pkg/core/health"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// NewSessionModule provides the store session. One session per service,
// created at startup, closed at shutdown.
func NewSessionModule() fx.Option {
	return fx.Provide(provideSession)
}

func provideSession(lc fx.Lifecycle, conf Config, log *zap.Logger, readiness health.ComponentManager) (*gocql.Session, error) {
	componentLog := log.With(zap.String("component", "cassandra"))

	if err := ensureKeyspace(conf, componentLog); err != nil {
		return nil, err
	}

	cluster := gocql.NewCluster(conf.ContactPoints...)
	cluster.Port = conf.Port
	cluster.Keyspace = conf.Keyspace
	cluster.Timeout = conf.Timeout
	cluster.Consistency = gocql.Quorum

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create cassandra session for keyspace %s: %w", conf.Keyspace, err)
	}

	markReady := readiness.AddComponent("cassandra")

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if *conf.Migrate {
				if err := migrateSchema(conf, componentLog); err != nil {
					return err
				}
			}
			markReady()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			componentLog.Info("closing cassandra session")
			session.Close()
			return nil
		},
	})

	return session, nil
}

// ensureKeyspace creates the keyspace when it does not exist yet; the schema
// migrator needs it in place before it can connect.
func ensureKeyspace(conf Config, log *zap.Logger) error {
	cluster := gocql.NewCluster(conf.ContactPoints...)
	cluster.Port = conf.Port
	cluster.Timeout = conf.Timeout

	session, err := cluster.CreateSession()
	if err != nil {
		return fmt.Errorf("failed to connect to cassandra at %v: %w", conf.ContactPoints, err)
	}
	defer session.Close()

	stmt := fmt.Sprintf(
		"CREATE KEYSPACE IF NOT EXISTS %s WITH replication = {'class': 'SimpleStrategy', 'replication_factor': %d}",
		conf.Keyspace, conf.ReplicationFactor)
	if err := session.Query(stmt).Exec(); err != nil {
		return fmt.Errorf("failed to ensure keyspace %s: %w", conf.Keyspace, err)
	}

	log.Info("keyspace ready", zap.String("keyspace", conf.Keyspace))
	return nil
}
