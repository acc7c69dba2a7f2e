//go:build integration

// Package integration provides the Postgres+Kafka test harness for the
// end-to-end scenarios of spec.md §8 (S1, S2, S4 with S5, S7) that need a real bus and a
// real database. Adapted from the teacher's test/intergration/containers.go
// (kept its misspelling only in that original path — this one spells it
// correctly) and extended to apply both services' migrations.
package integration

import (
	"context"
	"time"

	"github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/ordersync/platform/pkg/migrate"
)

// Env holds the running containers and connection details for one test run.
type Env struct {
	PG     *postgres.PostgresContainer
	Kafka  *kafka.KafkaContainer
	PGURL  string
	KAddr  []string
	Cancel context.CancelFunc
}

// Setup starts a Postgres and a Kafka container, applies both services'
// migrations against the same database (each to its own schema), and
// returns the connection details the scenario tests dial into.
func Setup(ctx context.Context) (*Env, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)

	pgC, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("ordersync"),
		postgres.WithUsername("ordersync"),
		postgres.WithPassword("ordersync"),
	)
	if err != nil {
		cancel()
		return nil, err
	}

	pgURL, err := pgC.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		cancel()
		return nil, err
	}

	if err := migrate.Up("../../migrations/user-service", pgURL); err != nil {
		cancel()
		return nil, err
	}
	if err := migrate.Up("../../migrations/order-service", pgURL); err != nil {
		cancel()
		return nil, err
	}

	kafkaC, err := kafka.Run(ctx,
		"confluentinc/confluent-local:7.5.0",
		kafka.WithClusterID("ordersync-test"),
	)
	if err != nil {
		cancel()
		return nil, err
	}

	kafkaAddress, err := kafkaC.Brokers(ctx)
	if err != nil {
		cancel()
		return nil, err
	}
	return &Env{
		PG:     pgC,
		Kafka:  kafkaC,
		PGURL:  pgURL,
		KAddr:  kafkaAddress,
		Cancel: cancel,
	}, nil
}

// Teardown stops both containers and releases the setup context.
func (e *Env) Teardown(ctx context.Context) {
	e.Cancel()
	_ = e.Kafka.Terminate(ctx)
	_ = e.PG.Terminate(ctx)
}
