package repository_test

import (
	"context"
	"fmt"

	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

const geoSchema = "../migrations/01_geo.up.sql"

// startPostgres runs a throwaway catalog database with the given schema scripts applied.
func startPostgres(ctx context.Context, initScripts ...string) (*postgres.PostgresContainer, string, error) {
	if len(initScripts) == 0 {
		initScripts = []string{geoSchema}
	}

	pc, err := postgres.Run(ctx, "postgres:17.6-alpine3.22",
		postgres.WithDatabase("geo"),
		postgres.WithInitScripts(initScripts...),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		return nil, "", fmt.Errorf("postgres.Run: %w", err)
	}

	connStr, err := pc.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return pc, "", fmt.Errorf("pc.ConnectionString: %w", err)
	}

	return pc, connStr, nil
}
