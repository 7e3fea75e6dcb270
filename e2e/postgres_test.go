package e2e_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	pgcontainer "github.com/testcontainers/testcontainers-go/modules/postgres"
)

var (
	pgOnce      sync.Once
	pgContainer *pgcontainer.PostgresContainer
	pgDSN       string
	pgErr       error
)

// sharedPostgresDSN starts one PostgreSQL container for the whole run and
// returns its DSN. Tests keep their data apart with table prefixes.
func sharedPostgresDSN(t *testing.T) string {
	t.Helper()

	pgOnce.Do(func() {
		ctx := context.Background()

		pgContainer, pgErr = pgcontainer.Run(ctx,
			"postgres:18-alpine",
			pgcontainer.WithDatabase("ephemera"),
			pgcontainer.WithUsername("ephemera"),
			pgcontainer.WithPassword("ephemera"),
			pgcontainer.BasicWaitStrategies(),
		)
		if pgErr != nil {
			pgErr = fmt.Errorf("start postgres container: %w", pgErr)
			return
		}

		pgDSN, pgErr = pgContainer.ConnectionString(ctx, "sslmode=disable")
		if pgErr != nil {
			pgErr = fmt.Errorf("postgres connection string: %w", pgErr)
		}
	})

	if pgErr != nil {
		t.Fatal(pgErr)
	}
	return pgDSN
}

// stopPostgres terminates the shared container, if one was started.
func stopPostgres() {
	if pgContainer == nil {
		return
	}
	if err := testcontainers.TerminateContainer(pgContainer); err != nil {
		fmt.Printf("terminate postgres container: %v\n", err)
	}
}
