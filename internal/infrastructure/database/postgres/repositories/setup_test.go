//go:build integration

// Package repositories_test provides integration tests for the PostgreSQL
// repositories. Tests require Docker and are gated behind the "integration"
// build tag.
package repositories_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/turtacn/LandQuant-Intelligence/internal/domain/job"
	"github.com/turtacn/LandQuant-Intelligence/internal/infrastructure/database/postgres"
	"github.com/turtacn/LandQuant-Intelligence/internal/infrastructure/database/postgres/repositories"
	"github.com/turtacn/LandQuant-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LandQuant-Intelligence/pkg/types/analysis"
	"github.com/turtacn/LandQuant-Intelligence/pkg/types/geo"
)

// startPostgres launches a PostgreSQL 16 container, applies the real
// migrations and returns a connected pool.
func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "landquant_test",
		},
		WaitingFor: wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dbURL := fmt.Sprintf("postgres://test:test@%s:%s/landquant_test?sslmode=disable", host, port.Port())
	require.NoError(t, postgres.RunMigrations(dbURL, "file://../../../../../migrations"))

	pool, err := pgxpool.New(ctx, dbURL)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

// mustCreateScan inserts scan metadata so jobs can reference it.
func mustCreateScan(t *testing.T, pool *pgxpool.Pool, profile string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	repo := repositories.NewScanRepository(pool, logging.NewNopLogger())
	require.NoError(t, repo.Create(context.Background(), &analysis.Scan{
		ID:               id.String(),
		Profile:          profile,
		ResolutionMeters: 100,
		CreatedAt:        time.Now().UTC(),
	}))
	return id
}

// newTestJob builds a pending job with an explicit creation time so ordering
// assertions never hinge on sub-microsecond timestamp ties.
func newTestJob(scanID uuid.UUID, priority int, createdAt time.Time) *job.Job {
	j := job.New(scanID, geo.Coordinate{Lat: 33.7, Lon: -118.2}, "solar_farm", priority)
	j.CreatedAt = createdAt
	j.UpdatedAt = createdAt
	return j
}
