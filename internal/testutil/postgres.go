// Package testutil starts a migrated Postgres for integration tests and
// provides scripted stand-ins for the language-model collaborators.
package testutil

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"finmate/internal/config"
	"finmate/internal/repository"
)

const (
	postgresImage = "postgres:16-alpine"
	dbName        = "finmate"
	dbUser        = "postgres"
	dbPassword    = "password"
)

// Postgres is a running, migrated database container.
type Postgres struct {
	Container  *postgres.PostgresContainer
	DB         *sql.DB
	ConnString string
	Host       string
	Port       string
}

func StartPostgres(ctx context.Context) (*Postgres, error) {
	container, err := postgres.Run(ctx, postgresImage,
		postgres.WithDatabase(dbName),
		postgres.WithUsername(dbUser),
		postgres.WithPassword(dbPassword),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		return nil, fmt.Errorf("start postgres container: %w", err)
	}

	pg := &Postgres{Container: container}
	if err := pg.init(ctx); err != nil {
		testcontainers.TerminateContainer(container, testcontainers.StopContext(ctx))
		return nil, err
	}
	return pg, nil
}

func (p *Postgres) init(ctx context.Context) error {
	host, err := p.Container.Host(ctx)
	if err != nil {
		return fmt.Errorf("container host: %w", err)
	}
	port, err := p.Container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		return fmt.Errorf("container port: %w", err)
	}
	p.Host = host
	p.Port = port.Port()

	p.ConnString, err = p.Container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return fmt.Errorf("connection string: %w", err)
	}

	if err := repository.RunMigrations(p.ConnString); err != nil {
		return err
	}

	p.DB, err = repository.Open(ctx, p.Config())
	return err
}

// Config returns a configuration pointing at the container, with the
// scheduler disabled and an ephemeral server port.
func (p *Postgres) Config() *config.Config {
	cfg := config.Load()
	cfg.ServerPort = "0"
	cfg.DBHost = p.Host
	cfg.DBPort = p.Port
	cfg.DBUser = dbUser
	cfg.DBPassword = dbPassword
	cfg.DBName = dbName
	cfg.DBSSLMode = "disable"
	cfg.SchedulerEnabled = false
	cfg.AMQPURL = ""
	return cfg
}

// Reset empties every table so each test starts from a clean database.
func (p *Postgres) Reset(ctx context.Context) error {
	_, err := p.DB.ExecContext(ctx, `
		TRUNCATE chat_messages, analysis_reports, cohort_runs, transactions, users, cohorts
		RESTART IDENTITY CASCADE`)
	return err
}

func (p *Postgres) Terminate(ctx context.Context) error {
	if p.DB != nil {
		p.DB.Close()
	}
	return testcontainers.TerminateContainer(p.Container, testcontainers.StopContext(ctx))
}
