package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jamolstroy/jamolstroy-service/config"
)

// DB is the query surface shared by the raw pool and the instrumented pool wrapper.
type DB interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

func Init(config config.Config) (*pgxpool.Pool, error) {
	conn, err := pgxpool.New(context.Background(), config.DbConnectionString())
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %v", err)
	}

	conn.Config().MaxConns = int32(config.DbMaxConnections)
	conn.Config().MinConns = 5

	return conn, nil
}
