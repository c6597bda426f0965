package sink

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	"github.com/lib/pq"

	"firestats/internal/integrity"
	"firestats/internal/models"
	"firestats/pkg/lineage"
)

// PostgresWriter replaces each table inside one transaction per table.
// Every column is stored as text; typing is left to downstream views.
type PostgresWriter struct {
	db     *sql.DB
	schema string
}

// DSN builds a connection string from the libpq environment variables.
func DSN() string {
	host := getEnvOrDefault("PGHOST", "localhost")
	port := getEnvOrDefault("PGPORT", "5432")
	user := getEnvOrDefault("PGUSER", "postgres")
	password := getEnvOrDefault("PGPASSWORD", "")
	dbname := getEnvOrDefault("PGDATABASE", "firestats")
	sslmode := getEnvOrDefault("PGSSLMODE", "disable")

	dsn := fmt.Sprintf("host=%s port=%s user=%s dbname=%s sslmode=%s", host, port, user, dbname, sslmode)
	if password != "" {
		dsn += " password=" + password
	}

	return dsn
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return defaultValue
}

// NewPostgresWriter connects and creates the schema.
func NewPostgresWriter(ctx context.Context, dsn, schema string) (*PostgresWriter, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)

	if _, err := db.ExecContext(ctx, createSchemaSQL(schema)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema %s: %w", schema, err)
	}

	return &PostgresWriter{db: db, schema: schema}, nil
}

func createSchemaSQL(schema string) string {
	return "CREATE SCHEMA IF NOT EXISTS " + pq.QuoteIdentifier(schema)
}

func qualified(schema, table string) string {
	return pq.QuoteIdentifier(schema) + "." + pq.QuoteIdentifier(table)
}

func dropTableSQL(schema, table string) string {
	return "DROP TABLE IF EXISTS " + qualified(schema, table)
}

func createTableSQL(schema string, t models.Table) string {
	cols := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = pq.QuoteIdentifier(c) + " TEXT"
	}

	return fmt.Sprintf("CREATE TABLE %s (%s)", qualified(schema, t.Name), strings.Join(cols, ", "))
}

// WriteTables replaces every table.
func (w *PostgresWriter) WriteTables(ctx context.Context, tables []models.Table) error {
	for _, t := range tables {
		if err := w.replace(ctx, t); err != nil {
			return fmt.Errorf("failed to write %s: %w", t.Name, err)
		}
	}

	return nil
}

func (w *PostgresWriter) replace(ctx context.Context, t models.Table) (err error) {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, dropTableSQL(w.schema, t.Name)); err != nil {
		return err
	}

	if _, err = tx.ExecContext(ctx, createTableSQL(w.schema, t)); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, pq.CopyInSchema(w.schema, t.Name, t.Columns...))
	if err != nil {
		return err
	}

	for _, row := range t.Rows {
		if _, err = stmt.ExecContext(ctx, rowArgs(row, len(t.Columns))...); err != nil {
			_ = stmt.Close()
			return err
		}
	}

	if _, err = stmt.ExecContext(ctx); err != nil {
		_ = stmt.Close()
		return err
	}

	if err = stmt.Close(); err != nil {
		return err
	}

	return tx.Commit()
}

// rowArgs pads or truncates a row to n values. Empty cells become NULL.
func rowArgs(row []string, n int) []any {
	args := make([]any, n)

	for i := 0; i < n; i++ {
		if i < len(row) && row[i] != "" {
			args[i] = row[i]
		}
	}

	return args
}

// WriteReport writes the report and lineage tables.
func (w *PostgresWriter) WriteReport(ctx context.Context, report *integrity.Report, stamps []lineage.Stamp) error {
	return w.WriteTables(ctx, ReportTables(report, stamps))
}

// Close closes the connection pool.
func (w *PostgresWriter) Close() error {
	return w.db.Close()
}
