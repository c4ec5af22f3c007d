// Package runstore persists the release run ledger to postgres.
package runstore

import (
	"database/sql"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/lib/pq"
	_ "github.com/lib/pq"

	"github.com/weberc2/releaser/pkg/release"
)

// ErrRunRecordExists is returned when recording a (run, variant, status)
// combination the ledger has already seen. The pipeline never re-enters a
// status, so this indicates a duplicated run ID.
var ErrRunRecordExists = errors.New("run record exists")

type RunStore sql.DB

func OpenEnv() (*RunStore, error) {
	db, err := sql.Open(
		"postgres",
		fmt.Sprintf(
			"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			getEnv("PG_HOST", "localhost"),
			getEnv("PG_PORT", "5432"),
			getEnv("PG_USER", "postgres"),
			getEnv("PG_PASS", ""),
			getEnv("PG_DB_NAME", "postgres"),
			getEnv("PG_SSL_MODE", "disable"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("opening postgres database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("pinging postgres database: %w", err)
	}

	return (*RunStore)(db), nil
}

func getEnv(env, def string) string {
	x := os.Getenv(env)
	if x == "" {
		return def
	}
	return x
}

func (rs *RunStore) EnsureTable() error {
	if _, err := (*sql.DB)(rs).Exec(
		"CREATE TABLE IF NOT EXISTS runs (" +
			"run_id VARCHAR(36) NOT NULL, " +
			"tag VARCHAR(255) NOT NULL, " +
			"git_hash VARCHAR(255) NOT NULL, " +
			"variant VARCHAR(255) NOT NULL, " +
			"status VARCHAR(16) NOT NULL, " +
			"error TEXT NOT NULL DEFAULT '', " +
			"created TIMESTAMPTZ NOT NULL, " +
			"PRIMARY KEY (run_id, variant, status))",
	); err != nil {
		return fmt.Errorf("creating `runs` postgres table: %w", err)
	}
	return nil
}

func (rs *RunStore) DropTable() error {
	if _, err := (*sql.DB)(rs).Exec("DROP TABLE IF EXISTS runs"); err != nil {
		return fmt.Errorf("dropping table `runs`: %w", err)
	}
	return nil
}

func (rs *RunStore) ClearTable() error {
	if _, err := (*sql.DB)(rs).Exec("DELETE FROM runs"); err != nil {
		return fmt.Errorf("clearing `runs` postgres table: %w", err)
	}
	return nil
}

func (rs *RunStore) ResetTable() error {
	if err := rs.DropTable(); err != nil {
		return err
	}
	return rs.EnsureTable()
}

func (rs *RunStore) Record(record *release.RunRecord) error {
	if _, err := (*sql.DB)(rs).Exec(
		"INSERT INTO runs "+
			"(run_id, tag, git_hash, variant, status, error, created) VALUES "+
			"($1, $2, $3, $4, $5, $6, $7)",
		record.RunID.String(),
		record.Tag,
		record.SourceCommit,
		record.Variant,
		record.Status,
		record.Error,
		record.Created,
	); err != nil {
		const errUniqueViolation = "23505"
		if err, ok := err.(*pq.Error); ok && err.Code == errUniqueViolation {
			return ErrRunRecordExists
		}
		return fmt.Errorf("inserting run record into postgres: %w", err)
	}
	return nil
}

// List returns every record in the ledger in the order it was written.
func (rs *RunStore) List() ([]release.RunRecord, error) {
	return rs.list("SELECT " + runColumns + " FROM runs ORDER BY created")
}

// ListRun returns the records for a single run in the order they were
// written.
func (rs *RunStore) ListRun(runID uuid.UUID) ([]release.RunRecord, error) {
	return rs.list(
		"SELECT "+runColumns+" FROM runs WHERE run_id = $1 ORDER BY created",
		runID.String(),
	)
}

const runColumns = "run_id, tag, git_hash, variant, status, error, created"

func (rs *RunStore) list(
	query string,
	args ...interface{},
) ([]release.RunRecord, error) {
	// we don't want to return a `nil` slice because that gets JSON-marshaled
	// to `null` instead of `[]`.
	records := []release.RunRecord{}

	rows, err := (*sql.DB)(rs).Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying run records from postgres: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var record release.RunRecord
		var runID string
		if err := rows.Scan(
			&runID,
			&record.Tag,
			&record.SourceCommit,
			&record.Variant,
			&record.Status,
			&record.Error,
			&record.Created,
		); err != nil {
			return nil, fmt.Errorf(
				"querying run records from postgres: %w",
				err,
			)
		}
		id, err := uuid.Parse(runID)
		if err != nil {
			return nil, fmt.Errorf(
				"querying run records from postgres: parsing `run_id` "+
					"field: %w",
				err,
			)
		}
		record.RunID = id
		records = append(records, record)
	}

	return records, rows.Err()
}
