package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// ConflictAction selects what happens when a staged row hits the unique key.
type ConflictAction int

const (
	// DoUpdate overwrites UpdateCols from the staged row.
	DoUpdate ConflictAction = iota
	// DoNothing keeps the existing row; the staged row is dropped silently.
	DoNothing
)

// Computed is a target column derived from staged columns at insert time,
// e.g. a PostGIS point built from latitude and longitude.
type Computed struct {
	Column string
	Expr   string
}

// UpsertConfig defines the parameters for a bulk upsert operation.
type UpsertConfig struct {
	Table        string   // target table (e.g., "public.providers")
	Columns      []string // columns supplied in each row
	ConflictKeys []string // columns forming the unique constraint
	UpdateCols   []string // columns to update on conflict; nil = all non-conflict columns
	OnConflict   ConflictAction
	Computed     []Computed
}

// BulkUpsert stages rows in a temp table and merges them into the target in
// a single transaction. It returns the number of rows inserted or updated.
func BulkUpsert(ctx context.Context, pool Pool, cfg UpsertConfig, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if err := cfg.validate(); err != nil {
		return 0, err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "db: upsert: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	n, err := BulkUpsertTx(ctx, tx, cfg, rows)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "db: upsert: commit tx")
	}
	return n, nil
}

// BulkUpsertTx runs the staged merge on an existing transaction so callers can
// combine several tables atomically. The temp table is dropped on commit.
//  1. CREATE TEMP TABLE with the target's column types
//  2. COPY rows into it
//  3. INSERT INTO target SELECT ... FROM temp ON CONFLICT (keys) DO UPDATE/NOTHING
func BulkUpsertTx(ctx context.Context, conn Conn, cfg UpsertConfig, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if err := cfg.validate(); err != nil {
		return 0, err
	}

	tempTable := tempTableName(cfg.Table)
	colList := quoteAndJoin(cfg.Columns)

	// CREATE TABLE AS copies column types but no constraints, so columns left
	// out of the row set (ids, timestamps, computed) stay unconstrained.
	createSQL := fmt.Sprintf(
		"CREATE TEMP TABLE %s ON COMMIT DROP AS SELECT %s FROM %s WITH NO DATA",
		pgx.Identifier{tempTable}.Sanitize(),
		colList,
		sanitizeTable(cfg.Table),
	)
	if _, err := conn.Exec(ctx, createSQL); err != nil {
		return 0, eris.Wrapf(err, "db: upsert: create temp table for %s", cfg.Table)
	}

	staged, err := conn.CopyFrom(ctx, pgx.Identifier{tempTable}, cfg.Columns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, eris.Wrapf(err, "db: upsert: stage rows for %s", cfg.Table)
	}
	if staged != int64(len(rows)) {
		return 0, eris.Errorf("db: upsert: staged %d of %d rows for %s", staged, len(rows), cfg.Table)
	}

	tag, err := conn.Exec(ctx, cfg.mergeSQL(tempTable))
	if err != nil {
		return 0, eris.Wrapf(err, "db: upsert: INSERT ON CONFLICT for %s", cfg.Table)
	}

	return tag.RowsAffected(), nil
}

func (cfg UpsertConfig) validate() error {
	if len(cfg.Columns) == 0 {
		return eris.New("db: upsert: no columns specified")
	}
	if len(cfg.ConflictKeys) == 0 {
		return eris.New("db: upsert: no conflict keys specified")
	}
	return nil
}

func (cfg UpsertConfig) mergeSQL(tempTable string) string {
	targetCols := make([]string, 0, len(cfg.Columns)+len(cfg.Computed))
	selectExprs := make([]string, 0, len(cfg.Columns)+len(cfg.Computed))
	for _, c := range cfg.Columns {
		q := pgx.Identifier{c}.Sanitize()
		targetCols = append(targetCols, q)
		selectExprs = append(selectExprs, q)
	}
	for _, c := range cfg.Computed {
		targetCols = append(targetCols, pgx.Identifier{c.Column}.Sanitize())
		selectExprs = append(selectExprs, c.Expr)
	}

	action := "DO NOTHING"
	if cfg.OnConflict == DoUpdate {
		action = "DO UPDATE SET " + strings.Join(cfg.setClauses(), ", ")
	}

	return fmt.Sprintf(
		"INSERT INTO %s (%s) SELECT %s FROM %s ON CONFLICT (%s) %s",
		sanitizeTable(cfg.Table),
		strings.Join(targetCols, ", "),
		strings.Join(selectExprs, ", "),
		pgx.Identifier{tempTable}.Sanitize(),
		quoteAndJoin(cfg.ConflictKeys),
		action,
	)
}

func (cfg UpsertConfig) setClauses() []string {
	updateCols := cfg.UpdateCols
	if updateCols == nil {
		conflictSet := make(map[string]bool, len(cfg.ConflictKeys))
		for _, k := range cfg.ConflictKeys {
			conflictSet[k] = true
		}
		for _, c := range cfg.Columns {
			if !conflictSet[c] {
				updateCols = append(updateCols, c)
			}
		}
		for _, c := range cfg.Computed {
			updateCols = append(updateCols, c.Column)
		}
	}

	clauses := make([]string, 0, len(updateCols))
	for _, col := range updateCols {
		q := pgx.Identifier{col}.Sanitize()
		clauses = append(clauses, fmt.Sprintf("%s = EXCLUDED.%s", q, q))
	}
	return clauses
}

func tempTableName(table string) string {
	return "_tmp_upsert_" + strings.ReplaceAll(table, ".", "_")
}

// identifier splits a possibly schema-qualified name into a pgx identifier.
func identifier(table string) pgx.Identifier {
	parts := strings.SplitN(table, ".", 2)
	if len(parts) == 2 {
		return pgx.Identifier{parts[0], parts[1]}
	}
	return pgx.Identifier{table}
}

// sanitizeTable handles schema-qualified table names like "public.providers".
func sanitizeTable(table string) string {
	return identifier(table).Sanitize()
}

// quoteAndJoin quotes each column name and joins with commas.
func quoteAndJoin(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
