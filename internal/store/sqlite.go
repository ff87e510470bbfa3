package store

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/lifeline-ng/lifeline/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. Proximity queries
// prefilter on a bounding rectangle and rank by great-circle distance in Go.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// One connection: SQLite has a single writer and the pragmas below are
	// per connection.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS states (
	id           INTEGER PRIMARY KEY,
	name         TEXT NOT NULL,
	slug         TEXT NOT NULL,
	display_name TEXT NOT NULL DEFAULT '',
	created_at   DATETIME NOT NULL,
	updated_at   DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS lgas (
	id         INTEGER PRIMARY KEY,
	name       TEXT NOT NULL,
	slug       TEXT NOT NULL,
	state_id   INTEGER NOT NULL REFERENCES states(id),
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS providers (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL,
	provider_type   TEXT NOT NULL,
	category        TEXT,
	address         TEXT,
	state_id        INTEGER NOT NULL REFERENCES states(id),
	lga_id          INTEGER NOT NULL REFERENCES lgas(id),
	latitude        REAL NOT NULL,
	longitude       REAL NOT NULL,
	phone_primary   TEXT,
	phone_secondary TEXT,
	email           TEXT,
	external_id     TEXT,
	source          TEXT,
	verified        BOOLEAN NOT NULL DEFAULT 0,
	status          TEXT NOT NULL DEFAULT 'active',
	created_at      DATETIME NOT NULL,
	updated_at      DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_lgas_state_id ON lgas(state_id);
CREATE UNIQUE INDEX IF NOT EXISTS uq_providers_identity
	ON providers(name, provider_type, lga_id, latitude, longitude);
CREATE INDEX IF NOT EXISTS idx_providers_lat_lng ON providers(latitude, longitude);
CREATE INDEX IF NOT EXISTS idx_providers_state_lga ON providers(state_id, lga_id);
CREATE INDEX IF NOT EXISTS idx_providers_name ON providers(name);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SyncHierarchy(ctx context.Context, states []model.State) error {
	uniqStates, lgas := dedupeStates(states)
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: sync hierarchy: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	for _, st := range uniqStates {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO states (id, name, slug, display_name, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name, slug = excluded.slug,
				display_name = excluded.display_name, updated_at = excluded.updated_at`,
			st.ID, st.Name, st.Slug, st.DisplayName, now, now,
		); err != nil {
			return eris.Wrapf(err, "sqlite: upsert state %d", st.ID)
		}
	}
	for _, l := range lgas {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO lgas (id, name, slug, state_id, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name, slug = excluded.slug,
				state_id = excluded.state_id, updated_at = excluded.updated_at`,
			l.ID, l.Name, l.Slug, l.StateID, now, now,
		); err != nil {
			return eris.Wrapf(err, "sqlite: upsert lga %d", l.ID)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: sync hierarchy: commit")
}

func (s *SQLiteStore) ListStates(ctx context.Context) ([]model.State, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, slug, display_name FROM states ORDER BY name ASC`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list states")
	}
	defer rows.Close() //nolint:errcheck

	states := []model.State{}
	for rows.Next() {
		var st model.State
		if err := rows.Scan(&st.ID, &st.Name, &st.Slug, &st.DisplayName); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan state")
		}
		states = append(states, st)
	}
	return states, eris.Wrap(rows.Err(), "sqlite: iterate states")
}

func (s *SQLiteStore) ListLGAs(ctx context.Context, stateID int) ([]model.LGA, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, slug, state_id FROM lgas WHERE state_id = ? ORDER BY name ASC`, stateID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list lgas for state %d", stateID)
	}
	defer rows.Close() //nolint:errcheck

	lgas := []model.LGA{}
	for rows.Next() {
		var l model.LGA
		if err := rows.Scan(&l.ID, &l.Name, &l.Slug, &l.StateID); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan lga")
		}
		lgas = append(lgas, l)
	}
	return lgas, eris.Wrap(rows.Err(), "sqlite: iterate lgas")
}

var sqliteInsertProvider = `INSERT INTO providers (id, ` + strings.Join(providerColumns, ", ") + `, created_at, updated_at)
	VALUES (?` + strings.Repeat(", ?", len(providerColumns)+2) + `)`

// InsertProviders inserts the batch in one transaction and skips rows that
// collide with an existing identity tuple.
func (s *SQLiteStore) InsertProviders(ctx context.Context, providers []model.Provider) (int64, error) {
	if len(providers) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: insert providers: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, sqliteInsertProvider+
		` ON CONFLICT(name, provider_type, lga_id, latitude, longitude) DO NOTHING`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare insert provider")
	}
	defer stmt.Close() //nolint:errcheck

	now := time.Now().UTC()
	var inserted int64
	for _, p := range providers {
		args := append([]any{uuid.New().String()}, providerValues(p)...)
		res, err := stmt.ExecContext(ctx, append(args, now, now)...)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert provider %q", p.Name)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: rows affected")
		}
		inserted += n
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: insert providers: commit")
	}
	return inserted, nil
}

func (s *SQLiteStore) SearchProviders(ctx context.Context, f model.SearchFilter, page model.Page) ([]model.Provider, int, error) {
	where := []string{"status = 'active'"}
	var args []any
	if f.StateID != 0 {
		where = append(where, "state_id = ?")
		args = append(args, f.StateID)
	}
	if f.LGAID != 0 {
		where = append(where, "lga_id = ?")
		args = append(args, f.LGAID)
	}
	if f.ProviderType != "" {
		where = append(where, "provider_type = ?")
		args = append(args, string(f.ProviderType))
	}
	if f.Category != "" {
		where = append(where, "lower(category) = lower(?)")
		args = append(args, f.Category)
	}
	if f.Q != "" {
		where = append(where, `(name LIKE ? ESCAPE '\' OR address LIKE ? ESCAPE '\' OR category LIKE ? ESCAPE '\')`)
		p := likePattern(f.Q)
		args = append(args, p, p, p)
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT count(*) FROM providers WHERE "+cond, args...).Scan(&total); err != nil {
		return nil, 0, eris.Wrap(err, "sqlite: count providers")
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+selectColumns+" FROM providers WHERE "+cond+" ORDER BY name ASC, id ASC LIMIT ? OFFSET ?",
		append(args, page.PageSize, page.Offset())...)
	if err != nil {
		return nil, 0, eris.Wrap(err, "sqlite: search providers")
	}
	defer rows.Close() //nolint:errcheck

	items := []model.Provider{}
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, 0, eris.Wrap(err, "sqlite: scan provider")
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, eris.Wrap(err, "sqlite: iterate providers")
	}
	return items, total, nil
}

// NearbyProviders loads candidates inside the bounding rectangle of the
// search circle, then keeps and orders them by great-circle distance.
func (s *SQLiteStore) NearbyProviders(ctx context.Context, q model.NearbyQuery) ([]model.NearbyProvider, error) {
	box := searchBounds(q.Lat, q.Lng, q.RadiusKM)

	where := []string{"status = 'active'", "latitude BETWEEN ? AND ?"}
	args := []any{box.MinLat, box.MaxLat}
	switch {
	case box.allLongitudes:
	case box.crossesAntimeridian:
		where = append(where, "(longitude >= ? OR longitude <= ?)")
		args = append(args, box.MinLng, box.MaxLng)
	default:
		where = append(where, "longitude BETWEEN ? AND ?")
		args = append(args, box.MinLng, box.MaxLng)
	}
	if q.ProviderType != "" {
		where = append(where, "provider_type = ?")
		args = append(args, string(q.ProviderType))
	}
	if q.Category != "" {
		where = append(where, "lower(category) = lower(?)")
		args = append(args, q.Category)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+selectColumns+" FROM providers WHERE "+strings.Join(where, " AND "), args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: nearby providers")
	}
	defer rows.Close() //nolint:errcheck

	out := []model.NearbyProvider{}
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan nearby provider")
		}
		d := distanceKM(q.Lat, q.Lng, p.Latitude, p.Longitude)
		if d <= q.RadiusKM {
			out = append(out, model.NearbyProvider{Provider: p, DistanceKM: d})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate nearby providers")
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DistanceKM != out[j].DistanceKM {
			return out[i].DistanceKM < out[j].DistanceKM
		}
		return out[i].ID < out[j].ID
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s *SQLiteStore) GetProvider(ctx context.Context, id string) (*model.Provider, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+selectColumns+" FROM providers WHERE id = ?", id)
	p, err := scanProvider(row)
	if eris.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "provider %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get provider %s", id)
	}
	return &p, nil
}

func (s *SQLiteStore) CreateProvider(ctx context.Context, p model.Provider) (*model.Provider, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	args := append([]any{id}, providerValues(p)...)
	if _, err := s.db.ExecContext(ctx, sqliteInsertProvider, append(args, now, now)...); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, eris.Wrapf(ErrDuplicate, "provider %q", p.Name)
		}
		return nil, eris.Wrap(err, "sqlite: create provider")
	}
	return s.GetProvider(ctx, id)
}

func (s *SQLiteStore) UpdateProvider(ctx context.Context, id string, patch model.ProviderPatch) (*model.Provider, error) {
	cols, args := patchSet(patch)
	if len(cols) == 0 {
		return s.GetProvider(ctx, id)
	}

	set := make([]string, len(cols))
	for i, c := range cols {
		set[i] = c + " = ?"
	}
	args = append(args, time.Now().UTC(), id)

	res, err := s.db.ExecContext(ctx,
		"UPDATE providers SET "+strings.Join(set, ", ")+", updated_at = ? WHERE id = ?", args...)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: update provider %s", id)
	}
	if err := checkRowsAffected(res, id); err != nil {
		return nil, err
	}
	return s.GetProvider(ctx, id)
}

func checkRowsAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "provider %s", id)
	}
	return nil
}
