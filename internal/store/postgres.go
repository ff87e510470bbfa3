package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"

	"github.com/lifeline-ng/lifeline/internal/db"
	"github.com/lifeline-ng/lifeline/internal/model"
)

// geoFromColumns builds the geography point from the staged coordinates.
const geoFromColumns = `ST_SetSRID(ST_MakePoint("longitude", "latitude"), 4326)::geography`

// queryPoint is the query location as geography; $1 = lng, $2 = lat.
const queryPoint = `ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography`

const uniqueViolation = "23505"

// PostgresStore implements Store on PostgreSQL with PostGIS.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgres connects a pool and wraps it in a PostgresStore.
func NewPostgres(ctx context.Context, cfg db.PoolConfig) (*PostgresStore, error) {
	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	return migratePostgres(ctx, s.pool)
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// SyncHierarchy upserts every state and LGA by id in one transaction.
func (s *PostgresStore) SyncHierarchy(ctx context.Context, states []model.State) error {
	uniqStates, lgas := dedupeStates(states)
	if len(uniqStates) == 0 {
		return nil
	}

	stateRows := make([][]any, len(uniqStates))
	for i, st := range uniqStates {
		stateRows[i] = []any{st.ID, st.Name, st.Slug, st.DisplayName}
	}
	lgaRows := make([][]any, len(lgas))
	for i, l := range lgas {
		lgaRows[i] = []any{l.ID, l.Name, l.Slug, l.StateID}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: sync hierarchy: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	touch := []db.Computed{{Column: "updated_at", Expr: "now()"}}
	if _, err := db.BulkUpsertTx(ctx, tx, db.UpsertConfig{
		Table:        "states",
		Columns:      []string{"id", "name", "slug", "display_name"},
		ConflictKeys: []string{"id"},
		Computed:     touch,
	}, stateRows); err != nil {
		return eris.Wrap(err, "postgres: sync states")
	}
	if _, err := db.BulkUpsertTx(ctx, tx, db.UpsertConfig{
		Table:        "lgas",
		Columns:      []string{"id", "name", "slug", "state_id"},
		ConflictKeys: []string{"id"},
		Computed:     touch,
	}, lgaRows); err != nil {
		return eris.Wrap(err, "postgres: sync lgas")
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: sync hierarchy: commit")
}

func (s *PostgresStore) ListStates(ctx context.Context) ([]model.State, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, slug, display_name FROM states ORDER BY name ASC`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list states")
	}
	defer rows.Close()

	states := []model.State{}
	for rows.Next() {
		var st model.State
		if err := rows.Scan(&st.ID, &st.Name, &st.Slug, &st.DisplayName); err != nil {
			return nil, eris.Wrap(err, "postgres: scan state")
		}
		states = append(states, st)
	}
	return states, eris.Wrap(rows.Err(), "postgres: iterate states")
}

func (s *PostgresStore) ListLGAs(ctx context.Context, stateID int) ([]model.LGA, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, slug, state_id FROM lgas WHERE state_id = $1 ORDER BY name ASC`, stateID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list lgas for state %d", stateID)
	}
	defer rows.Close()

	lgas := []model.LGA{}
	for rows.Next() {
		var l model.LGA
		if err := rows.Scan(&l.ID, &l.Name, &l.Slug, &l.StateID); err != nil {
			return nil, eris.Wrap(err, "postgres: scan lga")
		}
		lgas = append(lgas, l)
	}
	return lgas, eris.Wrap(rows.Err(), "postgres: iterate lgas")
}

// InsertProviders COPYs the batch into a temp table and inserts it with
// ON CONFLICT DO NOTHING on the identity tuple.
func (s *PostgresStore) InsertProviders(ctx context.Context, providers []model.Provider) (int64, error) {
	rows := make([][]any, len(providers))
	for i, p := range providers {
		rows[i] = providerValues(p)
	}

	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "providers",
		Columns:      providerColumns,
		ConflictKeys: []string{"name", "provider_type", "lga_id", "latitude", "longitude"},
		OnConflict:   db.DoNothing,
		Computed:     []db.Computed{{Column: "geo", Expr: geoFromColumns}},
	}, rows)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: insert %d providers", len(providers))
	}
	return n, nil
}

// pgArgs accumulates positional arguments for a dynamically built query.
type pgArgs []any

func (a *pgArgs) add(v any) string {
	*a = append(*a, v)
	return fmt.Sprintf("$%d", len(*a))
}

func (s *PostgresStore) SearchProviders(ctx context.Context, f model.SearchFilter, page model.Page) ([]model.Provider, int, error) {
	var args pgArgs
	where := []string{"status = 'active'"}
	if f.StateID != 0 {
		where = append(where, "state_id = "+args.add(f.StateID))
	}
	if f.LGAID != 0 {
		where = append(where, "lga_id = "+args.add(f.LGAID))
	}
	if f.ProviderType != "" {
		where = append(where, "provider_type = "+args.add(string(f.ProviderType)))
	}
	if f.Category != "" {
		where = append(where, "lower(category) = lower("+args.add(f.Category)+")")
	}
	if f.Q != "" {
		p := args.add(likePattern(f.Q))
		where = append(where, fmt.Sprintf("(name ILIKE %[1]s OR address ILIKE %[1]s OR category ILIKE %[1]s)", p))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT count(*) FROM providers WHERE "+cond, args...).Scan(&total); err != nil {
		return nil, 0, eris.Wrap(err, "postgres: count providers")
	}

	limit := args.add(page.PageSize)
	offset := args.add(page.Offset())
	rows, err := s.pool.Query(ctx,
		fmt.Sprintf("SELECT %s FROM providers WHERE %s ORDER BY name ASC, id ASC LIMIT %s OFFSET %s",
			pgSelectColumns, cond, limit, offset),
		args...)
	if err != nil {
		return nil, 0, eris.Wrap(err, "postgres: search providers")
	}
	defer rows.Close()

	items := []model.Provider{}
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, 0, eris.Wrap(err, "postgres: scan provider")
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, eris.Wrap(err, "postgres: iterate providers")
	}
	return items, total, nil
}

// NearbyProviders filters with ST_DWithin and orders by ST_Distance, both on
// geography, so containment and ranking use the same spheroidal distance.
func (s *PostgresStore) NearbyProviders(ctx context.Context, q model.NearbyQuery) ([]model.NearbyProvider, error) {
	args := pgArgs{q.Lng, q.Lat}
	where := []string{
		"status = 'active'",
		"geo IS NOT NULL",
		fmt.Sprintf("ST_DWithin(geo, %s, %s)", queryPoint, args.add(q.RadiusKM*1000)),
	}
	if q.ProviderType != "" {
		where = append(where, "provider_type = "+args.add(string(q.ProviderType)))
	}
	if q.Category != "" {
		where = append(where, "lower(category) = lower("+args.add(q.Category)+")")
	}

	sql := fmt.Sprintf(
		"SELECT %s, ST_Distance(geo, %s) / 1000.0 AS distance_km FROM providers WHERE %s ORDER BY distance_km ASC, id ASC LIMIT %s",
		pgSelectColumns, queryPoint, strings.Join(where, " AND "), args.add(q.Limit),
	)

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: nearby providers")
	}
	defer rows.Close()

	out := []model.NearbyProvider{}
	for rows.Next() {
		var dist float64
		p, err := scanProvider(rows, &dist)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan nearby provider")
		}
		out = append(out, model.NearbyProvider{Provider: p, DistanceKM: dist})
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate nearby providers")
}

func (s *PostgresStore) GetProvider(ctx context.Context, id string) (*model.Provider, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, eris.Wrapf(ErrNotFound, "provider %q", id)
	}

	row := s.pool.QueryRow(ctx, "SELECT "+pgSelectColumns+" FROM providers WHERE id = $1", id)
	p, err := scanProvider(row)
	if eris.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "provider %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get provider %s", id)
	}
	return &p, nil
}

// CreateProvider inserts one provider; the geography is sent as EWKB.
func (s *PostgresStore) CreateProvider(ctx context.Context, p model.Provider) (*model.Provider, error) {
	point := geom.NewPointFlat(geom.XY, []float64{p.Longitude, p.Latitude}).SetSRID(4326)
	wkb, err := ewkb.Marshal(point, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: encode provider point")
	}

	var args pgArgs
	placeholders := make([]string, 0, len(providerColumns))
	for _, v := range providerValues(p) {
		placeholders = append(placeholders, args.add(v))
	}
	sql := fmt.Sprintf(
		"INSERT INTO providers (%s, geo) VALUES (%s, ST_GeogFromWKB(%s)) RETURNING %s",
		strings.Join(providerColumns, ", "), strings.Join(placeholders, ", "), args.add(wkb), pgSelectColumns,
	)

	created, err := scanProvider(s.pool.QueryRow(ctx, sql, args...))
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return nil, eris.Wrapf(ErrDuplicate, "provider %q", p.Name)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create provider")
	}
	return &created, nil
}

func (s *PostgresStore) UpdateProvider(ctx context.Context, id string, patch model.ProviderPatch) (*model.Provider, error) {
	cols, vals := patchSet(patch)
	if len(cols) == 0 {
		return s.GetProvider(ctx, id)
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, eris.Wrapf(ErrNotFound, "provider %q", id)
	}

	var args pgArgs
	set := make([]string, len(cols))
	for i, c := range cols {
		set[i] = c + " = " + args.add(vals[i])
	}
	sql := fmt.Sprintf("UPDATE providers SET %s, updated_at = now() WHERE id = %s RETURNING %s",
		strings.Join(set, ", "), args.add(id), pgSelectColumns)

	p, err := scanProvider(s.pool.QueryRow(ctx, sql, args...))
	if eris.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "provider %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: update provider %s", id)
	}
	return &p, nil
}

// pgSelectColumns renders the UUID id as text.
var pgSelectColumns = "id::text AS " + selectColumns
