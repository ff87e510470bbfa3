package db

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBulkUpsert_EmptyRows(t *testing.T) {
	n, err := BulkUpsert(context.TODO(), nil, UpsertConfig{
		Table:        "public.states",
		Columns:      []string{"id", "name"},
		ConflictKeys: []string{"id"},
	}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestBulkUpsert_NoColumns(t *testing.T) {
	_, err := BulkUpsert(context.TODO(), nil, UpsertConfig{
		Table:        "public.states",
		ConflictKeys: []string{"id"},
	}, [][]any{{1, "a"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no columns specified")
}

func TestBulkUpsert_NoConflictKeys(t *testing.T) {
	_, err := BulkUpsert(context.TODO(), nil, UpsertConfig{
		Table:   "public.states",
		Columns: []string{"id", "name"},
	}, [][]any{{1, "a"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no conflict keys specified")
}

func TestBulkUpsert_DoUpdate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	cfg := UpsertConfig{
		Table:        "states",
		Columns:      []string{"id", "name", "slug"},
		ConflictKeys: []string{"id"},
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`CREATE TEMP TABLE "_tmp_upsert_states" ON COMMIT DROP AS SELECT "id", "name", "slug" FROM "states" WITH NO DATA`)).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_states"}, cfg.Columns).WillReturnResult(2)
	mock.ExpectExec(regexp.QuoteMeta(`ON CONFLICT ("id") DO UPDATE SET "name" = EXCLUDED."name", "slug" = EXCLUDED."slug"`)).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	n, err := BulkUpsert(context.Background(), mock, cfg, [][]any{{1, "Lagos", "lagos"}, {2, "Kano", "kano"}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsert_BeginError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin().WillReturnError(errors.New("db down"))

	_, err = BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:        "states",
		Columns:      []string{"id"},
		ConflictKeys: []string{"id"},
	}, [][]any{{1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "begin tx")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsert_InsertErrorRollsBack(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TEMP TABLE").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_states"}, []string{"id"}).WillReturnResult(1)
	mock.ExpectExec("INSERT INTO").WillReturnError(errors.New("constraint"))
	mock.ExpectRollback()

	_, err = BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:        "states",
		Columns:      []string{"id"},
		ConflictKeys: []string{"id"},
	}, [][]any{{1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "INSERT ON CONFLICT for states")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsertTx_DoNothingWithComputed(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	cfg := UpsertConfig{
		Table:        "providers",
		Columns:      []string{"name", "latitude", "longitude"},
		ConflictKeys: []string{"name", "latitude", "longitude"},
		OnConflict:   DoNothing,
		Computed: []Computed{
			{Column: "geo", Expr: "ST_MakePoint(longitude, latitude)"},
		},
	}

	mock.ExpectExec("CREATE TEMP TABLE").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_providers"}, cfg.Columns).WillReturnResult(2)
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "providers" ("name", "latitude", "longitude", "geo") SELECT "name", "latitude", "longitude", ST_MakePoint(longitude, latitude) FROM "_tmp_upsert_providers" ON CONFLICT ("name", "latitude", "longitude") DO NOTHING`)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	n, err := BulkUpsertTx(context.Background(), mock, cfg, [][]any{{"A", 6.5, 3.3}, {"A", 6.5, 3.3}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMergeSQL_ExplicitUpdateCols(t *testing.T) {
	cfg := UpsertConfig{
		Table:        "lgas",
		Columns:      []string{"id", "name", "slug", "state_id"},
		ConflictKeys: []string{"id"},
		UpdateCols:   []string{"name"},
	}
	got := cfg.mergeSQL("_tmp_upsert_lgas")
	assert.Contains(t, got, `DO UPDATE SET "name" = EXCLUDED."name"`)
	assert.NotContains(t, got, `"slug" = EXCLUDED`)
}

func TestSanitizeTable(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"simple", `"simple"`},
		{"public.providers", `"public"."providers"`},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeTable(tt.input))
		})
	}
}

func TestQuoteAndJoin(t *testing.T) {
	assert.Equal(t, `"id", "name", "value"`, quoteAndJoin([]string{"id", "name", "value"}))
}

func TestBulkUpsertTx_ShortCopy(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("CREATE TEMP TABLE").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_lgas"}, []string{"id"}).WillReturnResult(1)

	_, err = BulkUpsertTx(context.Background(), mock, UpsertConfig{
		Table:        "lgas",
		Columns:      []string{"id"},
		ConflictKeys: []string{"id"},
	}, [][]any{{10}, {11}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "staged 1 of 2 rows for lgas")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsertTx_CopyError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("CREATE TEMP TABLE").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_public_providers"}, []string{"name"}).WillReturnError(errors.New("copy failed"))

	_, err = BulkUpsertTx(context.Background(), mock, UpsertConfig{
		Table:        "public.providers",
		Columns:      []string{"name"},
		ConflictKeys: []string{"name"},
	}, [][]any{{"A"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stage rows for public.providers")
	assert.NoError(t, mock.ExpectationsWereMet())
}
