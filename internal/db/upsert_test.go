package db

import (
	"context"
	"fmt"
	"regexp"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func areaColumns() []Column {
	return []Column{
		{Name: "id", Type: "text"},
		{Name: "layer", Type: "text"},
		{Name: "geom", Type: "text", Expr: "ST_Multi(ST_GeomFromText(%s, 4326))"},
	}
}

func TestBulkUpsert_EmptyRows(t *testing.T) {
	n, err := BulkUpsert(context.TODO(), nil, UpsertConfig{
		Table:        "geo.areas",
		Columns:      areaColumns(),
		ConflictKeys: []string{"id"},
	}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestBulkUpsert_Validation(t *testing.T) {
	rows := [][]any{{1, "a", "POINT (0 0)"}}
	tests := []struct {
		name    string
		cfg     UpsertConfig
		wantErr string
	}{
		{name: "no columns", cfg: UpsertConfig{Table: "t", ConflictKeys: []string{"id"}}, wantErr: "no columns specified"},
		{name: "no conflict keys", cfg: UpsertConfig{Table: "t", Columns: areaColumns()}, wantErr: "no conflict keys specified"},
		{
			name:    "untyped column",
			cfg:     UpsertConfig{Table: "t", Columns: []Column{{Name: "id"}}, ConflictKeys: []string{"id"}},
			wantErr: "no staging type",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BulkUpsert(context.TODO(), nil, tt.cfg, rows)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestBulkUpsert_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	cfg := UpsertConfig{Table: "geo.areas", Columns: areaColumns(), ConflictKeys: []string{"id", "layer"}}
	rows := [][]any{{"tehran_0", "m", "POLYGON ((0 0, 1 0, 1 1, 0 0))"}}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`CREATE TEMP TABLE "_tmp_upsert_geo_areas" ("id" text, "layer" text, "geom" text) ON COMMIT DROP`)).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_geo_areas"}, []string{"id", "layer", "geom"}).WillReturnResult(1)
	mock.ExpectExec(regexp.QuoteMeta(`ON CONFLICT ("id", "layer") DO UPDATE SET "geom" = EXCLUDED."geom"`)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	n, err := BulkUpsert(context.Background(), mock, cfg, rows)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsert_StageError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_areas"}, []string{"id", "layer", "geom"}).WillReturnError(fmt.Errorf("disk full"))
	mock.ExpectRollback()

	_, err = BulkUpsert(context.Background(), mock, UpsertConfig{Table: "areas", Columns: areaColumns(), ConflictKeys: []string{"id"}}, [][]any{{"a", "b", "c"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stage rows for areas")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertSQL(t *testing.T) {
	got := upsertSQL("_tmp", UpsertConfig{Table: "geo.areas", Columns: areaColumns(), ConflictKeys: []string{"id"}})
	assert.Equal(t,
		`INSERT INTO "geo"."areas" ("id", "layer", "geom") SELECT "id", "layer", ST_Multi(ST_GeomFromText("geom", 4326)) FROM "_tmp" `+
			`ON CONFLICT ("id") DO UPDATE SET "layer" = EXCLUDED."layer", "geom" = EXCLUDED."geom"`,
		got)

	got = upsertSQL("_tmp", UpsertConfig{Table: "t", Columns: []Column{{Name: "id", Type: "text"}}, ConflictKeys: []string{"id"}})
	assert.Contains(t, got, "ON CONFLICT (\"id\") DO NOTHING")
}

func TestQuoteAndJoin(t *testing.T) {
	assert.Equal(t, `"id", "name", "value"`, quoteAndJoin([]string{"id", "name", "value"}))
}
