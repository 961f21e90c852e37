package frame

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/leapstack-labs/leapetl/pkg/adapter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockSession(t *testing.T) (*Session, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewSession(&adapter.BaseSQLAdapter{DB: db}, nil), mock
}

func TestSession_Sinks(t *testing.T) {
	src := FromSQL("SELECT 1 AS a", nil)

	tests := []struct {
		name string
		sink func(ctx context.Context, s *Session) error
		want string
	}{
		{
			name: "csv defaults",
			sink: func(ctx context.Context, s *Session) error {
				return s.SinkCSV(ctx, src, "out/a.csv", CSVWriteOptions{Header: true})
			},
			want: `COPY (SELECT 1 AS a) TO 'out/a.csv' (FORMAT CSV, HEADER true, DELIMITER ',')`,
		},
		{
			name: "csv custom separator without header",
			sink: func(ctx context.Context, s *Session) error {
				return s.SinkCSV(ctx, src, "o'brien.csv", CSVWriteOptions{Separator: ";"})
			},
			want: `COPY (SELECT 1 AS a) TO 'o''brien.csv' (FORMAT CSV, HEADER false, DELIMITER ';')`,
		},
		{
			name: "json array",
			sink: func(ctx context.Context, s *Session) error { return s.SinkJSON(ctx, src, "a.json") },
			want: `COPY (SELECT 1 AS a) TO 'a.json' (FORMAT JSON, ARRAY true)`,
		},
		{
			name: "ndjson",
			sink: func(ctx context.Context, s *Session) error { return s.SinkNDJSON(ctx, src, "a.jsonl") },
			want: `COPY (SELECT 1 AS a) TO 'a.jsonl' (FORMAT JSON)`,
		},
		{
			name: "parquet",
			sink: func(ctx context.Context, s *Session) error { return s.SinkParquet(ctx, src, "a.parquet") },
			want: `COPY (SELECT 1 AS a) TO 'a.parquet' (FORMAT PARQUET)`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := newMockSession(t)
			mock.ExpectExec(tt.want).WillReturnResult(sqlmock.NewResult(0, 1))

			require.NoError(t, tt.sink(context.Background(), s))
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestSession_SinkError(t *testing.T) {
	s, mock := newMockSession(t)
	mock.ExpectExec(`COPY (SELECT 1) TO 'x.csv' (FORMAT CSV, HEADER true, DELIMITER ',')`).
		WillReturnError(errors.New("IO Error: permission denied"))

	err := s.SinkCSV(context.Background(), FromSQL("SELECT 1", nil), "x.csv", CSVWriteOptions{Header: true})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEngine)

	var engineErr *EngineError
	require.ErrorAs(t, err, &engineErr)
	assert.Equal(t, "sink_csv", engineErr.Op)
	assert.Contains(t, err.Error(), "permission denied")
}

func TestSession_Collect(t *testing.T) {
	s, mock := newMockSession(t)
	mock.ExpectQuery(`SELECT * FROM (SELECT * FROM issues) AS t LIMIT 2`).
		WillReturnRows(sqlmock.NewRows([]string{"title", "number"}).
			AddRow("Foo", int64(1)).
			AddRow(nil, int64(2)))

	res, err := s.Collect(context.Background(), FromSQL("SELECT * FROM issues", nil), 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"title", "number"}, res.Columns)
	assert.Equal(t, [][]any{{"Foo", int64(1)}, {nil, int64(2)}}, res.Rows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSession_CollectQueryError(t *testing.T) {
	s, mock := newMockSession(t)
	mock.ExpectQuery(`SELECT broken`).WillReturnError(errors.New("Binder Error"))

	_, err := s.Collect(context.Background(), FromSQL("SELECT broken", nil), 0)
	assert.ErrorIs(t, err, ErrEngine)
}
