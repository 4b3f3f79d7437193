package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInTransaction(t *testing.T) {
	errWork := errors.New("insert failed")
	errDriver := errors.New("connection lost")

	tests := []struct {
		name      string
		expect    func(m sqlmock.Sqlmock)
		work      error
		wantIs    []error
		wantInMsg string
		skipsWork bool
	}{
		{
			name: "commits when the work succeeds",
			expect: func(m sqlmock.Sqlmock) {
				m.ExpectBegin()
				m.ExpectCommit()
			},
		},
		{
			name: "rolls back and returns the work error as is",
			expect: func(m sqlmock.Sqlmock) {
				m.ExpectBegin()
				m.ExpectRollback()
			},
			work:   ErrEmailExists,
			wantIs: []error{ErrEmailExists},
		},
		{
			name: "begin failure skips the work",
			expect: func(m sqlmock.Sqlmock) {
				m.ExpectBegin().WillReturnError(errDriver)
			},
			wantIs:    []error{errDriver},
			wantInMsg: "begin create_user",
			skipsWork: true,
		},
		{
			name: "commit failure is wrapped",
			expect: func(m sqlmock.Sqlmock) {
				m.ExpectBegin()
				m.ExpectCommit().WillReturnError(errDriver)
			},
			wantIs:    []error{errDriver},
			wantInMsg: "commit create_user",
		},
		{
			name: "rollback failure is joined onto the work error",
			expect: func(m sqlmock.Sqlmock) {
				m.ExpectBegin()
				m.ExpectRollback().WillReturnError(errDriver)
			},
			work:      errWork,
			wantIs:    []error{errWork, errDriver},
			wantInMsg: "rollback create_user",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, m, err := sqlmock.New()
			require.NoError(t, err)
			defer func() { _ = db.Close() }()
			tt.expect(m)

			ran := false
			err = InTransaction(context.Background(), db, "create_user", func(ctx context.Context, tx *sql.Tx) error {
				ran = true
				return tt.work
			})

			if len(tt.wantIs) == 0 {
				assert.NoError(t, err)
			}
			for _, target := range tt.wantIs {
				assert.ErrorIs(t, err, target)
			}
			if tt.wantInMsg != "" {
				assert.Contains(t, err.Error(), tt.wantInMsg)
			}
			assert.Equal(t, !tt.skipsWork, ran)
			assert.NoError(t, m.ExpectationsWereMet())
		})
	}
}

func TestInTransaction_PanicRollsBackAndPropagates(t *testing.T) {
	db, m, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	m.ExpectBegin()
	m.ExpectRollback()

	assert.PanicsWithValue(t, "boom", func() {
		_ = InTransaction(context.Background(), db, "create_user", func(ctx context.Context, tx *sql.Tx) error {
			panic("boom")
		})
	})
	assert.NoError(t, m.ExpectationsWereMet())
}
