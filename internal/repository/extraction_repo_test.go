package repository

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/docuflow/invoice-extractor/pkg/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRepo(t *testing.T) *ExtractionRepository {
	t.Helper()

	db, err := database.New(database.Config{
		Path:            filepath.Join(t.TempDir(), "test.db"),
		MaxOpenConns:    1,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Minute,
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	migrator := database.NewMigrator(db, zap.NewNop())
	require.NoError(t, migrator.RunMigrations())

	return NewExtractionRepository(db.DB, zap.NewNop())
}

func TestCreateAndGetByID(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	row := &Extraction{
		InvoiceNumber: sql.NullString{String: "INV-001", Valid: true},
		GrandTotal:    sql.NullFloat64{Float64: 2500.0, Valid: true},
		RawResponse:   `{"invoice_metadata": {}}`,
		InvoiceJSON:   `{"invoice_metadata":{"invoice_number":"INV-001"}}`,
	}
	require.NoError(t, repo.Create(ctx, row))
	assert.Greater(t, row.ID, int64(0))

	got, err := repo.GetByID(ctx, row.ID)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, row.ID, got.ID)
	assert.Equal(t, "INV-001", got.InvoiceNumber.String)
	assert.True(t, got.InvoiceNumber.Valid)
	assert.Equal(t, 2500.0, got.GrandTotal.Float64)
	assert.Equal(t, row.RawResponse, got.RawResponse)
	assert.Equal(t, row.InvoiceJSON, got.InvoiceJSON)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestCreateWithoutDenormalizedFields(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	row := &Extraction{
		RawResponse: "not even json",
		InvoiceJSON: `{"invoice_metadata":{"invoice_number":null}}`,
	}
	require.NoError(t, repo.Create(ctx, row))

	got, err := repo.GetByID(ctx, row.ID)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.False(t, got.InvoiceNumber.Valid)
	assert.False(t, got.GrandTotal.Valid)
}

func TestGetByIDMissing(t *testing.T) {
	repo := newTestRepo(t)

	got, err := repo.GetByID(context.Background(), 9999)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestListNewestFirst(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		row := &Extraction{
			InvoiceNumber: sql.NullString{String: fmt.Sprintf("INV-%03d", i), Valid: true},
			RawResponse:   "{}",
			InvoiceJSON:   "{}",
		}
		require.NoError(t, repo.Create(ctx, row))
	}

	rows, err := repo.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "INV-003", rows[0].InvoiceNumber.String)
	assert.Equal(t, "INV-002", rows[1].InvoiceNumber.String)
}

func TestListEmpty(t *testing.T) {
	repo := newTestRepo(t)

	rows, err := repo.List(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, rows)
}
