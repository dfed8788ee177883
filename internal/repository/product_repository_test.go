package repository_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen11/selmag/internal/models"
	"github.com/jsamuelsen11/selmag/internal/repository"
)

func titles(products []models.Product) []string {
	out := make([]string, 0, len(products))
	for _, p := range products {
		out = append(out, p.Title)
	}
	return out
}

func TestMemoryProductRepository_Seeded(t *testing.T) {
	repo := repository.NewSeededMemoryProductRepository()

	products, err := repo.FindAll(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, products, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{products[0].ID, products[1].ID, products[2].ID})
}

func TestMemoryProductRepository_FindAll(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryProductRepository()
	for _, title := range []string{"Zebra mug", "apple pie", "Big Apple", "Orange"} {
		_, err := repo.Create(ctx, title, "")
		require.NoError(t, err)
	}

	tests := []struct {
		name   string
		filter string
		want   []string
	}{
		{name: "blank_orders_by_id", filter: "", want: []string{"Zebra mug", "apple pie", "Big Apple", "Orange"}},
		{name: "whitespace_is_blank", filter: "   ", want: []string{"Zebra mug", "apple pie", "Big Apple", "Orange"}},
		{name: "case_insensitive_ordered_by_title", filter: "APPLE", want: []string{"Big Apple", "apple pie"}},
		{name: "no_match", filter: "kiwi", want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			products, err := repo.FindAll(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, titles(products))
		})
	}
}

func TestMemoryProductRepository_CRUD(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryProductRepository()

	created, err := repo.Create(ctx, "Kettle", "1.7 litres")
	require.NoError(t, err)
	assert.True(t, created.IsPersisted())

	found, err := repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, found)

	require.NoError(t, repo.Update(ctx, created.ID, "Electric kettle", ""))
	found, err = repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.Product{ID: created.ID, Title: "Electric kettle"}, found)

	require.NoError(t, repo.Delete(ctx, created.ID))
	_, err = repo.FindByID(ctx, created.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)

	assert.ErrorIs(t, repo.Delete(ctx, created.ID), models.ErrNotFound)
	assert.ErrorIs(t, repo.Update(ctx, created.ID, "Kettle", ""), models.ErrNotFound)

	next, err := repo.Create(ctx, "Toaster", "")
	require.NoError(t, err)
	assert.Greater(t, next.ID, created.ID, "IDs are never reused")
}

func TestSQLRepositories_DatabaseUnavailable(t *testing.T) {
	ctx := context.Background()
	repos := map[string]repository.ProductRepository{
		"postgres": repository.NewPostgresProductRepository(func() *pgxpool.Pool { return nil }),
		"mysql":    repository.NewMySQLProductRepository(func() *sql.DB { return nil }),
	}

	for name, repo := range repos {
		t.Run(name, func(t *testing.T) {
			_, err := repo.FindAll(ctx, "")
			assert.ErrorIs(t, err, repository.ErrDatabaseUnavailable)

			_, err = repo.FindByID(ctx, 1)
			assert.ErrorIs(t, err, repository.ErrDatabaseUnavailable)

			_, err = repo.Create(ctx, "Kettle", "")
			assert.ErrorIs(t, err, repository.ErrDatabaseUnavailable)

			assert.ErrorIs(t, repo.Update(ctx, 1, "Kettle", ""), repository.ErrDatabaseUnavailable)
			assert.ErrorIs(t, repo.Delete(ctx, 1), repository.ErrDatabaseUnavailable)
		})
	}
}
