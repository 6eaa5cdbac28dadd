package repositories_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"storefront/internal/models"
	"storefront/internal/repositories"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Product{}, &models.User{}, &models.CartRecord{},
		&models.DiscountCode{}, &models.CheckoutAttempt{},
	))
	return db
}

func cartRepos(t *testing.T) map[string]repositories.CartRepository {
	return map[string]repositories.CartRepository{
		"gorm":   repositories.NewGORMCartRepository(openDB(t)),
		"memory": repositories.NewMockCartRepository(),
	}
}

func TestCartRepository_CompareAndSet(t *testing.T) {
	for name, repo := range cartRepos(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := repo.Load(ctx, "c1")
			assert.ErrorIs(t, err, repositories.ErrNotFound)

			v, err := repo.Save(ctx, "c1", []byte(`{"id":"c1"}`), 0)
			require.NoError(t, err)
			assert.Equal(t, int64(1), v)

			_, err = repo.Save(ctx, "c1", []byte(`{"id":"c1","x":1}`), 0)
			assert.ErrorIs(t, err, repositories.ErrVersionConflict, "second insert must not overwrite")

			v, err = repo.Save(ctx, "c1", []byte(`{"id":"c1","x":2}`), 1)
			require.NoError(t, err)
			assert.Equal(t, int64(2), v)

			_, err = repo.Save(ctx, "c1", []byte(`{"id":"c1","x":3}`), 1)
			assert.ErrorIs(t, err, repositories.ErrVersionConflict, "stale writer must be rejected")

			blob, err := repo.Load(ctx, "c1")
			require.NoError(t, err)
			assert.Equal(t, int64(2), blob.Version)
			assert.JSONEq(t, `{"id":"c1","x":2}`, string(blob.Payload))

			require.NoError(t, repo.Delete(ctx, "c1"))
			require.NoError(t, repo.Delete(ctx, "c1"))
			_, err = repo.Load(ctx, "c1")
			assert.ErrorIs(t, err, repositories.ErrNotFound)
		})
	}
}

func TestOrderRepository_IdempotencyKeyIsUnique(t *testing.T) {
	repos := map[string]repositories.OrderRepository{
		"gorm":   repositories.NewGORMOrderRepository(openDB(t)),
		"memory": repositories.NewMockOrderRepository(),
	}
	for name, repo := range repos {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			attempt := &models.CheckoutAttempt{
				IdempotencyKey: "key-1",
				SessionID:      "s1",
				UserID:         "u1",
				Status:         models.AttemptSubmitting,
				Items:          []models.OrderItem{{ProductID: "a", Name: "Serum", Quantity: 2, UnitPrice: decimal.NewFromInt(100)}},
				Total:          decimal.NewFromInt(249),
				Currency:       "SEK",
			}
			require.NoError(t, repo.Create(ctx, attempt))

			dup := *attempt
			assert.ErrorIs(t, repo.Create(ctx, &dup), repositories.ErrDuplicateKey)

			list, err := repo.ListByUser(ctx, "u1")
			require.NoError(t, err)
			assert.Empty(t, list, "only succeeded attempts are orders")

			attempt.Status = models.AttemptSucceeded
			attempt.TransactionID = "tx-9"
			require.NoError(t, repo.Update(ctx, attempt))

			got, err := repo.GetByIdempotencyKey(ctx, "key-1")
			require.NoError(t, err)
			assert.Equal(t, "tx-9", got.TransactionID)
			require.Len(t, got.Items, 1)
			assert.True(t, got.Total.Equal(decimal.NewFromInt(249)))

			list, err = repo.ListByUser(ctx, "u1")
			require.NoError(t, err)
			assert.Len(t, list, 1)

			_, err = repo.GetByIdempotencyKey(ctx, "missing")
			assert.ErrorIs(t, err, repositories.ErrNotFound)
		})
	}
}

func TestDiscountRepository_CaseInsensitiveLookup(t *testing.T) {
	repos := map[string]repositories.DiscountRepository{
		"gorm":   repositories.NewGORMDiscountRepository(openDB(t)),
		"memory": repositories.NewMockDiscountRepository(),
	}
	for name, repo := range repos {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, repo.Create(ctx, &models.DiscountCode{Code: "glow10", Percent: decimal.NewFromInt(10), Active: true}))

			d, err := repo.GetByCode(ctx, " Glow10 ")
			require.NoError(t, err)
			assert.Equal(t, "GLOW10", d.Code)
			assert.True(t, d.IsValidAt(time.Now()))

			_, err = repo.GetByCode(ctx, "nope")
			assert.ErrorIs(t, err, repositories.ErrNotFound)
		})
	}
}

func TestProductRepository_Lookup(t *testing.T) {
	repos := map[string]repositories.ProductRepository{
		"gorm":   repositories.NewGORMProductRepository(openDB(t)),
		"memory": repositories.NewMockProductRepository(),
	}
	for name, repo := range repos {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			p := &models.Product{Slug: "night-cream", Name: "Night Cream", Category: "face", Price: decimal.RequireFromString("349.00"), Stock: 4}
			require.NoError(t, repo.Create(ctx, p))
			assert.NotEmpty(t, p.ID)

			byID, err := repo.GetByID(ctx, p.ID)
			require.NoError(t, err)
			assert.Equal(t, "Night Cream", byID.Name)
			assert.True(t, byID.Price.Equal(decimal.NewFromInt(349)))

			bySlug, err := repo.GetBySlug(ctx, "night-cream")
			require.NoError(t, err)
			assert.Equal(t, p.ID, bySlug.ID)

			all, err := repo.GetAll(ctx)
			require.NoError(t, err)
			assert.Len(t, all, 1)

			_, err = repo.GetBySlug(ctx, "missing")
			assert.ErrorIs(t, err, repositories.ErrNotFound)
		})
	}
}

func TestDiscountCode_Window(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	d := models.DiscountCode{Code: "X", Percent: decimal.NewFromInt(15), Active: true, ValidFrom: &past, ValidTo: &future}
	assert.True(t, d.IsValidAt(now))
	assert.False(t, d.IsValidAt(future.Add(time.Second)))
	assert.False(t, d.IsValidAt(past.Add(-time.Second)))

	d.Active = false
	assert.False(t, d.IsValidAt(now))

	d.Active = true
	d.Percent = decimal.NewFromInt(120)
	assert.False(t, d.IsValidAt(now))
}

func TestUserRepository_Lookup(t *testing.T) {
	repos := map[string]repositories.UserRepository{
		"gorm":   repositories.NewGORMUserRepository(openDB(t)),
		"memory": repositories.NewMockUserRepository(),
	}
	for name, repo := range repos {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			u := &models.User{Username: "elin", Email: "elin@example.com", Password: "hash"}
			require.NoError(t, repo.Create(ctx, u))
			assert.NotEmpty(t, u.ID)

			byName, err := repo.GetByUsername(ctx, "elin")
			require.NoError(t, err)
			assert.Equal(t, u.ID, byName.ID)

			byEmail, err := repo.GetByEmail(ctx, "elin@example.com")
			require.NoError(t, err)
			assert.Equal(t, "elin", byEmail.Username)

			_, err = repo.GetByID(ctx, "missing")
			assert.ErrorIs(t, err, repositories.ErrNotFound)

			assert.Error(t, repo.Create(ctx, &models.User{Username: "elin", Email: "other@example.com"}))
		})
	}
}
