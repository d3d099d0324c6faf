package shop

import (
	"context"
	"math/rand/v2"
	"sync"

	"gorm.io/gorm"

	"github.com/kbukum/shopstream/database"
	"github.com/kbukum/shopstream/deferred"
	"github.com/kbukum/shopstream/pipeline"
	"github.com/kbukum/shopstream/validation"
)

// ProductStore reads and writes catalog products.
type ProductStore struct {
	db *gorm.DB

	mu  sync.Mutex
	rng *rand.Rand
}

// NewProductStore creates a store over db. rng drives RecommendedOne and
// must not be shared with other stores.
func NewProductStore(db *database.DB, rng *rand.Rand) *ProductStore {
	return &ProductStore{db: db.GormDB, rng: rng}
}

// Create inserts a product and resolves to its id.
func (s *ProductStore) Create(name string) *deferred.Deferred[uint] {
	return deferred.From(func(ctx context.Context) (uint, error) {
		p := Product{Name: name}
		if err := validation.Struct(&p); err != nil {
			return 0, err
		}
		if err := s.db.WithContext(ctx).Create(&p).Error; err != nil {
			return 0, database.FromDatabase(err, "product", name)
		}
		return p.ID, nil
	})
}

// FindByName resolves to the product called name or fails with NOT_FOUND.
func (s *ProductStore) FindByName(name string) *deferred.Deferred[Product] {
	return deferred.From(func(ctx context.Context) (Product, error) {
		var p Product
		if err := s.db.WithContext(ctx).Where("name = ?", name).First(&p).Error; err != nil {
			return Product{}, lookupError(err, "product", name)
		}
		return p, nil
	})
}

// StreamAll streams every product in id order.
func (s *ProductStore) StreamAll() *pipeline.Pipeline[Product] {
	return streamRows(s.db, "products", func(p Product) uint { return p.ID })
}

// RecommendedOne resolves to a randomly chosen product.
func (s *ProductStore) RecommendedOne() *deferred.Deferred[Product] {
	return deferred.From(func(ctx context.Context) (Product, error) {
		var p Product
		if err := randomRow(ctx, s.db, &s.mu, s.rng, &p); err != nil {
			return Product{}, lookupError(err, "product", "")
		}
		return p, nil
	})
}
