package shop

import (
	"context"

	"gorm.io/gorm"

	"github.com/kbukum/shopstream/database"
	"github.com/kbukum/shopstream/deferred"
	"github.com/kbukum/shopstream/pipeline"
)

// OrderStore reads and writes orders.
type OrderStore struct {
	db *gorm.DB
}

// NewOrderStore creates a store over db.
func NewOrderStore(db *database.DB) *OrderStore {
	return &OrderStore{db: db.GormDB}
}

// Create inserts order with its product links and resolves to its id.
func (s *OrderStore) Create(order Order) *deferred.Deferred[uint] {
	return deferred.From(func(ctx context.Context) (uint, error) {
		if err := s.db.WithContext(ctx).Create(&order).Error; err != nil {
			return 0, database.FromDatabase(err, "order", "")
		}
		return order.ID, nil
	})
}

// ForUser streams the orders of user in id order, products included.
func (s *OrderStore) ForUser(user UserProfile) *pipeline.Pipeline[Order] {
	return pipeline.FromFunc(func(_ context.Context) pipeline.Iterator[Order] {
		return &ordersIter{db: s.db, userID: user.ID}
	})
}

// ordersIter loads a user's orders on the first Next. The product
// association needs a second query per page, which a row cursor cannot
// provide.
type ordersIter struct {
	db     *gorm.DB
	userID uint
	orders []Order
	loaded bool
	pos    int
}

func (it *ordersIter) Next(ctx context.Context) (Order, bool, error) {
	if !it.loaded {
		err := it.db.WithContext(ctx).
			Preload("Products", func(tx *gorm.DB) *gorm.DB { return tx.Order("products.id") }).
			Where("user_id = ?", it.userID).
			Order("id").
			Find(&it.orders).Error
		if err != nil {
			return Order{}, false, upstream("orders of user "+idString(it.userID), err)
		}
		it.loaded = true
	}
	if it.pos >= len(it.orders) {
		return Order{}, false, nil
	}
	o := it.orders[it.pos]
	it.pos++
	return o, true, nil
}

func (it *ordersIter) Close() error { return nil }
