package shop

import (
	"context"
	"math/rand/v2"
	"strconv"
	"sync"

	"gorm.io/gorm"

	"github.com/kbukum/shopstream/database"
	"github.com/kbukum/shopstream/deferred"
	"github.com/kbukum/shopstream/errors"
	"github.com/kbukum/shopstream/pipeline"
	"github.com/kbukum/shopstream/validation"
)

// UserStore reads and writes user profiles.
type UserStore struct {
	db *gorm.DB

	mu  sync.Mutex
	rng *rand.Rand
}

// NewUserStore creates a store over db. rng drives RandomOne and must not
// be shared with other stores.
func NewUserStore(db *database.DB, rng *rand.Rand) *UserStore {
	return &UserStore{db: db.GormDB, rng: rng}
}

// Create inserts a user and resolves to its id.
func (s *UserStore) Create(name string) *deferred.Deferred[uint] {
	return deferred.From(func(ctx context.Context) (uint, error) {
		u := UserProfile{Name: name}
		if err := validation.Struct(&u); err != nil {
			return 0, err
		}
		if err := s.db.WithContext(ctx).Create(&u).Error; err != nil {
			return 0, database.FromDatabase(err, "user", name)
		}
		return u.ID, nil
	})
}

// FindByName resolves to the user called name or fails with NOT_FOUND.
func (s *UserStore) FindByName(name string) *deferred.Deferred[UserProfile] {
	return deferred.From(func(ctx context.Context) (UserProfile, error) {
		var u UserProfile
		err := s.db.WithContext(ctx).Where("name = ?", name).First(&u).Error
		if err != nil {
			return UserProfile{}, lookupError(err, "user", name)
		}
		return u, nil
	})
}

// StreamAll streams every user in id order.
func (s *UserStore) StreamAll() *pipeline.Pipeline[UserProfile] {
	return streamRows(s.db, "users", func(u UserProfile) uint { return u.ID })
}

// RandomOne resolves to a uniformly chosen user.
func (s *UserStore) RandomOne() *deferred.Deferred[UserProfile] {
	return deferred.From(func(ctx context.Context) (UserProfile, error) {
		var u UserProfile
		if err := randomRow(ctx, s.db, &s.mu, s.rng, &u); err != nil {
			return UserProfile{}, lookupError(err, "user", "")
		}
		return u, nil
	})
}

// randomRow loads the row at a random offset of dest's table.
func randomRow[T any](ctx context.Context, db *gorm.DB, mu *sync.Mutex, rng *rand.Rand, dest *T) error {
	var n int64
	if err := db.WithContext(ctx).Model(dest).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return gorm.ErrRecordNotFound
	}
	mu.Lock()
	idx := rng.IntN(int(n))
	mu.Unlock()
	return db.WithContext(ctx).Order("id").Offset(idx).Take(dest).Error
}

// lookupError keeps NOT_FOUND and context errors and reports anything else
// as an upstream failure of the store.
func lookupError(err error, resource, id string) error {
	appErr := database.FromDatabase(err, resource, id)
	if appErr.Code == errors.ErrCodeNotFound || errors.FromContext(err) != nil {
		return appErr
	}
	return errors.UpstreamFailure(resource+" store", err)
}

func idString(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
