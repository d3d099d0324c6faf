package shop

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/kbukum/shopstream/database"
	"github.com/kbukum/shopstream/logger"
	"github.com/kbukum/shopstream/storage"
)

// Demo catalog inserted by Seed.
var (
	SeedUsers    = []string{"Alice", "Bob"}
	SeedProducts = []string{"Pen", "Hat", "blue notebook", "coffee mug", "wool scarf"}
)

// Seed inserts the demo users, products and Bob's order of a pen and a hat,
// and stores a sample chunk file. It does nothing when users already exist.
func Seed(ctx context.Context, db *database.DB, files storage.Storage, chunkFile string, log *logger.Logger) error {
	var n int64
	if err := db.WithContext(ctx).Model(&UserProfile{}).Count(&n).Error; err != nil {
		return fmt.Errorf("seed: count users: %w", err)
	}
	if n > 0 {
		log.Debug("Seed skipped, users present", logger.Fields("users", n))
		return nil
	}

	users := make([]UserProfile, len(SeedUsers))
	for i, name := range SeedUsers {
		users[i] = UserProfile{Name: name}
	}
	products := make([]Product, len(SeedProducts))
	for i, name := range SeedProducts {
		products[i] = Product{Name: name}
	}

	err := db.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&users).Error; err != nil {
			return err
		}
		if err := tx.Create(&products).Error; err != nil {
			return err
		}
		order := Order{UserID: users[1].ID, Products: []Product{products[0], products[1]}}
		return tx.Create(&order).Error
	})
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}

	if files != nil && chunkFile != "" {
		ok, err := files.Exists(ctx, chunkFile)
		if err != nil {
			return fmt.Errorf("seed: check %s: %w", chunkFile, err)
		}
		if !ok {
			if err := files.Upload(ctx, chunkFile, strings.NewReader(sampleText)); err != nil {
				return fmt.Errorf("seed: upload %s: %w", chunkFile, err)
			}
		}
	}

	log.Info("Demo data seeded", logger.Fields("users", len(users), "products", len(products), "orders", 1))
	return nil
}

const sampleText = `Well, Prince, so Genoa and Lucca are now just family estates of the
Buonapartes. But I warn you, if you don't tell me that this means war, if you
still try to defend the infamies and horrors perpetrated by that Antichrist,
I really believe he is Antichrist, I will have nothing more to do with you and
you are no longer my friend, no longer my 'faithful slave,' as you call
yourself! But how do you do? I see I have frightened you. Sit down and tell me
all the news.

It was in July, 1805, and the speaker was the well-known Anna Pavlovna
Scherer, maid of honor and favorite of the Empress Marya Fedorovna. With these
words she greeted Prince Vasili Kuragin, a man of high rank and importance,
who was the first to arrive at her reception. Anna Pavlovna had had a cough
for some days. She was, as she said, suffering from la grippe; grippe being
then a new word in St. Petersburg, used only by the elite.
`
