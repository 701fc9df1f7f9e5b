package storage

import (
	"context"

	"github.com/chris/escrow-settlement/pkg/models"
)

// ItemCatalog is the slice of the listing catalog the engine reads. Item status and
// stock only change inside the payment transactions that hold or settle them.
type ItemCatalog interface {
	// GetItem retrieves an item by its ID.
	GetItem(ctx context.Context, itemID string) (*models.Item, error)
}
