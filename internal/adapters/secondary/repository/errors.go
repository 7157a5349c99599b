package repository

import (
	"fmt"

	"github.com/jupiterclapton/cenackle-feed/internal/core/domain"
)

// storeError marks a driver failure (including deadline and cancellation) as
// domain.ErrStoreUnavailable while keeping the driver error in the chain.
func storeError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStoreUnavailable, err)
}
