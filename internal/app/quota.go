package app

import (
	"fmt"

	"docvault/pkg/domain"
)

// CheckStorage is the advisory quota check called before an upload begins.
// A plan limit of zero means unlimited. The check and the later commit are
// separate operations: concurrent uploads from one owner can race past the
// limit by one in-flight upload's size, which this product accepts.
func (a *App) CheckStorage(ownerID string, incomingBytes int64) (domain.StorageCheck, error) {
	if incomingBytes <= 0 {
		return domain.StorageCheck{}, ErrInvalidSize
	}
	user, ok, err := a.store.GetUserByID(ownerID)
	if err != nil {
		return domain.StorageCheck{}, fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		return domain.StorageCheck{}, ErrNotFound
	}
	plan, found, err := a.store.GetPlan(user.PlanID)
	if err != nil {
		return domain.StorageCheck{}, fmt.Errorf("fetch plan: %w", err)
	}
	if !found {
		return domain.StorageCheck{}, ErrNotFound
	}
	wouldBeUsed := user.StorageUsed + incomingBytes
	return domain.StorageCheck{
		Allowed:     plan.StorageLimitBytes == 0 || wouldBeUsed <= plan.StorageLimitBytes,
		Used:        user.StorageUsed,
		Limit:       plan.StorageLimitBytes,
		WouldBeUsed: wouldBeUsed,
		PlanName:    plan.Name,
	}, nil
}

// commitStorage records bytes consumed or released after the blob operation
// completed.
func (a *App) commitStorage(ownerID string, delta int64) error {
	if err := a.store.AddStorageUsed(ownerID, delta); err != nil {
		return fmt.Errorf("commit storage: %w", err)
	}
	return nil
}
