package app

import (
	"fmt"
	"strings"

	"docvault/pkg/auth"
	"docvault/pkg/domain"
)

// dummyPINHash keeps the PIN comparison on the same code path when no owner
// matches the phone, so the error timing does not reveal account existence.
const dummyPINHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// VerifyOwner re-authenticates an owner with phone and PIN and mints a
// short-lived owner-elevated token. Any mismatch returns ErrInvalidCredentials;
// an owner with zero documents returns ErrNoDocuments.
func (a *App) VerifyOwner(phone, pin string) (domain.User, string, error) {
	if strings.TrimSpace(phone) == "" || strings.TrimSpace(pin) == "" {
		return domain.User{}, "", ErrCredentialsRequired
	}
	normalized := auth.NormalizePhone(phone)
	user, ok, err := a.store.GetUserByPhone(normalized)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("fetch owner: %w", err)
	}
	if !ok || user.PINHash == "" {
		auth.CheckPIN(pin, dummyPINHash)
		return domain.User{}, "", ErrInvalidCredentials
	}
	if !auth.CheckPIN(pin, user.PINHash) {
		return domain.User{}, "", ErrInvalidCredentials
	}
	count, err := a.store.CountDocumentsByOwner(user.ID)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("count documents: %w", err)
	}
	if count == 0 {
		return domain.User{}, "", ErrNoDocuments
	}
	token, err := a.sessions.NewOwnerSession(user.ID)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("issue owner session: %w", err)
	}
	return user, token, nil
}
