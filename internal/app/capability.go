package app

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"docvault/internal/util"
	"docvault/pkg/domain"
)

// shareCodeTTL bounds how long an issued share code stays valid.
const shareCodeTTL = 30 * 24 * time.Hour

// IssueShareCode mints a fresh share code for the owner. Every previously
// issued code for the same owner is deactivated in the same transaction, so
// exactly one code stays active.
func (a *App) IssueShareCode(ownerID string) (domain.ShareCode, error) {
	code, err := newShareCode()
	if err != nil {
		return domain.ShareCode{}, fmt.Errorf("generate share code: %w", err)
	}
	now := time.Now().UTC()
	shareCode := domain.ShareCode{
		ID:        util.NewID(),
		OwnerID:   ownerID,
		Code:      code,
		Active:    true,
		ExpiresAt: now.Add(shareCodeTTL),
		CreatedAt: now,
	}
	if err := a.store.IssueShareCode(shareCode); err != nil {
		return domain.ShareCode{}, fmt.Errorf("issue share code: %w", err)
	}
	return shareCode, nil
}

// ValidateShareCode resolves an active, unexpired code to its owner and the
// owner's current document list. Read-only; safe to call repeatedly.
func (a *App) ValidateShareCode(code string) (domain.User, []domain.Document, error) {
	shareCode, ok, err := a.store.GetActiveShareCode(code)
	if err != nil {
		return domain.User{}, nil, fmt.Errorf("fetch share code: %w", err)
	}
	if !ok || shareCode.Expired(time.Now().UTC()) {
		return domain.User{}, nil, ErrInvalidCapability
	}
	owner, found, err := a.store.GetUserByID(shareCode.OwnerID)
	if err != nil {
		return domain.User{}, nil, fmt.Errorf("fetch owner: %w", err)
	}
	if !found {
		return domain.User{}, nil, ErrInvalidCapability
	}
	documents, err := a.store.ListDocumentsByOwner(owner.ID)
	if err != nil {
		return domain.User{}, nil, fmt.Errorf("list documents: %w", err)
	}
	return owner, documents, nil
}

func newShareCode() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
