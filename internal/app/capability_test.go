package app

import (
	"errors"
	"testing"
	"time"

	"docvault/internal/util"
	"docvault/pkg/domain"
)

func TestIssueShareCodeDeactivatesPrior(t *testing.T) {
	a, mem, _ := newTestApp(t)
	owner := seedOwner(t, mem, "Asha", "", "")
	seedDocument(t, mem, owner.ID, "a.pdf", 100)

	first, err := a.IssueShareCode(owner.ID)
	if err != nil {
		t.Fatalf("issue first: %v", err)
	}
	second, err := a.IssueShareCode(owner.ID)
	if err != nil {
		t.Fatalf("issue second: %v", err)
	}
	if first.Code == second.Code {
		t.Fatalf("codes must be unique")
	}

	if _, _, err := a.ValidateShareCode(first.Code); !errors.Is(err, ErrInvalidCapability) {
		t.Fatalf("old code must be invalid, got %v", err)
	}
	gotOwner, docs, err := a.ValidateShareCode(second.Code)
	if err != nil {
		t.Fatalf("validate new code: %v", err)
	}
	if gotOwner.ID != owner.ID {
		t.Fatalf("owner = %s, want %s", gotOwner.ID, owner.ID)
	}
	if len(docs) != 1 || docs[0].Name != "a.pdf" {
		t.Fatalf("unexpected document list: %+v", docs)
	}
}

func TestValidateExpiredShareCode(t *testing.T) {
	a, mem, _ := newTestApp(t)
	owner := seedOwner(t, mem, "Asha", "", "")
	expired := domain.ShareCode{
		ID:        util.NewID(),
		OwnerID:   owner.ID,
		Code:      "expired-code",
		Active:    true,
		ExpiresAt: time.Now().UTC().Add(-time.Hour),
		CreatedAt: time.Now().UTC().Add(-31 * 24 * time.Hour),
	}
	if err := mem.IssueShareCode(expired); err != nil {
		t.Fatalf("seed code: %v", err)
	}
	if _, _, err := a.ValidateShareCode("expired-code"); !errors.Is(err, ErrInvalidCapability) {
		t.Fatalf("expired code must be invalid, got %v", err)
	}
}

func TestValidateUnknownShareCode(t *testing.T) {
	a, _, _ := newTestApp(t)
	if _, _, err := a.ValidateShareCode("no-such-code"); !errors.Is(err, ErrInvalidCapability) {
		t.Fatalf("unknown code must be invalid, got %v", err)
	}
}

func TestIssueShareCodeExpiry(t *testing.T) {
	a, mem, _ := newTestApp(t)
	owner := seedOwner(t, mem, "Asha", "", "")
	code, err := a.IssueShareCode(owner.ID)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	lifetime := time.Until(code.ExpiresAt)
	if lifetime < 29*24*time.Hour || lifetime > 30*24*time.Hour {
		t.Fatalf("expiry %v outside the 30-day window", lifetime)
	}
}
