package app

import (
	"errors"
	"testing"
)

func TestVerifyOwnerSuccess(t *testing.T) {
	a, mem, _ := newTestApp(t)
	owner := seedOwner(t, mem, "Asha", "9876543210", "1234")
	seedDocument(t, mem, owner.ID, "a.pdf", 100)

	user, token, err := a.VerifyOwner("9876543210", "1234")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if user.ID != owner.ID {
		t.Fatalf("user = %s, want %s", user.ID, owner.ID)
	}
	identity, ok := a.IdentityFromToken(token)
	if !ok {
		t.Fatalf("token must validate")
	}
	if !identity.Owner {
		t.Fatalf("token must carry the owner flag")
	}
}

func TestVerifyOwnerAcceptsCountryPrefix(t *testing.T) {
	a, mem, _ := newTestApp(t)
	owner := seedOwner(t, mem, "Asha", "9876543210", "1234")
	seedDocument(t, mem, owner.ID, "a.pdf", 100)

	if _, _, err := a.VerifyOwner("+91 98765 43210", "1234"); err != nil {
		t.Fatalf("prefixed phone must verify: %v", err)
	}
}

func TestVerifyOwnerWrongPIN(t *testing.T) {
	a, mem, _ := newTestApp(t)
	owner := seedOwner(t, mem, "Asha", "9876543210", "1234")
	seedDocument(t, mem, owner.ID, "a.pdf", 100)

	_, _, err := a.VerifyOwner("9876543210", "9999")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong PIN: got %v, want ErrInvalidCredentials", err)
	}
}

func TestVerifyOwnerUnknownPhoneSameError(t *testing.T) {
	a, mem, _ := newTestApp(t)
	owner := seedOwner(t, mem, "Asha", "9876543210", "1234")
	seedDocument(t, mem, owner.ID, "a.pdf", 100)

	_, _, wrongPIN := a.VerifyOwner("9876543210", "9999")
	_, _, unknownPhone := a.VerifyOwner("1112223334", "1234")
	if !errors.Is(wrongPIN, ErrInvalidCredentials) || !errors.Is(unknownPhone, ErrInvalidCredentials) {
		t.Fatalf("both failures must be ErrInvalidCredentials, got %v / %v", wrongPIN, unknownPhone)
	}
}

func TestVerifyOwnerNoDocuments(t *testing.T) {
	a, mem, _ := newTestApp(t)
	seedOwner(t, mem, "Asha", "9876543210", "1234")

	_, _, err := a.VerifyOwner("9876543210", "1234")
	if !errors.Is(err, ErrNoDocuments) {
		t.Fatalf("owner without documents: got %v, want ErrNoDocuments", err)
	}
}

func TestVerifyOwnerMissingCredentials(t *testing.T) {
	a, _, _ := newTestApp(t)
	if _, _, err := a.VerifyOwner("", "1234"); !errors.Is(err, ErrCredentialsRequired) {
		t.Fatalf("missing phone: got %v", err)
	}
	if _, _, err := a.VerifyOwner("9876543210", ""); !errors.Is(err, ErrCredentialsRequired) {
		t.Fatalf("missing PIN: got %v", err)
	}
}
