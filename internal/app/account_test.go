package app

import (
	"errors"
	"testing"
)

func TestSignUpAndLogin(t *testing.T) {
	a, _, _ := newTestApp(t)

	user, token, err := a.SignUp("Asha", "Asha@Example.com", "secret123", "+91 98765 43210", "1234")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if user.Email != "asha@example.com" {
		t.Fatalf("email = %q, want lowercased", user.Email)
	}
	if user.Phone != "9876543210" {
		t.Fatalf("phone = %q, want normalized 10 digits", user.Phone)
	}
	if user.PlanID != "free" {
		t.Fatalf("planId = %q, want default plan", user.PlanID)
	}
	if _, ok := a.UserFromToken(token); !ok {
		t.Fatalf("signup token must resolve")
	}

	logged, token, err := a.Login("asha@example.com", "secret123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if logged.ID != user.ID {
		t.Fatalf("login resolved %s, want %s", logged.ID, user.ID)
	}
	identity, ok := a.IdentityFromToken(token)
	if !ok || identity.Owner {
		t.Fatalf("login token must resolve without the owner flag")
	}
}

func TestSignUpDuplicateEmail(t *testing.T) {
	a, _, _ := newTestApp(t)
	if _, _, err := a.SignUp("Asha", "asha@example.com", "secret123", "", ""); err != nil {
		t.Fatalf("first signup: %v", err)
	}
	if _, _, err := a.SignUp("Other", "asha@example.com", "secret456", "", ""); !errors.Is(err, ErrEmailAlreadyExists) {
		t.Fatalf("got %v, want ErrEmailAlreadyExists", err)
	}
}

func TestSignUpValidation(t *testing.T) {
	a, _, _ := newTestApp(t)
	if _, _, err := a.SignUp("", "a@example.com", "pw", "", ""); !errors.Is(err, ErrNameRequired) {
		t.Fatalf("missing name: got %v", err)
	}
	if _, _, err := a.SignUp("Asha", "", "pw", "", ""); !errors.Is(err, ErrEmailAndPasswordRequired) {
		t.Fatalf("missing email: got %v", err)
	}
	if _, _, err := a.SignUp("Asha", "a@example.com", "pw", "12345", ""); !errors.Is(err, ErrPhoneInvalid) {
		t.Fatalf("bad phone: got %v", err)
	}
	if _, _, err := a.SignUp("Asha", "a@example.com", "pw", "", "12"); !errors.Is(err, ErrPINInvalid) {
		t.Fatalf("bad pin: got %v", err)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	a, _, _ := newTestApp(t)
	if _, _, err := a.SignUp("Asha", "asha@example.com", "secret123", "", ""); err != nil {
		t.Fatalf("signup: %v", err)
	}
	if _, _, err := a.Login("asha@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("got %v, want ErrInvalidCredentials", err)
	}
}
