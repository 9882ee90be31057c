package app

import (
	"fmt"
	"strings"
	"time"

	"docvault/internal/util"
	"docvault/pkg/auth"
	"docvault/pkg/domain"
	"docvault/pkg/store"
)

// SignUp registers a new owner on the default plan. Phone and PIN are
// optional; when both are supplied the account can later re-authenticate for
// owner-elevated actions.
func (a *App) SignUp(name, email, password, phone, pin string) (domain.User, string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.User{}, "", ErrNameRequired
	}
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return domain.User{}, "", ErrEmailAndPasswordRequired
	}
	exists, err := a.store.HasUserEmail(email)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("check email: %w", err)
	}
	if exists {
		return domain.User{}, "", ErrEmailAlreadyExists
	}

	normalizedPhone := ""
	if strings.TrimSpace(phone) != "" {
		normalizedPhone = auth.NormalizePhone(phone)
		if !auth.ValidPhone(normalizedPhone) {
			return domain.User{}, "", ErrPhoneInvalid
		}
	}
	pinHash := ""
	if pin != "" {
		if !validPIN(pin) {
			return domain.User{}, "", ErrPINInvalid
		}
		pinHash, err = auth.HashPIN(pin)
		if err != nil {
			return domain.User{}, "", fmt.Errorf("hash pin: %w", err)
		}
	}

	now := time.Now().UTC()
	user := domain.User{
		ID:           util.NewID(),
		Name:         name,
		Email:        email,
		PasswordHash: auth.HashPassword(password),
		Phone:        normalizedPhone,
		PINHash:      pinHash,
		PlanID:       a.defaultPlan.ID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.store.SaveUser(user); err != nil {
		return domain.User{}, "", fmt.Errorf("save user: %w", err)
	}
	token, err := a.sessions.NewSession(user.ID)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("issue session: %w", err)
	}
	return user, token, nil
}

// Login validates credentials and issues a session token.
func (a *App) Login(email, password string) (domain.User, string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return domain.User{}, "", ErrEmailAndPasswordRequired
	}
	user, ok, err := a.store.GetUserByEmail(email)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("fetch user: %w", err)
	}
	if !ok || !auth.CheckPassword(password, user.PasswordHash) {
		return domain.User{}, "", ErrInvalidCredentials
	}
	token, err := a.sessions.NewSession(user.ID)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("issue session: %w", err)
	}
	return user, token, nil
}

// IdentityFromToken resolves the caller identity behind a bearer token.
func (a *App) IdentityFromToken(token string) (store.Identity, bool) {
	identity, ok, err := a.sessions.TokenIdentity(token)
	if err != nil || !ok {
		return store.Identity{}, false
	}
	return identity, true
}

// UserFromToken resolves the full user record behind a bearer token.
func (a *App) UserFromToken(token string) (domain.User, bool) {
	identity, ok := a.IdentityFromToken(token)
	if !ok {
		return domain.User{}, false
	}
	user, found, err := a.store.GetUserByID(identity.UserID)
	if err != nil || !found {
		return domain.User{}, false
	}
	return user, true
}

func validPIN(pin string) bool {
	if len(pin) < 4 || len(pin) > 6 {
		return false
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
