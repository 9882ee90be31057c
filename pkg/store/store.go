package store

import (
	"errors"

	"docvault/pkg/domain"
)

// ErrRequestNotPending is returned when a terminal access request is asked to
// transition again.
var ErrRequestNotPending = errors.New("access request is not pending")

// Store defines persistence operations for owners, documents, share codes,
// and access requests.
type Store interface {
	// users & plans
	SaveUser(domain.User) error
	HasUserEmail(email string) (bool, error)
	GetUserByEmail(email string) (domain.User, bool, error)
	GetUserByID(id string) (domain.User, bool, error)
	GetUserByPhone(phone string) (domain.User, bool, error)
	SavePlan(domain.Plan) error
	GetPlan(id string) (domain.Plan, bool, error)
	// AddStorageUsed atomically adjusts the owner's used-storage counter.
	AddStorageUsed(ownerID string, delta int64) error

	// documents
	SaveDocument(domain.Document) error
	GetDocument(id string) (domain.Document, bool, error)
	ListDocumentsByOwner(ownerID string) ([]domain.Document, error)
	CountDocumentsByOwner(ownerID string) (int, error)
	DeleteDocument(id string) error

	// share codes
	// IssueShareCode inserts the new code and deactivates every other code
	// for the same owner in one transaction.
	IssueShareCode(domain.ShareCode) error
	GetActiveShareCode(code string) (domain.ShareCode, bool, error)

	// access requests
	// CreateAccessRequest persists the request plus one requested-document
	// row per document, atomically.
	CreateAccessRequest(req domain.AccessRequest, documentIDs []string) error
	GetAccessRequest(id string) (domain.AccessRequest, bool, error)
	ListRequestedDocuments(requestID string) ([]domain.Document, error)
	// ApproveAccessRequest prunes requested-document rows outside keepIDs and
	// flips the request to approved with the given permission, in one
	// transaction. Returns ErrRequestNotPending unless the request is still
	// pending.
	ApproveAccessRequest(id string, keepIDs []string, permission domain.PermissionLevel) error
	// DenyAccessRequest flips the request to denied. Returns
	// ErrRequestNotPending unless the request is still pending.
	DenyAccessRequest(id string) error
	// FindApprovedRequestForDocument returns an approved request whose
	// requested-document set still contains the document.
	FindApprovedRequestForDocument(documentID string) (domain.AccessRequest, bool, error)

	// notification outbox
	SaveEvent(domain.Event) error
}

// SessionStore issues and validates bearer tokens.
type SessionStore interface {
	// NewSession mints a normal login token for the user.
	NewSession(userID string) (string, error)
	// NewOwnerSession mints a short-lived token carrying the owner-elevated
	// flag, used after phone+PIN re-authentication.
	NewOwnerSession(userID string) (string, error)
	// TokenIdentity validates a token and returns the caller identity.
	TokenIdentity(token string) (Identity, bool, error)
}

// Identity is the resolved caller of an authenticated request.
type Identity struct {
	UserID string
	// Owner marks tokens minted through phone+PIN re-authentication.
	Owner bool
}
