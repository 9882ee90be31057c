package domain

import "time"

type RequestStatus string

const (
	StatusPending  RequestStatus = "pending"
	StatusApproved RequestStatus = "approved"
	StatusDenied   RequestStatus = "denied"
)

// ParseRequestStatus rejects anything outside the closed enumeration.
func ParseRequestStatus(raw string) (RequestStatus, bool) {
	switch RequestStatus(raw) {
	case StatusPending, StatusApproved, StatusDenied:
		return RequestStatus(raw), true
	default:
		return "", false
	}
}

// Terminal reports whether the status permits no further transitions.
func (s RequestStatus) Terminal() bool {
	return s == StatusApproved || s == StatusDenied
}

type PermissionLevel string

const (
	PermissionViewOnly        PermissionLevel = "view_only"
	PermissionViewAndDownload PermissionLevel = "view_and_download"
)

// ParsePermissionLevel rejects anything outside the closed enumeration.
func ParsePermissionLevel(raw string) (PermissionLevel, bool) {
	switch PermissionLevel(raw) {
	case PermissionViewOnly, PermissionViewAndDownload:
		return PermissionLevel(raw), true
	default:
		return "", false
	}
}

// AllowsDownload reports whether the level grants byte-level download.
func (p PermissionLevel) AllowsDownload() bool {
	return p == PermissionViewAndDownload
}

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Phone        string    `json:"phone,omitempty"`
	PINHash      string    `json:"-"`
	StorageUsed  int64     `json:"storageUsed"`
	PlanID       string    `json:"planId"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Plan bounds an owner's total document bytes. StorageLimitBytes == 0 means
// the plan is unlimited.
type Plan struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	StorageLimitBytes int64  `json:"storageLimitBytes"`
}

type Document struct {
	ID         string    `json:"id"`
	OwnerID    string    `json:"ownerId"`
	Name       string    `json:"name"`
	MimeType   string    `json:"mimeType"`
	SizeBytes  int64     `json:"sizeBytes"`
	PageCount  int       `json:"pageCount,omitempty"`
	StorageKey string    `json:"-"`
	BlobID     string    `json:"-"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// ShareCode is the scannable capability bound to one owner. At most one is
// active per owner; issuing a new one deactivates the rest.
type ShareCode struct {
	ID         string    `json:"id"`
	OwnerID    string    `json:"ownerId"`
	Code       string    `json:"code"`
	AccessCode string    `json:"accessCode,omitempty"`
	Active     bool      `json:"active"`
	ExpiresAt  time.Time `json:"expiresAt"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Expired reports whether the code is past its expiry at the given instant.
func (c ShareCode) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

type AccessRequest struct {
	ID             string          `json:"id"`
	ShareCodeID    string          `json:"shareCodeId"`
	OwnerID        string          `json:"ownerId"`
	RequesterName  string          `json:"requesterName"`
	RequesterPhone string          `json:"requesterPhone"`
	Status         RequestStatus   `json:"status"`
	Permission     PermissionLevel `json:"permission,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// RequestedDocument links one access request to one requested document.
type RequestedDocument struct {
	ID         string `json:"id"`
	RequestID  string `json:"requestId"`
	DocumentID string `json:"documentId"`
}

// Event is a notification emitted on access-request transitions. Delivery is
// best-effort; events are persisted as an outbox record and published to the
// configured bus.
type Event struct {
	ID        string         `json:"id"`
	Kind      string         `json:"kind"`
	RequestID string         `json:"requestId"`
	OwnerID   string         `json:"ownerId"`
	Payload   map[string]any `json:"payload,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

const (
	EventRequestCreated  = "access_request.created"
	EventRequestApproved = "access_request.approved"
	EventRequestDenied   = "access_request.denied"
)

// StorageCheck is the advisory quota verdict returned before an upload.
type StorageCheck struct {
	Allowed     bool   `json:"allowed"`
	Used        int64  `json:"used"`
	Limit       int64  `json:"limit"`
	WouldBeUsed int64  `json:"wouldBeUsed"`
	PlanName    string `json:"planName"`
}
