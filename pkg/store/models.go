package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.
type UserModel struct {
	ID           string `gorm:"primaryKey"`
	Name         string `gorm:"not null"`
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	Phone        string `gorm:"index"`
	PINHash      string `gorm:"column:pin_hash"`
	StorageUsed  int64  `gorm:"not null;default:0"`
	PlanID       string
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time
}

type PlanModel struct {
	ID                string `gorm:"primaryKey"`
	Name              string `gorm:"not null"`
	StorageLimitBytes int64  `gorm:"not null;default:0"`
}

type DocumentModel struct {
	ID         string `gorm:"primaryKey"`
	OwnerID    string `gorm:"not null;index"`
	Name       string `gorm:"not null"`
	MimeType   string
	SizeBytes  int64 `gorm:"not null"`
	PageCount  int
	StorageKey string
	BlobID     string
	CreatedAt  time.Time `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"not null"`
}

type ShareCodeModel struct {
	ID         string `gorm:"primaryKey"`
	OwnerID    string `gorm:"not null;index"`
	Code       string `gorm:"uniqueIndex;not null"`
	AccessCode string
	Active     bool      `gorm:"not null;index"`
	ExpiresAt  time.Time `gorm:"not null"`
	CreatedAt  time.Time `gorm:"not null"`
}

type AccessRequestModel struct {
	ID             string `gorm:"primaryKey"`
	ShareCodeID    string `gorm:"not null;index"`
	OwnerID        string `gorm:"not null;index"`
	RequesterName  string `gorm:"not null"`
	RequesterPhone string `gorm:"not null"`
	Status         string `gorm:"not null;index"`
	Permission     string
	CreatedAt      time.Time `gorm:"not null"`
	UpdatedAt      time.Time `gorm:"not null"`
}

type RequestedDocumentModel struct {
	ID         string `gorm:"primaryKey"`
	RequestID  string `gorm:"not null;index"`
	DocumentID string `gorm:"not null;index"`
}

type EventModel struct {
	ID        string `gorm:"primaryKey"`
	Kind      string `gorm:"not null;index"`
	RequestID string `gorm:"index"`
	OwnerID   string `gorm:"index"`
	Payload   datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt time.Time      `gorm:"not null;index"`
}
