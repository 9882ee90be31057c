package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"docvault/internal/util"
	"docvault/pkg/domain"
)

const migrateLockID int64 = 48284828

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(
			&PlanModel{},
			&UserModel{},
			&DocumentModel{},
			&ShareCodeModel{},
			&AccessRequestModel{},
			&RequestedDocumentModel{},
			&EventModel{},
		); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		if err := tx.Exec(`
			DO $$
			BEGIN
				DELETE FROM requested_document_models d
				WHERE NOT EXISTS (SELECT 1 FROM access_request_models r WHERE r.id = d.request_id);
				IF NOT EXISTS (
					SELECT 1 FROM information_schema.table_constraints
					WHERE table_schema = 'public'
					AND table_name = 'requested_document_models'
					AND constraint_name = 'requested_document_models_request_id_fkey'
				) THEN
					ALTER TABLE requested_document_models
					ADD CONSTRAINT requested_document_models_request_id_fkey
					FOREIGN KEY (request_id) REFERENCES access_request_models(id) ON DELETE CASCADE;
				END IF;
			END $$;
		`).Error; err != nil {
			return fmt.Errorf("ensure requested document foreign keys: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// SaveUser registers or updates a user.
func (s *GormStore) SaveUser(u domain.User) error {
	model := userToModel(u)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "email", "password_hash", "phone", "pin_hash", "plan_id", "updated_at"}),
	}).Create(&model).Error
}

// HasUserEmail checks if email exists.
func (s *GormStore) HasUserEmail(email string) (bool, error) {
	var count int64
	if err := s.db.Model(&UserModel{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetUserByEmail looks up a user by email.
func (s *GormStore) GetUserByEmail(email string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.Where("email = ?", email).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByID returns a user by ID.
func (s *GormStore) GetUserByID(id string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByPhone looks up a user by normalized phone number.
func (s *GormStore) GetUserByPhone(phone string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.Where("phone = ?", phone).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// SavePlan stores or updates a subscription plan.
func (s *GormStore) SavePlan(p domain.Plan) error {
	model := PlanModel{ID: p.ID, Name: p.Name, StorageLimitBytes: p.StorageLimitBytes}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "storage_limit_bytes"}),
	}).Create(&model).Error
}

// GetPlan returns a plan by ID.
func (s *GormStore) GetPlan(id string) (domain.Plan, bool, error) {
	var model PlanModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Plan{}, false, nil
		}
		return domain.Plan{}, false, err
	}
	return domain.Plan{ID: model.ID, Name: model.Name, StorageLimitBytes: model.StorageLimitBytes}, true, nil
}

// AddStorageUsed adjusts the used-storage counter in a single UPDATE so
// concurrent commits never lose increments.
func (s *GormStore) AddStorageUsed(ownerID string, delta int64) error {
	return s.db.Model(&UserModel{}).
		Where("id = ?", ownerID).
		Updates(map[string]any{
			"storage_used": gorm.Expr("GREATEST(storage_used + ?, 0)", delta),
			"updated_at":   time.Now().UTC(),
		}).Error
}

// SaveDocument stores or updates a document.
func (s *GormStore) SaveDocument(d domain.Document) error {
	model := documentToModel(d)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "mime_type", "size_bytes", "page_count", "storage_key", "blob_id", "updated_at"}),
	}).Create(&model).Error
}

// GetDocument retrieves a document.
func (s *GormStore) GetDocument(id string) (domain.Document, bool, error) {
	var model DocumentModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Document{}, false, nil
		}
		return domain.Document{}, false, err
	}
	return documentFromModel(model), true, nil
}

// ListDocumentsByOwner returns the owner's documents ordered by created_at.
func (s *GormStore) ListDocumentsByOwner(ownerID string) ([]domain.Document, error) {
	var models []DocumentModel
	if err := s.db.Where("owner_id = ?", ownerID).Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Document, 0, len(models))
	for _, m := range models {
		res = append(res, documentFromModel(m))
	}
	return res, nil
}

// CountDocumentsByOwner returns the owner's document count.
func (s *GormStore) CountDocumentsByOwner(ownerID string) (int, error) {
	var count int64
	if err := s.db.Model(&DocumentModel{}).Where("owner_id = ?", ownerID).Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

// DeleteDocument removes document metadata and its requested-document rows.
func (s *GormStore) DeleteDocument(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&RequestedDocumentModel{}, "document_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&DocumentModel{}, "id = ?", id).Error
	})
}

// IssueShareCode inserts the code and deactivates all other codes of the
// owner in one transaction, so exactly one active code survives.
func (s *GormStore) IssueShareCode(c domain.ShareCode) error {
	model := shareCodeToModel(c)
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&model).Error; err != nil {
			return err
		}
		return tx.Model(&ShareCodeModel{}).
			Where("owner_id = ? AND id <> ?", c.OwnerID, c.ID).
			Update("active", false).Error
	})
}

// GetActiveShareCode returns the active share code matching the given value.
// Expiry is left to the caller so validation can distinguish clock sources.
func (s *GormStore) GetActiveShareCode(code string) (domain.ShareCode, bool, error) {
	var model ShareCodeModel
	if err := s.db.Where("code = ? AND active = ?", code, true).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.ShareCode{}, false, nil
		}
		return domain.ShareCode{}, false, err
	}
	return shareCodeFromModel(model), true, nil
}

// CreateAccessRequest persists the request and its requested-document rows
// atomically; a failure leaves no partial rows behind.
func (s *GormStore) CreateAccessRequest(req domain.AccessRequest, documentIDs []string) error {
	model := accessRequestToModel(req)
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&model).Error; err != nil {
			return err
		}
		rows := make([]RequestedDocumentModel, 0, len(documentIDs))
		for _, docID := range documentIDs {
			rows = append(rows, RequestedDocumentModel{
				ID:         util.NewID(),
				RequestID:  req.ID,
				DocumentID: docID,
			})
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	})
}

// GetAccessRequest retrieves an access request.
func (s *GormStore) GetAccessRequest(id string) (domain.AccessRequest, bool, error) {
	var model AccessRequestModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.AccessRequest{}, false, nil
		}
		return domain.AccessRequest{}, false, err
	}
	return accessRequestFromModel(model), true, nil
}

// ListRequestedDocuments returns the documents currently linked to a request.
func (s *GormStore) ListRequestedDocuments(requestID string) ([]domain.Document, error) {
	var models []DocumentModel
	if err := s.db.Model(&DocumentModel{}).
		Joins("JOIN requested_document_models rd ON rd.document_id = document_models.id").
		Where("rd.request_id = ?", requestID).
		Order("document_models.created_at ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Document, 0, len(models))
	for _, m := range models {
		res = append(res, documentFromModel(m))
	}
	return res, nil
}

// ApproveAccessRequest prunes and approves in one transaction. The status
// flip is conditional on the request still being pending, so a concurrent
// reader observes either the full pre-approval or full post-approval state.
func (s *GormStore) ApproveAccessRequest(id string, keepIDs []string, permission domain.PermissionLevel) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&AccessRequestModel{}).
			Where("id = ? AND status = ?", id, string(domain.StatusPending)).
			Updates(map[string]any{
				"status":     string(domain.StatusApproved),
				"permission": string(permission),
				"updated_at": time.Now().UTC(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrRequestNotPending
		}
		prune := tx.Where("request_id = ?", id)
		if len(keepIDs) > 0 {
			prune = prune.Where("document_id NOT IN ?", keepIDs)
		}
		return prune.Delete(&RequestedDocumentModel{}).Error
	})
}

// DenyAccessRequest flips a pending request to denied without touching its
// requested-document rows.
func (s *GormStore) DenyAccessRequest(id string) error {
	res := s.db.Model(&AccessRequestModel{}).
		Where("id = ? AND status = ?", id, string(domain.StatusPending)).
		Updates(map[string]any{
			"status":     string(domain.StatusDenied),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRequestNotPending
	}
	return nil
}

// FindApprovedRequestForDocument searches approved requests whose surviving
// requested-document set contains the document.
func (s *GormStore) FindApprovedRequestForDocument(documentID string) (domain.AccessRequest, bool, error) {
	var model AccessRequestModel
	err := s.db.Model(&AccessRequestModel{}).
		Joins("JOIN requested_document_models rd ON rd.request_id = access_request_models.id").
		Where("rd.document_id = ? AND access_request_models.status = ?", documentID, string(domain.StatusApproved)).
		Order("access_request_models.updated_at DESC").
		First(&model).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.AccessRequest{}, false, nil
		}
		return domain.AccessRequest{}, false, err
	}
	return accessRequestFromModel(model), true, nil
}

// SaveEvent appends a notification outbox record.
func (s *GormStore) SaveEvent(e domain.Event) error {
	payload, _ := json.Marshal(e.Payload)
	model := EventModel{
		ID:        e.ID,
		Kind:      e.Kind,
		RequestID: e.RequestID,
		OwnerID:   e.OwnerID,
		Payload:   payload,
		CreatedAt: e.CreatedAt,
	}
	return s.db.Create(&model).Error
}

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Phone:        u.Phone,
		PINHash:      u.PINHash,
		StorageUsed:  u.StorageUsed,
		PlanID:       u.PlanID,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	return domain.User{
		ID:           m.ID,
		Name:         m.Name,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		Phone:        m.Phone,
		PINHash:      m.PINHash,
		StorageUsed:  m.StorageUsed,
		PlanID:       m.PlanID,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func documentToModel(d domain.Document) DocumentModel {
	return DocumentModel{
		ID:         d.ID,
		OwnerID:    d.OwnerID,
		Name:       d.Name,
		MimeType:   d.MimeType,
		SizeBytes:  d.SizeBytes,
		PageCount:  d.PageCount,
		StorageKey: d.StorageKey,
		BlobID:     d.BlobID,
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}
}

func documentFromModel(m DocumentModel) domain.Document {
	return domain.Document{
		ID:         m.ID,
		OwnerID:    m.OwnerID,
		Name:       m.Name,
		MimeType:   m.MimeType,
		SizeBytes:  m.SizeBytes,
		PageCount:  m.PageCount,
		StorageKey: m.StorageKey,
		BlobID:     m.BlobID,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

func shareCodeToModel(c domain.ShareCode) ShareCodeModel {
	return ShareCodeModel{
		ID:         c.ID,
		OwnerID:    c.OwnerID,
		Code:       c.Code,
		AccessCode: c.AccessCode,
		Active:     c.Active,
		ExpiresAt:  c.ExpiresAt,
		CreatedAt:  c.CreatedAt,
	}
}

func shareCodeFromModel(m ShareCodeModel) domain.ShareCode {
	return domain.ShareCode{
		ID:         m.ID,
		OwnerID:    m.OwnerID,
		Code:       m.Code,
		AccessCode: m.AccessCode,
		Active:     m.Active,
		ExpiresAt:  m.ExpiresAt,
		CreatedAt:  m.CreatedAt,
	}
}

func accessRequestToModel(r domain.AccessRequest) AccessRequestModel {
	return AccessRequestModel{
		ID:             r.ID,
		ShareCodeID:    r.ShareCodeID,
		OwnerID:        r.OwnerID,
		RequesterName:  r.RequesterName,
		RequesterPhone: r.RequesterPhone,
		Status:         string(r.Status),
		Permission:     string(r.Permission),
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

func accessRequestFromModel(m AccessRequestModel) domain.AccessRequest {
	return domain.AccessRequest{
		ID:             m.ID,
		ShareCodeID:    m.ShareCodeID,
		OwnerID:        m.OwnerID,
		RequesterName:  m.RequesterName,
		RequesterPhone: m.RequesterPhone,
		Status:         domain.RequestStatus(m.Status),
		Permission:     domain.PermissionLevel(m.Permission),
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}
