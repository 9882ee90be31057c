package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"

	"docvault/internal/util"
	"docvault/pkg/domain"
	"docvault/pkg/storage"
)

// UploadDocument runs the advisory quota check, uploads the blob, records the
// document row, and commits the consumed bytes. The check and the commit are
// deliberately not one transaction; see CheckStorage.
func (a *App) UploadDocument(ctx context.Context, ownerID, filename, contentType string, data []byte) (domain.Document, error) {
	filename = strings.TrimSpace(filename)
	if filename == "" || len(data) == 0 {
		return domain.Document{}, ErrFileRequired
	}
	size := int64(len(data))
	check, err := a.CheckStorage(ownerID, size)
	if err != nil {
		return domain.Document{}, err
	}
	if !check.Allowed {
		return domain.Document{}, ErrQuotaExceeded
	}

	documentID := util.NewID()
	key := storage.ObjectKey(ownerID, documentID, filename)
	blobID, err := a.objects.Put(ctx, key, bytes.NewReader(data), size, contentType)
	if err != nil {
		if errors.Is(err, storage.ErrUnavailable) {
			return domain.Document{}, ErrStorageUnavailable
		}
		return domain.Document{}, fmt.Errorf("upload blob: %w", err)
	}

	now := time.Now().UTC()
	document := domain.Document{
		ID:         documentID,
		OwnerID:    ownerID,
		Name:       filename,
		MimeType:   contentType,
		SizeBytes:  size,
		PageCount:  pdfPageCount(filename, contentType, data),
		StorageKey: key,
		BlobID:     blobID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := a.store.SaveDocument(document); err != nil {
		if cleanupErr := a.objects.Delete(ctx, key, blobID); cleanupErr != nil {
			slog.Warn("orphaned blob after failed document save", "key", key, "error", cleanupErr)
		}
		return domain.Document{}, fmt.Errorf("save document: %w", err)
	}
	if err := a.commitStorage(ownerID, size); err != nil {
		return domain.Document{}, err
	}
	return document, nil
}

// ListDocuments returns the owner's documents.
func (a *App) ListDocuments(ownerID string) ([]domain.Document, error) {
	return a.store.ListDocumentsByOwner(ownerID)
}

// DeleteDocument removes the document row, releases its quota, and cleans up
// the blob best-effort. Blob deletion failure never blocks the metadata
// delete.
func (a *App) DeleteDocument(ctx context.Context, ownerID, documentID string) error {
	document, ok, err := a.store.GetDocument(documentID)
	if err != nil {
		return fmt.Errorf("fetch document: %w", err)
	}
	if !ok || document.OwnerID != ownerID {
		return ErrNotFound
	}
	if err := a.store.DeleteDocument(documentID); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if err := a.commitStorage(ownerID, -document.SizeBytes); err != nil {
		return err
	}
	if err := a.objects.Delete(ctx, document.StorageKey, document.BlobID); err != nil {
		slog.Warn("blob cleanup failed", "key", document.StorageKey, "error", err)
	}
	return nil
}

// pdfPageCount extracts the page count from PDF uploads, best-effort. Any
// parse failure yields zero.
func pdfPageCount(filename, contentType string, data []byte) (pages int) {
	isPDF := contentType == "application/pdf" ||
		strings.HasSuffix(strings.ToLower(filename), ".pdf")
	if !isPDF {
		return 0
	}
	defer func() {
		if recover() != nil {
			pages = 0
		}
	}()
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0
	}
	return reader.NumPage()
}
