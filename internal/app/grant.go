package app

import (
	"context"
	"errors"
	"fmt"

	"docvault/pkg/domain"
	"docvault/pkg/storage"
	"docvault/pkg/store"
)

// Authorize decides whether the caller may access the document and at what
// level. The owner always gets view_and_download; anyone else needs an
// approved request covering the document. Denial is uniform: it does not
// reveal whether a pending or denied request exists.
func (a *App) Authorize(documentID string, caller store.Identity) (domain.PermissionLevel, error) {
	document, ok, err := a.store.GetDocument(documentID)
	if err != nil {
		return "", fmt.Errorf("fetch document: %w", err)
	}
	if !ok {
		return "", ErrNotFound
	}
	return a.authorizeDocument(document, caller)
}

// DownloadURL authorizes the caller for byte-level download and mints a
// signed URL. view_only grants pass Authorize but are rejected here.
func (a *App) DownloadURL(ctx context.Context, documentID string, caller store.Identity) (string, domain.Document, error) {
	document, ok, err := a.store.GetDocument(documentID)
	if err != nil {
		return "", domain.Document{}, fmt.Errorf("fetch document: %w", err)
	}
	if !ok {
		return "", domain.Document{}, ErrNotFound
	}
	level, err := a.authorizeDocument(document, caller)
	if err != nil {
		return "", domain.Document{}, err
	}
	if !level.AllowsDownload() {
		return "", domain.Document{}, ErrPermissionDenied
	}
	url, err := a.objects.SignedDownloadURL(ctx, document.StorageKey, document.BlobID)
	if err != nil {
		if errors.Is(err, storage.ErrUnavailable) {
			return "", domain.Document{}, ErrStorageUnavailable
		}
		return "", domain.Document{}, fmt.Errorf("sign download url: %w", err)
	}
	return url, document, nil
}

func (a *App) authorizeDocument(document domain.Document, caller store.Identity) (domain.PermissionLevel, error) {
	if caller.UserID != "" && caller.UserID == document.OwnerID {
		return domain.PermissionViewAndDownload, nil
	}
	request, ok, err := a.store.FindApprovedRequestForDocument(document.ID)
	if err != nil {
		return "", fmt.Errorf("find approved request: %w", err)
	}
	if !ok {
		return "", ErrPermissionDenied
	}
	return request.Permission, nil
}
