package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"docvault/internal/util"
	"docvault/pkg/auth"
	"docvault/pkg/domain"
	"docvault/pkg/store"
)

// ApprovalResult reports the outcome of an approval: the updated request, the
// documents the grant covers, and the names of requested documents the owner
// excluded.
type ApprovalResult struct {
	Request           domain.AccessRequest
	ApprovedDocuments []domain.Document
	RemovedDocuments  []string
}

// CreateAccessRequest validates the share code and the requested document set,
// then persists a pending request with one requested-document row per
// document. Ownership mismatches reject the whole request; nothing is trimmed
// silently.
func (a *App) CreateAccessRequest(code, requesterName, requesterPhone string, documentIDs []string) (domain.AccessRequest, error) {
	requesterName = strings.TrimSpace(requesterName)
	if requesterName == "" {
		return domain.AccessRequest{}, ErrNameRequired
	}
	phone := auth.NormalizePhone(requesterPhone)
	if !auth.ValidPhone(phone) {
		return domain.AccessRequest{}, ErrPhoneInvalid
	}
	documentIDs = dedupe(documentIDs)
	if len(documentIDs) == 0 {
		return domain.AccessRequest{}, ErrDocumentsRequired
	}

	shareCode, ok, err := a.store.GetActiveShareCode(code)
	if err != nil {
		return domain.AccessRequest{}, fmt.Errorf("fetch share code: %w", err)
	}
	if !ok || shareCode.Expired(time.Now().UTC()) {
		return domain.AccessRequest{}, ErrInvalidCapability
	}
	owner, found, err := a.store.GetUserByID(shareCode.OwnerID)
	if err != nil {
		return domain.AccessRequest{}, fmt.Errorf("fetch owner: %w", err)
	}
	if !found {
		return domain.AccessRequest{}, ErrInvalidCapability
	}
	// Advisory guard only; a requester can bypass it with a different name.
	if requesterName == owner.Name {
		return domain.AccessRequest{}, ErrSelfAccess
	}
	for _, id := range documentIDs {
		doc, exists, err := a.store.GetDocument(id)
		if err != nil {
			return domain.AccessRequest{}, fmt.Errorf("fetch document: %w", err)
		}
		if !exists || doc.OwnerID != shareCode.OwnerID {
			return domain.AccessRequest{}, ErrOwnershipMismatch
		}
	}

	now := time.Now().UTC()
	request := domain.AccessRequest{
		ID:             util.NewID(),
		ShareCodeID:    shareCode.ID,
		OwnerID:        shareCode.OwnerID,
		RequesterName:  requesterName,
		RequesterPhone: phone,
		Status:         domain.StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := a.store.CreateAccessRequest(request, documentIDs); err != nil {
		return domain.AccessRequest{}, fmt.Errorf("create access request: %w", err)
	}
	a.emitEvent(domain.EventRequestCreated, request, map[string]any{
		"requesterName": requesterName,
		"documentCount": len(documentIDs),
	})
	return request, nil
}

// ApproveAccessRequest narrows the requested set to the owner's selection and
// flips the request to approved with the given permission, atomically. An
// empty selection keeps the full requested set; an empty permission defaults
// to view_and_download.
func (a *App) ApproveAccessRequest(requestID, callerOwnerID string, selectedIDs []string, permissionRaw string) (ApprovalResult, error) {
	request, err := a.ownedRequest(requestID, callerOwnerID)
	if err != nil {
		return ApprovalResult{}, err
	}
	permission := domain.PermissionViewAndDownload
	if permissionRaw != "" {
		var ok bool
		permission, ok = domain.ParsePermissionLevel(permissionRaw)
		if !ok {
			return ApprovalResult{}, ErrInvalidPermission
		}
	}

	requested, err := a.store.ListRequestedDocuments(requestID)
	if err != nil {
		return ApprovalResult{}, fmt.Errorf("list requested documents: %w", err)
	}
	selectedIDs = dedupe(selectedIDs)
	keep := make(map[string]bool, len(requested))
	if len(selectedIDs) == 0 {
		for _, doc := range requested {
			keep[doc.ID] = true
			selectedIDs = append(selectedIDs, doc.ID)
		}
	} else {
		requestedIDs := make(map[string]bool, len(requested))
		for _, doc := range requested {
			requestedIDs[doc.ID] = true
		}
		for _, id := range selectedIDs {
			if !requestedIDs[id] {
				return ApprovalResult{}, ErrInvalidSelection
			}
			keep[id] = true
		}
	}

	if err := a.store.ApproveAccessRequest(requestID, selectedIDs, permission); err != nil {
		if errors.Is(err, store.ErrRequestNotPending) {
			return ApprovalResult{}, ErrInvalidState
		}
		return ApprovalResult{}, fmt.Errorf("approve access request: %w", err)
	}

	result := ApprovalResult{Request: request}
	result.Request.Status = domain.StatusApproved
	result.Request.Permission = permission
	result.Request.UpdatedAt = time.Now().UTC()
	for _, doc := range requested {
		if keep[doc.ID] {
			result.ApprovedDocuments = append(result.ApprovedDocuments, doc)
		} else {
			result.RemovedDocuments = append(result.RemovedDocuments, doc.Name)
		}
	}
	a.emitEvent(domain.EventRequestApproved, result.Request, map[string]any{
		"permission":    string(permission),
		"approvedCount": len(result.ApprovedDocuments),
	})
	return result, nil
}

// DenyAccessRequest flips a pending request to denied. No document mutation.
func (a *App) DenyAccessRequest(requestID, callerOwnerID string) error {
	request, err := a.ownedRequest(requestID, callerOwnerID)
	if err != nil {
		return err
	}
	if err := a.store.DenyAccessRequest(requestID); err != nil {
		if errors.Is(err, store.ErrRequestNotPending) {
			return ErrInvalidState
		}
		return fmt.Errorf("deny access request: %w", err)
	}
	request.Status = domain.StatusDenied
	a.emitEvent(domain.EventRequestDenied, request, nil)
	return nil
}

// AccessRequestStatus returns the request and its document set. The owner
// sees the documents in any status; everyone else sees them only once the
// request is approved, so polling requesters learn the status but nothing
// more.
func (a *App) AccessRequestStatus(requestID string, caller store.Identity) (domain.AccessRequest, []domain.Document, error) {
	request, ok, err := a.store.GetAccessRequest(requestID)
	if err != nil {
		return domain.AccessRequest{}, nil, fmt.Errorf("fetch access request: %w", err)
	}
	if !ok {
		return domain.AccessRequest{}, nil, ErrNotFound
	}
	isOwner := caller.UserID != "" && caller.UserID == request.OwnerID
	if !isOwner && request.Status != domain.StatusApproved {
		return request, []domain.Document{}, nil
	}
	documents, err := a.store.ListRequestedDocuments(requestID)
	if err != nil {
		return domain.AccessRequest{}, nil, fmt.Errorf("list requested documents: %w", err)
	}
	return request, documents, nil
}

// ApprovedRequestDocuments returns the granted document set and permission
// level for an approved request. Anything not approved is a NotFound.
func (a *App) ApprovedRequestDocuments(requestID string) ([]domain.Document, domain.PermissionLevel, error) {
	request, ok, err := a.store.GetAccessRequest(requestID)
	if err != nil {
		return nil, "", fmt.Errorf("fetch access request: %w", err)
	}
	if !ok || request.Status != domain.StatusApproved {
		return nil, "", ErrNotFound
	}
	documents, err := a.store.ListRequestedDocuments(requestID)
	if err != nil {
		return nil, "", fmt.Errorf("list requested documents: %w", err)
	}
	return documents, request.Permission, nil
}

// ownedRequest resolves a request for an owner operation. Missing requests and
// foreign requests get the same error.
func (a *App) ownedRequest(requestID, callerOwnerID string) (domain.AccessRequest, error) {
	request, ok, err := a.store.GetAccessRequest(requestID)
	if err != nil {
		return domain.AccessRequest{}, fmt.Errorf("fetch access request: %w", err)
	}
	if !ok || request.OwnerID != callerOwnerID {
		return domain.AccessRequest{}, ErrNotFound
	}
	return request, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
