package app

import (
	"errors"
	"testing"

	"docvault/pkg/domain"
	"docvault/pkg/store"
)

func setupRequestFixture(t *testing.T) (*App, *store.MemoryStore, domain.User, []domain.Document, domain.ShareCode) {
	t.Helper()
	a, mem, _ := newTestApp(t)
	owner := seedOwner(t, mem, "Asha", "9876543210", "1234")
	docs := []domain.Document{
		seedDocument(t, mem, owner.ID, "tax-return.pdf", 100),
		seedDocument(t, mem, owner.ID, "lease.pdf", 200),
	}
	code, err := a.IssueShareCode(owner.ID)
	if err != nil {
		t.Fatalf("issue share code: %v", err)
	}
	return a, mem, owner, docs, code
}

func TestCreateAccessRequest(t *testing.T) {
	a, mem, owner, docs, code := setupRequestFixture(t)

	req, err := a.CreateAccessRequest(code.Code, "Ravi", "1112223334", []string{docs[0].ID, docs[1].ID})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if req.Status != domain.StatusPending {
		t.Fatalf("status = %s, want pending", req.Status)
	}
	if req.OwnerID != owner.ID {
		t.Fatalf("owner = %s, want %s", req.OwnerID, owner.ID)
	}

	_, listed, err := a.AccessRequestStatus(req.ID, store.Identity{UserID: owner.ID})
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("requested documents = %d, want 2", len(listed))
	}

	events := mem.Events()
	if len(events) != 1 || events[0].Kind != domain.EventRequestCreated {
		t.Fatalf("expected one created event, got %+v", events)
	}
}

func TestCreateRejectsForeignDocumentWholesale(t *testing.T) {
	a, mem, _, docs, code := setupRequestFixture(t)
	other := seedOwner(t, mem, "Meera", "", "")
	foreign := seedDocument(t, mem, other.ID, "other.pdf", 50)

	_, err := a.CreateAccessRequest(code.Code, "Ravi", "1112223334", []string{docs[0].ID, docs[1].ID, foreign.ID})
	if !errors.Is(err, ErrOwnershipMismatch) {
		t.Fatalf("got %v, want ErrOwnershipMismatch", err)
	}
	if events := mem.Events(); len(events) != 0 {
		t.Fatalf("no request must be created on mismatch, got events %+v", events)
	}
}

func TestCreateSelfAccessGuard(t *testing.T) {
	a, _, _, docs, code := setupRequestFixture(t)
	_, err := a.CreateAccessRequest(code.Code, "Asha", "1112223334", []string{docs[0].ID})
	if !errors.Is(err, ErrSelfAccess) {
		t.Fatalf("got %v, want ErrSelfAccess", err)
	}
}

func TestCreateWithDeactivatedCode(t *testing.T) {
	a, _, owner, docs, code := setupRequestFixture(t)
	if _, err := a.IssueShareCode(owner.ID); err != nil {
		t.Fatalf("reissue: %v", err)
	}
	_, err := a.CreateAccessRequest(code.Code, "Ravi", "1112223334", []string{docs[0].ID})
	if !errors.Is(err, ErrInvalidCapability) {
		t.Fatalf("got %v, want ErrInvalidCapability", err)
	}
}

func TestCreateValidatesRequesterFields(t *testing.T) {
	a, _, _, docs, code := setupRequestFixture(t)
	if _, err := a.CreateAccessRequest(code.Code, "", "1112223334", []string{docs[0].ID}); !errors.Is(err, ErrNameRequired) {
		t.Fatalf("missing name: got %v", err)
	}
	if _, err := a.CreateAccessRequest(code.Code, "Ravi", "12345", []string{docs[0].ID}); !errors.Is(err, ErrPhoneInvalid) {
		t.Fatalf("short phone: got %v", err)
	}
	if _, err := a.CreateAccessRequest(code.Code, "Ravi", "1112223334", nil); !errors.Is(err, ErrDocumentsRequired) {
		t.Fatalf("no documents: got %v", err)
	}
}

func TestApprovePrunesToSelection(t *testing.T) {
	a, _, owner, docs, code := setupRequestFixture(t)
	req, err := a.CreateAccessRequest(code.Code, "Ravi", "1112223334", []string{docs[0].ID, docs[1].ID})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	result, err := a.ApproveAccessRequest(req.ID, owner.ID, []string{docs[0].ID}, "view_only")
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if result.Request.Status != domain.StatusApproved {
		t.Fatalf("status = %s, want approved", result.Request.Status)
	}
	if result.Request.Permission != domain.PermissionViewOnly {
		t.Fatalf("permission = %s, want view_only", result.Request.Permission)
	}
	if len(result.ApprovedDocuments) != 1 || result.ApprovedDocuments[0].ID != docs[0].ID {
		t.Fatalf("approved = %+v, want only %s", result.ApprovedDocuments, docs[0].ID)
	}
	if len(result.RemovedDocuments) != 1 || result.RemovedDocuments[0] != "lease.pdf" {
		t.Fatalf("removed = %v, want [lease.pdf]", result.RemovedDocuments)
	}

	granted, permission, err := a.ApprovedRequestDocuments(req.ID)
	if err != nil {
		t.Fatalf("approved documents: %v", err)
	}
	if len(granted) != 1 || granted[0].ID != docs[0].ID {
		t.Fatalf("granted = %+v, want only %s", granted, docs[0].ID)
	}
	if permission != domain.PermissionViewOnly {
		t.Fatalf("permission = %s, want view_only", permission)
	}
}

func TestApproveDefaults(t *testing.T) {
	a, _, owner, docs, code := setupRequestFixture(t)
	req, err := a.CreateAccessRequest(code.Code, "Ravi", "1112223334", []string{docs[0].ID, docs[1].ID})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// No selection, no permission: keep everything, grant full access.
	result, err := a.ApproveAccessRequest(req.ID, owner.ID, nil, "")
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if result.Request.Permission != domain.PermissionViewAndDownload {
		t.Fatalf("permission = %s, want view_and_download", result.Request.Permission)
	}
	if len(result.ApprovedDocuments) != 2 || len(result.RemovedDocuments) != 0 {
		t.Fatalf("approved=%d removed=%d, want 2/0", len(result.ApprovedDocuments), len(result.RemovedDocuments))
	}
}

func TestApproveRejectsSelectionOutsideRequest(t *testing.T) {
	a, mem, owner, docs, code := setupRequestFixture(t)
	req, err := a.CreateAccessRequest(code.Code, "Ravi", "1112223334", []string{docs[0].ID})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	stray := seedDocument(t, mem, owner.ID, "stray.pdf", 10)
	if _, err := a.ApproveAccessRequest(req.ID, owner.ID, []string{stray.ID}, ""); !errors.Is(err, ErrInvalidSelection) {
		t.Fatalf("got %v, want ErrInvalidSelection", err)
	}
}

func TestApproveRejectsUnknownPermission(t *testing.T) {
	a, _, owner, docs, code := setupRequestFixture(t)
	req, err := a.CreateAccessRequest(code.Code, "Ravi", "1112223334", []string{docs[0].ID})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := a.ApproveAccessRequest(req.ID, owner.ID, nil, "admin"); !errors.Is(err, ErrInvalidPermission) {
		t.Fatalf("got %v, want ErrInvalidPermission", err)
	}
}

func TestTerminalStateIsFinal(t *testing.T) {
	a, _, owner, docs, code := setupRequestFixture(t)
	req, err := a.CreateAccessRequest(code.Code, "Ravi", "1112223334", []string{docs[0].ID})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := a.DenyAccessRequest(req.ID, owner.ID); err != nil {
		t.Fatalf("deny: %v", err)
	}

	if _, err := a.ApproveAccessRequest(req.ID, owner.ID, nil, ""); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("approve after deny: got %v, want ErrInvalidState", err)
	}
	if err := a.DenyAccessRequest(req.ID, owner.ID); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("second deny: got %v, want ErrInvalidState", err)
	}

	current, _, err := a.AccessRequestStatus(req.ID, store.Identity{UserID: owner.ID})
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if current.Status != domain.StatusDenied {
		t.Fatalf("status = %s, want denied", current.Status)
	}
}

func TestOwnerActionsHideForeignRequests(t *testing.T) {
	a, mem, _, docs, code := setupRequestFixture(t)
	intruder := seedOwner(t, mem, "Meera", "", "")
	req, err := a.CreateAccessRequest(code.Code, "Ravi", "1112223334", []string{docs[0].ID})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := a.ApproveAccessRequest(req.ID, intruder.ID, nil, ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign approve: got %v, want ErrNotFound", err)
	}
	if err := a.DenyAccessRequest(req.ID, intruder.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign deny: got %v, want ErrNotFound", err)
	}
}

func TestStatusVisibility(t *testing.T) {
	a, _, owner, docs, code := setupRequestFixture(t)
	req, err := a.CreateAccessRequest(code.Code, "Ravi", "1112223334", []string{docs[0].ID})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Requester polling a pending request sees the status but no documents.
	current, listed, err := a.AccessRequestStatus(req.ID, store.Identity{})
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if current.Status != domain.StatusPending || len(listed) != 0 {
		t.Fatalf("pending poll: status=%s docs=%d, want pending/0", current.Status, len(listed))
	}

	// The owner sees the documents regardless of status.
	_, listed, err = a.AccessRequestStatus(req.ID, store.Identity{UserID: owner.ID})
	if err != nil {
		t.Fatalf("owner status: %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("owner must see documents, got %d", len(listed))
	}

	if _, err := a.ApproveAccessRequest(req.ID, owner.ID, nil, ""); err != nil {
		t.Fatalf("approve: %v", err)
	}
	_, listed, err = a.AccessRequestStatus(req.ID, store.Identity{})
	if err != nil {
		t.Fatalf("approved poll: %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("approved poll must expose documents, got %d", len(listed))
	}
}

func TestApprovedRequestDocumentsRequiresApproval(t *testing.T) {
	a, _, _, docs, code := setupRequestFixture(t)
	req, err := a.CreateAccessRequest(code.Code, "Ravi", "1112223334", []string{docs[0].ID})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, _, err := a.ApprovedRequestDocuments(req.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("pending request: got %v, want ErrNotFound", err)
	}
}
