package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"docvault/pkg/domain"
	"docvault/pkg/store"
)

func (s *Server) handleGenerateShareCode(w http.ResponseWriter, r *http.Request, identity store.Identity) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	code, err := s.app.IssueShareCode(identity.UserID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	s.audit(r, "qrcode.generate", "success", "user_id", identity.UserID)
	writeJSON(w, http.StatusCreated, map[string]any{
		"code":      code.Code,
		"expiresAt": code.ExpiresAt,
	})
}

type validateResponse struct {
	OwnerID   string            `json:"ownerId"`
	OwnerName string            `json:"ownerName"`
	Documents []domain.Document `json:"documents"`
}

func (s *Server) handleValidateShareCode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.validateLimiter, "too many validation attempts, try again later") {
		return
	}
	code := strings.TrimPrefix(r.URL.Path, "/api/qrcode/validate/")
	if code == "" || strings.Contains(code, "/") {
		http.NotFound(w, r)
		return
	}
	owner, documents, err := s.app.ValidateShareCode(code)
	if err != nil {
		s.audit(r, "qrcode.validate", "fail")
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, validateResponse{
		OwnerID:   owner.ID,
		OwnerName: owner.Name,
		Documents: documents,
	})
}

type createRequestBody struct {
	Code           string   `json:"code"`
	RequesterName  string   `json:"requesterName"`
	RequesterPhone string   `json:"requesterPhone"`
	DocumentIDs    []string `json:"documentIds"`
}

func (s *Server) handleCreateAccessRequest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.requestLimiter, "too many access requests, try again later") {
		return
	}
	var body createRequestBody
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "invalid JSON body")
		return
	}
	request, err := s.app.CreateAccessRequest(body.Code, body.RequesterName, body.RequesterPhone, body.DocumentIDs)
	if err != nil {
		s.audit(r, "access.request", "fail", "reason", err.Error())
		writeAppError(w, err)
		return
	}
	s.audit(r, "access.request", "success", "request_id", request.ID)
	writeJSON(w, http.StatusCreated, map[string]any{
		"requestId": request.ID,
		"status":    request.Status,
	})
}

type verifyRequestBody struct {
	Phone string `json:"phone"`
	PIN   string `json:"pin"`
}

func (s *Server) handleVerifyOwner(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.verifyLimiter, "too many verification attempts, try again later") {
		return
	}
	var body verifyRequestBody
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "invalid JSON body")
		return
	}
	user, token, err := s.app.VerifyOwner(body.Phone, body.PIN)
	if err != nil {
		s.audit(r, "access.verify", "fail")
		writeAppError(w, err)
		return
	}
	s.audit(r, "access.verify", "success", "user_id", user.ID)
	writeJSON(w, http.StatusOK, authResponse{Token: token, User: user})
}

func (s *Server) handleAccessRequestByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/access/requests/")
	parts := strings.SplitN(rest, "/", 2)
	id := parts[0]
	if id == "" {
		http.NotFound(w, r)
		return
	}
	action := ""
	if len(parts) == 2 {
		action = parts[1]
	}
	switch action {
	case "":
		s.handleRequestStatus(w, r, id)
	case "approve":
		s.handleApproveRequest(w, r, id)
	case "deny":
		s.handleDenyRequest(w, r, id)
	case "documents":
		s.handleRequestDocuments(w, r, id)
	default:
		http.NotFound(w, r)
	}
}

type requestStatusResponse struct {
	ID         string                 `json:"id"`
	Status     domain.RequestStatus   `json:"status"`
	Permission domain.PermissionLevel `json:"permission,omitempty"`
	Documents  []domain.Document      `json:"documents"`
}

func (s *Server) handleRequestStatus(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	request, documents, err := s.app.AccessRequestStatus(id, s.optionalIdentity(r))
	if err != nil {
		writeAppError(w, err)
		return
	}
	if documents == nil {
		documents = []domain.Document{}
	}
	writeJSON(w, http.StatusOK, requestStatusResponse{
		ID:         request.ID,
		Status:     request.Status,
		Permission: request.Permission,
		Documents:  documents,
	})
}

type approveRequestBody struct {
	DocumentIDs []string `json:"documentIds"`
	Permission  string   `json:"permission"`
}

type approveResponse struct {
	ID                string                 `json:"id"`
	Status            domain.RequestStatus   `json:"status"`
	Permission        domain.PermissionLevel `json:"permission"`
	ApprovedDocuments []domain.Document      `json:"approvedDocuments"`
	RemovedDocuments  []string               `json:"removedDocuments"`
}

func (s *Server) handleApproveRequest(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	identity, ok := s.identity(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
		return
	}
	var body approveRequestBody
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "invalid JSON body")
		return
	}
	result, err := s.app.ApproveAccessRequest(id, identity.UserID, body.DocumentIDs, body.Permission)
	if err != nil {
		s.audit(r, "access.approve", "fail", "request_id", id, "reason", err.Error())
		writeAppError(w, err)
		return
	}
	s.audit(r, "access.approve", "success", "request_id", id, "user_id", identity.UserID)
	approved := result.ApprovedDocuments
	if approved == nil {
		approved = []domain.Document{}
	}
	removed := result.RemovedDocuments
	if removed == nil {
		removed = []string{}
	}
	writeJSON(w, http.StatusOK, approveResponse{
		ID:                result.Request.ID,
		Status:            result.Request.Status,
		Permission:        result.Request.Permission,
		ApprovedDocuments: approved,
		RemovedDocuments:  removed,
	})
}

func (s *Server) handleDenyRequest(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	identity, ok := s.identity(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
		return
	}
	if err := s.app.DenyAccessRequest(id, identity.UserID); err != nil {
		s.audit(r, "access.deny", "fail", "request_id", id, "reason", err.Error())
		writeAppError(w, err)
		return
	}
	s.audit(r, "access.deny", "success", "request_id", id, "user_id", identity.UserID)
	writeJSON(w, http.StatusOK, map[string]any{
		"id":     id,
		"status": domain.StatusDenied,
	})
}

func (s *Server) handleRequestDocuments(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	documents, permission, err := s.app.ApprovedRequestDocuments(id)
	if err != nil {
		writeAppError(w, err)
		return
	}
	if documents == nil {
		documents = []domain.Document{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"documents":  documents,
		"permission": permission,
	})
}
