package server

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"docvault/pkg/store"
)

func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request, identity store.Identity) {
	switch r.Method {
	case http.MethodPost:
		s.handleUpload(w, r, identity)
	case http.MethodGet:
		documents, err := s.app.ListDocuments(identity.UserID)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"items": documents,
			"count": len(documents),
		})
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request, identity store.Identity) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "multipart field 'file' is required")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "file_too_large", "file exceeds the upload limit")
		return
	}
	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	document, err := s.app.UploadDocument(r.Context(), identity.UserID, header.Filename, contentType, data)
	if err != nil {
		s.audit(r, "documents.upload", "fail", "user_id", identity.UserID, "reason", err.Error())
		writeAppError(w, err)
		return
	}
	s.audit(r, "documents.upload", "success", "user_id", identity.UserID, "document_id", document.ID)
	writeJSON(w, http.StatusCreated, document)
}

func (s *Server) handleDocumentByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/documents/")
	if rest == "check-storage" {
		s.handleCheckStorage(w, r)
		return
	}
	parts := strings.SplitN(rest, "/", 2)
	id := parts[0]
	if id == "" {
		http.NotFound(w, r)
		return
	}
	if len(parts) == 2 {
		if parts[1] == "download" {
			s.handleDownload(w, r, id)
			return
		}
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodDelete {
		methodNotAllowed(w)
		return
	}
	identity, ok := s.identity(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
		return
	}
	if err := s.app.DeleteDocument(r.Context(), identity.UserID, id); err != nil {
		writeAppError(w, err)
		return
	}
	s.audit(r, "documents.delete", "success", "user_id", identity.UserID, "document_id", id)
	w.WriteHeader(http.StatusNoContent)
}

type checkStorageBody struct {
	SizeBytes int64 `json:"sizeBytes"`
}

func (s *Server) handleCheckStorage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	identity, ok := s.identity(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
		return
	}
	var body checkStorageBody
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "invalid JSON body")
		return
	}
	check, err := s.app.CheckStorage(identity.UserID, body.SizeBytes)
	if err != nil {
		writeAppError(w, err)
		return
	}
	// Advisory: a negative verdict is still a 200 with allowed=false.
	writeJSON(w, http.StatusOK, check)
}

// handleDownload authorizes the caller, resolves a signed URL, and proxies the
// bytes so the provider URL itself never reaches the client.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if format := r.URL.Query().Get("format"); format != "" && format != "original" {
		writeError(w, http.StatusBadRequest, "validation_error", "unsupported format")
		return
	}
	identity := s.optionalIdentity(r)
	url, document, err := s.app.DownloadURL(r.Context(), id, identity)
	if err != nil {
		s.audit(r, "documents.download", "fail", "document_id", id, "reason", err.Error())
		writeAppError(w, err)
		return
	}
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, url, nil)
	if err != nil {
		writeAppError(w, err)
		return
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "storage_unavailable", "document storage is temporarily unavailable")
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		writeError(w, http.StatusInternalServerError, "storage_unavailable", fmt.Sprintf("storage responded with status %d", resp.StatusCode))
		return
	}
	s.audit(r, "documents.download", "success", "document_id", id)
	contentType := document.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": document.Name}))
	if resp.ContentLength > 0 {
		w.Header().Set("Content-Length", fmt.Sprintf("%d", resp.ContentLength))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, resp.Body)
}
