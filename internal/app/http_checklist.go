package app

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"concierge/api/internal/rbac"
)

// handleChecklist serves /api/checklist and its sub-resources.
func (s *HTTPServer) handleChecklist(w http.ResponseWriter, r *http.Request, session Session, rest []string) {
	query := r.URL.Query()

	switch {
	case len(rest) == 0 && r.Method == http.MethodGet:
		if !s.allow(w, session, rbac.ActionChecklistRead) {
			return
		}
		payload, err := s.service.Checklist(r.Context(), session, query.Get("client"))
		if err != nil {
			s.writeMappedError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)

	case len(rest) == 0 && r.Method == http.MethodPatch:
		if !s.allow(w, session, rbac.ActionChecklistWrite) {
			return
		}
		var body ChecklistUpdateInput
		if err := decodeAndValidate(r, &body); err != nil {
			s.writeMappedError(w, r, err)
			return
		}
		if body.Client == "" {
			body.Client = query.Get("client")
		}
		result, err := s.service.UpdateChecklist(r.Context(), session, body)
		if err != nil {
			s.writeMappedError(w, r, err)
			return
		}
		status := http.StatusOK
		if result.Partial() {
			status = http.StatusMultiStatus
		}
		writeJSON(w, status, result)

	case len(rest) == 1 && rest[0] == "export" && r.Method == http.MethodGet:
		if !s.allow(w, session, rbac.ActionChecklistRead) {
			return
		}
		result, err := s.service.ExportChecklist(r.Context(), session, query.Get("client"), query.Get("format"))
		if err != nil {
			s.writeMappedError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", result.MimeType)
		w.Header().Set("Content-Disposition", `attachment; filename="`+result.Filename+`"`)
		if result.Degraded {
			w.Header().Set("X-Checklist-Degraded", "true")
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(result.Data)

	case len(rest) == 1 && rest[0] == "files" && r.Method == http.MethodPost:
		if !s.allow(w, session, rbac.ActionChecklistWrite) {
			return
		}
		s.handleUpload(w, r, session)

	case len(rest) == 1 && rest[0] == "files" && r.Method == http.MethodGet:
		if !s.allow(w, session, rbac.ActionChecklistRead) {
			return
		}
		items, err := s.service.ListAttachments(r.Context(), session, query.Get("client"), query.Get("progressId"))
		if err != nil {
			s.writeMappedError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"files": items})

	case len(rest) == 2 && rest[0] == "files" && r.Method == http.MethodDelete:
		if !s.allow(w, session, rbac.ActionChecklistWrite) {
			return
		}
		result, err := s.service.DeleteAttachment(r.Context(), session, query.Get("client"), rest[1])
		if err != nil {
			s.writeMappedError(w, r, err)
			return
		}
		payload := map[string]any{"ok": true, "id": rest[1]}
		if result.Warning != "" {
			payload["warning"] = result.Warning
		}
		writeJSON(w, http.StatusOK, payload)

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleUpload(w http.ResponseWriter, r *http.Request, session Session) {
	maxBytes := s.service.cfg.MaxUploadBytes
	if maxBytes <= 0 {
		maxBytes = 20 << 20
	}
	// Multipart framing needs a little room on top of the file itself.
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+1<<20)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "File exceeds the upload limit", nil)
			return
		}
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "multipart form expected", nil)
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "file is required", nil)
		return
	}
	defer file.Close()
	if header.Size > maxBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "File exceeds the upload limit", nil)
		return
	}
	data, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "could not read file", nil)
		return
	}
	if int64(len(data)) > maxBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "File exceeds the upload limit", nil)
		return
	}

	client := r.FormValue("client")
	if client == "" {
		client = r.URL.Query().Get("client")
	}
	attachment, err := s.service.UploadAttachment(r.Context(), session, UploadInput{
		Client:     client,
		ProgressID: r.FormValue("progressId"),
		TemplateID: r.FormValue("templateId"),
		Name:       header.Filename,
		MimeType:   header.Header.Get("Content-Type"),
		Data:       data,
	})
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, attachment)
}

func (s *HTTPServer) handleTemplateSearch(w http.ResponseWriter, r *http.Request, session Session) {
	if !s.allow(w, session, rbac.ActionChecklistRead) {
		return
	}
	query := r.URL.Query()
	limit := 20
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "limit must be an integer", nil)
			return
		}
		limit = parsed
	}
	payload, err := s.service.SearchTemplates(query.Get("q"), query.Get("phase"), limit)
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *HTTPServer) handleCreateTemplate(w http.ResponseWriter, r *http.Request, session Session) {
	if !s.allow(w, session, rbac.ActionTemplatesManage) {
		return
	}
	var body TemplateInput
	if err := decodeAndValidate(r, &body); err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	payload, err := s.service.CreateTemplate(r.Context(), body)
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, payload)
}
