package app

import (
	"net/http"
	"strings"
	"time"

	"concierge/api/internal/rbac"
)

// handleClients serves /api/clients and /api/clients/{id}/...
func (s *HTTPServer) handleClients(w http.ResponseWriter, r *http.Request, session Session, rest []string) {
	if len(rest) == 0 {
		if !s.allow(w, session, rbac.ActionClientsManage) {
			return
		}
		switch r.Method {
		case http.MethodGet:
			payload, err := s.service.ListClients(r.Context(), session)
			if err != nil {
				s.writeMappedError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, payload)
		case http.MethodPost:
			var body CreateClientInput
			if err := decodeAndValidate(r, &body); err != nil {
				s.writeMappedError(w, r, err)
				return
			}
			payload, err := s.service.CreateClient(r.Context(), session, body)
			if err != nil {
				s.writeMappedError(w, r, err)
				return
			}
			writeJSON(w, http.StatusCreated, payload)
		default:
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		}
		return
	}

	clientID := rest[0]
	sub := ""
	if len(rest) == 2 {
		sub = rest[1]
	} else if len(rest) > 2 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	switch {
	case sub == "" && r.Method == http.MethodGet:
		if !s.allow(w, session, rbac.ActionChecklistRead) {
			return
		}
		payload, err := s.service.GetClient(r.Context(), session, clientID)
		if err != nil {
			s.writeMappedError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)

	case sub == "agent" && r.Method == http.MethodPut:
		if !s.allow(w, session, rbac.ActionClientsManage) {
			return
		}
		var body struct {
			AgentID string `json:"agentId" validate:"required"`
		}
		if err := decodeAndValidate(r, &body); err != nil {
			s.writeMappedError(w, r, err)
			return
		}
		payload, err := s.service.AssignAgent(r.Context(), session, clientID, body.AgentID)
		if err != nil {
			s.writeMappedError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)

	case sub == "housing" && r.Method == http.MethodGet:
		if !s.allow(w, session, rbac.ActionChecklistRead) {
			return
		}
		payload, err := s.service.Housing(r.Context(), session, clientID)
		if err != nil {
			s.writeMappedError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)

	case sub == "housing" && r.Method == http.MethodPut:
		if !s.allow(w, session, rbac.ActionChecklistWrite) {
			return
		}
		var body HousingInput
		if err := decodeAndValidate(r, &body); err != nil {
			s.writeMappedError(w, r, err)
			return
		}
		payload, err := s.service.SaveHousing(r.Context(), session, clientID, body)
		if err != nil {
			s.writeMappedError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)

	case sub == "messages" && r.Method == http.MethodGet:
		if !s.allow(w, session, rbac.ActionChecklistRead) {
			return
		}
		var since *time.Time
		if raw := strings.TrimSpace(r.URL.Query().Get("since")); raw != "" {
			parsed, err := time.Parse(time.RFC3339Nano, raw)
			if err != nil {
				writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "since must be an RFC3339 timestamp", nil)
				return
			}
			since = &parsed
		}
		payload, err := s.service.Messages(r.Context(), session, clientID, since)
		if err != nil {
			s.writeMappedError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)

	case sub == "messages" && r.Method == http.MethodPost:
		if !s.allow(w, session, rbac.ActionMessagesWrite) {
			return
		}
		var body MessageInput
		if err := decodeAndValidate(r, &body); err != nil {
			s.writeMappedError(w, r, err)
			return
		}
		payload, err := s.service.PostMessage(r.Context(), session, clientID, body)
		if err != nil {
			s.writeMappedError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, payload)

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}
