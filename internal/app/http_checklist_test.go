package app

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
)

func (e *testEnv) seedCatalog() {
	e.t.Helper()
	if err := e.svc.Bootstrap(context.Background()); err != nil {
		e.t.Fatalf("bootstrap: %v", err)
	}
}

func (e *testEnv) upload(token string, fields map[string]string, name, contentType string, data []byte) *httptest.ResponseRecorder {
	e.t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			e.t.Fatalf("write field: %v", err)
		}
	}
	if name != "" {
		header := textproto.MIMEHeader{}
		header.Set("Content-Disposition", `form-data; name="file"; filename="`+name+`"`)
		header.Set("Content-Type", contentType)
		part, err := writer.CreatePart(header)
		if err != nil {
			e.t.Fatalf("create part: %v", err)
		}
		_, _ = part.Write(data)
	}
	if err := writer.Close(); err != nil {
		e.t.Fatalf("close multipart: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/checklist/files", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rr, req)
	return rr
}

func checklistItems(t *testing.T, payload map[string]any) map[string]map[string]any {
	t.Helper()
	raw, ok := payload["checklist"].([]any)
	if !ok {
		t.Fatalf("expected checklist array, got %T", payload["checklist"])
	}
	items := make(map[string]map[string]any, len(raw))
	for _, entry := range raw {
		item := entry.(map[string]any)
		items[item["templateId"].(string)] = item
	}
	return items
}

func TestChecklistMergesCatalogWithProgress(t *testing.T) {
	env := newTestEnv(t)
	env.seedCatalog()
	clientUser := env.user("u-client", "client")
	env.family("c1", &clientUser, nil)
	token := env.token(clientUser)

	rr := env.do(http.MethodGet, "/api/checklist", token, nil)
	expectStatus(t, rr, http.StatusOK)
	payload := decodeJSON(t, rr)
	items := checklistItems(t, payload)
	if len(items) != len(DefaultCatalog()) {
		t.Fatalf("expected %d items, got %d", len(DefaultCatalog()), len(items))
	}
	if items["arr-bank"]["isCompleted"] != false || items["arr-bank"]["memo"] != "" {
		t.Fatalf("expected untouched default, got %v", items["arr-bank"])
	}
	if _, ok := items["arr-bank"]["id"]; ok {
		t.Fatal("untouched items carry no progress id")
	}

	rr = env.do(http.MethodPatch, "/api/checklist", token, map[string]any{
		"items": []map[string]any{
			{"templateId": "arr-bank", "is_completed": true, "notes": "Chase, downtown branch"},
		},
	})
	expectStatus(t, rr, http.StatusOK)

	rr = env.do(http.MethodGet, "/api/checklist", token, nil)
	payload = decodeJSON(t, rr)
	bank := checklistItems(t, payload)["arr-bank"]
	if bank["isCompleted"] != true || bank["memo"] != "Chase, downtown branch" || bank["completedAt"] == nil {
		t.Fatalf("expected merged progress, got %v", bank)
	}

	groups, _ := payload["groupedByCategory"].(map[string]any)
	arrival, _ := groups["arrival"].([]any)
	if len(arrival) != 4 {
		t.Fatalf("expected 4 arrival items, got %d", len(arrival))
	}
	phases, _ := payload["phases"].([]any)
	if len(phases) != 4 || phases[0] != "pre_departure" {
		t.Fatalf("unexpected phases %v", phases)
	}
}

func TestChecklistPatchReportsPartialFailure(t *testing.T) {
	env := newTestEnv(t)
	env.seedCatalog()
	clientUser := env.user("u-client", "client")
	env.family("c1", &clientUser, nil)
	token := env.token(clientUser)

	rr := env.do(http.MethodPatch, "/api/checklist", token, map[string]any{
		"items": []map[string]any{
			{"templateId": "arr-phone", "is_completed": true},
			{"templateId": "missing-template", "is_completed": true},
		},
	})
	expectStatus(t, rr, http.StatusMultiStatus)
	payload := decodeJSON(t, rr)
	if payload["attempted"] != float64(2) || payload["count"] != float64(1) {
		t.Fatalf("unexpected counts %v", payload)
	}
	failures, _ := payload["failures"].([]any)
	if len(failures) != 1 || failures[0].(map[string]any)["code"] != "TEMPLATE_NOT_FOUND" {
		t.Fatalf("unexpected failures %v", failures)
	}
}

func TestChecklistPatchValidation(t *testing.T) {
	env := newTestEnv(t)
	env.seedCatalog()
	clientUser := env.user("u-client", "client")
	env.family("c1", &clientUser, nil)
	token := env.token(clientUser)

	rr := env.do(http.MethodPatch, "/api/checklist", token, map[string]any{"items": []map[string]any{}})
	expectCode(t, rr, http.StatusUnprocessableEntity, "VALIDATION_ERROR")
	details, _ := decodeJSON(t, rr)["details"].(map[string]any)
	if fields, _ := details["fields"].(map[string]any); fields["items"] != "min" {
		t.Fatalf("unexpected field errors %v", details)
	}

	// An item without a template id fails on its own; the rest still lands.
	rr = env.do(http.MethodPatch, "/api/checklist", token, map[string]any{
		"items": []map[string]any{
			{"templateId": "arr-phone", "is_completed": true},
			{"notes": "forgot the template id"},
		},
	})
	expectStatus(t, rr, http.StatusMultiStatus)
	payload := decodeJSON(t, rr)
	if payload["attempted"] != float64(2) || payload["count"] != float64(1) {
		t.Fatalf("unexpected counts %v", payload)
	}
	failures, _ := payload["failures"].([]any)
	if len(failures) != 1 || failures[0].(map[string]any)["code"] != "VALIDATION_ERROR" {
		t.Fatalf("unexpected failures %v", failures)
	}

	rr = env.do(http.MethodGet, "/api/checklist", token, nil)
	expectStatus(t, rr, http.StatusOK)
	if phone := checklistItems(t, decodeJSON(t, rr))["arr-phone"]; phone["isCompleted"] != true {
		t.Fatalf("expected the valid item to be applied, got %v", phone)
	}
}

func TestChecklistOwnership(t *testing.T) {
	env := newTestEnv(t)
	env.seedCatalog()
	agent := env.user("u-agent", "agent")
	otherAgent := env.user("u-agent-2", "agent")
	clientUser := env.user("u-client", "client")
	env.family("c1", &clientUser, &agent)
	env.family("c2", nil, &otherAgent)

	clientToken := env.token(clientUser)
	agentToken := env.token(agent)

	// Clients cannot name another family.
	expectCode(t, env.do(http.MethodGet, "/api/checklist?client=c2", clientToken, nil), http.StatusForbidden, "FORBIDDEN")
	expectStatus(t, env.do(http.MethodGet, "/api/checklist?client=c1", clientToken, nil), http.StatusOK)

	// Agents only see their own families; anything else reads as missing.
	expectStatus(t, env.do(http.MethodGet, "/api/checklist?client=c1", agentToken, nil), http.StatusOK)
	expectCode(t, env.do(http.MethodGet, "/api/checklist?client=c2", agentToken, nil), http.StatusNotFound, "NOT_FOUND")
	expectCode(t, env.do(http.MethodGet, "/api/checklist?client=nope", agentToken, nil), http.StatusNotFound, "NOT_FOUND")
	expectCode(t, env.do(http.MethodGet, "/api/checklist", agentToken, nil), http.StatusUnprocessableEntity, "VALIDATION_ERROR")

	rr := env.do(http.MethodPatch, "/api/checklist?client=c2", agentToken, map[string]any{
		"items": []map[string]any{{"templateId": "arr-bank", "is_completed": true}},
	})
	expectCode(t, rr, http.StatusNotFound, "NOT_FOUND")

	// A client login without a profile has nothing to act on.
	orphan := env.user("u-orphan", "client")
	expectCode(t, env.do(http.MethodGet, "/api/checklist", env.token(orphan), nil), http.StatusNotFound, "NOT_FOUND")
}

func TestAttachmentLifecycle(t *testing.T) {
	env := newTestEnv(t)
	env.seedCatalog()
	clientUser := env.user("u-client", "client")
	env.family("c1", &clientUser, nil)
	token := env.token(clientUser)

	pdf := []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\n")
	rr := env.upload(token, map[string]string{"templateId": "arr-lease"}, "signed lease.pdf", "application/pdf", pdf)
	expectStatus(t, rr, http.StatusCreated)
	attachment := decodeJSON(t, rr)
	attachmentID, _ := attachment["id"].(string)
	progressID, _ := attachment["progressId"].(string)
	if attachmentID == "" || progressID == "" {
		t.Fatalf("expected ids, got %v", attachment)
	}
	if attachment["mimeType"] != "application/pdf" || !strings.HasPrefix(attachment["url"].(string), "http://files.test/c1/") {
		t.Fatalf("unexpected attachment %v", attachment)
	}
	if env.blobs.count() != 1 {
		t.Fatalf("expected 1 stored blob, got %d", env.blobs.count())
	}

	rr = env.do(http.MethodGet, "/api/checklist/files?progressId="+progressID, token, nil)
	expectStatus(t, rr, http.StatusOK)
	files, _ := decodeJSON(t, rr)["files"].([]any)
	if len(files) != 1 {
		t.Fatalf("expected 1 file, got %v", files)
	}

	// The upload materialised the progress row, so the merged view shows it.
	lease := checklistItems(t, decodeJSON(t, env.do(http.MethodGet, "/api/checklist", token, nil)))["arr-lease"]
	if lease["id"] != progressID || lease["isCompleted"] != false {
		t.Fatalf("unexpected lease item %v", lease)
	}
	if got, _ := lease["files"].([]any); len(got) != 1 {
		t.Fatalf("expected lease file in merged view, got %v", lease["files"])
	}

	// Another family cannot delete it.
	otherUser := env.user("u-other", "client")
	env.family("c2", &otherUser, nil)
	expectCode(t, env.do(http.MethodDelete, "/api/checklist/files/"+attachmentID, env.token(otherUser), nil), http.StatusNotFound, "NOT_FOUND")

	rr = env.do(http.MethodDelete, "/api/checklist/files/"+attachmentID, token, nil)
	expectStatus(t, rr, http.StatusOK)
	if payload := decodeJSON(t, rr); payload["ok"] != true || payload["warning"] != nil {
		t.Fatalf("unexpected delete payload %v", payload)
	}
	if env.blobs.count() != 0 {
		t.Fatalf("expected blob removed, got %d", env.blobs.count())
	}
	expectCode(t, env.do(http.MethodDelete, "/api/checklist/files/"+attachmentID, token, nil), http.StatusNotFound, "NOT_FOUND")
}

func TestUploadRejectsBadInput(t *testing.T) {
	env := newTestEnv(t)
	env.seedCatalog()
	clientUser := env.user("u-client", "client")
	env.family("c1", &clientUser, nil)
	token := env.token(clientUser)

	expectCode(t, env.upload(token, map[string]string{"templateId": "arr-lease"}, "", "", nil), http.StatusUnprocessableEntity, "VALIDATION_ERROR")
	expectCode(t, env.upload(token, nil, "lease.pdf", "application/pdf", []byte("%PDF-1.4")), http.StatusUnprocessableEntity, "VALIDATION_ERROR")
	expectCode(t, env.upload(token, map[string]string{"templateId": "nope"}, "lease.pdf", "application/pdf", []byte("%PDF-1.4")), http.StatusNotFound, "TEMPLATE_NOT_FOUND")

	big := bytes.Repeat([]byte("a"), int(env.svc.cfg.MaxUploadBytes)+1)
	expectCode(t, env.upload(token, map[string]string{"templateId": "arr-lease"}, "big.txt", "text/plain", big), http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE")

	expectCode(t, env.do(http.MethodGet, "/api/checklist/files", token, nil), http.StatusUnprocessableEntity, "VALIDATION_ERROR")
	if env.blobs.count() != 0 {
		t.Fatalf("expected no stored blobs, got %d", env.blobs.count())
	}
}

func TestChecklistExport(t *testing.T) {
	env := newTestEnv(t)
	env.seedCatalog()
	clientUser := env.user("u-client", "client")
	env.family("c1", &clientUser, nil)
	token := env.token(clientUser)

	rr := env.do(http.MethodGet, "/api/checklist/export?format=html", token, nil)
	expectStatus(t, rr, http.StatusOK)
	if got := rr.Header().Get("Content-Type"); !strings.HasPrefix(got, "text/html") {
		t.Fatalf("unexpected content type %q", got)
	}
	if got := rr.Header().Get("Content-Disposition"); !strings.Contains(got, "Family-c1-checklist.html") {
		t.Fatalf("unexpected disposition %q", got)
	}
	if !strings.Contains(rr.Body.String(), "Open a US bank account") {
		t.Fatal("expected catalog items in export")
	}

	rr = env.do(http.MethodGet, "/api/checklist/export", token, nil)
	expectStatus(t, rr, http.StatusOK)
	if rr.Header().Get("Content-Type") != "application/pdf" || !strings.HasPrefix(rr.Body.String(), "%PDF") {
		t.Fatalf("unexpected pdf export %q %q", rr.Header().Get("Content-Type"), rr.Body.String())
	}

	expectCode(t, env.do(http.MethodGet, "/api/checklist/export?format=docx", token, nil), http.StatusUnprocessableEntity, "VALIDATION_ERROR")
}

func TestTemplateSearchAndCreate(t *testing.T) {
	env := newTestEnv(t)
	env.seedCatalog()
	clientUser := env.user("u-client", "client")
	env.family("c1", &clientUser, nil)
	admin := env.user("u-admin", "admin")

	rr := env.do(http.MethodGet, "/api/templates?q=bank+account&phase=arrival", env.token(clientUser), nil)
	expectStatus(t, rr, http.StatusOK)
	payload := decodeJSON(t, rr)
	results, _ := payload["results"].([]any)
	if payload["source"] != "sql" || len(results) != 1 || results[0].(map[string]any)["id"] != "arr-bank" {
		t.Fatalf("unexpected search response %v", payload)
	}

	expectCode(t, env.do(http.MethodGet, "/api/templates?phase=someday", env.token(clientUser), nil), http.StatusUnprocessableEntity, "VALIDATION_ERROR")
	// Phases are named canonically; category spellings belong to templates.
	expectCode(t, env.do(http.MethodGet, "/api/templates?phase=on_arrival", env.token(clientUser), nil), http.StatusUnprocessableEntity, "VALIDATION_ERROR")
	expectCode(t, env.do(http.MethodGet, "/api/templates?limit=many", env.token(clientUser), nil), http.StatusUnprocessableEntity, "VALIDATION_ERROR")

	adminToken := env.token(admin)
	body := map[string]any{
		"id":         "arr-transit",
		"title":      "Get a transit card",
		"category":   "On Arrival",
		"orderNum":   5,
		"isRequired": false,
	}
	rr = env.do(http.MethodPost, "/api/admin/templates", adminToken, body)
	expectStatus(t, rr, http.StatusCreated)
	if created := decodeJSON(t, rr); created["phase"] != "arrival" {
		t.Fatalf("unexpected template %v", created)
	}
	expectCode(t, env.do(http.MethodPost, "/api/admin/templates", adminToken, body), http.StatusConflict, "TEMPLATE_EXISTS")

	body["id"] = "mystery"
	body["category"] = "whenever"
	expectCode(t, env.do(http.MethodPost, "/api/admin/templates", adminToken, body), http.StatusUnprocessableEntity, "VALIDATION_ERROR")

	// New catalog entries show up in every client's merged view.
	items := checklistItems(t, decodeJSON(t, env.do(http.MethodGet, "/api/checklist", env.token(clientUser), nil)))
	if _, ok := items["arr-transit"]; !ok {
		t.Fatal("expected new template in merged checklist")
	}
}
