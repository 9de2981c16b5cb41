package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"golang.org/x/crypto/bcrypt"

	"concierge/api/internal/config"
	"concierge/api/internal/email"
	"concierge/api/internal/search"
	"concierge/api/internal/store"
	"concierge/api/internal/store/storetest"
)

type memoryBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (m *memoryBlobs) Put(_ context.Context, key string, data []byte, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = append([]byte(nil), data...)
	return "http://files.test/" + key, nil
}

func (m *memoryBlobs) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *memoryBlobs) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

type sentNotice struct {
	to   string
	data email.ItemCompletedData
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentNotice
}

func (f *fakeMailer) IsConfigured() bool { return true }

func (f *fakeMailer) SendItemCompletedEmail(to string, data email.ItemCompletedData) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentNotice{to: to, data: data})
	return nil
}

func (f *fakeMailer) notices() []sentNotice {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentNotice(nil), f.sent...)
}

type testEnv struct {
	t      *testing.T
	store  *store.SQLStore
	svc    *Service
	server *HTTPServer
	blobs  *memoryBlobs
	mailer *fakeMailer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st := storetest.New(t)
	blobs := &memoryBlobs{objects: map[string][]byte{}}
	mailer := &fakeMailer{}
	logger, _ := test.NewNullLogger()

	cfg := config.Config{
		JWTSecret:      "test-secret",
		AccessTTL:      time.Hour,
		RefreshTTL:     24 * time.Hour,
		MaxUploadBytes: 1 << 20,
	}
	svc := New(cfg, st, Dependencies{
		Blobs:  blobs,
		Search: search.NewService(nil, search.NewSQLSearch(st), logger),
		Mailer: mailer,
		Logger: logger,
		PDF: func(context.Context, string) ([]byte, error) {
			return []byte("%PDF-1.4 test"), nil
		},
	})
	svc.authpw.WithCost(bcrypt.MinCost)

	return &testEnv{
		t:      t,
		store:  st,
		svc:    svc,
		server: NewHTTPServer(svc, "*"),
		blobs:  blobs,
		mailer: mailer,
	}
}

func (e *testEnv) user(id, role string) store.User {
	e.t.Helper()
	user := store.User{
		ID:          id,
		Email:       id + "@example.com",
		DisplayName: "User " + id,
		Role:        role,
	}
	if err := e.store.CreateUser(context.Background(), user); err != nil {
		e.t.Fatalf("create user %s: %v", id, err)
	}
	return user
}

func (e *testEnv) token(user store.User) string {
	e.t.Helper()
	session, err := e.svc.issueSession(context.Background(), user)
	if err != nil {
		e.t.Fatalf("issue session: %v", err)
	}
	return session.Token
}

// family creates a client profile, optionally with its own login and agent.
func (e *testEnv) family(id string, login *store.User, agent *store.User) store.Client {
	e.t.Helper()
	client := store.Client{ID: id, FamilyName: "Family " + id, DestinationCity: "Austin"}
	if login != nil {
		client.UserID = &login.ID
	}
	if agent != nil {
		client.AgentID = &agent.ID
	}
	if err := e.store.InsertClient(context.Background(), client); err != nil {
		e.t.Fatalf("insert client %s: %v", id, err)
	}
	return client
}

func (e *testEnv) do(method, path, token string, body any) *httptest.ResponseRecorder {
	e.t.Helper()
	var reader *bytes.Reader
	switch v := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(v))
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			e.t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rr, req)
	return rr
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse response: %v body=%s", err, rr.Body.String())
	}
	return payload
}

func expectStatus(t *testing.T, rr *httptest.ResponseRecorder, status int) {
	t.Helper()
	if rr.Code != status {
		t.Fatalf("expected status %d, got %d body=%s", status, rr.Code, rr.Body.String())
	}
}

func expectCode(t *testing.T, rr *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	expectStatus(t, rr, status)
	payload := decodeJSON(t, rr)
	if payload["code"] != code {
		t.Fatalf("expected code %s, got %v", code, payload["code"])
	}
}
