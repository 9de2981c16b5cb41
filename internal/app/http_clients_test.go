package app

import (
	"net/http"
	"net/url"
	"testing"
	"time"
)

func TestAgentCreatesAndListsClients(t *testing.T) {
	env := newTestEnv(t)
	agent := env.user("u-agent", "agent")
	otherAgent := env.user("u-agent-2", "agent")
	env.family("c-other", nil, &otherAgent)
	token := env.token(agent)

	rr := env.do(http.MethodPost, "/api/clients", token, map[string]any{
		"familyName":      "Okafor",
		"originCountry":   "Nigeria",
		"destinationCity": "Houston",
		"agentId":         otherAgent.ID,
	})
	expectStatus(t, rr, http.StatusCreated)
	created := decodeJSON(t, rr)
	// Agents always own what they create, whatever agentId says.
	if created["agentId"] != agent.ID || created["hasLogin"] != false {
		t.Fatalf("unexpected client %v", created)
	}

	rr = env.do(http.MethodGet, "/api/clients", token, nil)
	expectStatus(t, rr, http.StatusOK)
	clients, _ := decodeJSON(t, rr)["clients"].([]any)
	if len(clients) != 1 || clients[0].(map[string]any)["familyName"] != "Okafor" {
		t.Fatalf("expected only own clients, got %v", clients)
	}

	expectStatus(t, env.do(http.MethodGet, "/api/clients/"+created["id"].(string), token, nil), http.StatusOK)
	expectCode(t, env.do(http.MethodGet, "/api/clients/c-other", token, nil), http.StatusNotFound, "NOT_FOUND")

	expectCode(t, env.do(http.MethodPost, "/api/clients", token, map[string]any{"originCountry": "Peru"}), http.StatusUnprocessableEntity, "VALIDATION_ERROR")
}

func TestAdminAssignsAgent(t *testing.T) {
	env := newTestEnv(t)
	admin := env.user("u-admin", "admin")
	agent := env.user("u-agent", "agent")
	clientUser := env.user("u-client", "client")
	env.family("c1", &clientUser, nil)
	adminToken := env.token(admin)

	rr := env.do(http.MethodGet, "/api/clients", adminToken, nil)
	expectStatus(t, rr, http.StatusOK)
	if clients, _ := decodeJSON(t, rr)["clients"].([]any); len(clients) != 1 {
		t.Fatalf("expected admin to see every client, got %v", clients)
	}

	expectCode(t, env.do(http.MethodPut, "/api/clients/c1/agent", adminToken, map[string]any{"agentId": clientUser.ID}), http.StatusUnprocessableEntity, "VALIDATION_ERROR")
	expectCode(t, env.do(http.MethodPut, "/api/clients/c1/agent", env.token(agent), map[string]any{"agentId": agent.ID}), http.StatusForbidden, "FORBIDDEN")

	rr = env.do(http.MethodPut, "/api/clients/c1/agent", adminToken, map[string]any{"agentId": agent.ID})
	expectStatus(t, rr, http.StatusOK)
	if got := decodeJSON(t, rr)["agentId"]; got != agent.ID {
		t.Fatalf("expected agent %s, got %v", agent.ID, got)
	}

	// The newly assigned agent can now reach the family.
	expectStatus(t, env.do(http.MethodGet, "/api/checklist?client=c1", env.token(agent), nil), http.StatusOK)
}

func TestHousingPreferences(t *testing.T) {
	env := newTestEnv(t)
	clientUser := env.user("u-client", "client")
	env.family("c1", &clientUser, nil)
	token := env.token(clientUser)

	rr := env.do(http.MethodGet, "/api/clients/c1/housing", token, nil)
	expectStatus(t, rr, http.StatusOK)
	if payload := decodeJSON(t, rr); payload["housing"] != nil {
		t.Fatalf("expected no housing yet, got %v", payload["housing"])
	}

	rr = env.do(http.MethodPut, "/api/clients/c1/housing", token, map[string]any{
		"budgetMin":     2500,
		"budgetMax":     1000,
		"neighborhoods": []string{"Mueller"},
	})
	expectCode(t, rr, http.StatusUnprocessableEntity, "VALIDATION_ERROR")
	details, _ := decodeJSON(t, rr)["details"].(map[string]any)
	if fields, _ := details["fields"].(map[string]any); fields["budgetMax"] != "gtefield" {
		t.Fatalf("unexpected field errors %v", details)
	}

	rr = env.do(http.MethodPut, "/api/clients/c1/housing", token, map[string]any{
		"budgetMin":     2500,
		"budgetMax":     3800,
		"bedrooms":      3,
		"neighborhoods": []string{" Mueller ", "Hyde Park"},
		"notes":         "Near a good elementary school",
	})
	expectStatus(t, rr, http.StatusOK)

	rr = env.do(http.MethodGet, "/api/clients/c1/housing", token, nil)
	expectStatus(t, rr, http.StatusOK)
	housing, _ := decodeJSON(t, rr)["housing"].(map[string]any)
	neighborhoods, _ := housing["neighborhoods"].([]any)
	if housing["budgetMax"] != float64(3800) || len(neighborhoods) != 2 || neighborhoods[0] != "Mueller" {
		t.Fatalf("unexpected housing %v", housing)
	}
}

func TestMessagesRecordListingsOnce(t *testing.T) {
	env := newTestEnv(t)
	agent := env.user("u-agent", "agent")
	clientUser := env.user("u-client", "client")
	env.family("c1", &clientUser, &agent)
	agentToken := env.token(agent)
	clientToken := env.token(clientUser)

	rr := env.do(http.MethodPost, "/api/clients/c1/messages", agentToken, map[string]any{
		"body": "Two options: https://homes.example.com/listing/42. Also https://rent.example.org/a?b=1, and https://homes.example.com/listing/42 again.",
	})
	expectStatus(t, rr, http.StatusCreated)
	first := decodeJSON(t, rr)
	if listings, _ := first["listings"].([]any); len(listings) != 2 {
		t.Fatalf("expected 2 new listings, got %v", first["listings"])
	}
	message, _ := first["message"].(map[string]any)
	if message["senderRole"] != "agent" {
		t.Fatalf("unexpected message %v", message)
	}

	rr = env.do(http.MethodPost, "/api/clients/c1/messages", clientToken, map[string]any{
		"body": "Love https://homes.example.com/listing/42!",
	})
	expectStatus(t, rr, http.StatusCreated)
	if listings, _ := decodeJSON(t, rr)["listings"].([]any); len(listings) != 0 {
		t.Fatalf("expected known listing to be skipped, got %v", listings)
	}

	rr = env.do(http.MethodGet, "/api/clients/c1/messages", clientToken, nil)
	expectStatus(t, rr, http.StatusOK)
	thread := decodeJSON(t, rr)
	messages, _ := thread["messages"].([]any)
	listings, _ := thread["listings"].([]any)
	if len(messages) != 2 || len(listings) != 2 {
		t.Fatalf("expected 2 messages and 2 listings, got %d and %d", len(messages), len(listings))
	}

	future := url.QueryEscape(time.Now().Add(time.Hour).UTC().Format(time.RFC3339Nano))
	rr = env.do(http.MethodGet, "/api/clients/c1/messages?since="+future, clientToken, nil)
	expectStatus(t, rr, http.StatusOK)
	if messages, _ := decodeJSON(t, rr)["messages"].([]any); len(messages) != 0 {
		t.Fatalf("expected no messages after %s, got %v", future, messages)
	}

	expectCode(t, env.do(http.MethodGet, "/api/clients/c1/messages?since=yesterday", clientToken, nil), http.StatusUnprocessableEntity, "VALIDATION_ERROR")
	expectCode(t, env.do(http.MethodPost, "/api/clients/c1/messages", clientToken, map[string]any{"body": ""}), http.StatusUnprocessableEntity, "VALIDATION_ERROR")
}
