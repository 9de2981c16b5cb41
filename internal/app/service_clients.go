package app

import (
	"context"
	"net/url"
	"regexp"
	"strings"
	"time"

	"concierge/api/internal/rbac"
	"concierge/api/internal/store"
	"concierge/api/internal/util"
)

type CreateClientInput struct {
	FamilyName      string     `json:"familyName" validate:"required,max=120"`
	OriginCountry   string     `json:"originCountry" validate:"max=80"`
	DestinationCity string     `json:"destinationCity" validate:"max=120"`
	ArrivalDate     *time.Time `json:"arrivalDate"`
	AgentID         string     `json:"agentId"`
}

type HousingInput struct {
	BudgetMin     int        `json:"budgetMin" validate:"gte=0"`
	BudgetMax     int        `json:"budgetMax" validate:"gte=0,gtefield=BudgetMin"`
	Bedrooms      int        `json:"bedrooms" validate:"gte=0,lte=20"`
	Neighborhoods []string   `json:"neighborhoods" validate:"max=50,dive,required,max=120"`
	MoveInDate    *time.Time `json:"moveInDate"`
	Notes         string     `json:"notes" validate:"max=4000"`
}

type MessageInput struct {
	Body string `json:"body" validate:"required,max=8000"`
}

func (s *Service) ListClients(ctx context.Context, session Session) (map[string]any, error) {
	agentID := session.UserID
	if rbac.Normalize(session.Role) == rbac.RoleAdmin {
		agentID = ""
	}
	clients, err := s.store.ListClients(ctx, agentID)
	if err != nil {
		return nil, unavailable(err)
	}
	items := make([]map[string]any, 0, len(clients))
	for _, client := range clients {
		items = append(items, clientPayload(client))
	}
	return map[string]any{"clients": items}, nil
}

// CreateClient registers a family. An agent is always assigned to the
// families they create; an admin may name the agent.
func (s *Service) CreateClient(ctx context.Context, session Session, input CreateClientInput) (map[string]any, error) {
	agentID := session.UserID
	if rbac.Normalize(session.Role) == rbac.RoleAdmin {
		agentID = strings.TrimSpace(input.AgentID)
	}
	if agentID != "" {
		agent, err := s.store.GetUserByID(ctx, agentID)
		if store.IsNotFound(err) || (err == nil && agent.Role != string(rbac.RoleAgent) && agent.ID != session.UserID) {
			return nil, validationError("agentId must reference an agent")
		}
		if err != nil {
			return nil, unavailable(err)
		}
	}

	client := store.Client{
		ID:              util.NewID("cli"),
		FamilyName:      strings.TrimSpace(input.FamilyName),
		OriginCountry:   strings.TrimSpace(input.OriginCountry),
		DestinationCity: strings.TrimSpace(input.DestinationCity),
		ArrivalDate:     input.ArrivalDate,
	}
	if agentID != "" {
		client.AgentID = &agentID
	}
	if err := s.store.InsertClient(ctx, client); err != nil {
		return nil, unavailable(err)
	}
	created, err := s.store.GetClient(ctx, client.ID)
	if err != nil {
		return nil, unavailable(err)
	}
	return clientPayload(created), nil
}

func (s *Service) GetClient(ctx context.Context, session Session, clientID string) (map[string]any, error) {
	client, err := s.ResolveClient(ctx, session, clientID)
	if err != nil {
		return nil, err
	}
	return clientPayload(client), nil
}

// AssignAgent hands a family to another agent. Admin only.
func (s *Service) AssignAgent(ctx context.Context, session Session, clientID, agentID string) (map[string]any, error) {
	if rbac.Normalize(session.Role) != rbac.RoleAdmin {
		return nil, errForbidden
	}
	client, err := s.ResolveClient(ctx, session, clientID)
	if err != nil {
		return nil, err
	}
	agent, err := s.store.GetUserByID(ctx, strings.TrimSpace(agentID))
	if store.IsNotFound(err) || (err == nil && agent.Role != string(rbac.RoleAgent)) {
		return nil, validationError("agentId must reference an agent")
	}
	if err != nil {
		return nil, unavailable(err)
	}
	if err := s.store.AssignAgent(ctx, client.ID, agent.ID); err != nil {
		return nil, unavailable(err)
	}
	updated, err := s.store.GetClient(ctx, client.ID)
	if err != nil {
		return nil, unavailable(err)
	}
	return clientPayload(updated), nil
}

func (s *Service) Housing(ctx context.Context, session Session, clientID string) (map[string]any, error) {
	client, err := s.ResolveClient(ctx, session, clientID)
	if err != nil {
		return nil, err
	}
	pref, err := s.store.GetHousingPreference(ctx, client.ID)
	if err != nil {
		return nil, unavailable(err)
	}
	if pref == nil {
		return map[string]any{"clientId": client.ID, "housing": nil}, nil
	}
	return map[string]any{"clientId": client.ID, "housing": housingPayload(*pref)}, nil
}

func (s *Service) SaveHousing(ctx context.Context, session Session, clientID string, input HousingInput) (map[string]any, error) {
	client, err := s.ResolveClient(ctx, session, clientID)
	if err != nil {
		return nil, err
	}
	neighborhoods := make(store.StringList, 0, len(input.Neighborhoods))
	for _, name := range input.Neighborhoods {
		neighborhoods = append(neighborhoods, strings.TrimSpace(name))
	}
	saved, err := s.store.UpsertHousingPreference(ctx, store.HousingPreference{
		ClientID:      client.ID,
		BudgetMin:     input.BudgetMin,
		BudgetMax:     input.BudgetMax,
		Bedrooms:      input.Bedrooms,
		Neighborhoods: neighborhoods,
		MoveInDate:    input.MoveInDate,
		Notes:         strings.TrimSpace(input.Notes),
	})
	if err != nil {
		return nil, unavailable(err)
	}
	return map[string]any{"clientId": client.ID, "housing": housingPayload(saved)}, nil
}

func (s *Service) Messages(ctx context.Context, session Session, clientID string, since *time.Time) (map[string]any, error) {
	client, err := s.ResolveClient(ctx, session, clientID)
	if err != nil {
		return nil, err
	}
	messages, err := s.store.ListMessages(ctx, client.ID, since)
	if err != nil {
		return nil, unavailable(err)
	}
	listings, err := s.store.ListListings(ctx, client.ID)
	if err != nil {
		return nil, unavailable(err)
	}

	items := make([]map[string]any, 0, len(messages))
	for _, msg := range messages {
		items = append(items, messagePayload(msg))
	}
	links := make([]map[string]any, 0, len(listings))
	for _, listing := range listings {
		links = append(links, listingPayload(listing))
	}
	return map[string]any{"clientId": client.ID, "messages": items, "listings": links}, nil
}

// PostMessage stores a chat message and records any property links in it.
// Links the client already has are skipped, so "listings" only holds new ones.
func (s *Service) PostMessage(ctx context.Context, session Session, clientID string, input MessageInput) (map[string]any, error) {
	client, err := s.ResolveClient(ctx, session, clientID)
	if err != nil {
		return nil, err
	}
	body := strings.TrimSpace(input.Body)
	if body == "" {
		return nil, validationError("body is required")
	}

	msg := store.Message{
		ID:         util.NewID("msg"),
		ClientID:   client.ID,
		SenderID:   session.UserID,
		SenderName: session.UserName,
		SenderRole: string(rbac.Normalize(session.Role)),
		Body:       body,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.store.InsertMessage(ctx, msg); err != nil {
		return nil, unavailable(err)
	}

	added := make([]map[string]any, 0)
	for _, link := range ExtractListingURLs(body) {
		listing := store.Listing{
			ID:        util.NewID("lst"),
			ClientID:  client.ID,
			MessageID: msg.ID,
			URL:       link,
			CreatedAt: msg.CreatedAt,
		}
		inserted, err := s.store.InsertListing(ctx, listing)
		if err != nil {
			s.log.WithField("client_id", client.ID).WithError(err).Warn("listing not recorded")
			continue
		}
		if inserted {
			added = append(added, listingPayload(listing))
		}
	}
	return map[string]any{"message": messagePayload(msg), "listings": added}, nil
}

var linkPattern = regexp.MustCompile(`https?://[^\s<>"']+`)

// ExtractListingURLs returns the distinct http(s) links in text, in order of
// appearance, with trailing sentence punctuation removed.
func ExtractListingURLs(text string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0)
	for _, match := range linkPattern.FindAllString(text, -1) {
		link := strings.TrimRight(match, ".,;:!?)]}")
		parsed, err := url.Parse(link)
		if err != nil || parsed.Host == "" {
			continue
		}
		if _, ok := seen[link]; ok {
			continue
		}
		seen[link] = struct{}{}
		out = append(out, link)
	}
	return out
}

func clientPayload(client store.Client) map[string]any {
	return map[string]any{
		"id":              client.ID,
		"familyName":      client.FamilyName,
		"originCountry":   client.OriginCountry,
		"destinationCity": client.DestinationCity,
		"arrivalDate":     client.ArrivalDate,
		"agentId":         client.AgentID,
		"hasLogin":        client.UserID != nil,
		"createdAt":       client.CreatedAt,
	}
}

func housingPayload(pref store.HousingPreference) map[string]any {
	neighborhoods := []string(pref.Neighborhoods)
	if neighborhoods == nil {
		neighborhoods = []string{}
	}
	return map[string]any{
		"budgetMin":     pref.BudgetMin,
		"budgetMax":     pref.BudgetMax,
		"bedrooms":      pref.Bedrooms,
		"neighborhoods": neighborhoods,
		"moveInDate":    pref.MoveInDate,
		"notes":         pref.Notes,
		"updatedAt":     pref.UpdatedAt,
	}
}

func messagePayload(msg store.Message) map[string]any {
	return map[string]any{
		"id":         msg.ID,
		"senderId":   msg.SenderID,
		"senderName": msg.SenderName,
		"senderRole": msg.SenderRole,
		"body":       msg.Body,
		"createdAt":  msg.CreatedAt,
	}
}

func listingPayload(listing store.Listing) map[string]any {
	return map[string]any{
		"id":        listing.ID,
		"url":       listing.URL,
		"messageId": listing.MessageID,
		"createdAt": listing.CreatedAt,
	}
}
