package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"concierge/api/internal/auth"
	"concierge/api/internal/authpw"
	"concierge/api/internal/checklist"
	"concierge/api/internal/config"
	"concierge/api/internal/email"
	"concierge/api/internal/export"
	"concierge/api/internal/rbac"
	"concierge/api/internal/search"
	"concierge/api/internal/store"
	"concierge/api/internal/util"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	Role         string
	JTI          string
	ExpiresAt    time.Time
}

type dataStore interface {
	CreateUser(context.Context, store.User) error
	GetUserByID(context.Context, string) (store.User, error)
	GetUserByEmail(context.Context, string) (store.User, error)
	RevokeAccessToken(context.Context, string, time.Time) error
	IsAccessTokenRevoked(context.Context, string) (bool, error)
	InsertClient(context.Context, store.Client) error
	GetClient(context.Context, string) (store.Client, error)
	GetClientByUserID(context.Context, string) (store.Client, error)
	ListClients(context.Context, string) ([]store.Client, error)
	AssignAgent(context.Context, string, string) error
	GetHousingPreference(context.Context, string) (*store.HousingPreference, error)
	UpsertHousingPreference(context.Context, store.HousingPreference) (store.HousingPreference, error)
	ListTemplates(context.Context) ([]store.Template, error)
	GetTemplate(context.Context, string) (store.Template, error)
	CountTemplates(context.Context) (int, error)
	InsertTemplate(context.Context, store.Template) error
	InsertMessage(context.Context, store.Message) error
	ListMessages(context.Context, string, *time.Time) ([]store.Message, error)
	InsertListing(context.Context, store.Listing) (bool, error)
	ListListings(context.Context, string) ([]store.Listing, error)
	Ping(ctx context.Context) error
}

// sessionStore keeps refresh tokens. Both the SQL store and the Redis
// session store satisfy it.
type sessionStore interface {
	SaveRefreshSession(context.Context, string, string, time.Time) error
	LookupRefreshSession(context.Context, string) (store.User, error)
	RevokeRefreshSession(context.Context, string) error
}

type notifier interface {
	IsConfigured() bool
	SendItemCompletedEmail(to string, data email.ItemCompletedData) error
}

// Dependencies are the optional collaborators of the service. Nil values
// disable the matching feature.
type Dependencies struct {
	Blobs  checklist.BlobStore
	Search *search.Service
	Mailer notifier
	PDF    export.PDFRenderer
	Logger logrus.FieldLogger
}

type Service struct {
	cfg       config.Config
	store     dataStore
	sessions  sessionStore
	checklist *checklist.Service
	exporter  *export.Service
	search    *search.Service
	authpw    *authpw.Service
	mailer    notifier
	log       logrus.FieldLogger
	notifyWG  sync.WaitGroup
}

func New(cfg config.Config, dataStore *store.SQLStore, deps Dependencies) *Service {
	return NewWithSessionStore(cfg, dataStore, dataStore, deps)
}

// NewWithSessionStore keeps refresh tokens in sessions instead of the
// relational store.
func NewWithSessionStore(cfg config.Config, dataStore *store.SQLStore, sessions sessionStore, deps Dependencies) *Service {
	log := deps.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	s := &Service{
		cfg:      cfg,
		store:    dataStore,
		sessions: sessions,
		search:   deps.Search,
		authpw:   authpw.NewService(dataStore),
		mailer:   deps.Mailer,
		log:      log,
	}
	s.checklist = checklist.NewService(dataStore, deps.Blobs,
		checklist.WithLogger(log.WithField("component", "checklist")),
		checklist.WithCompletionHook(s.onItemCompleted),
	)
	s.exporter = export.NewService(s.checklist, dataStore)
	if deps.PDF != nil {
		s.exporter.WithPDFRenderer(deps.PDF)
	}
	return s
}

func (s *Service) SignUp(ctx context.Context, req authpw.SignUpRequest, familyName, destinationCity string) (Session, error) {
	user, err := s.authpw.SignUp(ctx, req)
	if err != nil {
		return Session{}, err
	}
	if user.Role == string(rbac.RoleClient) {
		userID := user.ID
		client := store.Client{
			ID:              util.NewID("cli"),
			UserID:          &userID,
			FamilyName:      firstNonBlank(familyName, user.DisplayName),
			DestinationCity: strings.TrimSpace(destinationCity),
		}
		if err := s.store.InsertClient(ctx, client); err != nil {
			return Session{}, err
		}
	}
	return s.issueSession(ctx, user)
}

func (s *Service) SignIn(ctx context.Context, emailAddr, password string) (Session, error) {
	user, err := s.authpw.SignIn(ctx, emailAddr, password)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	user, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, err
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:  user.ID,
		Name: user.DisplayName,
		Role: user.Role,
		JTI:  jti,
		Exp:  expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user.ID, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.DisplayName,
		Role:         user.Role,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	revoked, err := s.store.IsAccessTokenRevoked(ctx, claims.JTI)
	if err != nil {
		return Session{}, err
	}
	if revoked {
		return Session{}, auth.ErrInvalidToken
	}

	user, err := s.store.GetUserByID(ctx, claims.Sub)
	if store.IsNotFound(err) {
		return Session{}, auth.ErrInvalidToken
	}
	if err != nil {
		return Session{}, err
	}

	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.DisplayName,
		Role:      user.Role,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Logout(ctx context.Context, session Session, refreshToken string) error {
	if session.JTI != "" {
		_ = s.store.RevokeAccessToken(ctx, session.JTI, session.ExpiresAt)
	}
	if refreshToken != "" {
		_ = s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
	}
	return nil
}

func (s *Service) Can(role string, action rbac.Action) bool {
	return rbac.Can(rbac.Normalize(role), action)
}

// ResolveClient decides which client a request acts on. Clients always act
// on their own profile, agents on families assigned to them, admins on any.
// A client the caller may not see is reported as not found.
func (s *Service) ResolveClient(ctx context.Context, session Session, requested string) (store.Client, error) {
	if strings.TrimSpace(session.UserID) == "" {
		return store.Client{}, checklist.ErrUnauthorized
	}
	requested = strings.TrimSpace(requested)

	switch rbac.Normalize(session.Role) {
	case rbac.RoleAdmin:
		if requested == "" {
			return store.Client{}, validationError("client is required")
		}
		return s.lookupClient(ctx, requested)
	case rbac.RoleAgent:
		if requested == "" {
			return store.Client{}, validationError("client is required")
		}
		client, err := s.lookupClient(ctx, requested)
		if err != nil {
			return store.Client{}, err
		}
		if client.AgentID == nil || *client.AgentID != session.UserID {
			return store.Client{}, errClientNotFound
		}
		return client, nil
	default:
		client, err := s.store.GetClientByUserID(ctx, session.UserID)
		if store.IsNotFound(err) {
			return store.Client{}, errClientNotFound
		}
		if err != nil {
			return store.Client{}, unavailable(err)
		}
		if requested != "" && requested != client.ID {
			return store.Client{}, errForbidden
		}
		return client, nil
	}
}

func (s *Service) lookupClient(ctx context.Context, clientID string) (store.Client, error) {
	client, err := s.store.GetClient(ctx, clientID)
	if store.IsNotFound(err) {
		return store.Client{}, errClientNotFound
	}
	if err != nil {
		return store.Client{}, unavailable(err)
	}
	return client, nil
}

// onItemCompleted mails the assigned agent when a required item is ticked off.
// Delivery runs in the background and never affects the write.
func (s *Service) onItemCompleted(ctx context.Context, clientID string, tpl store.Template, record checklist.ProgressRecord) {
	if !tpl.IsRequired || s.mailer == nil || !s.mailer.IsConfigured() {
		return
	}
	completedAt := time.Now().UTC()
	if record.CompletedAt != nil {
		completedAt = *record.CompletedAt
	}

	ctx = context.WithoutCancel(ctx)
	s.notifyWG.Add(1)
	go func() {
		defer s.notifyWG.Done()
		ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		log := s.log.WithFields(logrus.Fields{"client_id": clientID, "template_id": tpl.ID})

		client, err := s.store.GetClient(ctx, clientID)
		if err != nil || client.AgentID == nil {
			if err != nil {
				log.WithError(err).Warn("completion notice: client lookup failed")
			}
			return
		}
		agent, err := s.store.GetUserByID(ctx, *client.AgentID)
		if err != nil {
			log.WithError(err).Warn("completion notice: agent lookup failed")
			return
		}
		err = s.mailer.SendItemCompletedEmail(agent.Email, email.ItemCompletedData{
			AgentName:   agent.DisplayName,
			FamilyName:  client.FamilyName,
			ItemTitle:   tpl.Title,
			CompletedAt: completedAt,
		})
		if err != nil {
			log.WithError(err).Warn("completion notice not sent")
		}
	}()
}

// WaitForNotifications blocks until queued completion mails are handled.
func (s *Service) WaitForNotifications() {
	s.notifyWG.Wait()
}

// Ping checks the health of service dependencies (database, etc.)
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func unavailable(err error) error {
	if errors.Is(err, checklist.ErrStoreUnavailable) {
		return err
	}
	return errors.Join(checklist.ErrStoreUnavailable, err)
}

func firstNonBlank(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
