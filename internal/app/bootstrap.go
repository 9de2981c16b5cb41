package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"concierge/api/internal/rbac"
	"concierge/api/internal/store"
	"concierge/api/internal/util"
)

// Bootstrap seeds the default relocation catalog into an empty database,
// creates the configured admin account and pushes the catalog to search.
func (s *Service) Bootstrap(ctx context.Context) error {
	count, err := s.store.CountTemplates(ctx)
	if err != nil {
		return err
	}
	if count == 0 {
		for _, tpl := range DefaultCatalog() {
			if err := s.store.InsertTemplate(ctx, tpl); err != nil && !errors.Is(err, store.ErrDuplicate) {
				return fmt.Errorf("seed template %s: %w", tpl.ID, err)
			}
		}
		s.log.WithField("templates", len(DefaultCatalog())).Info("seeded default checklist catalog")
	}

	if err := s.ensureAdmin(ctx); err != nil {
		return err
	}

	if s.search != nil {
		s.search.ReindexAll(ctx)
	}
	return nil
}

func (s *Service) ensureAdmin(ctx context.Context) error {
	emailAddr := strings.ToLower(strings.TrimSpace(s.cfg.AdminEmail))
	if emailAddr == "" || s.cfg.AdminPassword == "" {
		return nil
	}
	_, err := s.store.GetUserByEmail(ctx, emailAddr)
	if err == nil {
		return nil
	}
	if !store.IsNotFound(err) {
		return err
	}

	hash, err := s.authpw.HashPassword(s.cfg.AdminPassword)
	if err != nil {
		return err
	}
	err = s.store.CreateUser(ctx, store.User{
		ID:           util.NewID("usr"),
		Email:        emailAddr,
		DisplayName:  "Administrator",
		PasswordHash: hash,
		Role:         string(rbac.RoleAdmin),
	})
	if err != nil && !errors.Is(err, store.ErrDuplicate) {
		return fmt.Errorf("seed admin: %w", err)
	}
	return nil
}

func text(value string) store.Description {
	return store.Description{{Text: value}}
}

// DefaultCatalog is the built-in checklist for a family moving to the US.
func DefaultCatalog() []store.Template {
	return []store.Template{
		{ID: "pre-visa-documents", Category: "pre_departure", SubCategory: "Documents", OrderNum: 1, IsRequired: true,
			Title: "Gather visa and immigration documents",
			Description: store.Description{
				{Text: "Keep originals in your carry-on luggage.", Important: true},
				{Text: "Bring for every family member:", Items: []string{"Passport valid for six months", "Visa approval notice", "Birth and marriage certificates"}},
			}},
		{ID: "pre-school-records", Category: "pre_departure", SubCategory: "Education", OrderNum: 2,
			Title:       "Request school records and vaccination history",
			Description: text("Schools ask for transcripts and immunisation records at enrolment. Request translated copies before you leave.")},
		{ID: "pre-movers", Category: "pre_departure", SubCategory: "Moving", OrderNum: 3,
			Title:       "Book international movers",
			Description: text("Compare at least three quotes and confirm insurance coverage for the shipment.")},
		{ID: "pre-housing-brief", Category: "pre_departure", SubCategory: "Housing", OrderNum: 4, IsRequired: true,
			Title:       "Share housing preferences with your agent",
			Description: text("Budget, bedrooms and preferred neighborhoods let your agent start shortlisting listings.")},
		{ID: "arr-ssn", Category: "arrival", SubCategory: "Government", OrderNum: 1, IsRequired: true,
			Title: "Apply for a Social Security number",
			Description: store.Description{
				{Text: "Wait about ten days after entry so your arrival record is in the system."},
				{Text: "Bring:", Items: []string{"Passport", "I-94 record", "Employment letter"}},
			}},
		{ID: "arr-bank", Category: "arrival", SubCategory: "Finance", OrderNum: 2, IsRequired: true,
			Title:       "Open a US bank account",
			Description: text("Most banks accept a passport and a lease or utility bill as proof of address.")},
		{ID: "arr-phone", Category: "arrival", SubCategory: "Utilities", OrderNum: 3,
			Title:       "Set up a mobile phone plan",
			Description: text("Prepaid plans need no credit history and can be upgraded later.")},
		{ID: "arr-lease", Category: "arrival", SubCategory: "Housing", OrderNum: 4, IsRequired: true,
			Title:       "Sign the lease",
			Description: text("Upload the signed lease so it is available for the bank and school enrolment.")},
		{ID: "early-school", Category: "early_settlement", SubCategory: "Education", OrderNum: 1, IsRequired: true,
			Title:       "Enroll children in school",
			Description: text("Districts enrol by address. Bring the lease, records and vaccination history.")},
		{ID: "early-license", Category: "early_settlement", SubCategory: "Government", OrderNum: 2,
			Title:       "Get a state driver's license",
			Description: text("Check whether your home country license can be exchanged or if a road test is required.")},
		{ID: "early-utilities", Category: "early_settlement", SubCategory: "Utilities", OrderNum: 3,
			Title:       "Transfer utilities into your name",
			Description: text("Electricity, internet and water accounts often need your SSN or a deposit.")},
		{ID: "early-doctor", Category: "early_settlement", SubCategory: "Health", OrderNum: 4,
			Title:       "Register with a primary care doctor",
			Description: text("Confirm the practice is in network for your health plan.")},
		{ID: "done-credit", Category: "settlement_complete", SubCategory: "Finance", OrderNum: 1,
			Title:       "Build a credit history",
			Description: text("A secured credit card used lightly and paid in full builds a score within months.")},
		{ID: "done-taxes", Category: "settlement_complete", SubCategory: "Finance", OrderNum: 2, IsRequired: true,
			Title:       "Plan your first US tax filing",
			Description: text("Your first return may be a dual-status year. Book a tax advisor before the filing season.")},
		{ID: "done-review", Category: "settlement_complete", SubCategory: "Wrap-up", OrderNum: 3,
			Title:       "Review the move with your agent",
			Description: text("Close open items and share feedback on the relocation.")},
	}
}
