package authpw

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"concierge/api/internal/store"
	"concierge/api/internal/store/storetest"
)

type failingUserStore struct{}

func (failingUserStore) GetUserByEmail(context.Context, string) (store.User, error) {
	return store.User{}, errors.New("db down")
}

func (failingUserStore) CreateUser(context.Context, store.User) error {
	return errors.New("db down")
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(storetest.New(t)).WithCost(bcrypt.MinCost)
}

func TestSignUpAndSignIn(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	user, err := svc.SignUp(ctx, SignUpRequest{
		Email:       "  Dana@Example.com ",
		Password:    "correct-horse",
		DisplayName: "Dana",
		Role:        "agent",
	})
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}
	if user.Email != "dana@example.com" || user.Role != "agent" {
		t.Fatalf("unexpected user: %+v", user)
	}
	if user.PasswordHash == "correct-horse" {
		t.Fatal("password stored in clear text")
	}

	signedIn, err := svc.SignIn(ctx, "DANA@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}
	if signedIn.ID != user.ID {
		t.Fatalf("SignIn() user = %s, want %s", signedIn.ID, user.ID)
	}
}

func TestSignUpDefaultsToClient(t *testing.T) {
	svc := newTestService(t)
	user, err := svc.SignUp(context.Background(), SignUpRequest{Email: "fam@example.com", Password: "longenough", DisplayName: "Family"})
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}
	if user.Role != "client" {
		t.Fatalf("role = %q, want client", user.Role)
	}
}

func TestSignUpValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	cases := []struct {
		name string
		req  SignUpRequest
		want error
	}{
		{name: "missing fields", req: SignUpRequest{Email: "a@example.com"}, want: ErrMissingFields},
		{name: "bad email", req: SignUpRequest{Email: "not-an-email", Password: "longenough", DisplayName: "A"}, want: ErrInvalidEmail},
		{name: "short password", req: SignUpRequest{Email: "a@example.com", Password: "short", DisplayName: "A"}, want: ErrWeakPassword},
		{name: "admin role", req: SignUpRequest{Email: "a@example.com", Password: "longenough", DisplayName: "A", Role: "admin"}, want: ErrInvalidRole},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.SignUp(ctx, tc.req); !errors.Is(err, tc.want) {
				t.Fatalf("SignUp() error = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestSignUpRejectsDuplicateEmail(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	req := SignUpRequest{Email: "dup@example.com", Password: "longenough", DisplayName: "Dup"}
	if _, err := svc.SignUp(ctx, req); err != nil {
		t.Fatalf("first SignUp() error = %v", err)
	}
	if _, err := svc.SignUp(ctx, req); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("second SignUp() error = %v, want ErrEmailTaken", err)
	}
}

func TestSignInRejectsBadCredentials(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	if _, err := svc.SignUp(ctx, SignUpRequest{Email: "x@example.com", Password: "longenough", DisplayName: "X"}); err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}

	if _, err := svc.SignIn(ctx, "x@example.com", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password error = %v", err)
	}
	if _, err := svc.SignIn(ctx, "nobody@example.com", "longenough"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown user error = %v", err)
	}
	if _, err := svc.SignIn(ctx, "", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("empty credentials error = %v", err)
	}
}

func TestStoreFailuresAreNotReportedAsBadCredentials(t *testing.T) {
	svc := NewService(failingUserStore{}).WithCost(bcrypt.MinCost)
	_, err := svc.SignIn(context.Background(), "x@example.com", "longenough")
	if err == nil || errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("SignIn() error = %v, want wrapped store failure", err)
	}
}
