package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/courseloop/authgate/internal/identity"
	"github.com/courseloop/authgate/internal/ratelimit"
	"github.com/courseloop/authgate/pkg/apperrors"
	"github.com/courseloop/authgate/pkg/token"
	"github.com/redis/go-redis/v9"
)

var testSecret = []byte("test-secret-key-minimum-32-chars")

// fakeIdentityStore is an in-memory IdentityStore for service tests.
type fakeIdentityStore struct {
	byEmail map[string]*identity.User
	byID    map[int]*identity.User
	nextID  int
}

func newFakeIdentityStore() *fakeIdentityStore {
	return &fakeIdentityStore{
		byEmail: make(map[string]*identity.User),
		byID:    make(map[int]*identity.User),
		nextID:  1,
	}
}

func (s *fakeIdentityStore) FindByEmail(_ context.Context, email string) (*identity.User, error) {
	return s.byEmail[email], nil
}

func (s *fakeIdentityStore) FindByID(_ context.Context, id int) (*identity.User, error) {
	return s.byID[id], nil
}

func (s *fakeIdentityStore) Create(_ context.Context, usr *identity.User) error {
	usr.ID = s.nextID
	s.nextID++
	s.byEmail[usr.Email] = usr
	s.byID[usr.ID] = usr
	return nil
}

func (s *fakeIdentityStore) UpdateLastLoggedOn(_ context.Context, _ int) error {
	return nil
}

func (s *fakeIdentityStore) remove(usr *identity.User) {
	delete(s.byEmail, usr.Email)
	delete(s.byID, usr.ID)
}

func newTestService(t *testing.T) (*Service, *fakeIdentityStore) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	users := newFakeIdentityStore()
	limiter := ratelimit.NewLimiter(5, 15*time.Minute)
	revoked := NewRevocationList(client)

	svc := NewService(users, revoked, limiter, testSecret, time.Hour, time.Hour, nil)
	return svc, users
}

func seedUser(t *testing.T, users *fakeIdentityStore, email, password, role string) *identity.User {
	t.Helper()

	digest, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword() failed: %v", err)
	}
	usr := &identity.User{
		Email:          email,
		PasswordDigest: digest,
		DisplayName:    "Test User",
		Role:           role,
	}
	if err := users.Create(context.Background(), usr); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	return usr
}

func TestLogin(t *testing.T) {
	svc, users := newTestService(t)
	usr := seedUser(t, users, "a@b.com", "secret1", "user")

	result, err := svc.Login(context.Background(), "a@b.com", "secret1")
	if err != nil {
		t.Fatalf("Login() failed: %v", err)
	}

	if result.User.ID != usr.ID {
		t.Errorf("User.ID = %d, want %d", result.User.ID, usr.ID)
	}
	if result.Claims.Role != token.RoleUser {
		t.Errorf("Role = %q, want %q", result.Claims.Role, token.RoleUser)
	}

	// The issued token round-trips through the codec.
	claims, err := token.Decode(result.Token, testSecret)
	if err != nil {
		t.Fatalf("Decode() of issued token failed: %v", err)
	}
	if claims.Email != "a@b.com" {
		t.Errorf("Email = %q, want %q", claims.Email, "a@b.com")
	}
	if claims.TokenID != result.Claims.TokenID {
		t.Errorf("TokenID mismatch between result claims and decoded token")
	}
}

func TestLoginNormalizesEmail(t *testing.T) {
	svc, users := newTestService(t)
	seedUser(t, users, "a@b.com", "secret1", "user")

	if _, err := svc.Login(context.Background(), "  A@B.Com ", "secret1"); err != nil {
		t.Errorf("Login() with unnormalized email failed: %v", err)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	svc, users := newTestService(t)
	seedUser(t, users, "a@b.com", "secret1", "user")

	_, err := svc.Login(context.Background(), "a@b.com", "wrong-password")
	if !errors.Is(err, apperrors.ErrInvalidCredentials) {
		t.Errorf("Login() err = %v, want ErrInvalidCredentials", err)
	}
}

func TestLoginUnknownEmail(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Login(context.Background(), "nobody@b.com", "secret1")
	if !errors.Is(err, apperrors.ErrInvalidCredentials) {
		t.Errorf("Login() err = %v, want ErrInvalidCredentials", err)
	}
}

func TestLoginMissingFields(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Login(context.Background(), "", "secret1")
	if !errors.Is(err, apperrors.ErrMissingFields) {
		t.Errorf("Login() err = %v, want ErrMissingFields", err)
	}
}

func TestLoginLockout(t *testing.T) {
	svc, users := newTestService(t)
	seedUser(t, users, "a@b.com", "secret1", "user")

	for i := 0; i < 5; i++ {
		_, err := svc.Login(context.Background(), "a@b.com", "wrong-password")
		if !errors.Is(err, apperrors.ErrInvalidCredentials) {
			t.Fatalf("attempt %d: err = %v, want ErrInvalidCredentials", i+1, err)
		}
	}

	// Even the correct password is rejected while locked out.
	_, err := svc.Login(context.Background(), "a@b.com", "secret1")
	if !errors.Is(err, apperrors.ErrRateLimited) {
		t.Errorf("Login() after lockout err = %v, want ErrRateLimited", err)
	}

	// Another identifier is unaffected.
	seedUser(t, users, "c@d.com", "secret1", "user")
	if _, err := svc.Login(context.Background(), "c@d.com", "secret1"); err != nil {
		t.Errorf("Login() for unrelated identifier failed: %v", err)
	}
}

func TestRegister(t *testing.T) {
	svc, _ := newTestService(t)

	result, err := svc.Register(context.Background(), &RegisterRequest{
		Email:       "New@B.com",
		Password:    "secret1",
		DisplayName: "New User",
	})
	if err != nil {
		t.Fatalf("Register() failed: %v", err)
	}

	if result.User.Email != "new@b.com" {
		t.Errorf("Email = %q, want normalized %q", result.User.Email, "new@b.com")
	}
	if result.Claims.Role != token.RoleUser {
		t.Errorf("Role = %q, want %q", result.Claims.Role, token.RoleUser)
	}

	// Registration doubles as the first login.
	if _, err := token.Decode(result.Token, testSecret); err != nil {
		t.Errorf("Decode() of registration token failed: %v", err)
	}

	// Duplicate registration is rejected.
	_, err = svc.Register(context.Background(), &RegisterRequest{
		Email:    "new@b.com",
		Password: "secret1",
	})
	if !errors.Is(err, apperrors.ErrInvalidEmail) {
		t.Errorf("duplicate Register() err = %v, want ErrInvalidEmail", err)
	}
}

func TestRefresh(t *testing.T) {
	svc, users := newTestService(t)
	seedUser(t, users, "a@b.com", "secret1", "user")

	original, err := svc.Login(context.Background(), "a@b.com", "secret1")
	if err != nil {
		t.Fatalf("Login() failed: %v", err)
	}

	refreshed, err := svc.Refresh(context.Background(), original.Token)
	if err != nil {
		t.Fatalf("Refresh() failed: %v", err)
	}

	if refreshed.Claims.TokenID == original.Claims.TokenID {
		t.Error("refresh reused the old token ID")
	}
	if refreshed.Claims.ExpiresAt < original.Claims.ExpiresAt {
		t.Error("refreshed token expires before the original")
	}

	// The replaced token is revoked and cannot be exchanged again.
	_, err = svc.Refresh(context.Background(), original.Token)
	if !errors.Is(err, apperrors.ErrTokenRevoked) {
		t.Errorf("second Refresh() of old token err = %v, want ErrTokenRevoked", err)
	}

	// The new token still authenticates.
	if _, err := svc.Authenticate(context.Background(), refreshed.Token); err != nil {
		t.Errorf("Authenticate() of refreshed token failed: %v", err)
	}
}

func TestRefreshExpiredWithinGrace(t *testing.T) {
	svc, users := newTestService(t)
	usr := seedUser(t, users, "a@b.com", "secret1", "user")

	expired, err := token.Encode(token.Claims{
		SubjectID: "1",
		Email:     usr.Email,
		Role:      token.RoleUser,
	}, testSecret, -30*time.Minute)
	if err != nil {
		t.Fatalf("Encode() failed: %v", err)
	}

	// Thirty minutes past expiry sits inside the one hour grace window.
	result, err := svc.Refresh(context.Background(), expired)
	if err != nil {
		t.Fatalf("Refresh() of expired-within-grace token failed: %v", err)
	}
	if _, err := token.Decode(result.Token, testSecret); err != nil {
		t.Errorf("Decode() of replacement token failed: %v", err)
	}
}

func TestRefreshExpiredBeyondGrace(t *testing.T) {
	svc, users := newTestService(t)
	seedUser(t, users, "a@b.com", "secret1", "user")

	expired, err := token.Encode(token.Claims{
		SubjectID: "1",
		Email:     "a@b.com",
		Role:      token.RoleUser,
	}, testSecret, -2*time.Hour)
	if err != nil {
		t.Fatalf("Encode() failed: %v", err)
	}

	_, err = svc.Refresh(context.Background(), expired)
	if !errors.Is(err, apperrors.ErrExpired) {
		t.Errorf("Refresh() err = %v, want ErrExpired", err)
	}
}

func TestRefreshAccountGone(t *testing.T) {
	svc, users := newTestService(t)
	usr := seedUser(t, users, "a@b.com", "secret1", "user")

	result, err := svc.Login(context.Background(), "a@b.com", "secret1")
	if err != nil {
		t.Fatalf("Login() failed: %v", err)
	}

	users.remove(usr)

	_, err = svc.Refresh(context.Background(), result.Token)
	if !errors.Is(err, apperrors.ErrUnauthenticated) {
		t.Errorf("Refresh() err = %v, want ErrUnauthenticated", err)
	}
}

func TestRefreshGarbageToken(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Refresh(context.Background(), "not.a.token")
	if !errors.Is(err, apperrors.ErrInvalidToken) {
		t.Errorf("Refresh() err = %v, want ErrInvalidToken", err)
	}
}

func TestAuthenticate(t *testing.T) {
	svc, users := newTestService(t)
	seedUser(t, users, "a@b.com", "secret1", "user")

	result, err := svc.Login(context.Background(), "a@b.com", "secret1")
	if err != nil {
		t.Fatalf("Login() failed: %v", err)
	}

	claims, err := svc.Authenticate(context.Background(), result.Token)
	if err != nil {
		t.Fatalf("Authenticate() failed: %v", err)
	}
	if claims.Email != "a@b.com" {
		t.Errorf("Email = %q, want %q", claims.Email, "a@b.com")
	}

	if _, err := svc.Authenticate(context.Background(), "garbage"); !errors.Is(err, apperrors.ErrInvalidToken) {
		t.Errorf("Authenticate(garbage) err = %v, want ErrInvalidToken", err)
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	svc, users := newTestService(t)
	seedUser(t, users, "a@b.com", "secret1", "user")

	result, err := svc.Login(context.Background(), "a@b.com", "secret1")
	if err != nil {
		t.Fatalf("Login() failed: %v", err)
	}

	if err := svc.Logout(context.Background(), result.Token); err != nil {
		t.Fatalf("Logout() failed: %v", err)
	}

	_, err = svc.Authenticate(context.Background(), result.Token)
	if !errors.Is(err, apperrors.ErrTokenRevoked) {
		t.Errorf("Authenticate() after logout err = %v, want ErrTokenRevoked", err)
	}

	// Logging out again, or with junk, is still a success.
	if err := svc.Logout(context.Background(), result.Token); err != nil {
		t.Errorf("repeated Logout() failed: %v", err)
	}
	if err := svc.Logout(context.Background(), "garbage"); err != nil {
		t.Errorf("Logout(garbage) failed: %v", err)
	}
}

func TestCurrentUser(t *testing.T) {
	svc, users := newTestService(t)
	usr := seedUser(t, users, "a@b.com", "secret1", "user")

	result, err := svc.Login(context.Background(), "a@b.com", "secret1")
	if err != nil {
		t.Fatalf("Login() failed: %v", err)
	}

	got, err := svc.CurrentUser(context.Background(), result.Claims)
	if err != nil {
		t.Fatalf("CurrentUser() failed: %v", err)
	}
	if got.ID != usr.ID {
		t.Errorf("ID = %d, want %d", got.ID, usr.ID)
	}

	users.remove(usr)
	if _, err := svc.CurrentUser(context.Background(), result.Claims); !errors.Is(err, apperrors.ErrUnauthenticated) {
		t.Errorf("CurrentUser() for removed account err = %v, want ErrUnauthenticated", err)
	}
}

func TestIssueUnknownRoleFallsBack(t *testing.T) {
	svc, users := newTestService(t)
	seedUser(t, users, "a@b.com", "secret1", "moderator")

	result, err := svc.Login(context.Background(), "a@b.com", "secret1")
	if err != nil {
		t.Fatalf("Login() failed: %v", err)
	}
	if result.Claims.Role != token.RoleUser {
		t.Errorf("Role = %q, want fallback %q", result.Claims.Role, token.RoleUser)
	}
}
