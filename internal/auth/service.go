package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/courseloop/authgate/internal/identity"
	"github.com/courseloop/authgate/pkg/apperrors"
	"github.com/courseloop/authgate/pkg/token"
	"go.uber.org/zap"
)

// IdentityStore is the external identity provider the service consults for
// credential verification and account existence.
type IdentityStore interface {
	FindByEmail(ctx context.Context, email string) (*identity.User, error)
	FindByID(ctx context.Context, id int) (*identity.User, error)
	Create(ctx context.Context, user *identity.User) error
	UpdateLastLoggedOn(ctx context.Context, userID int) error
}

// RateLimiter guards the issuance path against brute force
type RateLimiter interface {
	Allow(identifier string) error
	RecordFailure(identifier string)
	RecordSuccess(identifier string)
}

// Service handles authentication business logic
type Service struct {
	users        IdentityStore
	revoked      *RevocationList
	rateLimiter  RateLimiter
	secret       []byte
	tokenTTL     time.Duration
	refreshGrace time.Duration
	logger       *zap.Logger
}

// NewService creates a new authentication service
func NewService(
	users IdentityStore,
	revoked *RevocationList,
	rateLimiter RateLimiter,
	secret []byte,
	tokenTTL time.Duration,
	refreshGrace time.Duration,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		users:        users,
		revoked:      revoked,
		rateLimiter:  rateLimiter,
		secret:       secret,
		tokenTTL:     tokenTTL,
		refreshGrace: refreshGrace,
		logger:       logger,
	}
}

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResult carries a freshly issued token plus the profile it was issued for
type LoginResult struct {
	Token  string          `json:"token"`
	Claims *token.Claims   `json:"-"`
	User   *identity.User  `json:"user"`
}

// Login authenticates with email and password and issues a token
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	if err := ValidateLogin(email, password); err != nil {
		return nil, err
	}

	email = SanitizeEmail(email)

	if err := s.rateLimiter.Allow(email); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	usr, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	if usr == nil {
		s.rateLimiter.RecordFailure(email)
		return nil, fmt.Errorf("login: unknown email: %w", apperrors.ErrInvalidCredentials)
	}

	if err := VerifyPassword(password, usr.PasswordDigest); err != nil {
		s.rateLimiter.RecordFailure(email)
		return nil, fmt.Errorf("login: %w", apperrors.ErrInvalidCredentials)
	}

	s.rateLimiter.RecordSuccess(email)

	if err := s.users.UpdateLastLoggedOn(ctx, usr.ID); err != nil {
		// Not fatal to the login
		s.logger.Warn("failed to update last_logged_on", zap.Int("user_id", usr.ID), zap.Error(err))
	}

	return s.issue(usr)
}

// Register validates the registration, creates the account and issues a
// token so registration doubles as the first login.
func (s *Service) Register(ctx context.Context, req *RegisterRequest) (*LoginResult, error) {
	if err := ValidateRegistration(req); err != nil {
		return nil, err
	}

	email := SanitizeEmail(req.Email)

	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("register: email taken: %w", apperrors.ErrInvalidEmail)
	}

	digest, err := HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	usr := &identity.User{
		Email:          email,
		PasswordDigest: digest,
		DisplayName:    req.DisplayName,
		Role:           string(token.RoleUser),
	}
	if err := s.users.Create(ctx, usr); err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	return s.issue(usr)
}

// Refresh exchanges a current token for a new one with a fresh issuedAt and
// expiresAt and the account's current claims. A signature-valid token past
// its expiry is still exchangeable within the refresh grace window; anything
// beyond that, anything revoked, and any account that no longer exists is
// rejected.
func (s *Service) Refresh(ctx context.Context, tok string) (*LoginResult, error) {
	claims, err := token.Decode(tok, s.secret)
	if err != nil && !errors.Is(err, apperrors.ErrExpired) {
		return nil, fmt.Errorf("refresh: %w", err)
	}
	if errors.Is(err, apperrors.ErrExpired) {
		expiredAt := time.Unix(claims.ExpiresAt, 0)
		if time.Since(expiredAt) > s.refreshGrace {
			return nil, fmt.Errorf("refresh: grace window elapsed: %w", apperrors.ErrExpired)
		}
	}

	revoked, err := s.revoked.IsRevoked(ctx, claims.TokenID)
	if err != nil {
		return nil, fmt.Errorf("refresh: %w", err)
	}
	if revoked {
		return nil, fmt.Errorf("refresh: %w", apperrors.ErrTokenRevoked)
	}

	userID, err := strconv.Atoi(claims.SubjectID)
	if err != nil {
		return nil, fmt.Errorf("refresh: bad subject %q: %w", claims.SubjectID, apperrors.ErrInvalidToken)
	}

	usr, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("refresh: %w", err)
	}
	if usr == nil {
		return nil, fmt.Errorf("refresh: account gone: %w", apperrors.ErrUnauthenticated)
	}

	result, err := s.issue(usr)
	if err != nil {
		return nil, err
	}

	// The old token is discarded wholesale; revoking its ID enforces the
	// single-live-token rule for the rest of its natural lifetime.
	if err := s.revoked.Revoke(ctx, claims.TokenID, time.Unix(claims.ExpiresAt, 0)); err != nil {
		s.logger.Warn("failed to revoke replaced token", zap.Error(err))
	}

	return result, nil
}

// Authenticate validates a token for an authenticated call: signature,
// expiry and revocation.
func (s *Service) Authenticate(ctx context.Context, tok string) (*token.Claims, error) {
	claims, err := token.Decode(tok, s.secret)
	if err != nil {
		return nil, fmt.Errorf("authenticate: %w", err)
	}

	revoked, err := s.revoked.IsRevoked(ctx, claims.TokenID)
	if err != nil {
		return nil, fmt.Errorf("authenticate: %w", err)
	}
	if revoked {
		return nil, fmt.Errorf("authenticate: %w", apperrors.ErrTokenRevoked)
	}

	return claims, nil
}

// Logout revokes the token's ID for the remainder of its lifetime. An
// already-invalid token logs out successfully; there is nothing to revoke.
func (s *Service) Logout(ctx context.Context, tok string) error {
	claims, err := token.Decode(tok, s.secret)
	if claims == nil {
		return nil
	}
	if err != nil && !errors.Is(err, apperrors.ErrExpired) {
		return nil
	}

	if err := s.revoked.Revoke(ctx, claims.TokenID, time.Unix(claims.ExpiresAt, 0)); err != nil {
		return fmt.Errorf("logout: %w", err)
	}

	return nil
}

// CurrentUser loads the account behind a validated claim set
func (s *Service) CurrentUser(ctx context.Context, claims *token.Claims) (*identity.User, error) {
	userID, err := strconv.Atoi(claims.SubjectID)
	if err != nil {
		return nil, fmt.Errorf("current user: bad subject %q: %w", claims.SubjectID, apperrors.ErrInvalidToken)
	}

	usr, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("current user: %w", err)
	}
	if usr == nil {
		return nil, fmt.Errorf("current user: %w", apperrors.ErrUnauthenticated)
	}

	return usr, nil
}

// TokenTTL exposes the configured token lifetime for cookie Max-Age
func (s *Service) TokenTTL() time.Duration {
	return s.tokenTTL
}

func (s *Service) issue(usr *identity.User) (*LoginResult, error) {
	role := token.Role(usr.Role)
	if !role.Valid() {
		role = token.RoleUser
	}

	claims := token.Claims{
		SubjectID:   strconv.Itoa(usr.ID),
		Email:       usr.Email,
		DisplayName: usr.DisplayName,
		Role:        role,
		Permissions: usr.Permissions,
	}

	signed, err := token.Encode(claims, s.secret, s.tokenTTL)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	// Decode rather than re-derive, so the result carries the exact
	// timestamps and jti that were signed.
	issued, err := token.Decode(signed, s.secret)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	return &LoginResult{Token: signed, Claims: issued, User: usr}, nil
}
