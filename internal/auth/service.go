package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"wishstash/internal/apperr"
)

var usernameRegex = regexp.MustCompile(`^[A-Za-z0-9_-]{3,100}$`)

// Service orchestrates the authentication core: registration, login, logout,
// bearer-token resolution and role promotion.
type Service struct {
	repo    *Repository
	revoked *RevocationStore
	codec   *Codec
	limiter *LoginRateLimiter
	hasher  *Hasher
	logger  zerolog.Logger
}

func NewService(
	repo *Repository,
	revoked *RevocationStore,
	codec *Codec,
	limiter *LoginRateLimiter,
	hasher *Hasher,
	logger zerolog.Logger,
) *Service {
	return &Service{
		repo:    repo,
		revoked: revoked,
		codec:   codec,
		limiter: limiter,
		hasher:  hasher,
		logger:  logger,
	}
}

// Register creates a user with the default role and issues a token for it.
// The user row commits before token issuance: a signing failure after the
// commit leaves the account in place and the caller logs in instead.
func (s *Service) Register(ctx context.Context, username, password string) (User, Token, error) {
	if err := validateUsername(username); err != nil {
		return User{}, Token{}, err
	}
	if err := validatePassword(password); err != nil {
		return User{}, Token{}, err
	}

	// Pre-check for a friendlier error; the unique constraint is the
	// backstop against concurrent registrations.
	_, err := s.repo.GetByUsername(ctx, username)
	if err == nil {
		return User{}, Token{}, apperr.Conflict(fmt.Sprintf("username %q already exists", username))
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return User{}, Token{}, apperr.Internal("look up username", err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return User{}, Token{}, apperr.Internal("hash password", err)
	}

	user, err := s.repo.Create(ctx, username, hash, RoleUser)
	if err != nil {
		if errors.Is(err, ErrDuplicateUsername) {
			return User{}, Token{}, apperr.Conflict(fmt.Sprintf("username %q already exists", username))
		}
		return User{}, Token{}, apperr.Internal("create user", err)
	}

	token, err := s.issueToken(user)
	if err != nil {
		return User{}, Token{}, err
	}

	s.logger.Info().Str("user_id", user.ID).Msg("user_registered")

	return user, token, nil
}

// Login verifies credentials behind the rate limiter. "No such user" and
// "wrong password" are indistinguishable to the caller, and both record a
// failure against the origin. Success never clears the failure history; it
// ages out of the window on its own.
func (s *Service) Login(ctx context.Context, username, password, origin string) (Token, error) {
	if err := s.limiter.Check(origin); err != nil {
		return Token{}, err
	}

	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.limiter.RecordFailure(origin)
			return Token{}, apperr.InvalidCredentials()
		}
		return Token{}, apperr.Internal("look up user", err)
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		s.limiter.RecordFailure(origin)
		return Token{}, apperr.InvalidCredentials()
	}

	return s.issueToken(user)
}

// Logout revokes the token using its own expiry to bound record retention.
// A structurally invalid token is a no-op success: there is nothing left to
// revoke and the caller's goal is already met.
func (s *Service) Logout(ctx context.Context, token string) error {
	if _, err := s.codec.Verify(token); err != nil {
		return nil
	}

	var expiry *time.Time
	if exp, ok := Expiry(token); ok {
		expiry = &exp
	}

	if err := s.revoked.Revoke(ctx, token, expiry); err != nil {
		return apperr.Internal("revoke token", err)
	}

	return nil
}

// CurrentUser resolves a bearer token to its user. Every protected endpoint
// passes through here: signature and expiry first, then revocation, then the
// subject lookup.
func (s *Service) CurrentUser(ctx context.Context, token string) (User, error) {
	claims, err := s.codec.Verify(token)
	if err != nil {
		return User{}, err
	}

	revoked, err := s.revoked.IsRevoked(ctx, token)
	if err != nil {
		return User{}, apperr.Internal("check token revocation", err)
	}
	if revoked {
		return User{}, apperr.InvalidToken("token has been revoked")
	}

	user, err := s.repo.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, apperr.NotFound("user not found")
		}
		return User{}, apperr.Internal("look up token subject", err)
	}

	return user, nil
}

// Promote escalates the target to admin and issues a fresh token reflecting
// the new role. The token is for the target, not the acting admin.
func (s *Service) Promote(ctx context.Context, actor User, targetUsername string) (User, Token, error) {
	if !actor.IsAdmin() {
		return User{}, Token{}, apperr.Forbidden("only admins can promote users")
	}

	target, err := s.repo.GetByUsername(ctx, targetUsername)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, Token{}, apperr.NotFound(fmt.Sprintf("user %q not found", targetUsername))
		}
		return User{}, Token{}, apperr.Internal("look up promotion target", err)
	}

	updated, err := s.repo.UpdateRole(ctx, target.ID, RoleAdmin)
	if err != nil {
		return User{}, Token{}, apperr.Internal("update user role", err)
	}

	token, err := s.issueToken(updated)
	if err != nil {
		return User{}, Token{}, err
	}

	s.logger.Info().
		Str("actor_id", actor.ID).
		Str("target_id", updated.ID).
		Msg("user_promoted")

	return updated, token, nil
}

func (s *Service) issueToken(user User) (Token, error) {
	encoded, err := s.codec.Issue(user.ID, user.Role, 0)
	if err != nil {
		return Token{}, err
	}

	return Token{AccessToken: encoded, TokenType: "bearer"}, nil
}

func validateUsername(username string) error {
	if !usernameRegex.MatchString(username) {
		return apperr.Validation("username must be 3-100 characters of letters, digits, '-' or '_'")
	}
	return nil
}

func validatePassword(password string) error {
	if utf8.RuneCountInString(password) < 8 {
		return apperr.Validation("password must be at least 8 characters")
	}

	var hasUpper, hasLower, hasDigit, hasSymbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSymbol = true
		}
	}

	if !hasUpper || !hasLower || !hasDigit || !hasSymbol {
		return apperr.Validation("password must contain an uppercase letter, a lowercase letter, a digit and a symbol")
	}

	return nil
}
