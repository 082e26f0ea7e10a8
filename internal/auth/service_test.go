package auth

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wishstash/internal/apperr"
)

type serviceFixture struct {
	service *Service
	mock    sqlmock.Sqlmock
	codec   *Codec
	limiter *LoginRateLimiter
	hasher  *Hasher
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	codec := newTestCodec()
	limiter := NewLoginRateLimiter(5, 15*time.Minute)
	hasher := NewHasher()

	service := NewService(
		NewRepository(db),
		NewRevocationStore(db),
		codec,
		limiter,
		hasher,
		zerolog.Nop(),
	)

	return &serviceFixture{
		service: service,
		mock:    mock,
		codec:   codec,
		limiter: limiter,
		hasher:  hasher,
	}
}

func TestServiceRegisterIssuesVerifiableToken(t *testing.T) {
	f := newServiceFixture(t)

	f.mock.ExpectQuery("SELECT (.+) FROM users").
		WithArgs("alice").
		WillReturnRows(userRows())
	f.mock.ExpectExec("INSERT INTO users").
		WillReturnResult(sqlmock.NewResult(0, 1))

	user, token, err := f.service.Register(context.Background(), "alice", "Passw0rd!")
	require.NoError(t, err)
	assert.Equal(t, RoleUser, user.Role)
	assert.Equal(t, "bearer", token.TokenType)

	claims, err := f.codec.Verify(token.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.Subject)
	assert.Equal(t, RoleUser, claims.Role)

	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestServiceRegisterDuplicateUsername(t *testing.T) {
	f := newServiceFixture(t)

	now := time.Now().UTC()
	f.mock.ExpectQuery("SELECT (.+) FROM users").
		WithArgs("alice").
		WillReturnRows(userRows(User{
			ID: "user-1", Username: "alice", PasswordHash: "digest",
			Role: RoleUser, CreatedAt: now, UpdatedAt: now,
		}))

	_, _, err := f.service.Register(context.Background(), "alice", "An0ther-Passw0rd!")
	assert.True(t, apperr.IsKind(err, apperr.KindConflict))
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestServiceRegisterValidation(t *testing.T) {
	f := newServiceFixture(t)

	cases := []struct {
		name     string
		username string
		password string
	}{
		{"short username", "ab", "Passw0rd!"},
		{"long username", string(make([]byte, 101)), "Passw0rd!"},
		{"bad username chars", "bad name!", "Passw0rd!"},
		{"short password", "alice", "Pw0!"},
		{"no uppercase", "alice", "passw0rd!"},
		{"no lowercase", "alice", "PASSW0RD!"},
		{"no digit", "alice", "Password!"},
		{"no symbol", "alice", "Passw0rd1"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := f.service.Register(context.Background(), tc.username, tc.password)
			assert.True(t, apperr.IsKind(err, apperr.KindValidation))
		})
	}

	// Validation failures never touch persistence.
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestServiceLoginUnknownUserAndWrongPasswordLookAlike(t *testing.T) {
	f := newServiceFixture(t)

	digest, err := f.hasher.Hash("Passw0rd!")
	require.NoError(t, err)
	now := time.Now().UTC()

	f.mock.ExpectQuery("SELECT (.+) FROM users").
		WithArgs("ghost").
		WillReturnRows(userRows())
	f.mock.ExpectQuery("SELECT (.+) FROM users").
		WithArgs("alice").
		WillReturnRows(userRows(User{
			ID: "user-1", Username: "alice", PasswordHash: digest,
			Role: RoleUser, CreatedAt: now, UpdatedAt: now,
		}))

	_, unknownErr := f.service.Login(context.Background(), "ghost", "Passw0rd!", "1.2.3.4")
	_, wrongErr := f.service.Login(context.Background(), "alice", "WrongPass1!", "1.2.3.4")

	assert.True(t, apperr.IsKind(unknownErr, apperr.KindInvalidCredentials))
	assert.True(t, apperr.IsKind(wrongErr, apperr.KindInvalidCredentials))
	assert.Equal(t, unknownErr.Error(), wrongErr.Error())
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestServiceLoginRateLimitedBeforeCredentialCheck(t *testing.T) {
	f := newServiceFixture(t)

	for i := 0; i < 5; i++ {
		f.limiter.RecordFailure("1.2.3.4")
	}

	// No query expectations: the limiter rejects before any lookup.
	_, err := f.service.Login(context.Background(), "alice", "Passw0rd!", "1.2.3.4")
	assert.True(t, apperr.IsKind(err, apperr.KindRateLimited))
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestServiceLoginSuccessKeepsFailureHistory(t *testing.T) {
	f := newServiceFixture(t)

	digest, err := f.hasher.Hash("Passw0rd!")
	require.NoError(t, err)
	now := time.Now().UTC()

	f.limiter.RecordFailure("1.2.3.4")
	f.limiter.RecordFailure("1.2.3.4")

	f.mock.ExpectQuery("SELECT (.+) FROM users").
		WithArgs("alice").
		WillReturnRows(userRows(User{
			ID: "user-1", Username: "alice", PasswordHash: digest,
			Role: RoleUser, CreatedAt: now, UpdatedAt: now,
		}))

	token, err := f.service.Login(context.Background(), "alice", "Passw0rd!", "1.2.3.4")
	require.NoError(t, err)
	assert.NotEmpty(t, token.AccessToken)

	f.limiter.mu.Lock()
	history := len(f.limiter.failures["1.2.3.4"])
	f.limiter.mu.Unlock()
	assert.Equal(t, 2, history, "success must not reset the failure history")
}

func TestServiceLogoutRevokesToken(t *testing.T) {
	f := newServiceFixture(t)

	token, err := f.codec.Issue("user-1", RoleUser, 10*time.Minute)
	require.NoError(t, err)

	f.mock.ExpectExec("INSERT INTO revoked_tokens").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, f.service.Logout(context.Background(), token))
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestServiceLogoutInvalidTokenIsNoop(t *testing.T) {
	f := newServiceFixture(t)

	// No expectations: nothing is persisted for a token that never verified.
	require.NoError(t, f.service.Logout(context.Background(), "garbage"))
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestServiceCurrentUserRejectsRevokedToken(t *testing.T) {
	f := newServiceFixture(t)

	token, err := f.codec.Issue("user-1", RoleUser, 10*time.Minute)
	require.NoError(t, err)

	f.mock.ExpectQuery("SELECT EXISTS").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	_, err = f.service.CurrentUser(context.Background(), token)
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidToken))
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestServiceCurrentUserSubjectGone(t *testing.T) {
	f := newServiceFixture(t)

	token, err := f.codec.Issue("user-1", RoleUser, 10*time.Minute)
	require.NoError(t, err)

	f.mock.ExpectQuery("SELECT EXISTS").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	f.mock.ExpectQuery("SELECT (.+) FROM users").
		WithArgs("user-1").
		WillReturnRows(userRows())

	_, err = f.service.CurrentUser(context.Background(), token)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestServiceCurrentUserResolves(t *testing.T) {
	f := newServiceFixture(t)

	token, err := f.codec.Issue("user-1", RoleUser, 10*time.Minute)
	require.NoError(t, err)

	now := time.Now().UTC()
	f.mock.ExpectQuery("SELECT EXISTS").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	f.mock.ExpectQuery("SELECT (.+) FROM users").
		WithArgs("user-1").
		WillReturnRows(userRows(User{
			ID: "user-1", Username: "alice", PasswordHash: "digest",
			Role: RoleUser, CreatedAt: now, UpdatedAt: now,
		}))

	user, err := f.service.CurrentUser(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestServicePromoteRequiresAdmin(t *testing.T) {
	f := newServiceFixture(t)

	actor := User{ID: "user-1", Username: "alice", Role: RoleUser}
	_, _, err := f.service.Promote(context.Background(), actor, "dave")
	assert.True(t, apperr.IsKind(err, apperr.KindForbidden))
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestServicePromoteTargetMissing(t *testing.T) {
	f := newServiceFixture(t)

	f.mock.ExpectQuery("SELECT (.+) FROM users").
		WithArgs("ghost").
		WillReturnRows(userRows())

	actor := User{ID: "admin-1", Username: "root", Role: RoleAdmin}
	_, _, err := f.service.Promote(context.Background(), actor, "ghost")
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestServicePromoteIssuesTokenForTarget(t *testing.T) {
	f := newServiceFixture(t)

	now := time.Now().UTC()
	f.mock.ExpectQuery("SELECT (.+) FROM users").
		WithArgs("dave").
		WillReturnRows(userRows(User{
			ID: "user-2", Username: "dave", PasswordHash: "digest",
			Role: RoleUser, CreatedAt: now, UpdatedAt: now,
		}))
	f.mock.ExpectQuery("UPDATE users").
		WithArgs("user-2", "admin", sqlmock.AnyArg()).
		WillReturnRows(userRows(User{
			ID: "user-2", Username: "dave", PasswordHash: "digest",
			Role: RoleAdmin, CreatedAt: now, UpdatedAt: now,
		}))

	actor := User{ID: "admin-1", Username: "root", Role: RoleAdmin}
	updated, token, err := f.service.Promote(context.Background(), actor, "dave")
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, updated.Role)

	claims, err := f.codec.Verify(token.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-2", claims.Subject, "token belongs to the promoted user, not the actor")
	assert.Equal(t, RoleAdmin, claims.Role)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}
