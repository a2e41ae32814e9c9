package users

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/vidacare-health/vidacare-backend/pkg/auth"
	"github.com/vidacare-health/vidacare-backend/pkg/auth/session"
	"github.com/vidacare-health/vidacare-backend/pkg/config"
	"github.com/vidacare-health/vidacare-backend/pkg/db/models"
	"github.com/vidacare-health/vidacare-backend/pkg/enums"
	pkgerrors "github.com/vidacare-health/vidacare-backend/pkg/errors"
)

type stubSessions struct {
	generated []string
	revoked   []string
	rotateErr error
}

func (s *stubSessions) Generate(ctx context.Context, accessID string) (string, error) {
	s.generated = append(s.generated, accessID)
	return "refresh-" + accessID, nil
}

func (s *stubSessions) Rotate(ctx context.Context, oldAccessID, provided string) (string, string, error) {
	if s.rotateErr != nil {
		return "", "", s.rotateErr
	}
	if provided != "refresh-"+oldAccessID {
		return "", "", session.ErrInvalidRefreshToken
	}
	next := session.NewAccessID()
	return next, "refresh-" + next, nil
}

func (s *stubSessions) Revoke(ctx context.Context, accessID string) error {
	s.revoked = append(s.revoked, accessID)
	return nil
}

type stubLimiter struct {
	counts map[string]int64
	limit  int64
}

func (l *stubLimiter) FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error) {
	if l.counts == nil {
		l.counts = map[string]int64{}
	}
	l.counts[scope]++
	max := limit
	if l.limit > 0 {
		max = l.limit
	}
	return l.counts[scope] <= max, l.counts[scope], nil
}

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:                 "test-secret",
		Issuer:                 "vidacare-test",
		ExpirationMinutes:      15,
		RefreshTokenTTLMinutes: 60,
	}
}

func testPasswordConfig() config.PasswordConfig {
	return config.PasswordConfig{
		ArgonMemoryKB:    8,
		ArgonTime:        1,
		ArgonParallelism: 1,
		ArgonSaltLen:     16,
		ArgonKeyLen:      32,
	}
}

func testLimitConfig() config.AuthRateLimitConfig {
	return config.AuthRateLimitConfig{
		LoginWindow:        time.Minute,
		LoginEmailLimit:    5,
		LoginIPLimit:       20,
		RegisterWindow:     5 * time.Minute,
		RegisterEmailLimit: 3,
		RegisterIPLimit:    20,
	}
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:users_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&models.User{}))
	return db
}

func newTestService(t *testing.T) (Service, *stubSessions, *stubLimiter) {
	t.Helper()

	sessions := &stubSessions{}
	limiter := &stubLimiter{}
	svc, err := NewService(
		NewRepository(newTestDB(t)),
		sessions,
		limiter,
		testJWTConfig(),
		testPasswordConfig(),
		testLimitConfig(),
		nil,
	)
	require.NoError(t, err)
	return svc, sessions, limiter
}

func validRegisterParams() RegisterParams {
	return RegisterParams{
		Email:     "ana@example.com",
		Password:  "correct horse",
		FirstName: "Ana",
		LastName:  "Souza",
		Role:      enums.UserRoleClient,
	}
}

func assertCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	require.Error(t, err)
	pkgErr := pkgerrors.As(err)
	require.NotNil(t, pkgErr, "expected a typed error, got %v", err)
	assert.Equal(t, code, pkgErr.Code())
}

func TestRegister_CreatesUserAndIssuesTokens(t *testing.T) {
	svc, sessions, _ := newTestService(t)
	ctx := context.Background()

	result, err := svc.Register(ctx, validRegisterParams())
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", result.User.Email)
	assert.Equal(t, enums.UserRoleClient, result.User.Role)
	assert.True(t, result.User.IsActive)
	assert.NotEmpty(t, result.AccessToken)
	assert.NotEmpty(t, result.RefreshToken)
	require.Len(t, sessions.generated, 1)

	claims, err := auth.ParseAccessToken(testJWTConfig(), result.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, result.User.ID, claims.UserID)
	assert.Equal(t, sessions.generated[0], claims.ID)

	// The stored hash must never be the raw password.
	assert.NotContains(t, result.User.PasswordHash, "correct horse")
}

func TestRegister_NormalizesEmailAndRejectsDuplicates(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, validRegisterParams())
	require.NoError(t, err)

	dup := validRegisterParams()
	dup.Email = "  ANA@example.com "
	_, err = svc.Register(ctx, dup)
	assertCode(t, err, pkgerrors.CodeConflict)
}

func TestRegister_ValidatesInput(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*RegisterParams)
	}{
		{"empty email", func(p *RegisterParams) { p.Email = "" }},
		{"malformed email", func(p *RegisterParams) { p.Email = "not-an-email" }},
		{"short password", func(p *RegisterParams) { p.Password = "short" }},
		{"missing name", func(p *RegisterParams) { p.FirstName = " " }},
		{"admin role", func(p *RegisterParams) { p.Role = enums.UserRoleAdmin }},
		{"unknown role", func(p *RegisterParams) { p.Role = enums.UserRole("root") }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			params := validRegisterParams()
			tc.mutate(&params)
			_, err := svc.Register(ctx, params)
			assertCode(t, err, pkgerrors.CodeValidation)
		})
	}
}

func TestRegister_RateLimitsPerEmail(t *testing.T) {
	svc, _, limiter := newTestService(t)
	ctx := context.Background()
	limiter.limit = 1

	_, err := svc.Register(ctx, validRegisterParams())
	require.NoError(t, err)

	second := validRegisterParams()
	second.Email = "ana@example.com"
	_, err = svc.Register(ctx, second)
	assertCode(t, err, pkgerrors.CodeRateLimit)
}

func TestLogin_Succeeds(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	registered, err := svc.Register(ctx, validRegisterParams())
	require.NoError(t, err)

	result, err := svc.Login(ctx, LoginParams{Email: "ana@example.com", Password: "correct horse"})
	require.NoError(t, err)
	assert.Equal(t, registered.User.ID, result.User.ID)
	assert.NotEmpty(t, result.AccessToken)
	require.NotNil(t, result.User.LastLoginAt)
}

func TestLogin_RejectsBadCredentials(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, validRegisterParams())
	require.NoError(t, err)

	_, err = svc.Login(ctx, LoginParams{Email: "ana@example.com", Password: "wrong password"})
	assertCode(t, err, pkgerrors.CodeUnauthorized)

	_, err = svc.Login(ctx, LoginParams{Email: "nobody@example.com", Password: "correct horse"})
	assertCode(t, err, pkgerrors.CodeUnauthorized)
}

func TestLogin_RejectsDisabledAccount(t *testing.T) {
	db := newTestDB(t)
	sessions := &stubSessions{}
	svc, err := NewService(NewRepository(db), sessions, nil, testJWTConfig(), testPasswordConfig(), testLimitConfig(), nil)
	require.NoError(t, err)
	ctx := context.Background()

	registered, err := svc.Register(ctx, validRegisterParams())
	require.NoError(t, err)
	require.NoError(t, db.Model(&models.User{}).
		Where("id = ?", registered.User.ID).
		Update("is_active", false).Error)

	_, err = svc.Login(ctx, LoginParams{Email: "ana@example.com", Password: "correct horse"})
	assertCode(t, err, pkgerrors.CodeUnauthorized)
}

func TestLogin_RateLimitsPerEmail(t *testing.T) {
	svc, _, limiter := newTestService(t)
	ctx := context.Background()
	limiter.limit = 2

	_, err := svc.Register(ctx, validRegisterParams())
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err = svc.Login(ctx, LoginParams{Email: "ana@example.com", Password: "wrong password"})
		assertCode(t, err, pkgerrors.CodeUnauthorized)
	}
	_, err = svc.Login(ctx, LoginParams{Email: "ana@example.com", Password: "correct horse"})
	assertCode(t, err, pkgerrors.CodeRateLimit)
}

func TestRefresh_RotatesSession(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	registered, err := svc.Register(ctx, validRegisterParams())
	require.NoError(t, err)

	refreshed, err := svc.Refresh(ctx, registered.AccessToken, registered.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, registered.User.ID, refreshed.User.ID)
	assert.NotEqual(t, registered.RefreshToken, refreshed.RefreshToken)

	oldClaims, err := auth.ParseAccessToken(testJWTConfig(), registered.AccessToken)
	require.NoError(t, err)
	newClaims, err := auth.ParseAccessToken(testJWTConfig(), refreshed.AccessToken)
	require.NoError(t, err)
	assert.NotEqual(t, oldClaims.ID, newClaims.ID)
}

func TestRefresh_RejectsInvalidToken(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	registered, err := svc.Register(ctx, validRegisterParams())
	require.NoError(t, err)

	_, err = svc.Refresh(ctx, registered.AccessToken, "stolen-token")
	assertCode(t, err, pkgerrors.CodeUnauthorized)

	_, err = svc.Refresh(ctx, "not-a-jwt", registered.RefreshToken)
	assertCode(t, err, pkgerrors.CodeUnauthorized)
}

func TestLogout_RevokesSession(t *testing.T) {
	svc, sessions, _ := newTestService(t)
	ctx := context.Background()

	registered, err := svc.Register(ctx, validRegisterParams())
	require.NoError(t, err)

	claims, err := auth.ParseAccessToken(testJWTConfig(), registered.AccessToken)
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, claims.ID))
	require.Len(t, sessions.revoked, 1)
	assert.Equal(t, claims.ID, sessions.revoked[0])
}

func TestUpdateProfile(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	registered, err := svc.Register(ctx, validRegisterParams())
	require.NoError(t, err)

	newName := "Mariana"
	phone := "+55 11 99999-0000"
	updated, err := svc.UpdateProfile(ctx, registered.User.ID, UpdateProfileParams{
		FirstName: &newName,
		Phone:     &phone,
	})
	require.NoError(t, err)
	assert.Equal(t, "Mariana", updated.FirstName)
	assert.Equal(t, "Souza", updated.LastName)
	require.NotNil(t, updated.Phone)

	empty := "  "
	_, err = svc.UpdateProfile(ctx, registered.User.ID, UpdateProfileParams{FirstName: &empty})
	assertCode(t, err, pkgerrors.CodeValidation)

	_, err = svc.UpdateProfile(ctx, uuid.New(), UpdateProfileParams{FirstName: &newName})
	assertCode(t, err, pkgerrors.CodeNotFound)
}
