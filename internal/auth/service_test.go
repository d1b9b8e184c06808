package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/2beens/cfdnsadmin/pkg"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	t.Setenv(JWTSecretEnvVar, "")

	hash, err := pkg.HashPasswordWithCost("admin-pass", bcrypt.MinCost)
	require.NoError(t, err)

	service, err := NewService(&OperatorsConfig{
		Users: []Operator{
			{Username: "admin", PasswordHash: hash, Role: "admin"},
			{Username: "legacy", Password: "legacy-pass", Role: "viewer"},
		},
		Settings: Settings{
			JWTSecret:   "test-secret",
			TokenExpiry: "1h",
		},
	})
	require.NoError(t, err)
	return service
}

func TestService_AuthenticateAndVerify(t *testing.T) {
	service := newTestService(t)

	token, identity, err := service.Authenticate("admin", "admin-pass")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, Identity{Username: "admin", Role: "admin"}, identity)

	verified, ok := service.VerifyToken(token)
	require.True(t, ok)
	assert.Equal(t, identity, verified)

	token, identity, err = service.Authenticate("legacy", "legacy-pass")
	require.NoError(t, err)
	assert.Equal(t, "viewer", identity.Role)
	verified, ok = service.VerifyToken(token)
	require.True(t, ok)
	assert.Equal(t, "legacy", verified.Username)
}

func TestService_AuthenticateFailures(t *testing.T) {
	service := newTestService(t)

	for _, creds := range [][2]string{
		{"admin", "wrong"},
		{"Admin", "admin-pass"},
		{"nobody", "admin-pass"},
		{"legacy", "legacy-pas"},
		{"", ""},
	} {
		token, identity, err := service.Authenticate(creds[0], creds[1])
		assert.ErrorIs(t, err, ErrInvalidCredentials)
		assert.Empty(t, token)
		assert.Empty(t, identity)
	}
}

func TestService_Authenticate_UnknownUserRunsBcrypt(t *testing.T) {
	service := newTestService(t)

	var checkedHashes []string
	origCheck := checkPasswordHash
	checkPasswordHash = func(password, hash string) bool {
		checkedHashes = append(checkedHashes, hash)
		return origCheck(password, hash)
	}
	t.Cleanup(func() { checkPasswordHash = origCheck })

	for i := 0; i < 2; i++ {
		_, _, err := service.Authenticate("nobody", "admin-pass")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	}
	_, _, err := service.Authenticate("admin", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	require.Len(t, checkedHashes, 3)
	dummy := checkedHashes[0]
	assert.Equal(t, dummy, checkedHashes[1])
	assert.NotEqual(t, dummy, checkedHashes[2])

	// same cost as the configured operator hashes
	cost, err := bcrypt.Cost([]byte(dummy))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost, cost)
}

func TestService_VerifyToken_Expired(t *testing.T) {
	service := newTestService(t)
	issuedAt := time.Now()
	service.Now = func() time.Time { return issuedAt }

	token, err := service.IssueToken(Identity{Username: "admin", Role: "admin"})
	require.NoError(t, err)

	service.Now = func() time.Time { return issuedAt.Add(59 * time.Minute) }
	_, ok := service.VerifyToken(token)
	assert.True(t, ok)

	service.Now = func() time.Time { return issuedAt.Add(time.Hour + time.Second) }
	_, ok = service.VerifyToken(token)
	assert.False(t, ok)
}

func TestService_VerifyToken_Rejects(t *testing.T) {
	service := newTestService(t)

	valid, err := service.IssueToken(Identity{Username: "admin", Role: "admin"})
	require.NoError(t, err)

	otherService := newTestService(t)
	otherService.secret = []byte("another-secret")
	foreign, err := otherService.IssueToken(Identity{Username: "admin", Role: "admin"})
	require.NoError(t, err)

	now := time.Now()
	noUsername, err := jwt.NewWithClaims(jwt.SigningMethodHS256, sessionClaims{
		Role: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}).SignedString(service.secret)
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, sessionClaims{
		Username: "admin",
	}).SignedString(service.secret)
	require.NoError(t, err)

	wrongAlg, err := jwt.NewWithClaims(jwt.SigningMethodHS512, sessionClaims{
		Username: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}).SignedString(service.secret)
	require.NoError(t, err)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, sessionClaims{
		Username: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	parts := strings.Split(valid, ".")
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]

	for name, token := range map[string]string{
		"empty":       "",
		"garbage":     "not-a-jwt",
		"foreign":     foreign,
		"no username": noUsername,
		"no expiry":   noExpiry,
		"wrong alg":   wrongAlg,
		"alg none":    unsigned,
		"tampered":    tampered,
	} {
		t.Run(name, func(t *testing.T) {
			identity, ok := service.VerifyToken(token)
			assert.False(t, ok)
			assert.Empty(t, identity)
		})
	}
}

func TestNewService_Secrets(t *testing.T) {
	t.Setenv(JWTSecretEnvVar, "")
	generated, err := NewService(&OperatorsConfig{})
	require.NoError(t, err)
	assert.Len(t, generated.secret, generatedSecretLen)
	assert.Equal(t, DefaultTokenExpiry, generated.Expiry())

	t.Setenv(JWTSecretEnvVar, "from-env")
	fromEnv, err := NewService(&OperatorsConfig{Settings: Settings{JWTSecret: "from-file"}})
	require.NoError(t, err)
	assert.Equal(t, []byte("from-env"), fromEnv.secret)

	_, err = NewService(&OperatorsConfig{Settings: Settings{TokenExpiry: "soon"}})
	assert.Error(t, err)
}
