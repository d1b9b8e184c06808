package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/2beens/cfdnsadmin/pkg"

	"github.com/golang-jwt/jwt/v5"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

const (
	JWTSecretEnvVar    = "CFDNS_JWT_SECRET"
	generatedSecretLen = 48
)

var ErrInvalidCredentials = errors.New("invalid username or password")

var checkPasswordHash = pkg.CheckPasswordHash

type sessionClaims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Service issues and verifies stateless session tokens. There is no
// revocation: a token stays valid until it expires.
type Service struct {
	operators map[string]Operator
	secret    []byte
	expiry    time.Duration

	// hash of a random password, compared against for unknown usernames
	dummyHashOnce sync.Once
	dummyHash     string
	dummyHashCost int

	// Now is the clock used for issuing and checking tokens
	Now func() time.Time
}

func NewService(cfg *OperatorsConfig) (*Service, error) {
	if cfg == nil {
		cfg = &OperatorsConfig{}
	}

	expiry, err := ParseTokenExpiry(cfg.Settings.TokenExpiry)
	if err != nil {
		return nil, err
	}

	secret := cfg.Settings.JWTSecret
	if envSecret := os.Getenv(JWTSecretEnvVar); envSecret != "" {
		secret = envSecret
	}
	if secret == "" {
		log.Warnln("auth service: no jwt secret configured, using a random one; sessions will not survive a restart")
		secret, err = pkg.GenerateRandomString(generatedSecretLen)
		if err != nil {
			return nil, fmt.Errorf("generate jwt secret: %w", err)
		}
	}

	dummyHashCost := pkg.PasswordHashCost
	operators := make(map[string]Operator, len(cfg.Users))
	for _, op := range cfg.Users {
		operators[op.Username] = op
		if cost, err := bcrypt.Cost([]byte(op.PasswordHash)); err == nil {
			dummyHashCost = cost
		}
	}

	return &Service{
		operators:     operators,
		secret:        []byte(secret),
		expiry:        expiry,
		dummyHashCost: dummyHashCost,
		Now:           time.Now,
	}, nil
}

func (s *Service) Expiry() time.Duration {
	return s.expiry
}

// Authenticate checks the credentials and returns a fresh session token.
// Unknown users and wrong passwords fail the same way.
func (s *Service) Authenticate(username, password string) (string, Identity, error) {
	op, found := s.operators[username]
	if !found {
		checkPasswordHash(password, s.getDummyHash())
		return "", Identity{}, ErrInvalidCredentials
	}
	if !passwordMatches(op, password) {
		return "", Identity{}, ErrInvalidCredentials
	}

	identity := Identity{
		Username: op.Username,
		Role:     op.Role,
	}
	token, err := s.IssueToken(identity)
	if err != nil {
		return "", Identity{}, err
	}

	return token, identity, nil
}

func (s *Service) getDummyHash() string {
	s.dummyHashOnce.Do(func() {
		password, err := pkg.GenerateRandomString(generatedSecretLen)
		if err != nil {
			log.Errorf("auth service: generate dummy password: %s", err)
			return
		}
		s.dummyHash, err = pkg.HashPasswordWithCost(password, s.dummyHashCost)
		if err != nil {
			log.Errorf("auth service: generate dummy password hash: %s", err)
		}
	})
	return s.dummyHash
}

func passwordMatches(op Operator, password string) bool {
	if op.PasswordHash != "" {
		return checkPasswordHash(password, op.PasswordHash)
	}
	return subtle.ConstantTimeCompare([]byte(op.Password), []byte(password)) == 1
}

func (s *Service) IssueToken(identity Identity) (string, error) {
	now := s.Now()
	claims := sessionClaims{
		Username: identity.Username,
		Role:     identity.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}

	return signed, nil
}

// VerifyToken reports whether the token is a valid, unexpired session token
// signed by this service, and who it belongs to.
func (s *Service) VerifyToken(token string) (Identity, bool) {
	if token == "" {
		return Identity{}, false
	}

	claims := &sessionClaims{}
	parsed, err := jwt.ParseWithClaims(
		token,
		claims,
		func(t *jwt.Token) (any, error) {
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.Now),
	)
	if err != nil || !parsed.Valid {
		log.Tracef("auth service: token rejected: %v", err)
		return Identity{}, false
	}

	if claims.Username == "" {
		return Identity{}, false
	}

	return Identity{
		Username: claims.Username,
		Role:     claims.Role,
	}, true
}
