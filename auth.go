package main

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

const (
	jwtExpiry        = 7 * 24 * time.Hour // 7 days
	minPasswordLen   = 4
	minUsernameLen   = 2
	maxUsernameLen   = 16
	loginRateWindow  = 60 * time.Second
	maxLoginAttempts = 10
)

// bcryptCost is a var so tests can lower it
var bcryptCost = 12

var (
	ErrMissingToken = errors.New("auth: missing bearer token")
	ErrInvalidToken = errors.New("auth: invalid token")
	ErrRateLimited  = errors.New("too many login attempts, try again later")
	ErrBadLogin     = errors.New("invalid username or password")
	ErrNotAllocator = errors.New("auth: not an allocator credential")
)

// Claims is the access token payload. Subject is the account id.
type Claims struct {
	Name string `json:"name"`
	jwt.RegisteredClaims
}

// Auth issues and validates access tokens and owns the account flows
type Auth struct {
	db        *DB
	jwtSecret []byte
	log       zerolog.Logger

	// bearer key of the external match allocator, empty disables it
	allocatorKey []byte

	// Rate limiting for login attempts (IP -> attempts)
	rateMu  sync.Mutex
	rateMap map[string]*rateEntry
}

type rateEntry struct {
	Count   int
	ResetAt time.Time
}

// NewAuth creates the auth provider. An empty secret is loaded from, or
// generated into, the settings table.
func NewAuth(db *DB, secret string, log zerolog.Logger) *Auth {
	a := &Auth{
		db:      db,
		log:     log.With().Str("component", "auth").Logger(),
		rateMap: make(map[string]*rateEntry),
	}
	if secret != "" {
		a.jwtSecret = []byte(secret)
	} else {
		a.jwtSecret = a.loadOrCreateSecret()
	}
	return a
}

// loadOrCreateSecret loads the JWT secret from the database, or generates
// and persists a new one if none exists.
func (a *Auth) loadOrCreateSecret() []byte {
	if a.db != nil {
		if h := a.db.GetSetting("jwt_secret"); h != "" {
			if b, err := hex.DecodeString(h); err == nil && len(b) == 32 {
				return b
			}
		}
	}
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		panic("failed to generate JWT secret: " + err.Error())
	}
	if a.db != nil {
		if err := a.db.SetSetting("jwt_secret", hex.EncodeToString(secret)); err != nil {
			a.log.Warn().Err(err).Msg("could not persist JWT secret")
		}
	}
	return secret
}

// Register creates a new account and returns its id and a token
func (a *Auth) Register(username, password string) (int64, string, error) {
	if a.db == nil {
		return 0, "", errors.New("accounts are disabled")
	}
	username = strings.TrimSpace(username)

	if len(username) < minUsernameLen || len(username) > maxUsernameLen {
		return 0, "", fmt.Errorf("username must be %d-%d characters", minUsernameLen, maxUsernameLen)
	}
	if len(password) < minPasswordLen {
		return 0, "", fmt.Errorf("password must be at least %d characters", minPasswordLen)
	}

	exists, err := a.db.UsernameExists(username)
	if err != nil {
		return 0, "", fmt.Errorf("database error")
	}
	if exists {
		return 0, "", fmt.Errorf("username already taken")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return 0, "", fmt.Errorf("internal error")
	}

	id, err := a.db.CreateAccount(username, string(hash))
	if err != nil {
		a.log.Error().Err(err).Str("username", username).Msg("create account")
		return 0, "", fmt.Errorf("failed to create account")
	}

	token, err := a.IssueToken(accountKey(id), username)
	if err != nil {
		return 0, "", fmt.Errorf("internal error")
	}
	return id, token, nil
}

// Login authenticates a user and returns a JWT
func (a *Auth) Login(username, password, ip string) (int64, string, error) {
	if !a.checkRate(ip) {
		return 0, "", ErrRateLimited
	}
	if a.db == nil {
		return 0, "", ErrBadLogin
	}

	acct, err := a.db.GetAccountByUsername(strings.TrimSpace(username))
	if err != nil {
		return 0, "", fmt.Errorf("database error")
	}
	if acct == nil || acct.PassHash == "" {
		return 0, "", ErrBadLogin
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acct.PassHash), []byte(password)); err != nil {
		return 0, "", ErrBadLogin
	}

	token, err := a.IssueToken(accountKey(acct.ID), acct.Username)
	if err != nil {
		return 0, "", fmt.Errorf("internal error")
	}
	return acct.ID, token, nil
}

// IssueToken signs an access token for an account id
func (a *Auth) IssueToken(accountID, name string) (string, error) {
	now := time.Now()
	claims := Claims{
		Name: name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(jwtExpiry)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.jwtSecret)
}

// ValidateToken checks signature and expiry and returns the claims
func (a *Auth) ValidateToken(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		return a.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: no subject", ErrInvalidToken)
	}
	return claims, nil
}

// Authenticate exchanges the request's bearer credential for claims
func (a *Auth) Authenticate(r *http.Request) (*Claims, error) {
	token, err := BearerToken(r)
	if err != nil {
		return nil, err
	}
	return a.ValidateToken(token)
}

// SetAllocatorKey sets the credential accepted by AuthorizeAllocator
func (a *Auth) SetAllocatorKey(key string) {
	a.allocatorKey = []byte(key)
}

// AuthorizeAllocator admits only the allocator key. Player access tokens
// are refused with ErrNotAllocator.
func (a *Auth) AuthorizeAllocator(r *http.Request) error {
	token, err := BearerToken(r)
	if err != nil {
		return err
	}
	if len(a.allocatorKey) == 0 || subtle.ConstantTimeCompare([]byte(token), a.allocatorKey) != 1 {
		return ErrNotAllocator
	}
	return nil
}

// BearerToken reads the Authorization header, falling back to the token
// query parameter for browsers that cannot set headers on websockets
func BearerToken(r *http.Request) (string, error) {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			return "", ErrMissingToken
		}
		return strings.TrimSpace(token), nil
	}
	if token := r.URL.Query().Get("token"); token != "" {
		return token, nil
	}
	return "", ErrMissingToken
}

func (a *Auth) checkRate(ip string) bool {
	a.rateMu.Lock()
	defer a.rateMu.Unlock()

	now := time.Now()
	entry, ok := a.rateMap[ip]
	if !ok || now.After(entry.ResetAt) {
		a.rateMap[ip] = &rateEntry{Count: 1, ResetAt: now.Add(loginRateWindow)}
		return true
	}
	entry.Count++
	return entry.Count <= maxLoginAttempts
}
