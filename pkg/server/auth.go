package server

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/much-hall/gomuch/pkg/boltstore"
	"github.com/much-hall/gomuch/pkg/world"
)

// ErrBadCredentials is returned for any login failure. The same error covers
// unknown names and wrong passwords so callers cannot probe for accounts.
var ErrBadCredentials = fmt.Errorf("invalid credentials")

// Claims holds the JWT claims for a gateway session token. The session ID is
// the opaque world session the token is bound to.
type Claims struct {
	SessionID string `json:"session_id"`
	Name      string `json:"name"`
	Admin     bool   `json:"admin,omitempty"`
	Guest     bool   `json:"guest,omitempty"`
	jwt.RegisteredClaims
}

// AuthService provides bcrypt account verification and JWT session tokens.
type AuthService struct {
	game   *Game
	jwtKey []byte
	expiry time.Duration
}

// NewAuthService creates an auth service. If jwtSecret is empty, a random
// 32-byte key is generated (tokens then expire on restart).
func NewAuthService(game *Game, jwtSecret string, expirySeconds int) *AuthService {
	var key []byte
	if jwtSecret != "" {
		key = []byte(jwtSecret)
	} else {
		key = make([]byte, 32)
		rand.Read(key)
	}
	expiry := 24 * time.Hour
	if expirySeconds > 0 {
		expiry = time.Duration(expirySeconds) * time.Second
	}
	return &AuthService{
		game:   game,
		jwtKey: key,
		expiry: expiry,
	}
}

// Register creates a new account with a bcrypt password hash.
func (a *AuthService) Register(name, password string, admin bool) (*boltstore.Account, error) {
	if password == "" {
		return nil, fmt.Errorf("a password is required")
	}
	if a.game.Store == nil {
		return nil, fmt.Errorf("account registration is not available")
	}
	if _, err := a.game.Store.GetAccount(name); err == nil {
		return nil, fmt.Errorf("that name is already taken")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}
	acct := &boltstore.Account{
		Name:    name,
		Hash:    hash,
		Admin:   admin,
		Created: time.Now().UTC(),
	}
	if err := a.game.Store.PutAccount(acct); err != nil {
		return nil, err
	}
	return acct, nil
}

// Verify checks a name/password pair against the account store.
func (a *AuthService) Verify(name, password string) (*boltstore.Account, error) {
	if a.game.Store == nil {
		return nil, ErrBadCredentials
	}
	acct, err := a.game.Store.GetAccount(name)
	if err != nil {
		return nil, ErrBadCredentials
	}
	if bcrypt.CompareHashAndPassword(acct.Hash, []byte(password)) != nil {
		return nil, ErrBadCredentials
	}
	a.game.Store.TouchLogin(acct.Name, time.Now().UTC())
	return acct, nil
}

// TokenForSession issues a JWT bound to a live world session.
func (a *AuthService) TokenForSession(s *world.Session) (string, error) {
	now := time.Now()
	claims := Claims{
		SessionID: s.ID,
		Name:      s.Identity.Name,
		Admin:     s.Identity.Admin,
		Guest:     s.Identity.Guest,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   s.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.expiry)),
			Issuer:    "gomuch",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.jwtKey)
}

// ValidateToken parses and validates a JWT token string.
func (a *AuthService) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.jwtKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}

// GenerateJWTSecret generates a random hex-encoded secret suitable for the
// jwt_secret config key.
func GenerateJWTSecret() string {
	b := make([]byte, 32)
	rand.Read(b)
	return hex.EncodeToString(b)
}
