package httpapi

import (
	"context"
	"crypto/subtle"
	"errors"
	"log"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"shoppro/backend/internal/domain"
	"shoppro/backend/internal/service"
)

// AuthManager issues and validates access tokens against the accounts held
// in the entity store. Passwords are stored as bcrypt hashes; any legacy
// plain-text password found at login time is verified once and upgraded in
// place.
type AuthManager struct {
	secret   []byte
	tokenTTL time.Duration
	service  *service.Service
}

type accessClaims struct {
	jwtlib.RegisteredClaims
	Role string `json:"role"`
}

func NewAuthManager(secret string, tokenTTL time.Duration, svc *service.Service) *AuthManager {
	if secret == "" {
		secret = "dev-change-me"
	}
	if tokenTTL <= 0 {
		tokenTTL = 8 * time.Hour
	}
	return &AuthManager{
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
		service:  svc,
	}
}

var errInvalidCredentials = errors.New("invalid credentials")

func (a *AuthManager) Login(ctx context.Context, req domain.LoginRequest) (domain.LoginResponse, error) {
	username := strings.TrimSpace(req.Username)
	user, ok := a.service.UserByUsername(username)
	if !ok {
		// Burn a comparison anyway so username probing costs the same.
		_ = bcrypt.CompareHashAndPassword([]byte("$2a$10$0000000000000000000000uGZwLA2Tq0UsX1rqYIvlZmPM7kHxkxW"), []byte(req.Password))
		return domain.LoginResponse{}, errInvalidCredentials
	}

	if !a.verifyAndUpgrade(ctx, user, req.Password) {
		return domain.LoginResponse{}, errInvalidCredentials
	}

	expiresAt := time.Now().UTC().Add(a.tokenTTL)
	token, err := a.sign(user.Username, string(user.Role), expiresAt)
	if err != nil {
		return domain.LoginResponse{}, err
	}
	if err := a.service.SetSession(ctx, user.Username); err != nil {
		log.Printf("[auth] WARN: persist session: %v", err)
	}

	return domain.LoginResponse{
		AccessToken: token,
		User:        redactUser(user),
		ExpiresAt:   expiresAt.Format(time.RFC3339),
	}, nil
}

// Register creates an account with the submitted password hashed. The first
// account ever created becomes Admin regardless of the requested role.
func (a *AuthManager) Register(ctx context.Context, in domain.UserInput) (domain.UserAccount, error) {
	if strings.TrimSpace(in.Password) == "" {
		return domain.UserAccount{}, errors.New("password required")
	}
	hash, err := hashPassword(in.Password)
	if err != nil {
		return domain.UserAccount{}, err
	}
	in.Password = hash

	user, err := a.service.AddUser(ctx, in)
	if err != nil {
		return domain.UserAccount{}, err
	}
	return redactUser(user), nil
}

func (a *AuthManager) ParseToken(tokenStr string) (domain.Actor, error) {
	claims := &accessClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return domain.Actor{}, errors.New("invalid or expired token")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return domain.Actor{}, errors.New("invalid token subject")
	}
	return domain.Actor{Username: sub, Role: domain.UserRole(claims.Role)}, nil
}

func (a *AuthManager) sign(username, role string, expiresAt time.Time) (string, error) {
	claims := accessClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwtlib.NewNumericDate(time.Now().UTC()),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			Issuer:    "shoppro",
		},
		Role: role,
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

func (a *AuthManager) verifyAndUpgrade(ctx context.Context, user domain.UserAccount, input string) bool {
	if user.Password == "" || strings.TrimSpace(input) == "" {
		return false
	}
	if isPasswordHash(user.Password) {
		return bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(input)) == nil
	}

	// Legacy plain-text credential from an imported data set.
	if subtle.ConstantTimeCompare([]byte(user.Password), []byte(input)) != 1 {
		return false
	}
	if hash, err := hashPassword(input); err == nil {
		if err := a.service.ReplacePasswordHash(ctx, user.ID, hash); err != nil {
			log.Printf("[auth] WARN: upgrade legacy password for %s: %v", user.Username, err)
		}
	}
	return true
}

// HashPassword exposes the credential hasher for account updates that change
// the password outside the register flow.
func (a *AuthManager) HashPassword(password string) (string, error) {
	return hashPassword(password)
}

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func isPasswordHash(value string) bool {
	return strings.HasPrefix(value, "$2a$") || strings.HasPrefix(value, "$2b$") || strings.HasPrefix(value, "$2y$")
}

func redactUser(user domain.UserAccount) domain.UserAccount {
	user.Password = ""
	return user
}
