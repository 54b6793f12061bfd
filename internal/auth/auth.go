package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"codesherpa/pkg/models"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenExpired       = errors.New("token expired")
	ErrInvalidToken       = errors.New("invalid token")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrUserInactive       = errors.New("user account is inactive")
	ErrPasswordTooShort   = errors.New("password must be at least 8 characters")
)

// Token types carried in the jti prefix
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"

	MinPasswordLength = 8
	issuer            = "codesherpa"
)

// AuthService handles password hashing and JWT issuance
type AuthService struct {
	jwtSecret     []byte
	tokenExpiry   time.Duration
	refreshExpiry time.Duration
	bcryptCost    int
	now           func() time.Time
}

// Option configures an AuthService
type Option func(*AuthService)

// WithExpiry overrides the access and refresh token lifetimes
func WithExpiry(access, refresh time.Duration) Option {
	return func(a *AuthService) {
		if access > 0 {
			a.tokenExpiry = access
		}
		if refresh > 0 {
			a.refreshExpiry = refresh
		}
	}
}

// WithBcryptCost overrides the bcrypt work factor
func WithBcryptCost(cost int) Option {
	return func(a *AuthService) { a.bcryptCost = cost }
}

// WithClock overrides the time source used for token timestamps
func WithClock(now func() time.Time) Option {
	return func(a *AuthService) { a.now = now }
}

// JWTClaims represents the JWT token claims
type JWTClaims struct {
	UserID uint   `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// TokenType reports whether the claims belong to an access or refresh token
func (c *JWTClaims) TokenType() string {
	if i := strings.IndexByte(c.ID, ':'); i > 0 {
		return c.ID[:i]
	}
	return ""
}

// TokenPair represents access and refresh tokens
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	TokenType    string    `json:"token_type"`
}

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RegisterRequest represents a registration request
type RegisterRequest struct {
	Name     string `json:"name" binding:"required,max=255"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// RefreshRequest carries a refresh token
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// NewAuthService creates a new authentication service. Access tokens last
// 30 minutes and refresh tokens 7 days unless overridden.
func NewAuthService(jwtSecret string, opts ...Option) *AuthService {
	a := &AuthService{
		jwtSecret:     []byte(jwtSecret),
		tokenExpiry:   30 * time.Minute,
		refreshExpiry: 7 * 24 * time.Hour,
		bcryptCost:    12,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// HashPassword hashes a password using bcrypt
func (a *AuthService) HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), a.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(bytes), nil
}

// CheckPassword compares a password with its hash
func (a *AuthService) CheckPassword(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// GenerateTokens generates access and refresh tokens for a user
func (a *AuthService) GenerateTokens(user *models.User) (*TokenPair, error) {
	now := a.now()
	expiresAt := now.Add(a.tokenExpiry)

	accessToken, err := a.sign(user, TokenTypeAccess, now, expiresAt)
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}
	refreshToken, err := a.sign(user, TokenTypeRefresh, now, now.Add(a.refreshExpiry))
	if err != nil {
		return nil, fmt.Errorf("failed to sign refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
		TokenType:    "bearer",
	}, nil
}

func (a *AuthService) sign(user *models.User, tokenType string, now, expiresAt time.Time) (string, error) {
	claims := &JWTClaims{
		UserID: user.ID,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    issuer,
			Subject:   user.Email,
			ID:        fmt.Sprintf("%s:%d:%d", tokenType, user.ID, now.UnixNano()),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.jwtSecret)
}

// ValidateToken validates and parses a JWT token of either type
func (a *AuthService) ValidateToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.jwtSecret, nil
	}, jwt.WithTimeFunc(a.now), jwt.WithIssuer(issuer))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ValidateAccessToken accepts only access tokens
func (a *AuthService) ValidateAccessToken(tokenString string) (*JWTClaims, error) {
	return a.validateType(tokenString, TokenTypeAccess)
}

// ValidateRefreshToken accepts only refresh tokens
func (a *AuthService) ValidateRefreshToken(tokenString string) (*JWTClaims, error) {
	return a.validateType(tokenString, TokenTypeRefresh)
}

func (a *AuthService) validateType(tokenString, tokenType string) (*JWTClaims, error) {
	claims, err := a.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.TokenType() != tokenType {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// RefreshTokens issues a new pair for user from a valid refresh token
func (a *AuthService) RefreshTokens(refreshToken string, user *models.User) (*TokenPair, error) {
	claims, err := a.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("invalid refresh token: %w", err)
	}
	if claims.UserID != user.ID {
		return nil, ErrInvalidToken
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}
	return a.GenerateTokens(user)
}

// ValidateRegistration validates registration data
func (a *AuthService) ValidateRegistration(req *RegisterRequest) error {
	if strings.TrimSpace(req.Name) == "" {
		return errors.New("name is required")
	}
	if len(req.Password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	return nil
}

// CreateUser builds a new active user with a hashed password. The caller persists it.
func (a *AuthService) CreateUser(req *RegisterRequest) (*models.User, error) {
	if err := a.ValidateRegistration(req); err != nil {
		return nil, err
	}

	hashedPassword, err := a.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	return &models.User{
		Name:           strings.TrimSpace(req.Name),
		Email:          NormalizeEmail(req.Email),
		HashedPassword: hashedPassword,
		IsActive:       true,
	}, nil
}

// Authenticate checks password against user and rejects inactive accounts
func (a *AuthService) Authenticate(user *models.User, password string) error {
	if err := a.CheckPassword(password, user.HashedPassword); err != nil {
		return err
	}
	if !user.IsActive {
		return ErrUserInactive
	}
	return nil
}

// NormalizeEmail lowercases and trims an email address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
