package server

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	internalauth "github.com/AV-Sohan-Aiyappa/TumourScope/internal/auth"
	"github.com/AV-Sohan-Aiyappa/TumourScope/internal/models"
	"github.com/AV-Sohan-Aiyappa/TumourScope/internal/store"
)

const authTypeBearer = "bearer"

var (
	defaultSessionTTL     = 24 * time.Hour
	errInvalidCredentials = errors.New("invalid credentials")
	errEmailTaken         = errors.New("email already registered")
	errWrongPassword      = errors.New("current password is incorrect")
)

// AuthService encapsulates account and session operations backed by the store.
type AuthService struct {
	store      *store.Store
	sessionTTL time.Duration
}

type authLoginResult struct {
	User      *models.User
	Token     string
	ExpiresAt time.Time
}

func NewAuthService(st *store.Store) *AuthService {
	if st == nil {
		return nil
	}
	return &AuthService{store: st, sessionTTL: defaultSessionTTL}
}

func (a *AuthService) Register(ctx context.Context, email, password, name, specialization, hospital string, now time.Time) (*authLoginResult, error) {
	if a == nil || a.store == nil {
		return nil, fmt.Errorf("auth store is required")
	}

	normalized, err := internalauth.NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if err := internalauth.ValidatePassword(password); err != nil {
		return nil, err
	}
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("name is required")
	}

	existing, err := a.store.GetUserByEmail(ctx, normalized)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, errEmailTaken
	}

	hash, err := internalauth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	user, err := a.store.CreateUser(ctx, &models.User{
		Email:          normalized,
		PasswordHash:   hash,
		Name:           strings.TrimSpace(name),
		Specialization: strings.TrimSpace(specialization),
		Hospital:       strings.TrimSpace(hospital),
	})
	if err != nil {
		if isUniqueConstraint(err) {
			return nil, errEmailTaken
		}
		return nil, err
	}

	return a.issueSession(ctx, user, now)
}

func (a *AuthService) Login(ctx context.Context, email, password string, now time.Time) (*authLoginResult, error) {
	if a == nil || a.store == nil {
		return nil, fmt.Errorf("auth store is required")
	}

	normalized, err := internalauth.NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(password) == "" {
		return nil, fmt.Errorf("password is required")
	}

	user, err := a.store.GetUserByEmail(ctx, normalized)
	if err != nil {
		return nil, err
	}
	if user == nil || !internalauth.VerifyPassword(user.PasswordHash, password) {
		return nil, errInvalidCredentials
	}

	return a.issueSession(ctx, user, now)
}

func (a *AuthService) issueSession(ctx context.Context, user *models.User, now time.Time) (*authLoginResult, error) {
	token, err := generateSessionToken()
	if err != nil {
		return nil, err
	}
	expiresAt := now.Add(a.sessionTTL)
	if err := a.store.CreateSession(ctx, user.ID, hashSessionToken(token), expiresAt, now); err != nil {
		return nil, err
	}

	return &authLoginResult{
		User:      user,
		Token:     token,
		ExpiresAt: expiresAt,
	}, nil
}

// UpdateProfile applies the non-empty fields over the stored profile and
// returns the updated user. Fields left empty keep their current values.
func (a *AuthService) UpdateProfile(ctx context.Context, user *models.User, name, specialization, hospital string) (*models.User, error) {
	if a == nil || a.store == nil {
		return nil, fmt.Errorf("auth store is required")
	}
	if user == nil {
		return nil, fmt.Errorf("user is required")
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name = user.Name
	}
	specialization = strings.TrimSpace(specialization)
	if specialization == "" {
		specialization = user.Specialization
	}
	hospital = strings.TrimSpace(hospital)
	if hospital == "" {
		hospital = user.Hospital
	}

	updated, err := a.store.UpdateUserProfile(ctx, user.ID, name, specialization, hospital)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, fmt.Errorf("user %d not found", user.ID)
	}
	return updated, nil
}

// ChangePassword verifies the current password before storing a new hash.
func (a *AuthService) ChangePassword(ctx context.Context, user *models.User, currentPassword, newPassword string) error {
	if a == nil || a.store == nil {
		return fmt.Errorf("auth store is required")
	}
	if user == nil {
		return fmt.Errorf("user is required")
	}
	if strings.TrimSpace(currentPassword) == "" || strings.TrimSpace(newPassword) == "" {
		return fmt.Errorf("current password and new password are required")
	}
	if !internalauth.VerifyPassword(user.PasswordHash, currentPassword) {
		return errWrongPassword
	}
	if err := internalauth.ValidatePassword(newPassword); err != nil {
		return err
	}

	hash, err := internalauth.HashPassword(newPassword)
	if err != nil {
		return err
	}
	return a.store.UpdateUserPassword(ctx, user.ID, hash)
}

func (a *AuthService) AuthenticateToken(ctx context.Context, token string, now time.Time) (*models.User, error) {
	if a == nil || a.store == nil {
		return nil, nil
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}
	return a.store.GetUserBySessionTokenHash(ctx, hashSessionToken(token), now)
}

func hashSessionToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func generateSessionToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
