package service

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/google/uuid"

	"github.com/helvetio/marketplace-backend/internal/logger"
	"github.com/helvetio/marketplace-backend/internal/models"
	"github.com/helvetio/marketplace-backend/internal/pkg/apperror"
	"github.com/helvetio/marketplace-backend/internal/repository"
	"github.com/helvetio/marketplace-backend/internal/validation"
)

// AuthRepository lists what AuthService needs from the storage layer.
type AuthRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdateLastLoginAt(ctx context.Context, userID uuid.UUID) error
	CreateSession(ctx context.Context, session *models.Session) error
	GetSessionByToken(ctx context.Context, refreshToken string) (*models.Session, error)
	DeleteSession(ctx context.Context, refreshToken string) error
}

// AuthService encapsulates registration and authentication.
type AuthService struct {
	repo         AuthRepository
	tokenManager *TokenManager
}

// RegisterInput carries the fields of a registration request.
type RegisterInput struct {
	Email    string
	Password string
	Username string
	Role     string
}

// LoginInput carries the fields of a login request.
type LoginInput struct {
	Email    string
	Password string
}

// AuthResult is the outcome of a successful registration or login.
type AuthResult struct {
	User      *models.User
	TokenPair *TokenPair
}

func NewAuthService(repo AuthRepository, tokenManager *TokenManager) *AuthService {
	return &AuthService{repo: repo, tokenManager: tokenManager}
}

// Register creates a new account. Vendors start on the secure risk model;
// switching to growth is an operator decision made later.
func (s *AuthService) Register(ctx context.Context, in RegisterInput, meta map[string]string) (*AuthResult, error) {
	if err := validation.ValidateEmail(in.Email); err != nil {
		return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
	}

	role := in.Role
	if role == "" {
		role = models.RoleCustomer
	}
	if role != models.RoleCustomer && role != models.RoleVendor {
		return nil, apperror.New(apperror.ErrCodeValidation, "role must be customer or vendor")
	}

	if _, err := s.repo.GetByEmail(ctx, in.Email); err == nil {
		return nil, apperror.New(apperror.ErrCodeConflict, "email is already registered")
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, err
	}

	username := in.Username
	if username == "" {
		username = deriveUsername(in.Email)
	} else if err := validation.ValidateUsername(username); err != nil {
		return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
	}

	passHash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Email:        strings.ToLower(in.Email),
		Username:     username,
		PasswordHash: string(passHash),
		Role:         role,
		RiskModel:    models.RiskModelSecure,
		IsActive:     true,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}

	pair, err := s.issueSession(ctx, user, meta)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user, TokenPair: pair}, nil
}

// Login verifies credentials and returns a token pair.
func (s *AuthService) Login(ctx context.Context, in LoginInput, meta map[string]string) (*AuthResult, error) {
	if err := validation.ValidateEmail(in.Email); err != nil {
		return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
	}

	user, err := s.repo.GetByEmail(ctx, in.Email)
	if err != nil {
		return nil, apperror.New(apperror.ErrCodeUnauthorized, "invalid email or password")
	}
	if !user.IsActive {
		return nil, apperror.New(apperror.ErrCodeForbidden, "account is disabled")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		return nil, apperror.New(apperror.ErrCodeUnauthorized, "invalid email or password")
	}

	if err := s.repo.UpdateLastLoginAt(ctx, user.ID); err != nil {
		logger.Log.WithError(err).WithField("user_id", user.ID).Warn("failed to update last_login_at")
	}

	pair, err := s.issueSession(ctx, user, meta)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user, TokenPair: pair}, nil
}

// Refresh rotates the refresh token and issues a new pair.
func (s *AuthService) Refresh(ctx context.Context, oldToken string, meta map[string]string) (*TokenPair, error) {
	claims, err := s.tokenManager.ParseRefresh(oldToken)
	if err != nil {
		return nil, apperror.New(apperror.ErrCodeUnauthorized, "invalid refresh token")
	}
	if _, err := s.repo.GetSessionByToken(ctx, oldToken); err != nil {
		return nil, apperror.New(apperror.ErrCodeUnauthorized, "session not found")
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, apperror.New(apperror.ErrCodeUnauthorized, "invalid refresh token subject")
	}
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := s.repo.DeleteSession(ctx, oldToken); err != nil {
		return nil, err
	}
	return s.issueSession(ctx, user, meta)
}

// Logout removes the refresh session.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	return s.repo.DeleteSession(ctx, refreshToken)
}

func (s *AuthService) issueSession(ctx context.Context, user *models.User, meta map[string]string) (*TokenPair, error) {
	pair, refreshExp, err := s.tokenManager.GeneratePair(user)
	if err != nil {
		return nil, err
	}

	session := &models.Session{
		UserID:       user.ID,
		RefreshToken: pair.RefreshToken,
		ExpiresAt:    refreshExp,
	}
	if meta != nil {
		if ua, ok := meta["user_agent"]; ok {
			session.UserAgent = &ua
		}
		if ip, ok := meta["ip"]; ok {
			session.IPAddress = &ip
		}
	}
	if err := s.repo.CreateSession(ctx, session); err != nil {
		return nil, err
	}
	return pair, nil
}

func deriveUsername(email string) string {
	name := strings.Split(email, "@")[0]
	name = strings.NewReplacer(".", "_", "+", "_").Replace(name)
	name = strings.ToLower(name)
	if len(name) < 3 {
		name = "user_" + uuid.NewString()[:6]
	}
	return name
}
