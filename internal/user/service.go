package user

import (
	"context"
	"errors"

	"github.com/wichananm65/urbancart-backend/internal/apperror"
	"github.com/wichananm65/urbancart-backend/internal/auth"
	"github.com/wichananm65/urbancart-backend/internal/logging"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) GetByID(ctx context.Context, id int) (User, error) {
	return s.repo.GetByID(ctx, id)
}

// Register creates an active customer account.
func (s *Service) Register(ctx context.Context, email, password string) (User, error) {
	return s.create(ctx, email, password, auth.RoleCustomer)
}

func (s *Service) create(ctx context.Context, email, password string, role auth.Role) (User, error) {
	email = NormalizeEmail(email)
	if !validEmail(email) {
		return User{}, apperror.Validation("a valid email is required")
	}
	if len(password) < minPasswordLength {
		return User{}, apperror.Validationf("password must be at least %d characters", minPasswordLength)
	}
	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return User{}, ErrEmailExists
	} else if !errors.Is(err, ErrNotFound) {
		return User{}, err
	}

	hashed, err := hashPassword(password)
	if err != nil {
		return User{}, err
	}
	return s.repo.Create(ctx, User{Email: email, Password: hashed, Role: role, IsActive: true})
}

func (s *Service) Authenticate(ctx context.Context, email, password string) (User, error) {
	u, err := s.repo.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return User{}, ErrInvalidCredentials
	}

	if bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)) != nil {
		return User{}, ErrInvalidCredentials
	}
	if !u.IsActive {
		return User{}, ErrInactive
	}
	return u, nil
}

func (s *Service) SetActive(ctx context.Context, id int, active bool) error {
	return s.repo.SetActive(ctx, id, active)
}

// EnsureAdmin creates the bootstrap administrator when it does not exist yet.
func (s *Service) EnsureAdmin(ctx context.Context, email, password string) (User, error) {
	existing, err := s.repo.GetByEmail(ctx, NormalizeEmail(email))
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return User{}, err
	}
	u, err := s.create(ctx, email, password, auth.RoleAdmin)
	if err != nil {
		return User{}, err
	}
	logging.FromContext(ctx).Info("admin_account_created", zap.Int("user_id", u.ID), zap.String("email", u.Email))
	return u, nil
}

func hashPassword(password string) (string, error) {
	if looksLikeBcrypt(password) {
		return password, nil
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func looksLikeBcrypt(value string) bool {
	return len(value) > 4 && value[0:2] == "$2"
}
