package staff

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/clinichub/clinic/internal/platform/auth"
)

const minPasswordLength = 8

type Service struct {
	users  Repository
	issuer *auth.TokenIssuer
}

func NewService(users Repository, issuer *auth.TokenIssuer) *Service {
	return &Service{users: users, issuer: issuer}
}

func (s *Service) validate(u *User) error {
	if u.FullName == "" {
		return fmt.Errorf("full name is required")
	}
	if u.Email == "" || !strings.Contains(u.Email, "@") {
		return fmt.Errorf("a valid email is required")
	}
	if !auth.ValidRole(u.Role) {
		return fmt.Errorf("invalid role: %s", u.Role)
	}
	return nil
}

// Register creates a staff account with a bcrypt-hashed password.
func (s *Service) Register(ctx context.Context, u *User, password string) error {
	if err := s.validate(u); err != nil {
		return err
	}
	if len(password) < minPasswordLength {
		return fmt.Errorf("password must be at least %d characters", minPasswordLength)
	}
	if existing, err := s.users.GetByEmail(ctx, u.Email); err == nil && existing != nil {
		return fmt.Errorf("email already registered")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	u.PasswordHash = string(hash)
	return s.users.Create(ctx, u)
}

// Login verifies credentials and issues a bearer token.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("invalid email or password")
	}
	if !u.Active {
		return nil, fmt.Errorf("account is deactivated")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, fmt.Errorf("invalid email or password")
	}

	token, err := s.issuer.Issue(u.ID, u.Role, u.FullName)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if err := s.users.RecordLogin(ctx, u.ID, now); err != nil {
		return nil, err
	}
	u.LastLogin = &now

	return &LoginResult{Token: token, ExpiresAt: now.Add(s.issuer.TTL()), User: u}, nil
}

// Refresh issues a fresh token for an already-authenticated user.
func (s *Service) Refresh(ctx context.Context, userID uuid.UUID) (*LoginResult, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("user not found")
	}
	if !u.Active {
		return nil, fmt.Errorf("account is deactivated")
	}
	token, err := s.issuer.Issue(u.ID, u.Role, u.FullName)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, ExpiresAt: time.Now().Add(s.issuer.TTL()), User: u}, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.users.GetByID(ctx, id)
}

// UpdateProfile lets a user change their own contact details. Role and email
// are not self-serviceable.
func (s *Service) UpdateProfile(ctx context.Context, userID uuid.UUID, fullName string, phone, address *string) (*User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("user not found")
	}
	if fullName != "" {
		u.FullName = fullName
	}
	if phone != nil {
		u.Phone = phone
	}
	if address != nil {
		u.Address = address
	}
	if err := s.users.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Update applies an admin edit to a staff account.
func (s *Service) Update(ctx context.Context, u *User) error {
	existing, err := s.users.GetByID(ctx, u.ID)
	if err != nil {
		return fmt.Errorf("user not found")
	}
	if u.Role == "" {
		u.Role = existing.Role
	}
	if err := s.validate(u); err != nil {
		return err
	}
	if !strings.EqualFold(u.Email, existing.Email) {
		if other, err := s.users.GetByEmail(ctx, u.Email); err == nil && other != nil && other.ID != u.ID {
			return fmt.Errorf("email already registered")
		}
	}
	return s.users.Update(ctx, u)
}

func (s *Service) ChangePassword(ctx context.Context, userID uuid.UUID, current, next string) error {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("user not found")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(current)); err != nil {
		return fmt.Errorf("current password is incorrect")
	}
	if len(next) < minPasswordLength {
		return fmt.Errorf("password must be at least %d characters", minPasswordLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.users.UpdatePassword(ctx, userID, string(hash))
}

// SetActive activates or deactivates an account. An admin cannot deactivate
// their own account.
func (s *Service) SetActive(ctx context.Context, actorID, userID uuid.UUID, active bool) error {
	if !active && actorID == userID {
		return fmt.Errorf("cannot deactivate your own account")
	}
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return fmt.Errorf("user not found")
	}
	return s.users.SetActive(ctx, userID, active)
}

func (s *Service) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*User, int, error) {
	return s.users.Search(ctx, params, limit, offset)
}

func (s *Service) ListDoctors(ctx context.Context) ([]*User, error) {
	return s.users.ListDoctors(ctx)
}

// IsActiveDoctor reports whether the id belongs to an active doctor. Used by
// the scheduler through a narrow interface.
func (s *Service) IsActiveDoctor(ctx context.Context, id uuid.UUID) (bool, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return false, nil
	}
	return u.Active && u.IsDoctor(), nil
}

func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	return s.users.Stats(ctx)
}
