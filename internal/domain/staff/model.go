package staff

import (
	"time"

	"github.com/google/uuid"
)

// User maps to the app_user table. PasswordHash is never serialized.
type User struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	FullName       string     `db:"full_name" json:"fullName"`
	Email          string     `db:"email" json:"email"`
	PasswordHash   string     `db:"password_hash" json:"-"`
	Role           string     `db:"role" json:"role"`
	Phone          *string    `db:"phone" json:"phone,omitempty"`
	Address        *string    `db:"address" json:"address,omitempty"`
	Specialization *string    `db:"specialization" json:"specialization,omitempty"`
	LicenseNumber  *string    `db:"license_number" json:"licenseNumber,omitempty"`
	Active         bool       `db:"active" json:"active"`
	LastLogin      *time.Time `db:"last_login" json:"lastLogin,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updatedAt"`
}

// IsDoctor reports whether the user holds the doctor role.
func (u *User) IsDoctor() bool { return u.Role == "doctor" }

// LoginResult is the login/refresh response payload.
type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      *User     `json:"user"`
}

// Stats summarizes staff accounts by role.
type Stats struct {
	Total  int            `json:"total"`
	Active int            `json:"active"`
	ByRole map[string]int `json:"byRole"`
}
