package staff

import "time"

const (
	RoleAdmin  = "admin"
	RoleEditor = "editor"
)

type User struct {
	ID           string     `bson:"_id,omitempty" json:"id"`
	Username     string     `bson:"username" json:"username"`
	Email        string     `bson:"email,omitempty" json:"email,omitempty"`
	Name         string     `bson:"name,omitempty" json:"name,omitempty"`
	PasswordHash string     `bson:"password_hash" json:"-"`
	Role         string     `bson:"role" json:"role"`
	Active       bool       `bson:"active" json:"active"`
	LastLoginAt  *time.Time `bson:"last_login_at,omitempty" json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `bson:"updated_at" json:"updated_at"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required,max=255"`
	Password string `json:"password" validate:"required,max=255"`
}

// Account describes a staff user to create or refresh, as used by the seeder.
type Account struct {
	Username string `yaml:"username" validate:"required"`
	Email    string `yaml:"email" validate:"omitempty,email"`
	Name     string `yaml:"name"`
	Password string `yaml:"password" validate:"required,min=8"`
	Role     string `yaml:"role" validate:"omitempty,oneof=admin editor"`
}

type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}
