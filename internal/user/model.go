package user

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/techfussion/bts/internal/api"
	"github.com/techfussion/bts/internal/auth"
)

type User struct {
	ID           int       `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         string    `db:"role" json:"role"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

func (u *User) Caller() auth.Caller {
	return auth.Caller{
		UserID:   u.ID,
		Username: u.Username,
		Email:    u.Email,
		Role:     u.Role,
	}
}

type RegisterRequest struct {
	Username string `json:"username" validate:"required,alphanum,min=3,max=150" example:"student1"`
	Email    string `json:"email" validate:"required,email" example:"student1@buk.edu.ng"`
	Password string `json:"password" validate:"required,min=8" example:"password123"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required" example:"student1"`
	Password string `json:"password" validate:"required" example:"password123"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type LoginResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	User         User   `json:"user"`
}

type RefreshResponse struct {
	AccessToken string `json:"access_token"`
	User        User   `json:"user"`
}

// Profile is the dashboard view of the current user.
type Profile struct {
	User    User            `json:"user"`
	Balance decimal.Decimal `json:"balance"`
}

func (p Profile) MarshalJSON() ([]byte, error) {
	type plain Profile
	return json.Marshal(struct {
		plain
		Balance string `json:"balance"`
	}{plain(p), api.Money(p.Balance)})
}
