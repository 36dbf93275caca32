package user

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/techfussion/bts/internal/auth"
	"github.com/techfussion/bts/internal/db"
	"github.com/techfussion/bts/internal/logger"
	"github.com/techfussion/bts/internal/wallet"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*User, string, string, error)
	Login(ctx context.Context, req LoginRequest) (*User, string, string, error)
	Me(ctx context.Context, userID int) (*Profile, error)
	RefreshToken(ctx context.Context, refreshToken string) (string, *User, error)
}

type service struct {
	repo      Repository
	ledger    wallet.Ledger
	txr       db.Transactor
	jwtSecret string
}

func NewService(repo Repository, ledger wallet.Ledger, txr db.Transactor, jwtSecret string) Service {
	return &service{
		repo:      repo,
		ledger:    ledger,
		txr:       txr,
		jwtSecret: jwtSecret,
	}
}

// Register creates a student and its empty wallet together.
func (s *service) Register(ctx context.Context, req RegisterRequest) (*User, string, string, error) {
	exists, err := s.repo.Exists(ctx, req.Username, req.Email)
	if err != nil {
		return nil, "", "", err
	}
	if exists {
		return nil, "", "", ErrUserExists
	}

	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, "", "", err
	}

	var user *User
	err = s.txr.WithinTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		user, err = s.repo.Create(ctx, tx, req.Username, req.Email, passwordHash, auth.RoleStudent)
		if err != nil {
			return err
		}
		_, err = s.ledger.Open(ctx, tx, user.ID)
		return err
	})
	if err != nil {
		return nil, "", "", err
	}

	accessToken, refreshToken, err := auth.GenerateTokens(user.Caller(), s.jwtSecret, s.jwtSecret)
	if err != nil {
		return nil, "", "", err
	}

	logger.Info("User registered", "user_id", user.ID, "username", user.Username)
	return user, accessToken, refreshToken, nil
}

func (s *service) Login(ctx context.Context, req LoginRequest) (*User, string, string, error) {
	user, err := s.repo.FindByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, "", "", ErrInvalidCredentials
		}
		return nil, "", "", err
	}

	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		return nil, "", "", ErrInvalidCredentials
	}

	accessToken, refreshToken, err := auth.GenerateTokens(user.Caller(), s.jwtSecret, s.jwtSecret)
	if err != nil {
		return nil, "", "", err
	}

	return user, accessToken, refreshToken, nil
}

func (s *service) Me(ctx context.Context, userID int) (*Profile, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	w, err := s.ledger.Balance(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &Profile{User: *user, Balance: w.Balance}, nil
}

// RefreshToken reloads the user so a changed role or email lands in the new token.
func (s *service) RefreshToken(ctx context.Context, refreshToken string) (string, *User, error) {
	_, claims, err := auth.RefreshAccessToken(refreshToken, s.jwtSecret, s.jwtSecret)
	if err != nil {
		return "", nil, err
	}

	user, err := s.repo.FindByID(ctx, claims.UserID)
	if err != nil {
		return "", nil, err
	}

	newAccessToken, err := auth.GenerateAccessToken(user.Caller(), s.jwtSecret)
	if err != nil {
		return "", nil, err
	}

	return newAccessToken, user, nil
}
