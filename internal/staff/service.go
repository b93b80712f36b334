package staff

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"cms-backend/internal/apperr"
	"cms-backend/internal/auth"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid refresh token")
	ErrNotConfigured      = errors.New("staff auth not configured")
	ErrNotFound           = apperr.NotFound("staff user not found")
)

type Service struct {
	repo     Repository
	tokens   *auth.Manager
	location *time.Location
	log      *slog.Logger
	now      func() time.Time
}

func NewService(repo Repository, tokens *auth.Manager, location *time.Location, log *slog.Logger) *Service {
	if location == nil {
		location = time.UTC
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{repo: repo, tokens: tokens, location: location, log: log, now: time.Now}
}

// Login checks the password and issues a token pair whose subject is the
// staff user id. Unknown users and inactive users look the same as a wrong
// password.
func (s *Service) Login(ctx context.Context, username, password string) (User, Session, error) {
	if s.tokens == nil {
		return User{}, Session{}, ErrNotConfigured
	}
	user, err := s.repo.GetByUsername(ctx, normalizeUsername(username))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			_ = auth.VerifyPassword("", password)
			return User{}, Session{}, ErrInvalidCredentials
		}
		return User{}, Session{}, apperr.Storage("staff login", err)
	}
	if auth.VerifyPassword(user.PasswordHash, password) != nil || !user.Active {
		return User{}, Session{}, ErrInvalidCredentials
	}

	session, err := s.issue(user)
	if err != nil {
		return User{}, Session{}, err
	}
	now := s.now().In(s.location)
	if err := s.repo.TouchLogin(ctx, user.ID, now); err != nil {
		s.log.Warn("staff login: last login not recorded", slog.String("staff_id", user.ID), slog.String("error", err.Error()))
	} else {
		user.LastLoginAt = &now
	}
	return user, session, nil
}

// Refresh trades a valid refresh token for a new pair, provided the user
// still exists and is active.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (User, Session, error) {
	if s.tokens == nil {
		return User{}, Session{}, ErrNotConfigured
	}
	claims, err := s.tokens.ParseRefresh(refreshToken)
	if err != nil {
		return User{}, Session{}, ErrInvalidToken
	}
	user, err := s.repo.Get(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return User{}, Session{}, ErrInvalidToken
		}
		return User{}, Session{}, apperr.Storage("staff refresh", err)
	}
	if !user.Active {
		return User{}, Session{}, ErrInvalidToken
	}
	session, err := s.issue(user)
	if err != nil {
		return User{}, Session{}, err
	}
	return user, session, nil
}

func (s *Service) Me(ctx context.Context, id string) (User, error) {
	if id == "" {
		return User{}, ErrNotFound
	}
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return User{}, ErrNotFound
		}
		return User{}, apperr.Storage("staff me", err)
	}
	return user, nil
}

// Ensure creates the account, or resets its password when the username
// already exists. It reports whether a new user was created.
func (s *Service) Ensure(ctx context.Context, a Account) (bool, error) {
	hash, err := auth.HashPassword(a.Password)
	if err != nil {
		return false, apperr.Field("password", err.Error())
	}
	now := s.now().In(s.location)
	username := normalizeUsername(a.Username)

	existing, err := s.repo.GetByUsername(ctx, username)
	switch {
	case err == nil:
		if err := s.repo.SetPassword(ctx, existing.ID, hash, now); err != nil {
			return false, apperr.Storage("staff ensure", err)
		}
		return false, nil
	case !errors.Is(err, mongo.ErrNoDocuments):
		return false, apperr.Storage("staff ensure", err)
	}

	role := a.Role
	if role == "" {
		role = RoleEditor
	}
	user := User{
		ID:           primitive.NewObjectID().Hex(),
		Username:     username,
		Email:        strings.ToLower(strings.TrimSpace(a.Email)),
		Name:         strings.TrimSpace(a.Name),
		PasswordHash: hash,
		Role:         role,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, apperr.Conflict("username already exists")
		}
		return false, apperr.Storage("staff ensure", err)
	}
	return true, nil
}

func (s *Service) issue(user User) (Session, error) {
	access, err := s.tokens.NewAccessToken(user.ID, user.Role)
	if err != nil {
		return Session{}, err
	}
	refresh, err := s.tokens.NewRefreshToken(user.ID, user.Role)
	if err != nil {
		return Session{}, err
	}
	return Session{AccessToken: access, RefreshToken: refresh}, nil
}

func normalizeUsername(username string) string {
	username = strings.TrimSpace(username)
	if strings.Contains(username, "@") {
		username = strings.ToLower(username)
	}
	return username
}
