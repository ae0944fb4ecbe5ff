package service

import (
	"context"
	"encoding/hex"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"lockerhub/internal/config"
	"lockerhub/internal/ids"
	"lockerhub/internal/models"
	"lockerhub/internal/repository"
	"lockerhub/internal/security"
)

const (
	refreshTokenBytes = 64
	minPasswordLength = 8
	maxUsernameLength = 150
)

type AuthService struct {
	users    UserStore
	sessions RefreshStore
	tokens   *security.TokenCodec
	hasher   *security.PasswordHasher
	cfg      config.SecurityConfig
	log      zerolog.Logger
	now      func() time.Time

	// refreshes collapses concurrent exchanges of one refresh token.
	refreshes singleflight.Group
}

func NewAuthService(
	users UserStore,
	sessions RefreshStore,
	tokens *security.TokenCodec,
	hasher *security.PasswordHasher,
	cfg config.SecurityConfig,
	log zerolog.Logger,
) *AuthService {
	return &AuthService{
		users:    users,
		sessions: sessions,
		tokens:   tokens,
		hasher:   hasher,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
	}
}

// WithClock replaces the clock used for refresh-session expiry.
func (s *AuthService) WithClock(now func() time.Time) *AuthService {
	s.now = now
	return s
}

type RegisterInput struct {
	Username string
	Email    string
	Password string
}

func (in *RegisterInput) normalize() error {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(strings.ToLower(in.Email))

	switch {
	case in.Username == "":
		return ErrValidation.With("username is required")
	case len(in.Username) > maxUsernameLength:
		return ErrValidation.With("username must be at most %d characters", maxUsernameLength)
	case len(in.Password) < minPasswordLength:
		return ErrValidation.With("password must be at least %d characters", minPasswordLength)
	}
	if in.Email != "" {
		if _, err := mail.ParseAddress(in.Email); err != nil {
			return ErrValidation.With("email is not a valid address")
		}
	}
	return nil
}

// Register creates a regular user. It does not log the user in.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (models.User, error) {
	if err := input.normalize(); err != nil {
		return models.User{}, err
	}
	return s.createUser(ctx, input, false)
}

func (s *AuthService) createUser(ctx context.Context, input RegisterInput, isStaff bool) (models.User, error) {
	passwordHash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return models.User{}, err
	}

	now := s.now().UTC()
	user := models.User{
		ID:           ids.New(),
		Username:     input.Username,
		Email:        input.Email,
		PasswordHash: passwordHash,
		IsStaff:      isStaff,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return models.User{}, storeErr("create user", err)
	}
	return user, nil
}

type LoginInput struct {
	Username string
	Password string
}

func (s *AuthService) Login(ctx context.Context, input LoginInput) (models.SessionPair, error) {
	user, err := s.users.FindByUsername(ctx, strings.TrimSpace(input.Username))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return models.SessionPair{}, ErrInvalidCredentials
		}
		return models.SessionPair{}, storageErr("find user", err)
	}

	ok, err := s.hasher.Verify(input.Password, user.PasswordHash)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", user.ID).Msg("stored password hash unreadable")
		return models.SessionPair{}, ErrInvalidCredentials
	}
	if !ok {
		return models.SessionPair{}, ErrInvalidCredentials
	}

	return s.issuePair(ctx, user, nil)
}

// Decode validates an access token and returns the caller it names.
func (s *AuthService) Decode(accessToken string) (Identity, error) {
	claims, err := s.tokens.Parse(accessToken)
	if err != nil {
		if errors.Is(err, security.ErrTokenExpired) {
			return Identity{}, ErrTokenExpired
		}
		return Identity{}, ErrTokenMalformed
	}
	if claims.UserID == "" {
		return Identity{}, ErrTokenMalformed
	}
	return Identity{
		UserID:   claims.UserID,
		Username: claims.Username,
		IsStaff:  claims.IsStaff,
		Role:     models.RoleFor(claims.IsStaff),
	}, nil
}

// Refresh exchanges a refresh token for a new pair. The presented token is
// single use: concurrent callers in this process share one exchange, and
// callers elsewhere who present it within the grace window get the same pair.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (models.SessionPair, error) {
	if refreshToken == "" {
		return models.SessionPair{}, ErrInvalidRefreshToken
	}
	hash := security.HashRefreshToken(refreshToken)

	v, err, shared := s.refreshes.Do(string(hash), func() (any, error) {
		return s.exchange(context.WithoutCancel(ctx), hash)
	})
	if err != nil {
		return models.SessionPair{}, err
	}
	if shared {
		s.log.Debug().Msg("refresh coalesced")
	}
	return v.(models.SessionPair), nil
}

func (s *AuthService) exchange(ctx context.Context, hash []byte) (models.SessionPair, error) {
	if pair, ok, err := s.sessions.Rotation(ctx, hash); err != nil {
		return models.SessionPair{}, storageErr("load rotation", err)
	} else if ok {
		return pair, nil
	}

	session, ok, err := s.sessions.Take(ctx, hash)
	if err != nil {
		return models.SessionPair{}, storageErr("take refresh session", err)
	}
	if !ok {
		// Another process may have rotated the token between the two reads.
		pair, rotated, err := s.sessions.Rotation(ctx, hash)
		if err != nil {
			return models.SessionPair{}, storageErr("load rotation", err)
		}
		if rotated {
			return pair, nil
		}
		return models.SessionPair{}, ErrInvalidRefreshToken
	}

	if session.Expired(s.now()) {
		return models.SessionPair{}, ErrInvalidRefreshToken
	}

	// Re-read the user so the new access token carries the current staff flag.
	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return models.SessionPair{}, ErrInvalidRefreshToken
		}
		return models.SessionPair{}, storageErr("load user", err)
	}

	pair, err := s.issuePair(ctx, user, hash)
	if err != nil {
		return models.SessionPair{}, err
	}

	if s.cfg.RefreshGrace > 0 {
		if err := s.sessions.SaveRotation(ctx, hash, pair, s.cfg.RefreshGrace); err != nil {
			s.log.Warn().Err(err).Str("user_id", user.ID).Msg("save refresh rotation failed")
		}
	}
	return pair, nil
}

// Logout drops the server-side refresh session together with any rotation
// record pointing at it. Unknown tokens are ignored.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	if err := s.sessions.Delete(ctx, security.HashRefreshToken(refreshToken)); err != nil {
		return storageErr("delete refresh session", err)
	}
	return nil
}

// EnsureAdmin creates the configured administrator, or promotes an existing
// user of that name to staff.
func (s *AuthService) EnsureAdmin(ctx context.Context, input RegisterInput) error {
	if err := input.normalize(); err != nil {
		return err
	}

	user, err := s.users.FindByUsername(ctx, input.Username)
	switch {
	case err == nil:
		if user.IsStaff {
			return nil
		}
		if err := s.users.SetStaff(ctx, user.ID, true); err != nil {
			return storageErr("promote admin", err)
		}
		s.log.Info().Str("username", user.Username).Msg("promoted existing user to admin")
		return nil
	case errors.Is(err, repository.ErrUserNotFound):
		if _, err := s.createUser(ctx, input, true); err != nil {
			return err
		}
		s.log.Info().Str("username", input.Username).Msg("created admin user")
		return nil
	default:
		return storageErr("find admin", err)
	}
}

// Me returns the stored user behind an identity.
func (s *AuthService) Me(ctx context.Context, id Identity) (models.User, error) {
	user, err := s.users.GetByID(ctx, id.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return models.User{}, ErrInvalidCredentials
		}
		return models.User{}, storageErr("load user", err)
	}
	return user, nil
}

// issuePair mints a new pair. previous is the hash of the refresh token being
// rotated, if any, so logging out with the new token also drops its rotation.
func (s *AuthService) issuePair(ctx context.Context, user models.User, previous []byte) (models.SessionPair, error) {
	accessToken, err := s.tokens.Issue(user.ID, user.Username, user.IsStaff)
	if err != nil {
		return models.SessionPair{}, err
	}

	refreshToken, refreshHash, err := security.GenerateRefreshToken(refreshTokenBytes)
	if err != nil {
		return models.SessionPair{}, err
	}

	now := s.now().UTC()
	session := models.RefreshSession{
		ID:        ids.New(),
		UserID:    user.ID,
		Username:  user.Username,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.cfg.JWTRefreshTTL),
	}
	if previous != nil {
		session.PreviousHash = hex.EncodeToString(previous)
	}
	if err := s.sessions.Save(ctx, refreshHash, session, s.cfg.JWTRefreshTTL); err != nil {
		return models.SessionPair{}, storageErr("save refresh session", err)
	}

	return models.SessionPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}
