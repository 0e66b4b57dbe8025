package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"fitsync/settings-app/internal/domain"
	"fitsync/settings-app/internal/logger"
	"fitsync/settings-app/internal/repository"

	"github.com/golang-jwt/jwt/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

// --- Error Definitions ---
var (
	ErrUserAlreadyExists    = errors.New("profile with this email already exists")
	ErrAuthenticationFailed = errors.New("authentication failed: invalid email or password")
	ErrHashingFailed        = errors.New("failed to hash password")
	ErrTokenGeneration      = errors.New("failed to generate authentication token")
)

// ProfileStore is the global authentication/profile store: it authenticates
// users and keeps the current profile cached for fast identity reads.
// RefreshProfile re-reads from the repository; the settings controller calls
// it after every successful write.
type ProfileStore interface {
	Register(ctx context.Context, name, email, password string) (*domain.Profile, error)
	Login(ctx context.Context, email, password string) (token string, profile *domain.Profile, err error)

	CurrentProfile(userID primitive.ObjectID) (*domain.Profile, bool)
	RefreshProfile(ctx context.Context, userID primitive.ObjectID) error
}

// profileStore implements the ProfileStore interface.
type profileStore struct {
	accounts      repository.AccountRepository
	jwtSecret     string
	jwtExpiration time.Duration
	log           *logger.Logger

	mu     sync.RWMutex
	cached map[primitive.ObjectID]*domain.Profile
}

// NewProfileStore creates a new instance of profileStore.
func NewProfileStore(accounts repository.AccountRepository, jwtSecret string, jwtExpiration time.Duration, log *logger.Logger) ProfileStore {
	if jwtSecret == "" {
		panic("JWT secret cannot be empty") // Critical configuration
	}
	if jwtExpiration <= 0 {
		jwtExpiration = time.Hour
	}
	return &profileStore{
		accounts:      accounts,
		jwtSecret:     jwtSecret,
		jwtExpiration: jwtExpiration,
		log:           log.With("service", "ProfileStore"),
		cached:        make(map[primitive.ObjectID]*domain.Profile),
	}
}

// Register handles new account creation.
func (s *profileStore) Register(ctx context.Context, name, email, password string) (*domain.Profile, error) {
	if name == "" || email == "" || password == "" {
		return nil, errors.New("name, email and password cannot be empty")
	}

	_, err := s.accounts.GetProfileByEmail(ctx, email)
	if err == nil {
		return nil, ErrUserAlreadyExists
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, ErrHashingFailed
	}

	profile := &domain.Profile{
		Name:               name,
		Email:              email,
		PasswordHash:       string(hashedPassword),
		AvailableEquipment: []domain.Equipment{},
	}

	profileID, err := s.accounts.CreateProfile(ctx, profile)
	if err != nil {
		return nil, err
	}
	profile.ID = profileID

	s.cache(profile)

	profile.PasswordHash = ""
	return profile, nil
}

// Login authenticates a user and issues a JWT.
func (s *profileStore) Login(ctx context.Context, email, password string) (string, *domain.Profile, error) {
	if email == "" || password == "" {
		return "", nil, errors.New("email and password cannot be empty")
	}

	profile, err := s.accounts.GetProfileByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", nil, ErrAuthenticationFailed
		}
		return "", nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(profile.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrAuthenticationFailed
	}

	token, err := s.generateJWT(profile)
	if err != nil {
		return "", nil, ErrTokenGeneration
	}

	s.cache(profile)

	profile.PasswordHash = ""
	return token, profile, nil
}

// CurrentProfile returns the cached profile for a user, if present.
func (s *profileStore) CurrentProfile(userID primitive.ObjectID) (*domain.Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	profile, ok := s.cached[userID]
	return profile, ok
}

// RefreshProfile re-reads the profile from the repository and replaces the
// cached copy.
func (s *profileStore) RefreshProfile(ctx context.Context, userID primitive.ObjectID) error {
	profile, err := s.accounts.GetProfileByID(ctx, userID)
	if err != nil {
		return err
	}
	s.cache(profile)
	s.log.Debug("profile refreshed", "userId", userID.Hex())
	return nil
}

func (s *profileStore) cache(profile *domain.Profile) {
	copied := *profile
	copied.PasswordHash = ""
	s.mu.Lock()
	s.cached[profile.ID] = &copied
	s.mu.Unlock()
}

// jwtCustomClaims mirrors the structure the auth middleware expects.
type jwtCustomClaims struct {
	UserID string `json:"uid"`
	jwt.RegisteredClaims
}

func (s *profileStore) generateJWT(profile *domain.Profile) (string, error) {
	claims := jwtCustomClaims{
		UserID: profile.ID.Hex(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.jwtExpiration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Subject:   profile.ID.Hex(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.jwtSecret))
}
