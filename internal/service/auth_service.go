package service

import (
	"alcyxob/fitness-coach/internal/domain"
	"alcyxob/fitness-coach/internal/errs"
	"alcyxob/fitness-coach/internal/repository"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUserAlreadyExists    = fmt.Errorf("user with this email or dni already exists: %w", errs.ErrConflict)
	ErrAuthenticationFailed = fmt.Errorf("authentication failed: invalid email or password: %w", errs.ErrUnauthorized)
	ErrInvalidToken         = fmt.Errorf("invalid or expired token: %w", errs.ErrUnauthorized)
	ErrHashingFailed        = errors.New("failed to hash password")
	ErrTokenGeneration      = errors.New("failed to generate authentication token")
)

// AuthService issues and verifies capability tokens and manages the
// trainer-client link. It stands in for the external identity provider.
type AuthService interface {
	Register(ctx context.Context, name, email, dni, password string, role domain.Role) (*domain.User, error)
	Login(ctx context.Context, email, password string) (token string, user *domain.User, err error)
	// ParseToken turns a bearer token into the Actor passed to every service call.
	ParseToken(token string) (domain.Actor, error)
	Me(ctx context.Context, actor domain.Actor) (*domain.User, error)
	// LinkClient makes the trainer actor the manager of the client.
	LinkClient(ctx context.Context, actor domain.Actor, clientDNI string) (*domain.User, error)
	// CanRead reports whether the actor may read the client's data.
	CanRead(ctx context.Context, actor domain.Actor, clientDNI string) error
}

type authService struct {
	access
	userRepo      repository.UserRepository
	jwtSecret     string
	jwtExpiration time.Duration
	log           *zap.Logger
	now           func() time.Time
}

// NewAuthService creates a new instance of authService.
func NewAuthService(userRepo repository.UserRepository, jwtSecret string, jwtExpiration time.Duration, log *zap.Logger) AuthService {
	if jwtSecret == "" {
		panic("JWT secret cannot be empty")
	}
	if jwtExpiration <= 0 {
		jwtExpiration = time.Hour
	}
	return &authService{
		access:        access{users: userRepo},
		userRepo:      userRepo,
		jwtSecret:     jwtSecret,
		jwtExpiration: jwtExpiration,
		log:           log.Named("auth"),
		now:           time.Now,
	}
}

// Register handles new user registration.
func (s *authService) Register(ctx context.Context, name, email, dni, password string, role domain.Role) (*domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	dni = strings.TrimSpace(dni)
	if name == "" || email == "" || dni == "" || password == "" {
		return nil, validationError("name, email, dni and password cannot be empty")
	}
	if role != domain.RoleTrainer && role != domain.RoleClient {
		return nil, validationError("role must be %q or %q", domain.RoleTrainer, domain.RoleClient)
	}

	if _, err := s.userRepo.GetByEmail(ctx, email); err == nil {
		return nil, ErrUserAlreadyExists
	} else if !isNotFound(err) {
		return nil, err
	}
	if _, err := s.userRepo.GetByDNI(ctx, dni); err == nil {
		return nil, ErrUserAlreadyExists
	} else if !isNotFound(err) {
		return nil, err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, ErrHashingFailed
	}

	user := &domain.User{
		Name:         name,
		Email:        email,
		DNI:          dni,
		PasswordHash: string(hashedPassword),
		Role:         role,
	}
	userID, err := s.userRepo.Create(ctx, user)
	if err != nil {
		// unique indexes catch a concurrent registration
		if errors.Is(err, errs.ErrConflict) {
			return nil, ErrUserAlreadyExists
		}
		return nil, err
	}
	user.ID = userID
	user.PasswordHash = ""
	s.log.Info("user registered", zap.String("userId", userID.Hex()), zap.String("role", string(role)))
	return user, nil
}

// Login handles user authentication and JWT generation.
func (s *authService) Login(ctx context.Context, email, password string) (string, *domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return "", nil, validationError("email and password cannot be empty")
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			return "", nil, ErrAuthenticationFailed
		}
		return "", nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrAuthenticationFailed
	}

	token, err := s.generateJWT(user)
	if err != nil {
		s.log.Error("token signing failed", zap.Error(err))
		return "", nil, ErrTokenGeneration
	}
	user.PasswordHash = ""
	return token, user, nil
}

// --- JWT Helper ---

// jwtClaims defines the structure of the JWT payload.
type jwtClaims struct {
	UserID string      `json:"uid"`
	Role   domain.Role `json:"role"`
	DNI    string      `json:"dni"`
	jwt.RegisteredClaims
}

func (s *authService) generateJWT(user *domain.User) (string, error) {
	now := s.now()
	claims := &jwtClaims{
		UserID: user.ID.Hex(),
		Role:   user.Role,
		DNI:    user.DNI,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.Hex(),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.jwtExpiration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "fitness-coach",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.jwtSecret))
}

func (s *authService) ParseToken(tokenString string) (domain.Actor, error) {
	claims := &jwtClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil || !token.Valid {
		return domain.Actor{}, ErrInvalidToken
	}
	userID, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil || claims.Role == "" {
		return domain.Actor{}, ErrInvalidToken
	}
	return domain.Actor{UserID: userID, DNI: claims.DNI, Role: claims.Role}, nil
}

func (s *authService) Me(ctx context.Context, actor domain.Actor) (*domain.User, error) {
	if err := authenticated(actor); err != nil {
		return nil, err
	}
	user, err := s.userRepo.GetByID(ctx, actor.UserID)
	if err != nil {
		return nil, notFoundAs(err, ErrNotAuthenticated)
	}
	user.PasswordHash = ""
	return user, nil
}

func (s *authService) LinkClient(ctx context.Context, actor domain.Actor, clientDNI string) (*domain.User, error) {
	client, err := s.trainerFor(ctx, actor, clientDNI)
	if err != nil {
		return nil, err
	}
	if client.TrainerID == nil {
		if err := s.userRepo.SetTrainerForClient(ctx, client.ID, actor.UserID); err != nil {
			return nil, notFoundAs(err, ErrClientNotFound)
		}
		trainerID := actor.UserID
		client.TrainerID = &trainerID
		s.log.Info("client linked to trainer", zap.String("clientDni", clientDNI), zap.String("trainerId", actor.UserID.Hex()))
	}
	client.PasswordHash = ""
	return client, nil
}

func (s *authService) CanRead(ctx context.Context, actor domain.Actor, clientDNI string) error {
	return s.reader(ctx, actor, clientDNI)
}
