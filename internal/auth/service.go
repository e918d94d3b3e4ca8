package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"

	"github.com/mesikahq/clinic-desk/internal/audit"
)

const (
	RoleAdmin     = "ADMIN"
	RoleDoctor    = "DOCTOR"
	RoleFrontdesk = "FRONTDESK"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrMissingFields      = errors.New("name, email and password are required")
	ErrDuplicateEmail     = errors.New("user with this email already exists")
	ErrInvalidRole        = errors.New("role must be ADMIN, DOCTOR or FRONTDESK")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")
)

func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleDoctor, RoleFrontdesk:
		return true
	}
	return false
}

type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

type User struct {
	ID           string    `json:"id" bson:"_id"`
	Name         string    `json:"name" bson:"name"`
	Email        string    `json:"email" bson:"email"`
	PasswordHash string    `json:"-" bson:"password"`
	Role         string    `json:"role" bson:"role"`
	CreatedAt    time.Time `json:"created_at" bson:"createdAt"`
	UpdatedAt    time.Time `json:"updated_at" bson:"updatedAt"`
}

// Session is what a successful signup or login hands back: the user plus a
// signed token bound to (userID, role).
type Session struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

type Service interface {
	Signup(ctx context.Context, name, email, password, role string) (*Session, error)
	Login(ctx context.Context, email, password string) (*Session, error)
	ValidateToken(ctx context.Context, tokenString string) (*Claims, error)
}

type Config struct {
	JWTSecret   string
	TokenExpiry time.Duration
}

type service struct {
	col         *mongo.Collection
	audit       audit.Service
	jwtSecret   []byte
	tokenExpiry time.Duration
}

func NewService(db *mongo.Database, auditService audit.Service, cfg Config) Service {
	expiry := cfg.TokenExpiry
	if expiry == 0 {
		expiry = 7 * 24 * time.Hour
	}
	return &service{
		col:         db.Collection("users"),
		audit:       auditService,
		jwtSecret:   []byte(cfg.JWTSecret),
		tokenExpiry: expiry,
	}
}

func (s *service) Signup(ctx context.Context, name, email, password, role string) (*Session, error) {
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)
	if name == "" || email == "" || password == "" {
		return nil, ErrMissingFields
	}
	if !ValidRole(role) {
		return nil, ErrInvalidRole
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &User{
		ID:           uuid.New().String(),
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if _, err := s.col.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateEmail, email)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.audit.LogEvent(ctx, &audit.Event{
		EventType:  audit.EventSignup,
		UserID:     user.ID,
		Action:     "SIGNUP",
		Resource:   "user",
		ResourceID: user.ID,
		Status:     "success",
	})

	token, err := s.sign(user)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, User: user}, nil
}

func (s *service) Login(ctx context.Context, email, password string) (*Session, error) {
	email = normalizeEmail(email)

	var user User
	err := s.col.FindOne(ctx, bson.M{"email": email}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.audit.LogEvent(ctx, &audit.Event{
			EventType:  audit.EventLogin,
			UserID:     user.ID,
			Action:     "LOGIN",
			Resource:   "user",
			ResourceID: user.ID,
			Status:     "failure",
		})
		return nil, ErrInvalidCredentials
	}

	s.audit.LogEvent(ctx, &audit.Event{
		EventType:  audit.EventLogin,
		UserID:     user.ID,
		Action:     "LOGIN",
		Resource:   "user",
		ResourceID: user.ID,
		Status:     "success",
	})

	token, err := s.sign(&user)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, User: &user}, nil
}

func (s *service) ValidateToken(_ context.Context, tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *service) sign(user *User) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenExpiry)),
		},
		UserID: user.ID,
		Role:   user.Role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
