package service

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/kkogteva6/ReadingPlatform/internal/model"
)

var (
	ErrInvalidCredentials = errors.New("Неверный email/пароль или роль.")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrInvalidEmail       = errors.New("Email выглядит некорректно.")
	ErrPasswordTooShort   = errors.New("Пароль слишком короткий (минимум 4 символа).")
)

const (
	minPasswordLength  = 4
	defaultDisplayName = "Пользователь"
)

type mockAccount struct {
	email    string
	password string
	name     string
}

// Demo accounts, one per role
var mockAccounts = map[model.Role]mockAccount{
	model.RoleStudent: {email: "student@test.ru", password: "1234", name: "Ученик"},
	model.RoleParent:  {email: "parent@test.ru", password: "1234", name: "Родитель"},
	model.RoleTeacher: {email: "teacher@test.ru", password: "1234", name: "Учитель"},
	model.RoleAdmin:   {email: "admin@test.ru", password: "1234", name: "Администратор"},
}

// AuthService issues and validates dashboard tokens for the mock accounts
type AuthService struct {
	jwtSecret []byte
	tokenTTL  time.Duration
	now       func() time.Time
}

func NewAuthService(secret string, tokenTTL time.Duration) *AuthService {
	return &AuthService{
		jwtSecret: []byte(secret),
		tokenTTL:  tokenTTL,
		now:       time.Now,
	}
}

// Login checks the credentials against the account of the requested role.
// The email comparison ignores case and surrounding space.
func (s *AuthService) Login(email, password string, role model.Role) (*model.LoginResponse, error) {
	acc, ok := mockAccounts[role]
	if !ok || !strings.EqualFold(strings.TrimSpace(email), acc.email) || password != acc.password {
		return nil, ErrInvalidCredentials
	}

	user := model.User{Email: acc.email, Role: role, Name: acc.name}
	token, err := s.IssueToken(user)
	if err != nil {
		return nil, err
	}

	return &model.LoginResponse{
		Token: token,
		User:  user,
		Home:  RoleHome(role),
	}, nil
}

// Register signs in a new mock user. Nothing is stored: the token carries
// the whole identity.
func (s *AuthService) Register(email, password string, role model.Role, displayName string) (*model.LoginResponse, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !strings.Contains(email, "@") {
		return nil, ErrInvalidEmail
	}
	if utf8.RuneCountInString(password) < minPasswordLength {
		return nil, ErrPasswordTooShort
	}
	name := strings.TrimSpace(displayName)
	if name == "" {
		name = defaultDisplayName
	}

	user := model.User{Email: email, Role: role, Name: name}
	token, err := s.IssueToken(user)
	if err != nil {
		return nil, err
	}

	return &model.LoginResponse{
		Token: token,
		User:  user,
		Home:  RoleHome(role),
	}, nil
}

func (s *AuthService) IssueToken(u model.User) (string, error) {
	now := s.now()
	claims := &model.UserClaims{
		Email: u.Email,
		Role:  u.Role,
		Name:  u.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   u.Email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// ValidateToken returns the claims of a valid, unexpired HS256 token
func (s *AuthService) ValidateToken(tokenString string) (*model.UserClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &model.UserClaims{}, func(token *jwt.Token) (interface{}, error) {
		return s.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*model.UserClaims)
	if !ok || !token.Valid || claims.Email == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// RoleHome is the dashboard route a role lands on after login
func RoleHome(role model.Role) string {
	switch role {
	case model.RoleStudent:
		return "/student"
	case model.RoleParent:
		return "/parent"
	case model.RoleTeacher:
		return "/teacher"
	default:
		return "/admin"
	}
}
