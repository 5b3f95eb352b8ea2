package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"supportchat-backend/internal/model"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const accessTokenDuration = 12 * time.Hour

// Identity is the verified subject of a request: either a customer or
// an admin, never both.
type Identity struct {
	SubjectID   string
	SubjectKind string
}

type AuthService struct {
	admins    AdminStore
	jwtSecret []byte
}

func NewAuthService(admins AdminStore, jwtSecret string) *AuthService {
	return &AuthService{admins: admins, jwtSecret: []byte(jwtSecret)}
}

func (s *AuthService) Login(ctx context.Context, req *model.LoginRequest) (*model.AuthResponse, error) {
	admin, err := s.admins.GetByUsername(ctx, strings.TrimSpace(req.Username))
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if !admin.IsActive {
		return nil, ErrInactiveAdmin
	}
	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, err := s.MintToken(admin.ID, model.SenderAdmin)
	if err != nil {
		return nil, err
	}
	return &model.AuthResponse{AccessToken: token, Admin: admin}, nil
}

// MintToken signs an access token for a subject. Customer tokens are
// normally minted by the storefront with the same secret; this is also
// what keeps the two sides verifiable by one Verify.
func (s *AuthService) MintToken(subjectID, subjectKind string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  subjectID,
		"kind": subjectKind,
		"iat":  now.Unix(),
		"exp":  now.Add(accessTokenDuration).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

func (s *AuthService) Verify(tokenString string) (*Identity, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrUnauthorized
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrUnauthorized
	}

	subjectID, _ := claims["sub"].(string)
	subjectKind, _ := claims["kind"].(string)
	if subjectID == "" || (subjectKind != model.SenderCustomer && subjectKind != model.SenderAdmin) {
		return nil, ErrUnauthorized
	}

	return &Identity{SubjectID: subjectID, SubjectKind: subjectKind}, nil
}
