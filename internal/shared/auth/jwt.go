package auth

import (
	"errors"
	"fmt"
	"time"

	"taxirn/internal/shared/config"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "taxirn"

// ErrInvalidToken — токен не прошел проверку подписи, срока или формата
var ErrInvalidToken = errors.New("invalid token")

// Claims — JWT claims текущего пользователя (auth/session provider)
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"` // ADMIN | USER | DRIVER
	jwt.RegisteredClaims
}

// JWTService выпускает и проверяет HS256 токены
type JWTService struct {
	secret []byte
	expiry time.Duration
	now    func() time.Time
}

func NewJWTService(cfg config.JWTConfig) *JWTService {
	return &JWTService{
		secret: []byte(cfg.Secret),
		expiry: time.Duration(cfg.ExpiryMinutes) * time.Minute,
		now:    time.Now,
	}
}

// GenerateToken создает токен для пользователя
func (s *JWTService) GenerateToken(userID, email, role string) (string, error) {
	now := s.now()
	claims := &Claims{
		UserID: userID,
		Email:  email,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// ValidateToken проверяет подпись и срок действия и возвращает claims
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ExtractUserID — вариант ValidateToken для ws.AuthFunc
func (s *JWTService) ExtractUserID(tokenString string) (userID, role string, err error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return "", "", err
	}
	return claims.UserID, claims.Role, nil
}

// RefreshToken выпускает новый токен с теми же данными и новым сроком
func (s *JWTService) RefreshToken(tokenString string) (string, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return "", err
	}
	return s.GenerateToken(claims.UserID, claims.Email, claims.Role)
}
