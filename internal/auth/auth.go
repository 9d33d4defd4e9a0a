package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt"
	"golang.org/x/crypto/bcrypt"
)

const (
	userIdClaim = "user-id"
	expClaim    = "exp"
)

const DefaultTokenExpiry = time.Hour * 24

// JWTAuthenticator mints and verifies the bearer credentials presented
// at connection upgrade and re-checked on every inbound command.
type JWTAuthenticator struct {
	signingKey []byte
	expiry     time.Duration
}

func NewJWTAuthenticator(signingKey []byte) *JWTAuthenticator {
	return &JWTAuthenticator{
		signingKey: signingKey,
		expiry:     DefaultTokenExpiry,
	}
}

func (a *JWTAuthenticator) Expiry() time.Duration {
	return a.expiry
}

func (a *JWTAuthenticator) CreateToken(userId int) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		userIdClaim: userId,
		expClaim:    time.Now().Add(a.expiry).Unix(),
	})

	return token.SignedString(a.signingKey)
}

// Authenticate validates a raw token string and returns the user id it
// carries. Expired or tampered tokens fail here, which is what makes
// the per-command re-check catch mid-session revocation.
func (a *JWTAuthenticator) Authenticate(tokenString string) (int, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.signingKey, nil
	})
	if err != nil {
		return 0, fmt.Errorf("parse token: %w", err)
	}

	if !token.Valid {
		return 0, fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, fmt.Errorf("invalid token claims")
	}

	userId, ok := claims[userIdClaim].(float64)
	if !ok {
		return 0, fmt.Errorf("invalid user id claim")
	}

	return int(userId), nil
}

func HashPassword(passwd string) (string, error) {
	passwdHash, err := bcrypt.GenerateFromPassword([]byte(passwd), bcrypt.DefaultCost)
	return string(passwdHash), err
}

func VerifyPassword(passwdHash, passwd string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(passwdHash), []byte(passwd))
	return err == nil
}
