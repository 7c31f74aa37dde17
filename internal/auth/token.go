// ABOUTME: JWT token issuing and verification for authenticating users
// ABOUTME: Uses HS256 signing with a shared secret; access and refresh tokens

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token errors
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrMissingClaim = errors.New("missing required claim")
)

// tokenTypeRefresh marks refresh tokens so they cannot be used as access tokens
const tokenTypeRefresh = "refresh"

// TokenVerifier defines the interface for token verification
type TokenVerifier interface {
	Verify(tokenString string) (userID string, err error)
}

// JWTVerifier implements TokenVerifier using HS256 signed JWTs
type JWTVerifier struct {
	secret []byte
}

// NewJWTVerifier creates a new JWT verifier with the given secret
func NewJWTVerifier(secret []byte) *JWTVerifier {
	return &JWTVerifier{secret: secret}
}

func (v *JWTVerifier) parse(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		// Validate the signing method is HS256
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// Verify validates an access token and extracts the user ID from the
// "sub" claim. Refresh tokens are rejected.
func (v *JWTVerifier) Verify(tokenString string) (userID string, err error) {
	claims, err := v.parse(tokenString)
	if err != nil {
		return "", err
	}

	if typ, _ := claims["typ"].(string); typ == tokenTypeRefresh {
		return "", fmt.Errorf("%w: refresh token used as access token", ErrInvalidToken)
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", fmt.Errorf("%w: sub", ErrMissingClaim)
	}

	return sub, nil
}

// VerifyRefresh validates a refresh token and extracts the user ID.
func (v *JWTVerifier) VerifyRefresh(tokenString string) (userID string, err error) {
	claims, err := v.parse(tokenString)
	if err != nil {
		return "", err
	}

	if typ, _ := claims["typ"].(string); typ != tokenTypeRefresh {
		return "", fmt.Errorf("%w: not a refresh token", ErrInvalidToken)
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", fmt.Errorf("%w: sub", ErrMissingClaim)
	}

	return sub, nil
}

// Generate creates a new access token for the given user ID with expiration
func (v *JWTVerifier) Generate(userID string, expiresIn time.Duration) (string, error) {
	return v.sign(userID, expiresIn, "")
}

// GenerateRefresh creates a new refresh token for the given user ID
func (v *JWTVerifier) GenerateRefresh(userID string, expiresIn time.Duration) (string, error) {
	return v.sign(userID, expiresIn, tokenTypeRefresh)
}

func (v *JWTVerifier) sign(userID string, expiresIn time.Duration, typ string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": userID,
		"iat": now.Unix(),
		"exp": now.Add(expiresIn).Unix(),
	}
	if typ != "" {
		claims["typ"] = typ
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}
