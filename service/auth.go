package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenLifetime bounds how long a signed request token is accepted.
const TokenLifetime = 5 * time.Minute

// RequestClaims identify the caller of a single Data API request. The
// subject is the secret identifier and the audience the resource identifier
// named in the request body.
type RequestClaims struct {
	jwt.RegisteredClaims
}

// SignRequestToken mints an HS256 bearer token for a request made with the
// given secret against the given resource.
func SignRequestToken(key []byte, secretArn, resourceArn string, now time.Time) (string, error) {
	claims := RequestClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   secretArn,
			Audience:  jwt.ClaimStrings{resourceArn},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenLifetime)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("failed to sign request token: %w", err)
	}
	return signed, nil
}

// VerifyRequestToken parses and validates a bearer token. It only accepts
// HS256 tokens signed with key.
func VerifyRequestToken(key []byte, tokenString string) (*RequestClaims, error) {
	var claims RequestClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		return key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("invalid request token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("invalid request token")
	}
	return &claims, nil
}
