package jwt

import (
	"net/http"

	gojwt "github.com/golang-jwt/jwt/v5"

	"github.com/stagepass/sp-ticketing/pkg/errors"
	"github.com/stagepass/sp-ticketing/pkg/status"
)

type JSONWebToken struct {
	privateKey []byte
	publicKey  []byte
}

func NewJSONWebToken(privateKey, publicKey []byte) *JSONWebToken {
	return &JSONWebToken{
		privateKey: privateKey,
		publicKey:  publicKey,
	}
}

func (j *JSONWebToken) Sign(claims gojwt.Claims) (string, error) {
	key, err := gojwt.ParseRSAPrivateKeyFromPEM(j.privateKey)
	if err != nil {
		return "", errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while parsing the signing key")
	}

	token := gojwt.NewWithClaims(gojwt.SigningMethodRS256, claims)

	signed, err := token.SignedString(key)
	if err != nil {
		return "", errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while signing the token")
	}

	return signed, nil
}

func (j *JSONWebToken) Parse(tokenString string, claims gojwt.Claims) error {
	key, err := gojwt.ParseRSAPublicKeyFromPEM(j.publicKey)
	if err != nil {
		return errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while parsing the verification key")
	}

	token, err := gojwt.ParseWithClaims(tokenString, claims, func(t *gojwt.Token) (interface{}, error) {
		return key, nil
	})
	if err != nil || !token.Valid {
		return errors.New(http.StatusUnauthorized, status.UNAUTHORIZED, "invalid token")
	}

	return nil
}
