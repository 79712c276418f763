package middleware

import (
	"net/http"
	"strings"

	gojwt "github.com/golang-jwt/jwt/v5"

	"github.com/stagepass/sp-ticketing/internal/pkg/jwt"
	"github.com/stagepass/sp-ticketing/internal/pkg/session"
	"github.com/stagepass/sp-ticketing/pkg/response"
	"github.com/stagepass/sp-ticketing/pkg/status"
)

type sessionClaims struct {
	gojwt.RegisteredClaims
	AccountType string `json:"account_type"`
}

// CustomerSession authenticates buyer-facing routes.
type CustomerSession struct {
	jsonWebToken *jwt.JSONWebToken
	store        session.SessionStore
}

func NewCustomerSessionMiddleware(jsonWebToken *jwt.JSONWebToken, store session.SessionStore) *CustomerSession {
	return &CustomerSession{
		jsonWebToken: jsonWebToken,
		store:        store,
	}
}

func (m *CustomerSession) Verify(next http.HandlerFunc) http.HandlerFunc {
	return verify(m.jsonWebToken, m.store, session.AccountTypeCustomer, next)
}

// OrganizerSession authenticates organizer-facing routes.
type OrganizerSession struct {
	jsonWebToken *jwt.JSONWebToken
	store        session.SessionStore
}

func NewOrganizerSessionMiddleware(jsonWebToken *jwt.JSONWebToken, store session.SessionStore) *OrganizerSession {
	return &OrganizerSession{
		jsonWebToken: jsonWebToken,
		store:        store,
	}
}

func (m *OrganizerSession) Verify(next http.HandlerFunc) http.HandlerFunc {
	return verify(m.jsonWebToken, m.store, session.AccountTypeOrganizer, next)
}

func verify(jsonWebToken *jwt.JSONWebToken, store session.SessionStore, accountType string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if token == "" {
			response.JSON(w, http.StatusUnauthorized, response.RESTEnvelope{
				Status:  status.UNAUTHORIZED,
				Message: "authorization token is required",
			})

			return
		}

		claims := &sessionClaims{}
		if err := jsonWebToken.Parse(token, claims); err != nil {
			response.JSON(w, http.StatusUnauthorized, response.RESTEnvelope{
				Status:  status.UNAUTHORIZED,
				Message: "invalid authorization token",
			})

			return
		}

		acc, err := store.Get(ctx, token)
		if err != nil || acc.Type != accountType {
			response.JSON(w, http.StatusUnauthorized, response.RESTEnvelope{
				Status:  status.UNAUTHORIZED,
				Message: "session is no longer valid",
			})

			return
		}

		next(w, r.WithContext(session.SetAccountToCtx(ctx, acc)))
	}
}
