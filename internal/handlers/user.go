// internal/handlers/user.go
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/keldurben/internal/auth"
	"github.com/jason-s-yu/keldurben/internal/database"
	"github.com/jason-s-yu/keldurben/internal/models"
	"github.com/sirupsen/logrus"
)

// UserStore is the account storage the auth endpoints need.
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Accounts serves registration, login and the current-user lookup.
type Accounts struct {
	Users  UserStore
	Tokens *auth.Issuer
	Params auth.Params
	Logger *logrus.Logger
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string        `json:"token"`
	User  models.Public `json:"user"`
}

const maxUsernameLength = 32

// RegisterHandler creates an account and returns a session token for it.
//
//	POST /api/auth/register {"username": "...", "password": "..."}
func (a *Accounts) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if !decodeBody(w, r, &req) {
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || len(req.Username) > maxUsernameLength {
		writeError(w, http.StatusBadRequest, "username must be 1-32 characters")
		return
	}

	hash, err := auth.HashPassword(req.Password, a.Params)
	if errors.Is(err, auth.ErrPasswordTooShort) {
		writeError(w, http.StatusBadRequest, "password too short")
		return
	}
	if err != nil {
		a.Logger.WithError(err).Error("failed to hash password")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	user := &models.User{
		Username:  req.Username,
		Password:  hash,
		Avatar:    models.AvatarFor(req.Username),
		CreatedAt: time.Now().UTC(),
	}
	err = a.Users.CreateUser(r.Context(), user)
	if errors.Is(err, database.ErrUserExists) {
		writeError(w, http.StatusConflict, "user already exists")
		return
	}
	if err != nil {
		a.Logger.WithError(err).Error("failed to create user")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	a.Logger.WithFields(logrus.Fields{"user_id": user.ID, "username": user.Username}).Info("user registered")
	a.respondWithToken(w, http.StatusCreated, user)
}

// LoginHandler checks credentials and returns a session token. The token is also set as a cookie.
//
//	POST /api/auth/login {"username": "...", "password": "..."}
func (a *Accounts) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if !decodeBody(w, r, &req) {
		return
	}

	user, err := a.Users.GetUserByUsername(r.Context(), strings.TrimSpace(req.Username))
	if errors.Is(err, database.ErrUserNotFound) {
		writeError(w, http.StatusUnauthorized, "invalid username or password")
		return
	}
	if err != nil {
		a.Logger.WithError(err).Error("failed to load user")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	ok, err := auth.VerifyPassword(req.Password, user.Password)
	if err != nil {
		a.Logger.WithError(err).WithField("user_id", user.ID).Error("stored password hash unreadable")
	}
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid username or password")
		return
	}
	a.respondWithToken(w, http.StatusOK, user)
}

// MeHandler returns the account behind the request's token.
//
//	GET /api/me
func (a *Accounts) MeHandler(w http.ResponseWriter, r *http.Request) {
	token := tokenFromRequest(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "missing token")
		return
	}
	ident, err := a.Tokens.AuthenticateJWT(token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}
	user, err := a.Users.GetUserByID(r.Context(), ident.UserID)
	if errors.Is(err, database.ErrUserNotFound) {
		writeError(w, http.StatusUnauthorized, "user not found")
		return
	}
	if err != nil {
		a.Logger.WithError(err).Error("failed to load user")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, user.Public())
}

func (a *Accounts) respondWithToken(w http.ResponseWriter, status int, user *models.User) {
	token, err := a.Tokens.CreateJWT(user.ID, user.Username)
	if err != nil {
		a.Logger.WithError(err).Error("failed to create jwt")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     AuthCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, status, authResponse{Token: token, User: user.Public()})
}
