package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"unicode"

	"github.com/SkeletonSFD/DnD-Project/internal/auth"
	"github.com/SkeletonSFD/DnD-Project/internal/server/middleware"
	"github.com/SkeletonSFD/DnD-Project/internal/userstore"
)

// api serves the user account endpoints: registration, login, and lookups.
type api struct {
	logger   *slog.Logger
	users    userstore.Store
	issuer   *auth.Issuer
	verifier *auth.Verifier
}

func newAPI(logger *slog.Logger, users userstore.Store, issuer *auth.Issuer, verifier *auth.Verifier) *api {
	return &api{
		logger:   logger.With(slog.String("component", "user_api")),
		users:    users,
		issuer:   issuer,
		verifier: verifier,
	}
}

func (a *api) routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/users/register", a.register)
	mux.HandleFunc("POST /api/users/login", a.login)
	mux.HandleFunc("GET /api/users/me", a.me)
	mux.HandleFunc("GET /api/users/", a.list)
}

type registrationRequest struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	CharacterName   string `json:"character_name"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type userResponse struct {
	ID            int64  `json:"id"`
	Username      string `json:"username"`
	Email         string `json:"email"`
	CharacterName string `json:"character_name,omitempty"`
	IsActive      bool   `json:"is_active"`
}

type tokenResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	User        userResponse `json:"user"`
}

func (a *api) register(w http.ResponseWriter, r *http.Request) {
	var req registrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Username = strings.TrimSpace(req.Username)

	if msg := validateRegistration(req); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		a.logger.Error("failed to hash password", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	user, err := a.users.Create(r.Context(), userstore.NewUser{
		Username:      req.Username,
		Email:         req.Email,
		CharacterName: req.CharacterName,
		PasswordHash:  hash,
	})
	if err != nil {
		if errors.Is(err, userstore.ErrDuplicate) {
			writeError(w, http.StatusBadRequest, "username or email already taken")
			return
		}
		a.logger.Error("failed to create user", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	token, err := a.issuer.Token(user.ID)
	if err != nil {
		a.logger.Error("failed to issue token", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	a.logger.Info("user registered", slog.String("username", user.Username), slog.Int64("userID", user.ID))
	writeJSON(w, http.StatusCreated, tokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		User:        toUserResponse(user),
	})
}

func (a *api) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := a.users.GetByUsername(r.Context(), req.Username)
	if err != nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
		writeError(w, http.StatusUnauthorized, "incorrect username or password")
		return
	}
	if !user.IsActive {
		writeError(w, http.StatusForbidden, "user is inactive")
		return
	}

	token, err := a.issuer.Token(user.ID)
	if err != nil {
		a.logger.Error("failed to issue token", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		User:        toUserResponse(user),
	})
}

func (a *api) me(w http.ResponseWriter, r *http.Request) {
	user, ok := a.authenticate(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

func (a *api) list(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.authenticate(w, r); !ok {
		return
	}

	users, err := a.users.List(r.Context(), 100, 0)
	if err != nil {
		a.logger.Error("failed to list users", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	writeJSON(w, http.StatusOK, out)
}

// authenticate resolves the bearer token to a full user record, writing the
// error response itself on failure.
func (a *api) authenticate(w http.ResponseWriter, r *http.Request) (*userstore.User, bool) {
	token := middleware.BearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "missing token")
		return nil, false
	}

	ident, err := a.verifier.Verify(r.Context(), token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "could not validate credentials")
		return nil, false
	}

	user, err := a.users.GetByID(r.Context(), ident.UserID)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "could not validate credentials")
		return nil, false
	}
	return user, true
}

func validateRegistration(req registrationRequest) string {
	if len(req.Username) < 3 || len(req.Username) > 50 {
		return "username must be 3-50 characters"
	}
	for _, c := range req.Username {
		if !unicode.IsLetter(c) && !unicode.IsDigit(c) && c != '-' && c != '_' {
			return "username may contain only letters, digits, hyphens and underscores"
		}
	}
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		return "invalid email"
	}
	if len(req.Password) < 8 {
		return "password must be at least 8 characters"
	}
	var hasDigit, hasUpper, hasLower bool
	for _, c := range req.Password {
		switch {
		case unicode.IsDigit(c):
			hasDigit = true
		case unicode.IsUpper(c):
			hasUpper = true
		case unicode.IsLower(c):
			hasLower = true
		}
	}
	if !hasDigit || !hasUpper || !hasLower {
		return "password must contain a digit, an uppercase and a lowercase letter"
	}
	if req.ConfirmPassword != req.Password {
		return "passwords do not match"
	}
	return ""
}

func toUserResponse(u *userstore.User) userResponse {
	return userResponse{
		ID:            u.ID,
		Username:      u.Username,
		Email:         u.Email,
		CharacterName: u.CharacterName,
		IsActive:      u.IsActive,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
