package handlers

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/aomanu/cidrd/internal/api/auth"
	"github.com/aomanu/cidrd/pkg/models"
)

// AuthHandler serves token issuance, password changes and account signup.
type AuthHandler struct {
	store  models.UserStore
	tokens *auth.Service
}

// NewAuthHandler creates an auth handler.
func NewAuthHandler(store models.UserStore, tokens *auth.Service) *AuthHandler {
	return &AuthHandler{store: store, tokens: tokens}
}

// credentialsRequest is the body of token and signup requests.
type credentialsRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// Token handles POST /v1/auth/token: verifies credentials and issues a
// bearer token.
func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	user, err := h.store.GetUserByLogin(r.Context(), req.Login)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			Unauthorized(w, "Invalid login or password")
			return
		}
		InternalServerError(w, "Failed to load user")
		return
	}
	if !models.VerifyPassword(user.Salt, user.HashedPassword, req.Password) {
		Unauthorized(w, "Invalid login or password")
		return
	}

	token, err := h.tokens.Issue(user)
	if err != nil {
		InternalServerError(w, "Failed to issue token")
		return
	}
	WriteJSONOK(w, token)
}

// changePasswordRequest is the body of PUT /v1/auth/password.
type changePasswordRequest struct {
	Login       string `json:"login"`
	Password    string `json:"password"`
	NewPassword string `json:"new_password"`
}

// ChangePassword handles PUT /v1/auth/password. The current password must
// verify and the new one must differ and satisfy the password policy.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if req.NewPassword == req.Password {
		BadRequest(w, "New password must differ from the current one")
		return
	}
	if !models.ValidatePassword(req.NewPassword) {
		BadRequest(w, "Password must be 10-64 characters with a lowercase letter, an uppercase letter and a digit")
		return
	}

	user, err := h.store.GetUserByLogin(r.Context(), req.Login)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			Unauthorized(w, "Invalid login or password")
			return
		}
		InternalServerError(w, "Failed to load user")
		return
	}
	if !models.VerifyPassword(user.Salt, user.HashedPassword, req.Password) {
		Unauthorized(w, "Invalid login or password")
		return
	}

	salt, hash, err := models.HashPassword(req.NewPassword)
	if err != nil {
		InternalServerError(w, "Failed to hash password")
		return
	}
	if err := h.store.UpdatePassword(r.Context(), req.Login, salt, hash); err != nil {
		InternalServerError(w, "Failed to update password")
		return
	}
	WriteJSONOK(w, map[string]string{"status": "password changed"})
}

// Signup handles POST /v1/admin/signup. Reachable only through the
// superuser route group.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if !models.ValidatePassword(req.Password) {
		BadRequest(w, "Password must be 10-64 characters with a lowercase letter, an uppercase letter and a digit")
		return
	}

	salt, hash, err := models.HashPassword(req.Password)
	if err != nil {
		InternalServerError(w, "Failed to hash password")
		return
	}

	user := &models.User{
		ID:             uuid.New(),
		Login:          req.Login,
		Salt:           salt,
		HashedPassword: hash,
		Role:           models.RoleUser,
	}
	if err := models.Validate(user); err != nil {
		BadRequest(w, "Login must be 3-64 lowercase characters matching [a-z][a-z0-9_]*")
		return
	}

	if err := h.store.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, models.ErrDuplicateUser) {
			Conflict(w, "Login already taken")
			return
		}
		InternalServerError(w, "Failed to create user")
		return
	}
	WriteJSONCreated(w, user)
}
