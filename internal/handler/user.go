package handler

import (
	"net/http"
	"net/mail"
	"strings"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/xenking/storefront/internal/domain/user"
)

const minPasswordLen = 8

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

type userResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// register handles POST /auth/register. New accounts are always customers;
// administrators are provisioned out of band.
func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decode(w, r, &req) {
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	switch {
	case strings.TrimSpace(req.Name) == "":
		respondError(w, r, http.StatusBadRequest, "name required")
		return
	case !validEmail(req.Email):
		respondError(w, r, http.StatusBadRequest, "valid email required")
		return
	case len(req.Password) < minPasswordLen:
		respondError(w, r, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}

	hash, err := user.HashPassword(req.Password)
	if err != nil {
		serverError(w, r, err)
		return
	}

	u := &user.User{
		ID:           uuid.New().String(),
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         user.RoleCustomer,
	}
	if err := h.users.Create(r.Context(), u); err != nil {
		if errors.Is(err, user.ErrEmailTaken) {
			respondError(w, r, http.StatusConflict, err.Error())
			return
		}
		serverError(w, r, err)
		return
	}

	h.respondWithToken(w, r, http.StatusCreated, u)
}

// login handles POST /auth/login.
func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decode(w, r, &req) {
		return
	}

	u, err := h.users.GetByEmail(r.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			respondError(w, r, http.StatusUnauthorized, "invalid email or password")
			return
		}
		serverError(w, r, err)
		return
	}
	if !u.CheckPassword(req.Password) {
		respondError(w, r, http.StatusUnauthorized, "invalid email or password")
		return
	}

	h.respondWithToken(w, r, http.StatusOK, u)
}

func (h *Handler) respondWithToken(w http.ResponseWriter, r *http.Request, status int, u *user.User) {
	token, err := h.tokens.Issue(u)
	if err != nil {
		serverError(w, r, err)
		return
	}
	respond(w, r, status, authResponse{
		Token: token,
		User: userResponse{
			ID:    u.ID,
			Name:  u.Name,
			Email: u.Email,
			Role:  string(u.Role),
		},
	})
}

func validEmail(s string) bool {
	if s == "" {
		return false
	}
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}
