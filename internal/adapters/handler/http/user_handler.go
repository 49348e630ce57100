package http

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/vncsmyrnk/jessica-auth/internal/core/domain"
	"github.com/vncsmyrnk/jessica-auth/internal/core/ports"
)

type UserHandler struct {
	service ports.UserService
}

func NewUserHandler(service ports.UserService) *UserHandler {
	return &UserHandler{
		service: service,
	}
}

type assignRoleRequest struct {
	Role string `json:"role"`
}

// Deactivate godoc
// @Summary      Deactivates a user
// @Description  Blocks login and refresh for the user. Admin only.
// @Tags         users
// @Success      204
// @Failure      400
// @Failure      403
// @Failure      404
// @Router       /auth/users/{id}/deactivate [post]
func (h *UserHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid user id")
		return
	}

	if err := h.service.Deactivate(r.Context(), id); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			writeMessage(w, http.StatusNotFound, "user not found")
			return
		}
		writeMessage(w, http.StatusInternalServerError, "failed to deactivate user")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// AssignRole godoc
// @Summary      Grants a role to a user
// @Tags         users
// @Accept       json
// @Success      204
// @Failure      400
// @Failure      403
// @Failure      404
// @Router       /auth/users/{id}/roles [post]
func (h *UserHandler) AssignRole(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid user id")
		return
	}

	var req assignRoleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.service.AssignRole(r.Context(), id, req.Role); err != nil {
		switch {
		case errors.Is(err, domain.ErrUnknownRole):
			writeMessage(w, http.StatusBadRequest, "unknown role")
		case errors.Is(err, domain.ErrUserNotFound):
			writeMessage(w, http.StatusNotFound, "user not found")
		default:
			writeMessage(w, http.StatusInternalServerError, "failed to assign role")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
