package http

import (
	"errors"
	"net/http"

	"github.com/vncsmyrnk/jessica-auth/internal/core/domain"
	"github.com/vncsmyrnk/jessica-auth/internal/core/ports"
)

const (
	msgInvalidCredentials  = "Invalid username or password"
	msgInvalidAccessToken  = "Invalid access token"
	msgInvalidRefreshToken = "Invalid or expired refresh token"
	msgUsernameTaken       = "Username already exists. Please try a different one."
	msgEmailTaken          = "Email already registered. Please use a different email."
	msgRegistered          = "Account created successfully! You can now log in."
	msgRegistrationFailed  = "Registration failed. Please try again later."
)

type AuthHandler struct {
	authService ports.AuthService
	userService ports.UserService
}

func NewAuthHandler(authService ports.AuthService, userService ports.UserService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		userService: userService,
	}
}

type registerResponse struct {
	Message string `json:"message"`
	UserID  string `json:"userId"`
}

type rolesResponse struct {
	Roles []string `json:"roles"`
}

// Login godoc
// @Summary      Logs a user in
// @Description  Verifies the credentials and returns an access token and a one-time refresh token.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Success      200
// @Failure      400
// @Failure      401
// @Router       /auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var input ports.LoginInput
	if !decodeJSON(w, r, &input) {
		return
	}

	pair, err := h.authService.Login(r.Context(), input)
	if err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			writeValidationError(w, verr)
			return
		}
		writeMessage(w, http.StatusUnauthorized, msgInvalidCredentials)
		return
	}

	writeJSON(w, http.StatusOK, pair)
}

// Register godoc
// @Summary      Registers a user
// @Description  Creates an active account with the User role.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Success      201
// @Failure      400
// @Failure      409
// @Router       /auth/register [post]
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var input ports.RegisterInput
	if !decodeJSON(w, r, &input) {
		return
	}

	user, err := h.userService.Register(r.Context(), input)
	if err != nil {
		var verr *domain.ValidationError
		switch {
		case errors.As(err, &verr):
			writeValidationError(w, verr)
		case errors.Is(err, domain.ErrUsernameTaken):
			writeMessage(w, http.StatusConflict, msgUsernameTaken)
		case errors.Is(err, domain.ErrEmailTaken):
			writeMessage(w, http.StatusConflict, msgEmailTaken)
		default:
			writeMessage(w, http.StatusInternalServerError, msgRegistrationFailed)
		}
		return
	}

	writeJSON(w, http.StatusCreated, registerResponse{Message: msgRegistered, UserID: user.ID.String()})
}

// Refresh godoc
// @Summary      Rotates the refresh token
// @Description  Exchanges an access token (expired or not) and its refresh token for a new pair. The presented refresh token can not be used again.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Success      200
// @Failure      400
// @Failure      401
// @Router       /auth/refresh [post]
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var input ports.RefreshInput
	if !decodeJSON(w, r, &input) {
		return
	}

	pair, err := h.authService.Refresh(r.Context(), input)
	if err != nil {
		var verr *domain.ValidationError
		switch {
		case errors.As(err, &verr):
			writeValidationError(w, verr)
		case errors.Is(err, domain.ErrInvalidAccessToken):
			writeMessage(w, http.StatusUnauthorized, msgInvalidAccessToken)
		default:
			writeMessage(w, http.StatusUnauthorized, msgInvalidRefreshToken)
		}
		return
	}

	writeJSON(w, http.StatusOK, pair)
}

// UserInfo godoc
// @Summary      Describes the authenticated user
// @Tags         auth
// @Produce      json
// @Success      200
// @Failure      401
// @Router       /auth/user-info [get]
func (h *AuthHandler) UserInfo(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	writeJSON(w, http.StatusOK, h.authService.UserInfo(r.Context(), userID))
}

// Logout godoc
// @Summary      Logs the authenticated user out
// @Description  Revokes every refresh token of the user. The access token stays valid until it expires.
// @Tags         auth
// @Produce      json
// @Success      200
// @Failure      401
// @Router       /auth/logout [post]
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFrom(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	writeJSON(w, http.StatusOK, h.authService.Logout(r.Context(), claims.UserID, claims.Username))
}

// Roles godoc
// @Summary      Lists the roles of the presented access token
// @Tags         auth
// @Produce      json
// @Success      200
// @Failure      401
// @Router       /auth/roles [get]
func (h *AuthHandler) Roles(w http.ResponseWriter, r *http.Request) {
	token, _ := bearerToken(r.Header.Get("Authorization"))
	writeJSON(w, http.StatusOK, rolesResponse{Roles: h.authService.Roles(token)})
}
