package auth

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/frahmantamala/rbac-admin/internal/transport"
	"github.com/frahmantamala/rbac-admin/pkg/logger"
)

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(svc ServiceAPI) *Handler {
	return &Handler{
		BaseHandler: transport.NewBaseHandler(logger.L()),
		Service:     svc,
	}
}

// Login handles POST /api/auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var dto LoginDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.Service.Login(r.Context(), dto, MetadataFromRequest(r))
	if err != nil {
		h.Logger.Warn("authentication failed", "username", dto.Username, "error", err)

		switch {
		case errors.Is(err, ErrInvalidCredentials):
			h.WriteError(w, http.StatusUnauthorized, "invalid credentials")
		case errors.Is(err, ErrAccountDeactivated):
			h.WriteError(w, http.StatusUnauthorized, "account is deactivated")
		default:
			var vErr ValidationError
			if errors.As(err, &vErr) {
				h.WriteError(w, http.StatusBadRequest, vErr.Error())
			} else {
				h.WriteError(w, http.StatusInternalServerError, "internal server error")
			}
		}
		return
	}

	h.WriteJSON(w, http.StatusOK, result)
}

// RefreshToken handles POST /api/auth/refresh.
func (h *Handler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var dto RefreshTokenDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := dto.Validate(); err != nil {
		h.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	accessToken, err := h.Service.Refresh(r.Context(), dto.RefreshToken)
	if err != nil {
		h.Logger.Warn("token refresh failed", "error", err)

		switch {
		case errors.Is(err, ErrInvalidToken):
			h.WriteError(w, http.StatusUnauthorized, "invalid refresh token")
		case errors.Is(err, ErrTokenExpired):
			h.WriteError(w, http.StatusUnauthorized, "refresh token expired")
		case errors.Is(err, ErrAccountDeactivated):
			h.WriteError(w, http.StatusUnauthorized, "account is deactivated")
		default:
			h.WriteError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]string{"accessToken": accessToken})
}

// Logout handles POST /api/auth/logout. Always returns 200: client-side
// token discard is the source of truth for "logged out".
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	var dto LogoutDTO
	if r.Body != nil {
		// Missing or malformed body is fine; there is just nothing to revoke.
		_ = json.NewDecoder(r.Body).Decode(&dto)
	}

	var performedBy *int64
	if token := h.ExtractTokenFromHeader(r); token != "" {
		if claims, err := h.Service.ValidateAccessToken(token); err == nil {
			performedBy = &claims.UserID
		}
	}

	if err := h.Service.Logout(r.Context(), dto.RefreshToken, performedBy, MetadataFromRequest(r)); err != nil {
		h.Logger.Error("logout bookkeeping failed", "error", err)
	}

	h.WriteJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

// Me handles GET /api/auth/me.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok || identity == nil {
		h.WriteError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	summary, err := h.Service.CurrentUser(r.Context(), identity.ID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			h.WriteError(w, http.StatusNotFound, "user not found")
			return
		}
		h.Logger.Error("failed to load current user", "user_id", identity.ID, "error", err)
		h.WriteError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.WriteJSON(w, http.StatusOK, summary)
}

// AuthMiddleware verifies the bearer access token and attaches the caller
// identity to the request context. The identity's role is re-read from
// the store rather than trusted from the token claims.
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := h.ExtractTokenFromHeader(r)
		if token == "" {
			h.WriteError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		claims, err := h.Service.ValidateAccessToken(token)
		if err != nil {
			h.Logger.Warn("token validation failed", "error", err)
			switch {
			case errors.Is(err, ErrTokenExpired):
				h.WriteError(w, http.StatusUnauthorized, "token expired")
			default:
				h.WriteError(w, http.StatusUnauthorized, "invalid token")
			}
			return
		}

		identity, err := h.Service.ResolveIdentity(r.Context(), claims.UserID)
		if err != nil {
			if errors.Is(err, ErrUserNotFound) {
				h.WriteError(w, http.StatusNotFound, "user not found")
				return
			}
			h.Logger.Error("failed to resolve identity", "user_id", claims.UserID, "error", err)
			h.WriteError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		ctx := ContextWithIdentity(r.Context(), identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// MetadataFromRequest extracts the requester IP and user agent.
func MetadataFromRequest(r *http.Request) RequestMetadata {
	ip := r.Header.Get("X-Forwarded-For")
	if ip != "" {
		// first hop is the client
		if idx := strings.IndexByte(ip, ','); idx >= 0 {
			ip = ip[:idx]
		}
		ip = strings.TrimSpace(ip)
	} else {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		ip = host
	}

	return RequestMetadata{
		IPAddress: ip,
		UserAgent: r.UserAgent(),
	}
}
