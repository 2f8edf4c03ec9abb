package role

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"

	"github.com/frahmantamala/rbac-admin/internal/auth"
	"github.com/frahmantamala/rbac-admin/internal/transport"
	"github.com/frahmantamala/rbac-admin/pkg/logger"
)

type ServiceAPI interface {
	List(ctx context.Context) ([]*Role, error)
	GetByID(ctx context.Context, id int64) (*Role, error)
	Create(ctx context.Context, dto CreateRoleDTO, performedBy *int64, meta auth.RequestMetadata) (*Role, error)
	Update(ctx context.Context, id int64, dto UpdateRoleDTO, performedBy *int64, meta auth.RequestMetadata) (*Role, error)
	Delete(ctx context.Context, id int64, performedBy *int64, meta auth.RequestMetadata) error
	ListPermissions(ctx context.Context) ([]Permission, error)
	SetPermissions(ctx context.Context, id int64, dto SetPermissionsDTO, performedBy *int64, meta auth.RequestMetadata) (*Role, error)
}

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

// ListRoles handles GET /roles
func (h *Handler) ListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.Service.List(r.Context())
	if err != nil {
		h.Logger.Error("list roles failed", "error", err)
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, roles)
}

// GetRole handles GET /roles/{id}
func (h *Handler) GetRole(w http.ResponseWriter, r *http.Request) {
	id, ok := h.roleIDParam(w, r)
	if !ok {
		return
	}

	role, err := h.Service.GetByID(r.Context(), id)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, role)
}

// CreateRole handles POST /roles
func (h *Handler) CreateRole(w http.ResponseWriter, r *http.Request) {
	var dto CreateRoleDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	role, err := h.Service.Create(r.Context(), dto, h.performedBy(r), auth.MetadataFromRequest(r))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, role)
}

// UpdateRole handles PUT /roles/{id}
func (h *Handler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	id, ok := h.roleIDParam(w, r)
	if !ok {
		return
	}

	var dto UpdateRoleDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	role, err := h.Service.Update(r.Context(), id, dto, h.performedBy(r), auth.MetadataFromRequest(r))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, role)
}

// DeleteRole handles DELETE /roles/{id}
func (h *Handler) DeleteRole(w http.ResponseWriter, r *http.Request) {
	id, ok := h.roleIDParam(w, r)
	if !ok {
		return
	}

	if err := h.Service.Delete(r.Context(), id, h.performedBy(r), auth.MetadataFromRequest(r)); err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, map[string]string{"message": "Role deleted successfully"})
}

// ListPermissions handles GET /permissions
func (h *Handler) ListPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.Service.ListPermissions(r.Context())
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, perms)
}

// SetRolePermissions handles PUT /roles/{id}/permissions
func (h *Handler) SetRolePermissions(w http.ResponseWriter, r *http.Request) {
	id, ok := h.roleIDParam(w, r)
	if !ok {
		return
	}

	var dto SetPermissionsDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	role, err := h.Service.SetPermissions(r.Context(), id, dto, h.performedBy(r), auth.MetadataFromRequest(r))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, role)
}

func (h *Handler) roleIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid role id")
		return 0, false
	}
	return id, true
}

func (h *Handler) performedBy(r *http.Request) *int64 {
	if identity, ok := auth.IdentityFromContext(r.Context()); ok {
		return &identity.ID
	}
	return nil
}
