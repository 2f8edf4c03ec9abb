package role

import (
	errors "github.com/frahmantamala/rbac-admin/internal"
	"github.com/frahmantamala/rbac-admin/internal/core/common/validation"
)

// CreateRoleDTO is the request payload for creating a role
type CreateRoleDTO struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Validate validates the CreateRoleDTO
func (dto CreateRoleDTO) Validate() error {
	v := validation.NewValidator()
	v.Field("name", dto.Name).Required().MinLength(2).MaxLength(50)
	v.Field("description", dto.Description).MaxLength(255)
	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}

// UpdateRoleDTO is the request payload for updating a role
type UpdateRoleDTO struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Validate validates the UpdateRoleDTO
func (dto UpdateRoleDTO) Validate() error {
	return CreateRoleDTO(dto).Validate()
}

// SetPermissionsDTO replaces the full grant set of a role
type SetPermissionsDTO struct {
	PermissionIDs []int64 `json:"permissionIds"`
}

// Validate validates the SetPermissionsDTO
func (dto SetPermissionsDTO) Validate() error {
	for _, id := range dto.PermissionIDs {
		if id <= 0 {
			return errors.NewValidationFieldError("permissionIds", "permission ids must be positive", errors.ErrCodeValidationFailed)
		}
	}
	return nil
}
