package user

import (
	errors "github.com/frahmantamala/rbac-admin/internal"
	"github.com/frahmantamala/rbac-admin/internal/core/common/validation"
)

const (
	minPasswordLength = 8
	maxPasswordLength = 72
)

// CreateUserDTO is the request payload for creating a user
type CreateUserDTO struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	RoleID   int64  `json:"roleId"`
}

// Validate validates the CreateUserDTO
func (dto CreateUserDTO) Validate() error {
	v := validation.NewValidator()
	v.Field("username", dto.Username).Required().MinLength(3).MaxLength(50)
	v.Field("email", dto.Email).Required().Email()
	v.Field("password", dto.Password).Required().MinLength(minPasswordLength).MaxLength(maxPasswordLength)
	v.Field("roleId", dto.RoleID).Required().Positive()
	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}

// UpdateUserDTO is the request payload for updating a user. Password is
// optional; an empty value keeps the current one.
type UpdateUserDTO struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password,omitempty"`
	RoleID   int64  `json:"roleId"`
}

// Validate validates the UpdateUserDTO
func (dto UpdateUserDTO) Validate() error {
	v := validation.NewValidator()
	v.Field("username", dto.Username).Required().MinLength(3).MaxLength(50)
	v.Field("email", dto.Email).Required().Email()
	if dto.Password != "" {
		v.Field("password", dto.Password).MinLength(minPasswordLength).MaxLength(maxPasswordLength)
	}
	v.Field("roleId", dto.RoleID).Required().Positive()
	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}

// UpdateProfileDTO lets a user change their own username, email and
// password. Changing the password requires the current one.
type UpdateProfileDTO struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	NewPassword     string `json:"newPassword,omitempty"`
	CurrentPassword string `json:"currentPassword,omitempty"`
}

// Validate validates the UpdateProfileDTO
func (dto UpdateProfileDTO) Validate() error {
	v := validation.NewValidator()
	v.Field("username", dto.Username).Required().MinLength(3).MaxLength(50)
	v.Field("email", dto.Email).Required().Email()
	if dto.NewPassword != "" {
		v.Field("newPassword", dto.NewPassword).MinLength(minPasswordLength).MaxLength(maxPasswordLength)
		if dto.CurrentPassword == "" {
			return errors.NewValidationFieldError("currentPassword", "current password is required to change password", errors.ErrCodeInvalidPassword)
		}
	}
	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}
