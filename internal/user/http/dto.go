package http

import (
	validation "github.com/jellydator/validation"

	appValidation "github.com/ordersync/platform/pkg/validation"
)

// createUserRequest is the POST /api/users body, validated with
// jellydator/validation the way allisson-secrets validates
// RegisterUserRequest.
type createUserRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (r *createUserRequest) Validate() error {
	err := validation.ValidateStruct(r,
		validation.Field(&r.Name,
			validation.Required.Error("name is required"),
			appValidation.NotBlank,
			validation.Length(1, 255).Error("name must be between 1 and 255 characters"),
		),
		validation.Field(&r.Email,
			validation.Required.Error("email is required"),
			appValidation.NotBlank,
			appValidation.Email,
			validation.Length(5, 255).Error("email must be between 5 and 255 characters"),
		),
	)
	return appValidation.WrapValidationError(err)
}

// changeUserStatusRequest is the PATCH /api/users/{id}/status body.
type changeUserStatusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

func (r *changeUserStatusRequest) Validate() error {
	err := validation.ValidateStruct(r,
		validation.Field(&r.Status,
			validation.Required.Error("status is required"),
			appValidation.NotBlank,
		),
	)
	return appValidation.WrapValidationError(err)
}
