package http

import (
	validation "github.com/jellydator/validation"

	appValidation "github.com/ordersync/platform/pkg/validation"
)

func (r *createOrderRequest) Validate() error {
	err := validation.ValidateStruct(r,
		validation.Field(&r.UserID, validation.Required.Error("userId is required"), appValidation.NotBlank),
		validation.Field(&r.Product, validation.Required.Error("product is required"), appValidation.NotBlank),
		validation.Field(&r.Quantity, validation.Min(1).Error("quantity must be at least 1")),
		validation.Field(&r.Price, validation.Required.Error("price is required"), appValidation.NotBlank),
	)
	return appValidation.WrapValidationError(err)
}

func (r *updateOrderStatusRequest) Validate() error {
	err := validation.ValidateStruct(r,
		validation.Field(&r.Status, validation.Required.Error("status is required"), appValidation.NotBlank),
	)
	return appValidation.WrapValidationError(err)
}
