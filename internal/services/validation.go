package services

import (
	"github.com/go-playground/validator/v10"
)

// ValidationHelper wraps a shared validator instance for tag-based struct
// validation of inbound payloads.
type ValidationHelper struct {
	validator *validator.Validate
}

func NewValidationHelper() *ValidationHelper {
	return &ValidationHelper{
		validator: validator.New(),
	}
}

// ValidateStruct validates a struct against its validate tags.
func (vh *ValidationHelper) ValidateStruct(s any) error {
	return vh.validator.Struct(s)
}
