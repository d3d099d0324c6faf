// Package validation checks request input before it reaches the stores.
//
// Struct tags are evaluated by go-playground/validator:
//
//	type createUser struct {
//	    Name string `json:"name" validate:"required,max=64,username"`
//	}
//	if err := validation.Struct(req); err != nil { ... }
//
// Single values are checked with the fluent Validator:
//
//	err := validation.New().Required("name", name).MaxLength("name", name, 64).Validate()
//
// Both return an *errors.AppError with code INVALID_INPUT.
package validation
