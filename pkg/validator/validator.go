package validator

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Validator validates request structs tagged with `validate` rules.
type Validator struct {
	v *validator.Validate
}

func New() *Validator {
	return &Validator{v: validator.New(validator.WithRequiredStructEnabled())}
}

func (vl *Validator) Validate(obj interface{}) error {
	if err := vl.v.Struct(obj); err != nil {
		var verrs validator.ValidationErrors
		if ok := asValidationErrors(err, &verrs); ok && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("field %s failed validation on %s", fe.Field(), fe.Tag())
		}
		return err
	}
	return nil
}

func asValidationErrors(err error, target *validator.ValidationErrors) bool {
	verrs, ok := err.(validator.ValidationErrors)
	if ok {
		*target = verrs
	}
	return ok
}
