package services

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var requestValidator = newRequestValidator()

func newRequestValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateRequest turns DTO tag violations into an InvalidRequest error
// listing the offending fields.
func validateRequest(req any) error {
	err := requestValidator.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return newServiceError(KindInvalidRequest, "invalid request", err)
	}
	fields := make([]string, 0, len(verrs))
	svcErr := newServiceError(KindInvalidRequest, "", nil)
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
		svcErr.with(fe.Field(), fe.Tag())
	}
	svcErr.Message = "invalid request: " + strings.Join(fields, ", ")
	return svcErr
}
