package handler

import (
	"errors"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/oncodose/treatment-api/internal/model"
)

// BindingMessage translates a binding failure into the message the form
// would have shown for that field.
func BindingMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			switch fe.Tag() {
			case "bloodtype":
				return "Unknown blood type"
			case "alltype":
				return "Unknown ALL type"
			case "sex":
				return "Unknown sex"
			case "yyyymmdd":
				return "Dates must be in yyyyMMdd form"
			}
		}
	}
	return "Input fields must not be empty"
}

// RegisterValidators installs the domain enum validators on gin's binding
// engine. Call once at startup.
func RegisterValidators() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}

	v.RegisterValidation("bloodtype", func(fl validator.FieldLevel) bool {
		return model.BloodType(fl.Field().String()).Valid()
	})
	v.RegisterValidation("alltype", func(fl validator.FieldLevel) bool {
		return model.ALLType(fl.Field().String()).Valid()
	})
	v.RegisterValidation("sex", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return s == model.SexMale || s == model.SexFemale
	})
	v.RegisterValidation("yyyymmdd", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		if len(s) != 8 {
			return false
		}
		for _, r := range s {
			if r < '0' || r > '9' {
				return false
			}
		}
		return true
	})
}
