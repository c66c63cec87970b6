package validator

import (
	"go-clinic-scheduling/internal/domain/entity"

	"github.com/go-playground/validator/v10"
)

type CustomValidator struct {
	validator *validator.Validate
}

func NewValidator() *CustomValidator {
	v := validator.New()
	_ = v.RegisterValidation("appointment_mode", func(fl validator.FieldLevel) bool {
		return entity.AppointmentMode(fl.Field().String()).IsValid()
	})
	_ = v.RegisterValidation("notification_channel", func(fl validator.FieldLevel) bool {
		_, err := entity.ParseChannel(fl.Field().String())
		return err == nil
	})
	return &CustomValidator{
		validator: v,
	}
}

func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

func (cv *CustomValidator) FormatValidationErrors(err error) map[string]string {
	errors := make(map[string]string)

	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		for _, e := range validationErrors {
			field := e.Field()
			switch e.Tag() {
			case "required":
				errors[field] = field + " is required"
			case "min":
				errors[field] = field + " must be at least " + e.Param() + " characters"
			case "max":
				errors[field] = field + " must be at most " + e.Param() + " characters"
			case "gte":
				errors[field] = field + " must be greater than or equal to " + e.Param()
			case "lte":
				errors[field] = field + " must be less than or equal to " + e.Param()
			case "appointment_mode":
				errors[field] = field + " must be one of in-person, virtual"
			case "notification_channel":
				errors[field] = field + " must be one of in_app, push, messaging"
			default:
				errors[field] = field + " is invalid"
			}
		}
	}

	return errors
}
