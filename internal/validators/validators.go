package validators

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"bus_tracker/internal/models"
)

// Register installs the custom tags on gin's binding validator so request
// structs can use `binding:"direction"` and `binding:"update_status"`.
func Register() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}
	return RegisterOn(v)
}

func RegisterOn(v *validator.Validate) error {
	if err := v.RegisterValidation("direction", validateDirection); err != nil {
		return err
	}
	return v.RegisterValidation("update_status", validateUpdateStatus)
}

func validateDirection(fl validator.FieldLevel) bool {
	return models.Direction(fl.Field().String()).Valid()
}

// maintenance is set by the reset endpoint only
func validateUpdateStatus(fl validator.FieldLevel) bool {
	s := models.BusStatus(fl.Field().String())
	return s.Valid() && s != models.StatusMaintenance
}

// Messages flattens validator errors into field -> tag for API responses.
func Messages(err error) map[string]string {
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(errs))
	for _, fe := range errs {
		out[fe.Field()] = fe.Tag()
	}
	return out
}
