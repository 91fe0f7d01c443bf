package validator

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
)

type registrationPayload struct {
	Name  string `json:"name" validate:"required,notblank"`
	Email string `json:"email" validate:"required,email"`
	Phone string `json:"phone" validate:"omitempty,max=8"`
}

func TestValidateStructSuccess(t *testing.T) {
	err := ValidateStruct(registrationPayload{Name: "Alice Smith", Email: "alice@example.com"})
	require.NoError(t, err)
}

func TestValidateStructFailures(t *testing.T) {
	err := ValidateStruct(registrationPayload{Name: "   ", Email: "invalid", Phone: "0123456789"})
	require.Error(t, err)

	vErrs, ok := err.(ValidationErrors)
	require.True(t, ok, "expected ValidationErrors, got %T", err)
	require.Len(t, vErrs, 3)

	fields := map[string]string{}
	for _, v := range vErrs {
		fields[v.Field] = v.Tag
	}
	require.Equal(t, "notblank", fields["name"])
	require.Equal(t, "email", fields["email"])
	require.Equal(t, "max", fields["phone"])
	require.Contains(t, err.Error(), "phone failed on max=8")
}

func TestRegisterValidation(t *testing.T) {
	err := RegisterValidation("gatepass", func(fl validator.FieldLevel) bool {
		return fl.Field().String() == "gatepass"
	})
	require.NoError(t, err)

	type custom struct {
		Value string `validate:"gatepass"`
	}

	require.NoError(t, ValidateStruct(custom{Value: "gatepass"}))
	require.Error(t, ValidateStruct(custom{Value: "other"}))
}
