package domain

import (
	"errors"
	"reflect"
	"strconv"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// Country is the only supported shipping destination.
const Country = "MX"

// ShippingAddress fields carry their validation rules; the field tag is the key used in
// ValidationErrors.
type ShippingAddress struct {
	Name           string `field:"name" validate:"required"`
	LastName       string `field:"last_name" validate:"required"`
	Email          string `field:"email" validate:"email"`
	Phone          string `field:"phone" validate:"digits=10"`
	Street         string `field:"street" validate:"required"`
	ExteriorNumber string `field:"exterior_number" validate:"required"`
	InteriorNumber string `field:"interior_number"`
	PostalCode     string `field:"postal_code" validate:"digits=5"`
	Neighborhood   string `field:"neighborhood" validate:"required"`
	CityID         string `field:"city" validate:"required"`
	CityName       string `field:"city_name"`
	StateID        string `field:"state" validate:"required"`
	StateName      string `field:"state_name"`
	Country        string `field:"country" validate:"omitempty,eq=MX"`
}

// IsResolved reports whether the postal code, neighborhood, city and state are all set.
func (a ShippingAddress) IsResolved() bool {
	return strings.TrimSpace(a.PostalCode) != "" &&
		strings.TrimSpace(a.Neighborhood) != "" &&
		a.CityID != "" &&
		a.StateID != ""
}

var addressValidator = newAddressValidator()

func newAddressValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("field")
	})
	if err := v.RegisterValidation("digits", digits); err != nil {
		panic(err)
	}
	return v
}

// digits accepts a value of exactly param decimal digits.
func digits(fl validator.FieldLevel) bool {
	n, err := strconv.Atoi(fl.Param())
	if err != nil {
		return false
	}

	s := fl.Field().String()
	if len(s) != n {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// Validate checks field formats. Each failing field gets its own message so that other
// fields stay usable. Blank input counts as missing.
func (a ShippingAddress) Validate() ValidationErrors {
	trimmed := a
	for _, f := range []*string{
		&trimmed.Name, &trimmed.LastName, &trimmed.Email, &trimmed.Street,
		&trimmed.ExteriorNumber, &trimmed.Neighborhood, &trimmed.CityID, &trimmed.StateID,
	} {
		*f = strings.TrimSpace(*f)
	}

	err := addressValidator.Struct(trimmed)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return ValidationErrors{"address": err.Error()}
	}

	errs := make(ValidationErrors, len(fieldErrs))
	for _, fe := range fieldErrs {
		errs[fe.Field()] = fieldMessage(fe)
	}
	return errs
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "is not a valid email address"
	case "digits":
		return "must have " + fe.Param() + " digits"
	case "eq":
		return "only " + fe.Param() + " is supported"
	default:
		return "is invalid"
	}
}

type State struct {
	ID   string
	Name string
}

// City is a municipality within a state.
type City struct {
	ID      string
	Name    string
	StateID string
}

type Neighborhood struct {
	Name             string
	PostalCode       string
	MunicipalityID   string
	MunicipalityName string
	CityID           string
	CityName         string
	StateID          string
	StateName        string
}
