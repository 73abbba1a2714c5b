package auth

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	passwordSpecials = "!@#$%^&*"

	msgPasswordPolicy = `"password" should contain a mix of uppercase and lowercase letters, numbers, and special characters`
)

// Supplied records the body keys a client sent. A true value marks a key
// sent as an explicit null. A nil Supplied treats every empty field as missing.
type Supplied map[string]bool

type RegisterRequest struct {
	Name     string `json:"name" validate:"required"`
	Username string `json:"username" validate:"required,min=5"`
	Password string `json:"password" validate:"required,min=5,password_policy"`

	Supplied Supplied `json:"-" validate:"-"`
}

// SetSupplied records which keys the decoded body carried.
func (r *RegisterRequest) SetSupplied(s Supplied) { r.Supplied = s }

// LoginRequest uses the same field rules as RegisterRequest; both fields are
// required here too.
type LoginRequest struct {
	Username string `json:"username" validate:"required,min=5"`
	Password string `json:"password" validate:"required,min=5,password_policy"`

	Supplied Supplied `json:"-" validate:"-"`
}

func (r *LoginRequest) SetSupplied(s Supplied) { r.Supplied = s }

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("password_policy", passwordPolicy); err != nil {
		panic(err)
	}
	return v
}

// passwordPolicy requires at least one digit, one special character from
// passwordSpecials, one uppercase and one lowercase ASCII letter.
func passwordPolicy(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	return strings.ContainsAny(s, "0123456789") &&
		strings.ContainsAny(s, passwordSpecials) &&
		strings.ContainsAny(s, "ABCDEFGHIJKLMNOPQRSTUVWXYZ") &&
		strings.ContainsAny(s, "abcdefghijklmnopqrstuvwxyz")
}

func ValidateRegister(req RegisterRequest) error { return validateStruct(req, req.Supplied) }

func ValidateLogin(req LoginRequest) error { return validateStruct(req, req.Supplied) }

func validateStruct(v any, supplied Supplied) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &ValidationError{Message: err.Error()}
	}
	return &ValidationError{Message: fieldMessage(fieldErrs[0], supplied)}
}

func fieldMessage(fe validator.FieldError, supplied Supplied) string {
	switch fe.Tag() {
	case "required":
		null, sent := supplied[fe.Field()]
		switch {
		case !sent:
			return fmt.Sprintf("%q is required", fe.Field())
		case null:
			return fmt.Sprintf("%q must be a string", fe.Field())
		default:
			return fmt.Sprintf("%q is not allowed to be empty", fe.Field())
		}
	case "min":
		return fmt.Sprintf("%q length must be at least %s characters long", fe.Field(), fe.Param())
	case "password_policy":
		return msgPasswordPolicy
	default:
		return fmt.Sprintf("%q failed on the %q rule", fe.Field(), fe.Tag())
	}
}
