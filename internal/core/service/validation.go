package service

import (
	"errors"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/instastick/storefront-auth/internal/core/domain"
	"github.com/instastick/storefront-auth/internal/core/ports"
)

const (
	minPasswordLength = 8
	// bcrypt rejects longer inputs.
	maxPasswordLength = 72
	maxNameLength     = 50
)

var (
	personNamePattern = regexp.MustCompile(`^[a-zA-Z\s'-]+$`)
	upperPattern      = regexp.MustCompile(`[A-Z]`)
	lowerPattern      = regexp.MustCompile(`[a-z]`)
	digitPattern      = regexp.MustCompile(`[0-9]`)
	specialPattern    = regexp.MustCompile(`[!@#$%^&*()_+\-=\[\]{};':"\\|,.<>/?]`)
)

var validate = newValidate()

func newValidate() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("personname", func(fl validator.FieldLevel) bool {
		return personNamePattern.MatchString(fl.Field().String())
	})
	return v
}

type identityForm struct {
	Name  string `validate:"required,max=50,personname"`
	Email string `validate:"required,email"`
	Phone string `validate:"omitempty,len=10,numeric"`
}

var identityMessages = map[string]string{
	"Name.required":   "Name is required",
	"Name.max":        "Name cannot exceed 50 characters",
	"Name.personname": "Name can only contain letters, spaces, hyphens, and apostrophes",
	"Email.required":  "Email is required",
	"Email.email":     "Please provide a valid email address",
	"Phone.len":       "Please provide a valid 10-digit phone number",
	"Phone.numeric":   "Please provide a valid 10-digit phone number",
}

type addressForm struct {
	AddressLine1 string `validate:"required"`
	City         string `validate:"required"`
	State        string `validate:"required"`
	Pincode      string `validate:"required"`
	Phone        string `validate:"required"`
}

// identityViolations maps validator failures to user-facing messages.
func identityViolations(err error) []string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return nil
	}
	var violations []string
	for _, fe := range ve {
		msg, ok := identityMessages[fe.Field()+"."+fe.Tag()]
		if !ok {
			msg = fe.Error()
		}
		violations = append(violations, msg)
	}
	return violations
}

// validateSignup normalizes the form in place and returns every rule it
// breaks, in field order.
func validateSignup(in *ports.SignupInput) []string {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = domain.NormalizeEmail(in.Email)

	violations := identityViolations(validate.Struct(identityForm{Name: in.Name, Email: in.Email}))
	violations = append(violations, passwordViolations(in.Password)...)
	if in.Password != in.ConfirmPassword {
		violations = append(violations, "Passwords do not match")
	}
	return violations
}

// passwordViolations lists every strength rule pw fails.
func passwordViolations(pw string) []string {
	var v []string
	if len(pw) < minPasswordLength {
		v = append(v, "Password must be at least 8 characters long")
	}
	if len(pw) > maxPasswordLength {
		v = append(v, "Password cannot exceed 72 characters")
	}
	if !upperPattern.MatchString(pw) {
		v = append(v, "Password must contain at least one uppercase letter")
	}
	if !lowerPattern.MatchString(pw) {
		v = append(v, "Password must contain at least one lowercase letter")
	}
	if !digitPattern.MatchString(pw) {
		v = append(v, "Password must contain at least one number")
	}
	if !specialPattern.MatchString(pw) {
		v = append(v, "Password must contain at least one special character")
	}
	return v
}

// validateNewPassword checks a replacement password and its confirmation.
func validateNewPassword(pw, confirm, mismatch string) []string {
	if pw == "" || confirm == "" {
		return []string{"Please provide password and confirm password"}
	}
	var v []string
	if pw != confirm {
		v = append(v, mismatch)
	}
	return append(v, passwordViolations(pw)...)
}

// validateProfile normalizes the supplied fields in place and checks only
// those present.
func validateProfile(in *ports.UpdateProfileInput) []string {
	if in.Password != "" || in.ConfirmPassword != "" {
		return []string{"This route is not for password updates. Please use /update-password"}
	}

	var form identityForm
	var fields []string
	if in.Name != nil {
		*in.Name = strings.TrimSpace(*in.Name)
		form.Name = *in.Name
		fields = append(fields, "Name")
	}
	if in.Email != nil {
		*in.Email = domain.NormalizeEmail(*in.Email)
		form.Email = *in.Email
		fields = append(fields, "Email")
	}
	if in.Phone != nil {
		*in.Phone = strings.TrimSpace(*in.Phone)
		form.Phone = *in.Phone
		fields = append(fields, "Phone")
	}
	if len(fields) == 0 {
		return nil
	}
	return identityViolations(validate.StructPartial(form, fields...))
}

// validateAddress checks that a new address carries every required field.
func validateAddress(in ports.AddressInput) []string {
	err := validate.Struct(addressForm{
		AddressLine1: strings.TrimSpace(in.AddressLine1),
		City:         strings.TrimSpace(in.City),
		State:        strings.TrimSpace(in.State),
		Pincode:      strings.TrimSpace(in.Pincode),
		Phone:        strings.TrimSpace(in.Phone),
	})
	if err != nil {
		return []string{"Please provide all required address fields"}
	}
	return nil
}
