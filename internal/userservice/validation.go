package userservice

import (
	"regexp"
	"time"

	"github.com/sushihentaime/blogpipe/internal/common"
)

var (
	EmailRX     = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	PhoneRX     = regexp.MustCompile(`^\+?[0-9 ()\-]{7,20}$`)
	UppercaseRX = regexp.MustCompile("[A-Z]")
	LowercaseRX = regexp.MustCompile("[a-z]")
	NumberRX    = regexp.MustCompile("[0-9]")
	SymbolRX    = regexp.MustCompile(`[!@#$%^&*]`)
)

func validateName(v *common.Validator, name string) {
	v.Check(name != "", "name", "must be provided")
	v.Check(v.CheckStringLength(name, 5, 100), "name", "must be between 5 and 100 characters long")
}

func validateEmail(v *common.Validator, email string) {
	v.Check(email != "", "email", "must be provided")
	v.Check(v.CheckStringLength(email, 5, 100), "email", "must be between 5 and 100 characters long")
	v.Check(EmailRX.MatchString(email), "email", "must be a valid email address")
}

func validatePassword(v *common.Validator, password string) {
	v.Check(password != "", "password", "must be provided")

	value := v.CheckStringLength(password, 8, 72) && UppercaseRX.MatchString(password) && LowercaseRX.MatchString(password) && NumberRX.MatchString(password) && SymbolRX.MatchString(password)
	v.Check(value, "password", "must be between 8 and 72 characters long and contain at least one uppercase letter, one lowercase letter, one number, and one symbol")
}

func validatePhone(v *common.Validator, phone string) {
	v.Check(phone != "", "phone", "must be provided")
	v.Check(PhoneRX.MatchString(phone), "phone", "must be a valid phone number")
}

// validateBirthDate parses s and records a validation error when it is malformed or in the future.
func validateBirthDate(v *common.Validator, s string) *time.Time {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		v.AddError("birth_date", "must be a date in the format YYYY-MM-DD")
		return nil
	}

	v.Check(d.Before(time.Now()), "birth_date", "must be in the past")

	return &d
}
