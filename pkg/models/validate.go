package models

import (
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Identifier patterns. List ids and tags are uppercase tokens; logins are
// lowercase. TagQueryPattern validates the comma-separated form used in
// query strings.
var (
	listIDRe   = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)
	tagRe      = regexp.MustCompile(`^[A-Z][A-Z0-9]*$`)
	loginRe    = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)
	tagQueryRe = regexp.MustCompile(`^([A-Z][A-Z0-9]*,?)+$`)
)

// Password policy: 10..64 characters with at least one lowercase letter,
// one uppercase letter and one digit.
const (
	MinPasswordLength = 10
	MaxPasswordLength = 64
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("listid", func(fl validator.FieldLevel) bool {
		return listIDRe.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("tag", func(fl validator.FieldLevel) bool {
		return tagRe.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("login", func(fl validator.FieldLevel) bool {
		return loginRe.MatchString(fl.Field().String())
	})
	return v
}

// Validate runs the struct validation tags of any model value.
func Validate(v any) error {
	return validate.Struct(v)
}

// ValidatePassword enforces the password policy.
func ValidatePassword(password string) bool {
	if len(password) < MinPasswordLength || len(password) > MaxPasswordLength {
		return false
	}
	var lower, upper, digit bool
	for _, r := range password {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		}
	}
	return lower && upper && digit
}

// ValidateTagQuery checks the comma-separated tag filter syntax and splits
// it into individual tags.
func ValidateTagQuery(s string) ([]string, bool) {
	s = strings.TrimSpace(s)
	if s == "" || !tagQueryRe.MatchString(s) {
		return nil, false
	}
	var tags []string
	for _, t := range strings.Split(s, ",") {
		if t != "" {
			tags = append(tags, t)
		}
	}
	return tags, true
}
