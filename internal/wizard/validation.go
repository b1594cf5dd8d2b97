// internal/wizard/validation.go
package wizard

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// Result is the outcome of validating one step's fields.
type Result struct {
	Valid  bool              `json:"valid"`
	Errors map[string]string `json:"errors,omitempty"`
}

func (r *Result) addError(field, message string) {
	if r.Errors == nil {
		r.Errors = make(map[string]string)
	}
	r.Errors[field] = message
	r.Valid = false
}

var (
	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{3,20}$`)
	emailPattern    = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	timePattern     = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)
)

var cuisineTypes = map[string]bool{
	"italian":       true,
	"chinese":       true,
	"indian":        true,
	"japanese":      true,
	"mexican":       true,
	"thai":          true,
	"french":        true,
	"greek":         true,
	"american":      true,
	"mediterranean": true,
	"other":         true,
}

var (
	maxMinimumOrder = decimal.NewFromInt(1000)
	maxDeliveryFee  = decimal.NewFromInt(100)
)

// Validate checks one step's submitted fields against that step's rules.
// It is a pure function over its inputs: no I/O, no clock, no session state.
// Unknown step IDs validate to an empty-rules pass.
func Validate(stepID string, fields map[string]string) *Result {
	result := &Result{Valid: true}

	switch stepID {
	case StepAccount:
		validateAccount(fields, result)
	case StepDetails:
		validateDetails(fields, result)
	case StepContact:
		validateContact(fields, result)
	case StepHours:
		validateHours(fields, result)
	case StepReview:
		validateReview(fields, result)
	}

	return result
}

func validateAccount(fields map[string]string, result *Result) {
	username := strings.TrimSpace(fields["account_username"])
	if username == "" {
		result.addError("account_username", "username is required")
	} else if !usernamePattern.MatchString(username) {
		result.addError("account_username", "username must be 3-20 characters: letters, digits, and underscores only")
	}

	email := strings.TrimSpace(fields["account_email"])
	if email == "" {
		result.addError("account_email", "email is required")
	} else if !emailPattern.MatchString(email) {
		result.addError("account_email", "email address is not valid")
	}

	password := fields["account_password"]
	if password == "" {
		result.addError("account_password", "password is required")
	} else if !validPassword(password) {
		result.addError("account_password", "password must be at least 8 characters and contain a letter and a digit")
	}

	confirm, ok := fields["account_password_confirm"]
	switch {
	case !ok:
		result.addError("account_password_confirm", "password confirmation is required")
	case confirm != password:
		result.addError("account_password_confirm", "passwords do not match")
	}
}

func validPassword(password string) bool {
	if len(password) < 8 {
		return false
	}
	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	return hasLetter && hasDigit
}

func validateDetails(fields map[string]string, result *Result) {
	name := strings.TrimSpace(fields["details_name"])
	if name == "" {
		result.addError("details_name", "restaurant name is required")
	} else if len(name) < 2 || len(name) > 100 {
		result.addError("details_name", "restaurant name must be between 2 and 100 characters")
	}

	description := strings.TrimSpace(fields["details_description"])
	if description == "" {
		result.addError("details_description", "description is required")
	} else if len(description) < 10 {
		result.addError("details_description", "description must be at least 10 characters")
	}

	cuisine := strings.ToLower(strings.TrimSpace(fields["details_cuisine"]))
	if cuisine == "" {
		result.addError("details_cuisine", "cuisine type is required")
	} else if !cuisineTypes[cuisine] {
		result.addError("details_cuisine", fmt.Sprintf("unknown cuisine type: %s", cuisine))
	}
}

func validateContact(fields map[string]string, result *Result) {
	phone := fields["contact_phone"]
	if strings.TrimSpace(phone) == "" {
		result.addError("contact_phone", "phone number is required")
	} else if len(digitsOnly(phone)) < 10 {
		result.addError("contact_phone", "phone number must contain at least 10 digits")
	}

	// The contact email is optional (owner confirmations go to the account
	// email), but when given it must be well-formed.
	if email := strings.TrimSpace(fields["contact_email"]); email != "" && !emailPattern.MatchString(email) {
		result.addError("contact_email", "contact email is not valid")
	}

	address := strings.TrimSpace(fields["contact_address"])
	if address == "" {
		result.addError("contact_address", "address is required")
	} else if len(address) < 10 || len(address) > 200 {
		result.addError("contact_address", "address must be between 10 and 200 characters")
	}
}

func validateHours(fields map[string]string, result *Result) {
	opening := strings.TrimSpace(fields["hours_opening"])
	closing := strings.TrimSpace(fields["hours_closing"])

	openingValid := timePattern.MatchString(opening)
	closingValid := timePattern.MatchString(closing)

	if opening == "" {
		result.addError("hours_opening", "opening time is required")
	} else if !openingValid {
		result.addError("hours_opening", "opening time must be in HH:MM format")
	}

	if closing == "" {
		result.addError("hours_closing", "closing time is required")
	} else if !closingValid {
		result.addError("hours_closing", "closing time must be in HH:MM format")
	}

	// HH:MM compares correctly as a string once both sides match the pattern.
	if openingValid && closingValid && closing <= opening {
		result.addError("hours_closing", "closing time must be after opening time")
	}

	if raw, ok := fields["hours_min_order"]; ok && strings.TrimSpace(raw) != "" {
		validateMoney(result, "hours_min_order", raw, maxMinimumOrder)
	}
	if raw, ok := fields["hours_delivery_fee"]; ok && strings.TrimSpace(raw) != "" {
		validateMoney(result, "hours_delivery_fee", raw, maxDeliveryFee)
	}
}

func validateMoney(result *Result, field, raw string, max decimal.Decimal) {
	amount, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		result.addError(field, "amount is not a valid number")
		return
	}
	if amount.IsNegative() {
		result.addError(field, "amount must not be negative")
		return
	}
	if amount.GreaterThan(max) {
		result.addError(field, fmt.Sprintf("amount must not exceed %s", max.String()))
	}
}

func validateReview(fields map[string]string, result *Result) {
	if fields["review_terms_accepted"] != "true" {
		result.addError("review_terms_accepted", "terms and conditions must be accepted")
	}
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
