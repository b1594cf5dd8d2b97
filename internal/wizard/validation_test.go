// internal/wizard/validation_test.go
package wizard

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateAccountStep(t *testing.T) {
	tests := []struct {
		name       string
		fields     map[string]string
		wantValid  bool
		wantFields []string
	}{
		{
			name: "valid account",
			fields: map[string]string{
				"account_username":         "mario_rossi",
				"account_email":            "mario@example.com",
				"account_password":         "s3curePassword",
				"account_password_confirm": "s3curePassword",
			},
			wantValid: true,
		},
		{
			name:       "missing everything",
			fields:     map[string]string{},
			wantValid:  false,
			wantFields: []string{"account_username", "account_email", "account_password"},
		},
		{
			name: "username too short",
			fields: map[string]string{
				"account_username": "ab",
				"account_email":    "mario@example.com",
				"account_password": "s3curePassword",
			},
			wantValid:  false,
			wantFields: []string{"account_username"},
		},
		{
			name: "username with illegal characters",
			fields: map[string]string{
				"account_username": "mario rossi!",
				"account_email":    "mario@example.com",
				"account_password": "s3curePassword",
			},
			wantValid:  false,
			wantFields: []string{"account_username"},
		},
		{
			name: "invalid email",
			fields: map[string]string{
				"account_username": "mario_rossi",
				"account_email":    "not-an-email",
				"account_password": "s3curePassword",
			},
			wantValid:  false,
			wantFields: []string{"account_email"},
		},
		{
			name: "password without digits",
			fields: map[string]string{
				"account_username": "mario_rossi",
				"account_email":    "mario@example.com",
				"account_password": "onlyletters",
			},
			wantValid:  false,
			wantFields: []string{"account_password"},
		},
		{
			name: "password too short",
			fields: map[string]string{
				"account_username": "mario_rossi",
				"account_email":    "mario@example.com",
				"account_password": "ab1",
			},
			wantValid:  false,
			wantFields: []string{"account_password"},
		},
		{
			name: "password confirmation mismatch",
			fields: map[string]string{
				"account_username":         "mario_rossi",
				"account_email":            "mario@example.com",
				"account_password":         "s3curePassword",
				"account_password_confirm": "different1",
			},
			wantValid:  false,
			wantFields: []string{"account_password_confirm"},
		},
		{
			name: "password confirmation omitted",
			fields: map[string]string{
				"account_username": "mario_rossi",
				"account_email":    "mario@example.com",
				"account_password": "s3curePassword",
			},
			wantValid:  false,
			wantFields: []string{"account_password_confirm"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Validate(StepAccount, tt.fields)
			assert.Equal(t, tt.wantValid, result.Valid)
			for _, field := range tt.wantFields {
				assert.Contains(t, result.Errors, field)
			}
		})
	}
}

func TestValidateDetailsStep(t *testing.T) {
	tests := []struct {
		name       string
		fields     map[string]string
		wantValid  bool
		wantFields []string
	}{
		{
			name: "valid details",
			fields: map[string]string{
				"details_name":        "Mario's Kitchen",
				"details_description": "Authentic Italian pasta made fresh daily",
				"details_cuisine":     "italian",
			},
			wantValid: true,
		},
		{
			name: "cuisine is case-insensitive",
			fields: map[string]string{
				"details_name":        "Mario's Kitchen",
				"details_description": "Authentic Italian pasta made fresh daily",
				"details_cuisine":     "Italian",
			},
			wantValid: true,
		},
		{
			name: "name too short",
			fields: map[string]string{
				"details_name":        "M",
				"details_description": "Authentic Italian pasta made fresh daily",
				"details_cuisine":     "italian",
			},
			wantValid:  false,
			wantFields: []string{"details_name"},
		},
		{
			name: "description too short",
			fields: map[string]string{
				"details_name":        "Mario's Kitchen",
				"details_description": "Pasta",
				"details_cuisine":     "italian",
			},
			wantValid:  false,
			wantFields: []string{"details_description"},
		},
		{
			name: "unknown cuisine",
			fields: map[string]string{
				"details_name":        "Mario's Kitchen",
				"details_description": "Authentic Italian pasta made fresh daily",
				"details_cuisine":     "klingon",
			},
			wantValid:  false,
			wantFields: []string{"details_cuisine"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Validate(StepDetails, tt.fields)
			assert.Equal(t, tt.wantValid, result.Valid)
			for _, field := range tt.wantFields {
				assert.Contains(t, result.Errors, field)
			}
		})
	}
}

func TestValidateContactStep(t *testing.T) {
	tests := []struct {
		name       string
		fields     map[string]string
		wantValid  bool
		wantFields []string
	}{
		{
			name: "valid contact",
			fields: map[string]string{
				"contact_phone":   "+1 (555) 123-4567",
				"contact_address": "12 Via Roma, Naples, 80100",
			},
			wantValid: true,
		},
		{
			name: "phone with too few digits",
			fields: map[string]string{
				"contact_phone":   "555-1234",
				"contact_address": "12 Via Roma, Naples, 80100",
			},
			wantValid:  false,
			wantFields: []string{"contact_phone"},
		},
		{
			name: "address too short",
			fields: map[string]string{
				"contact_phone":   "+1 (555) 123-4567",
				"contact_address": "12 Via",
			},
			wantValid:  false,
			wantFields: []string{"contact_address"},
		},
		{
			name: "valid contact with email",
			fields: map[string]string{
				"contact_phone":   "+1 (555) 123-4567",
				"contact_email":   "bookings@marios.example.com",
				"contact_address": "12 Via Roma, Naples, 80100",
			},
			wantValid: true,
		},
		{
			name: "malformed contact email",
			fields: map[string]string{
				"contact_phone":   "+1 (555) 123-4567",
				"contact_email":   "not-an-email",
				"contact_address": "12 Via Roma, Naples, 80100",
			},
			wantValid:  false,
			wantFields: []string{"contact_email"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Validate(StepContact, tt.fields)
			assert.Equal(t, tt.wantValid, result.Valid)
			for _, field := range tt.wantFields {
				assert.Contains(t, result.Errors, field)
			}
		})
	}
}

func TestValidateHoursStep(t *testing.T) {
	tests := []struct {
		name       string
		fields     map[string]string
		wantValid  bool
		wantFields []string
	}{
		{
			name: "valid hours",
			fields: map[string]string{
				"hours_opening": "09:00",
				"hours_closing": "22:30",
			},
			wantValid: true,
		},
		{
			name: "valid hours with delivery settings",
			fields: map[string]string{
				"hours_opening":      "09:00",
				"hours_closing":      "22:30",
				"hours_min_order":    "15.00",
				"hours_delivery_fee": "3.50",
			},
			wantValid: true,
		},
		{
			name: "closing before opening",
			fields: map[string]string{
				"hours_opening": "22:00",
				"hours_closing": "09:00",
			},
			wantValid:  false,
			wantFields: []string{"hours_closing"},
		},
		{
			name: "closing equal to opening",
			fields: map[string]string{
				"hours_opening": "09:00",
				"hours_closing": "09:00",
			},
			wantValid:  false,
			wantFields: []string{"hours_closing"},
		},
		{
			name: "malformed time",
			fields: map[string]string{
				"hours_opening": "9am",
				"hours_closing": "22:30",
			},
			wantValid:  false,
			wantFields: []string{"hours_opening"},
		},
		{
			name: "negative minimum order",
			fields: map[string]string{
				"hours_opening":   "09:00",
				"hours_closing":   "22:30",
				"hours_min_order": "-5",
			},
			wantValid:  false,
			wantFields: []string{"hours_min_order"},
		},
		{
			name: "minimum order over the cap",
			fields: map[string]string{
				"hours_opening":   "09:00",
				"hours_closing":   "22:30",
				"hours_min_order": "1000.01",
			},
			wantValid:  false,
			wantFields: []string{"hours_min_order"},
		},
		{
			name: "delivery fee not a number",
			fields: map[string]string{
				"hours_opening":      "09:00",
				"hours_closing":      "22:30",
				"hours_delivery_fee": "three",
			},
			wantValid:  false,
			wantFields: []string{"hours_delivery_fee"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Validate(StepHours, tt.fields)
			assert.Equal(t, tt.wantValid, result.Valid)
			for _, field := range tt.wantFields {
				assert.Contains(t, result.Errors, field)
			}
		})
	}
}

func TestValidateReviewStep(t *testing.T) {
	result := Validate(StepReview, map[string]string{"review_terms_accepted": "true"})
	assert.True(t, result.Valid)

	result = Validate(StepReview, map[string]string{"review_terms_accepted": "false"})
	assert.False(t, result.Valid)
	assert.Contains(t, result.Errors, "review_terms_accepted")

	result = Validate(StepReview, map[string]string{})
	assert.False(t, result.Valid)
}

func TestValidateIsPure(t *testing.T) {
	fields := map[string]string{
		"details_name":        "Mario's Kitchen",
		"details_description": "Authentic Italian pasta made fresh daily",
		"details_cuisine":     "italian",
	}

	first := Validate(StepDetails, fields)
	second := Validate(StepDetails, fields)

	assert.Equal(t, first, second)
	assert.Len(t, fields, 3, "validation must not mutate its input")
}

func TestStepsAuthenticatedSkipsAccount(t *testing.T) {
	all := Steps(Options{})
	assert.Equal(t, []string{StepAccount, StepDetails, StepContact, StepHours, StepReview}, all)

	authed := Steps(Options{Authenticated: true})
	assert.Equal(t, []string{StepDetails, StepContact, StepHours, StepReview}, authed)
	assert.Equal(t, -1, StepIndex(authed, StepAccount))
}

func BenchmarkValidateDetails(b *testing.B) {
	fields := map[string]string{
		"details_name":        "Mario's Kitchen",
		"details_description": "Authentic Italian pasta made fresh daily",
		"details_cuisine":     "italian",
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Validate(StepDetails, fields)
	}
}
