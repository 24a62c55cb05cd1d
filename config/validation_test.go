package config

import (
	"testing"
)

func TestValidatorRequireNonEmpty(t *testing.T) {
	tests := []struct {
		name      string
		value     string
		wantError bool
	}{
		{name: "non-empty value", value: "valid", wantError: false},
		{name: "empty value", value: "", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewValidator()
			v.RequireNonEmpty("test_field", tt.value)
			if v.HasErrors() != tt.wantError {
				t.Errorf("HasErrors() = %v, want %v", v.HasErrors(), tt.wantError)
			}
		})
	}
}

func TestValidatorRequirePositive(t *testing.T) {
	tests := []struct {
		name      string
		value     int
		wantError bool
	}{
		{name: "positive value", value: 10, wantError: false},
		{name: "zero value", value: 0, wantError: true},
		{name: "negative value", value: -5, wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewValidator()
			v.RequirePositive("test_field", tt.value)
			if v.HasErrors() != tt.wantError {
				t.Errorf("HasErrors() = %v, want %v", v.HasErrors(), tt.wantError)
			}
		})
	}
}

func TestValidatorRequireAtMost(t *testing.T) {
	v := NewValidator()
	v.RequireAtMost("min_iterations", 2, 8)
	if v.HasErrors() {
		t.Errorf("expected no error for 2 <= 8")
	}

	v = NewValidator()
	v.RequireAtMost("min_iterations", 9, 8)
	if !v.HasErrors() {
		t.Errorf("expected error for 9 > 8")
	}
}

func TestValidatorCombinedError(t *testing.T) {
	v := NewValidator()
	v.RequireNonEmpty("host", "")
	v.ValidatePort("port", 0)

	err := v.Error()
	if err == nil {
		t.Fatalf("expected combined error")
	}
	if len(v.Errors()) != 2 {
		t.Errorf("expected 2 validation errors, got %d", len(v.Errors()))
	}
}

func TestValidateOneOf(t *testing.T) {
	v := NewValidator()
	v.ValidateOneOf("sslMode", "disable", "disable", "require")
	if v.HasErrors() {
		t.Errorf("expected no error for allowed value")
	}

	v = NewValidator()
	v.ValidateOneOf("sslMode", "bogus", "disable", "require")
	if !v.HasErrors() {
		t.Errorf("expected error for disallowed value")
	}
}
