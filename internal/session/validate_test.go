package session

import (
	"errors"
	"testing"
)

func TestValidateName(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{"main", false},
		{"work-2", false},
		{"a_b", false},
		{"", true},
		{"UPPER", true},
		{"has space", true},
		{"../escape", true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			err := ValidateName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			var invalid *InvalidNameError
			if err != nil && !errors.As(err, &invalid) {
				t.Errorf("error type = %T, want *InvalidNameError", err)
			}
		})
	}
}
