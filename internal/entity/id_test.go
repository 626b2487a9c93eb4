package entity

import (
	"errors"
	"testing"
)

func TestParseID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    ItemID
		wantErr bool
	}{
		{name: "item", input: "Q42", want: 42},
		{name: "property", input: "P31", want: 31},
		{name: "large", input: "Q123456789", want: 123456789},
		{name: "zero", input: "Q0", wantErr: true},
		{name: "empty", input: "", wantErr: true},
		{name: "prefix only", input: "Q", wantErr: true},
		{name: "not numeric", input: "Qabc", wantErr: true},
		{name: "negative", input: "Q-5", wantErr: true},
		{name: "lexeme form", input: "L1-F2", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseID(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidIdentifier) {
					t.Fatalf("ParseID(%q) error = %v, want ErrInvalidIdentifier", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseID(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Fatalf("ParseID(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}
