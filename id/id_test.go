package id_test

import (
	"strings"
	"testing"

	"github.com/xraph/rentledger/id"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		newFn  func() id.ID
		prefix string
	}{
		{"RentID", id.NewRentID, "rent_"},
		{"PaymentID", id.NewPaymentID, "pay_"},
		{"StudentID", id.NewStudentID, "stu_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.newFn().String()
			if !strings.HasPrefix(got, tt.prefix) {
				t.Errorf("expected prefix %q, got %q", tt.prefix, got)
			}
		})
	}
}

func TestParseRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		newFn   func() id.ID
		parseFn func(string) (id.ID, error)
	}{
		{"RentID", id.NewRentID, id.ParseRentID},
		{"PaymentID", id.NewPaymentID, id.ParsePaymentID},
		{"StudentID", id.NewStudentID, id.ParseStudentID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original := tt.newFn()
			parsed, err := tt.parseFn(original.String())
			if err != nil {
				t.Fatalf("parse failed: %v", err)
			}
			if parsed != original {
				t.Errorf("round-trip mismatch: %q != %q", parsed, original)
			}
		})
	}
}

func TestCrossTypeRejection(t *testing.T) {
	rentID := id.NewRentID().String()
	if _, err := id.ParsePaymentID(rentID); err == nil {
		t.Error("expected error parsing rent ID as payment ID")
	}
	if _, err := id.ParseStudentID(rentID); err == nil {
		t.Error("expected error parsing rent ID as student ID")
	}
}

func TestParseInvalid(t *testing.T) {
	for _, s := range []string{"", "not-an-id", "rent_!!!"} {
		if _, err := id.Parse(s); err == nil {
			t.Errorf("Parse(%q): expected error", s)
		}
	}
}

func TestNilID(t *testing.T) {
	var i id.ID
	if !i.IsNil() {
		t.Error("zero ID should be nil")
	}
	if i.String() != "" {
		t.Errorf("nil ID string = %q", i.String())
	}
	v, err := i.Value()
	if err != nil || v != nil {
		t.Errorf("nil ID Value() = %v, %v", v, err)
	}
}

func TestMarshalUnmarshalText(t *testing.T) {
	original := id.NewRentID()
	data, err := original.MarshalText()
	if err != nil {
		t.Fatal(err)
	}

	var decoded id.ID
	if err := decoded.UnmarshalText(data); err != nil {
		t.Fatal(err)
	}
	if decoded != original {
		t.Errorf("got %s, want %s", decoded, original)
	}

	var empty id.ID
	if err := empty.UnmarshalText(nil); err != nil || !empty.IsNil() {
		t.Errorf("empty text should decode to Nil, got %v (%v)", empty, err)
	}
}

func TestValueScan(t *testing.T) {
	original := id.NewPaymentID()
	v, err := original.Value()
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		src  any
		want id.ID
	}{
		{"string", v, original},
		{"bytes", []byte(original.String()), original},
		{"nil", nil, id.Nil},
		{"empty", "", id.Nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got id.ID
			if err := got.Scan(tt.src); err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}

	var bad id.ID
	if err := bad.Scan(42); err == nil {
		t.Error("expected error scanning int")
	}
}

func TestUniqueness(t *testing.T) {
	seen := make(map[string]bool, 1000)
	for range 1000 {
		s := id.NewRentID().String()
		if seen[s] {
			t.Fatalf("duplicate ID %s", s)
		}
		seen[s] = true
	}
}
