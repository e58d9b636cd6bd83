package types

import (
	"encoding/json"
	"testing"
)

func TestParseMoney(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		currency string
		want     Money
		wantErr  bool
	}{
		{"whole", "5000", "inr", INR(500000), false},
		{"two places", "5000.00", "INR", INR(500000), false},
		{"one place", "200.5", "inr", INR(20050), false},
		{"paise", "0.01", "inr", INR(1), false},
		{"padded", " 200.00 ", "inr", INR(20000), false},
		{"zero decimal currency", "100", "jpy", New(100, "jpy"), false},
		{"too precise", "10.001", "inr", Money{}, true},
		{"fraction on zero decimal currency", "1.5", "jpy", Money{}, true},
		{"largest", "92233720368547758.07", "inr", INR(9223372036854775807), false},
		{"overflow", "92233720368547758.08", "inr", Money{}, true},
		{"exponent overflow", "1e30", "inr", Money{}, true},
		{"negative overflow", "-1e30", "inr", Money{}, true},
		{"garbage", "ten", "inr", Money{}, true},
		{"empty", "", "inr", Money{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMoney(tt.input, tt.currency)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestMoneyArithmetic(t *testing.T) {
	rent := MustParseMoney("5000.00", "inr")
	fee := MustParseMoney("200.00", "inr")

	total := rent.Add(fee)
	if total.Amount != 520000 {
		t.Errorf("total = %d, want 520000", total.Amount)
	}
	if got := total.Subtract(fee); !got.Equal(rent) {
		t.Errorf("subtract = %v, want %v", got, rent)
	}
}

func TestMoneyNoFloatDrift(t *testing.T) {
	a := MustParseMoney("0.10", "inr")
	b := MustParseMoney("0.20", "inr")
	if got := a.Add(b).FormatMajor(); got != "0.30" {
		t.Errorf("0.10 + 0.20 = %s", got)
	}
}

func TestMoneyCurrencyMismatch(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic on currency mismatch")
		}
	}()
	INR(100).Add(New(100, "usd"))
}

func TestMoneyFormatting(t *testing.T) {
	tests := []struct {
		money   Money
		major   string
		display string
	}{
		{INR(520000), "5200.00", "₹5200.00"},
		{INR(5), "0.05", "₹0.05"},
		{INR(-20000), "-200.00", "₹-200.00"},
		{Zero("INR"), "0.00", "₹0.00"},
		{New(100, "jpy"), "100", "JPY 100"},
	}

	for _, tt := range tests {
		t.Run(tt.display, func(t *testing.T) {
			if got := tt.money.FormatMajor(); got != tt.major {
				t.Errorf("FormatMajor = %q, want %q", got, tt.major)
			}
			if got := tt.money.String(); got != tt.display {
				t.Errorf("String = %q, want %q", got, tt.display)
			}
		})
	}
}

func TestMoneyJSON(t *testing.T) {
	data, err := json.Marshal(INR(520000))
	if err != nil {
		t.Fatal(err)
	}

	var decoded struct {
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
		Display  string `json:"display"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Amount != 520000 || decoded.Currency != "inr" || decoded.Display != "₹5200.00" {
		t.Errorf("unexpected JSON: %s", data)
	}
}
