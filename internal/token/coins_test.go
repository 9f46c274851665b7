package token

import (
	"encoding/json"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/Klingon-tech/statetransfer/pkg/types"
)

func TestCoinData_LargeAmountJSON(t *testing.T) {
	// 2^53 + 1 is not representable as a float64.
	big53 := new(big.Int).Add(new(big.Int).Lsh(big.NewInt(1), 53), big.NewInt(1))
	huge, _ := new(big.Int).SetString("123456789012345678901234567890", 10)

	cd, err := NewCoinData(
		Coin{ID: types.CoinID{0x01}, Amount: big53},
		Coin{ID: types.CoinID{0x02}, Amount: huge},
	)
	if err != nil {
		t.Fatalf("NewCoinData() error: %v", err)
	}
	data, err := json.Marshal(cd)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(data), `"9007199254740993"`) {
		t.Errorf("amount should be a decimal string: %s", data)
	}

	var back CoinData
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !back.Equal(cd) {
		t.Errorf("round trip mismatch: %s", data)
	}
	if back.Total().Cmp(new(big.Int).Add(big53, huge)) != 0 {
		t.Error("total mismatch")
	}
}

func TestCoinData_NumericInput(t *testing.T) {
	id := types.CoinID{0x07}
	raw := `[["` + id.String() + `", 9007199254740993]]`

	var cd CoinData
	if err := json.Unmarshal([]byte(raw), &cd); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got := cd.Amount(id).String(); got != "9007199254740993" {
		t.Errorf("amount = %s, want 9007199254740993", got)
	}
}

func TestCoinData_Invalid(t *testing.T) {
	id := types.CoinID{0x01}.String()
	tests := []struct {
		name string
		raw  string
	}{
		{"negative", `[["` + id + `", "-1"]]`},
		{"fraction", `[["` + id + `", "1.5"]]`},
		{"duplicate", `[["` + id + `", "1"], ["` + id + `", "2"]]`},
		{"bad id", `[["zz", "1"]]`},
		{"not array", `{"a": 1}`},
		{"extra element", `[["` + id + `", "1", "smuggled"]]`},
		{"missing amount", `[["` + id + `"]]`},
		{"empty pair", `[[]]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cd CoinData
			if err := json.Unmarshal([]byte(tt.raw), &cd); !errors.Is(err, ErrInvalidCoins) {
				t.Errorf("Unmarshal() = %v, want ErrInvalidCoins", err)
			}
		})
	}

	if _, err := NewCoinData(Coin{ID: types.CoinID{1}, Amount: big.NewInt(-5)}); !errors.Is(err, ErrInvalidCoins) {
		t.Errorf("NewCoinData(negative) = %v, want ErrInvalidCoins", err)
	}
}

func TestCoinData_EncodeOrderIndependent(t *testing.T) {
	a := Coin{ID: types.CoinID{0x01}, Amount: big.NewInt(1)}
	b := Coin{ID: types.CoinID{0x02}, Amount: big.NewInt(2)}
	x, _ := NewCoinData(a, b)
	y, _ := NewCoinData(b, a)
	if string(x.encode()) != string(y.encode()) {
		t.Error("canonical encoding should not depend on coin order")
	}
}
