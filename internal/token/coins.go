package token

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strconv"

	"github.com/Klingon-tech/statetransfer/pkg/types"
)

// ErrInvalidCoins is returned for malformed coin data.
var ErrInvalidCoins = errors.New("invalid coin data")

// Coin is an arbitrary-precision amount of one coin kind.
type Coin struct {
	ID     types.CoinID
	Amount *big.Int
}

// CoinData is the fungible value carried by a token, fixed at mint.
type CoinData struct {
	Coins []Coin
}

// NewCoinData builds coin data, rejecting negative amounts and duplicate ids.
func NewCoinData(coins ...Coin) (*CoinData, error) {
	cd := &CoinData{Coins: make([]Coin, 0, len(coins))}
	for _, c := range coins {
		cd.Coins = append(cd.Coins, Coin{ID: c.ID, Amount: new(big.Int).Set(amountOrZero(c.Amount))})
	}
	if err := cd.Validate(); err != nil {
		return nil, err
	}
	return cd, nil
}

// Validate checks amounts and id uniqueness.
func (cd *CoinData) Validate() error {
	seen := make(map[types.CoinID]struct{}, len(cd.Coins))
	for _, c := range cd.Coins {
		if c.Amount == nil || c.Amount.Sign() < 0 {
			return fmt.Errorf("%w: coin %s has negative or missing amount", ErrInvalidCoins, c.ID)
		}
		if _, dup := seen[c.ID]; dup {
			return fmt.Errorf("%w: duplicate coin %s", ErrInvalidCoins, c.ID)
		}
		seen[c.ID] = struct{}{}
	}
	return nil
}

// Total sums all coin amounts.
func (cd *CoinData) Total() *big.Int {
	total := new(big.Int)
	if cd == nil {
		return total
	}
	for _, c := range cd.Coins {
		total.Add(total, amountOrZero(c.Amount))
	}
	return total
}

// Amount returns the amount of one coin, or zero.
func (cd *CoinData) Amount(id types.CoinID) *big.Int {
	if cd != nil {
		for _, c := range cd.Coins {
			if c.ID == id {
				return new(big.Int).Set(amountOrZero(c.Amount))
			}
		}
	}
	return new(big.Int)
}

// Equal compares ids and amounts in order.
func (cd *CoinData) Equal(o *CoinData) bool {
	if cd == nil || o == nil {
		return cd == o
	}
	if len(cd.Coins) != len(o.Coins) {
		return false
	}
	for i := range cd.Coins {
		if cd.Coins[i].ID != o.Coins[i].ID || amountOrZero(cd.Coins[i].Amount).Cmp(amountOrZero(o.Coins[i].Amount)) != 0 {
			return false
		}
	}
	return true
}

// encode returns the canonical bytes of the coin set, sorted by coin id.
func (cd *CoinData) encode() []byte {
	sorted := append([]Coin(nil), cd.Coins...)
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i].ID[:], sorted[j].ID[:]) < 0
	})
	buf := binary.LittleEndian.AppendUint32(nil, uint32(len(sorted)))
	for _, c := range sorted {
		buf = append(buf, c.ID[:]...)
		buf = appendField(buf, amountOrZero(c.Amount).Bytes())
	}
	return buf
}

// MarshalJSON encodes [[coinIdHex, "decimalAmount"], ...].
// Amounts are strings so no precision is lost in transit.
func (cd *CoinData) MarshalJSON() ([]byte, error) {
	pairs := make([][2]string, len(cd.Coins))
	for i, c := range cd.Coins {
		pairs[i] = [2]string{c.ID.String(), amountOrZero(c.Amount).String()}
	}
	return json.Marshal(pairs)
}

// UnmarshalJSON accepts amounts as decimal strings or bare JSON integers.
func (cd *CoinData) UnmarshalJSON(data []byte) error {
	var pairs [][]json.RawMessage
	if err := json.Unmarshal(data, &pairs); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCoins, err)
	}
	coins := make([]Coin, len(pairs))
	for i, p := range pairs {
		if len(p) != 2 {
			return fmt.Errorf("%w: coin %d has %d elements, want [id, amount]", ErrInvalidCoins, i, len(p))
		}
		var idHex string
		if err := json.Unmarshal(p[0], &idHex); err != nil {
			return fmt.Errorf("%w: coin %d id: %v", ErrInvalidCoins, i, err)
		}
		var id types.CoinID
		if err := id.UnmarshalText([]byte(idHex)); err != nil {
			return fmt.Errorf("%w: coin %d: %v", ErrInvalidCoins, i, err)
		}
		amount, err := parseAmount(p[1])
		if err != nil {
			return fmt.Errorf("%w: coin %d amount: %v", ErrInvalidCoins, i, err)
		}
		coins[i] = Coin{ID: id, Amount: amount}
	}
	decoded := CoinData{Coins: coins}
	if err := decoded.Validate(); err != nil {
		return err
	}
	*cd = decoded
	return nil
}

// parseAmount reads a quoted or bare base-10 integer without going through float64.
func parseAmount(raw json.RawMessage) (*big.Int, error) {
	s := string(bytes.TrimSpace(raw))
	if len(s) > 0 && s[0] == '"' {
		unquoted, err := strconv.Unquote(s)
		if err != nil {
			return nil, err
		}
		s = unquoted
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("not a base-10 integer: %q", s)
	}
	return v, nil
}

func amountOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
