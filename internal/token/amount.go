package token

import (
	"math/big"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"pollkeeper/internal/apperr"
)

// Plain positional decimals only: no sign, no exponent, no separators.
var amountPattern = regexp.MustCompile(`^(\d+(\.\d*)?|\.\d+)$`)

// ParseUnits converts a user-entered decimal string into the token's
// smallest-unit integer. Input with more fractional digits than decimals is
// rejected rather than truncated.
func ParseUnits(s string, decimals uint8) (*big.Int, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return nil, apperr.New(apperr.KindInvalidAmount, "parse_units", "empty amount")
	}
	if !amountPattern.MatchString(raw) {
		return nil, apperr.New(apperr.KindInvalidAmount, "parse_units", "not a non-negative decimal: "+raw)
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInvalidAmount, "parse_units", err)
	}
	shifted := d.Shift(int32(decimals))
	if !shifted.IsInteger() {
		return nil, apperr.New(apperr.KindInvalidAmount, "parse_units", "precision exceeds token decimals: "+raw)
	}
	return shifted.BigInt(), nil
}

// FormatUnits renders a smallest-unit integer as a decimal string with
// trailing fractional zeros trimmed. ParseUnits(FormatUnits(x, d), d) == x.
func FormatUnits(units *big.Int, decimals uint8) string {
	if units == nil {
		return "0"
	}
	return decimal.NewFromBigInt(units, -int32(decimals)).String()
}

// Amount is a smallest-unit integer tagged with the precision it is expressed in.
type Amount struct {
	Units    *big.Int
	Decimals uint8
}

func NewAmount(units *big.Int, decimals uint8) Amount {
	if units == nil {
		units = new(big.Int)
	}
	return Amount{Units: new(big.Int).Set(units), Decimals: decimals}
}

// ParseAmount is ParseUnits returning an Amount.
func ParseAmount(s string, decimals uint8) (Amount, error) {
	units, err := ParseUnits(s, decimals)
	if err != nil {
		return Amount{}, err
	}
	return Amount{Units: units, Decimals: decimals}, nil
}

// Rebase re-expresses the amount at another precision. Scaling down reports
// exact=false when non-zero digits would be dropped; the returned value is
// then floored.
func (a Amount) Rebase(decimals uint8) (out Amount, exact bool) {
	units := a.units()
	switch {
	case decimals == a.Decimals:
		return Amount{Units: new(big.Int).Set(units), Decimals: decimals}, true
	case decimals > a.Decimals:
		scale := pow10(decimals - a.Decimals)
		return Amount{Units: new(big.Int).Mul(units, scale), Decimals: decimals}, true
	default:
		scale := pow10(a.Decimals - decimals)
		q, r := new(big.Int).QuoRem(units, scale, new(big.Int))
		return Amount{Units: q, Decimals: decimals}, r.Sign() == 0
	}
}

// Cmp compares two amounts after rebasing both to the finer precision.
func (a Amount) Cmp(b Amount) int {
	d := a.Decimals
	if b.Decimals > d {
		d = b.Decimals
	}
	ra, _ := a.Rebase(d)
	rb, _ := b.Rebase(d)
	return ra.Units.Cmp(rb.Units)
}

func (a Amount) Sign() int { return a.units().Sign() }

func (a Amount) Sub(b Amount) Amount {
	d := a.Decimals
	if b.Decimals > d {
		d = b.Decimals
	}
	ra, _ := a.Rebase(d)
	rb, _ := b.Rebase(d)
	return Amount{Units: ra.Units.Sub(ra.Units, rb.Units), Decimals: d}
}

func (a Amount) String() string {
	return FormatUnits(a.units(), a.Decimals)
}

func (a Amount) units() *big.Int {
	if a.Units == nil {
		return new(big.Int)
	}
	return a.Units
}

func pow10(n uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}
