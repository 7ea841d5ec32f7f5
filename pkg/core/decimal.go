package core

import (
	"fmt"

	"github.com/cockroachdb/apd/v3"
)

// AmountScale is the number of fractional digits sent for order amounts.
const AmountScale = 4

// ParseDecimal parses a decimal literal exactly.
func ParseDecimal(s string) (apd.Decimal, error) {
	var d apd.Decimal
	if _, _, err := apd.BaseContext.SetString(&d, s); err != nil {
		return apd.Decimal{}, fmt.Errorf("parse decimal %q: %w", s, err)
	}
	return d, nil
}

// MustDecimal is ParseDecimal for literals known to be valid. It panics otherwise.
func MustDecimal(s string) apd.Decimal {
	d, err := ParseDecimal(s)
	if err != nil {
		panic(err)
	}
	return d
}

// FormatAmount renders d with AmountScale fractional digits, rounding half up.
func FormatAmount(d *apd.Decimal) (string, error) {
	return quantize(d, -AmountScale, apd.RoundHalfUp)
}

// FormatInteger renders d with its fractional part truncated.
func FormatInteger(d *apd.Decimal) (string, error) {
	return quantize(d, 0, apd.RoundDown)
}

// FormatPlain renders d without exponent notation.
func FormatPlain(d *apd.Decimal) string {
	return d.Text('f')
}

func quantize(d *apd.Decimal, exp int32, rounding apd.Rounder) (string, error) {
	if d.Form != apd.Finite {
		return "", fmt.Errorf("non-finite decimal %s", d.String())
	}
	ctx := apd.BaseContext.WithPrecision(34)
	ctx.Rounding = rounding
	var out apd.Decimal
	if _, err := ctx.Quantize(&out, d, exp); err != nil {
		return "", fmt.Errorf("quantize %s: %w", d.String(), err)
	}
	return out.Text('f'), nil
}

// AddDecimal returns x + y exactly.
func AddDecimal(x, y apd.Decimal) (apd.Decimal, error) {
	var sum apd.Decimal
	if _, err := apd.BaseContext.Add(&sum, &x, &y); err != nil {
		return apd.Decimal{}, fmt.Errorf("add %s + %s: %w", x.String(), y.String(), err)
	}
	return sum, nil
}
