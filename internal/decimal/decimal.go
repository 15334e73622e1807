// Package decimal provides the exact arithmetic used when indexing parameter
// values. Growth-factor math runs on base-10 decimals so that repeated
// advancement never accumulates binary floating-point drift; results are
// rounded to cents, half up.
package decimal

import "github.com/cockroachdb/apd/v3"

const precision = 34

// Advance applies a growth rate to v: v * (1 + rate), rounded to cents.
func Advance(v, rate float64) float64 {
	var val, r, one, factor, out apd.Decimal
	if _, err := val.SetFloat64(v); err != nil {
		return v
	}
	if _, err := r.SetFloat64(rate); err != nil {
		return v
	}
	one.SetInt64(1)

	ctx := apd.BaseContext.WithPrecision(precision)
	if _, err := ctx.Add(&factor, &one, &r); err != nil {
		return v
	}
	if _, err := ctx.Mul(&out, &val, &factor); err != nil {
		return v
	}
	return roundCents(ctx, &out)
}

// Sub returns a - b computed in decimal, so deltas between indexed values
// stay free of binary representation error.
func Sub(a, b float64) float64 {
	var x, y, out apd.Decimal
	if _, err := x.SetFloat64(a); err != nil {
		return a - b
	}
	if _, err := y.SetFloat64(b); err != nil {
		return a - b
	}
	ctx := apd.BaseContext.WithPrecision(precision)
	if _, err := ctx.Sub(&out, &x, &y); err != nil {
		return a - b
	}
	f, err := out.Float64()
	if err != nil {
		return a - b
	}
	return f
}

// Round2 rounds v to two decimal places, half up.
func Round2(v float64) float64 {
	var d apd.Decimal
	if _, err := d.SetFloat64(v); err != nil {
		return v
	}
	return roundCents(apd.BaseContext.WithPrecision(precision), &d)
}

// roundCents quantizes to exponent -2. Values too large to quantize within
// the context precision (sentinels like 9e99) pass through unrounded.
func roundCents(ctx *apd.Context, d *apd.Decimal) float64 {
	rctx := *ctx
	rctx.Rounding = apd.RoundHalfUp

	var q apd.Decimal
	if _, err := rctx.Quantize(&q, d, -2); err != nil {
		f, ferr := d.Float64()
		if ferr != nil {
			return 0
		}
		return f
	}
	f, err := q.Float64()
	if err != nil {
		return 0
	}
	return f
}
