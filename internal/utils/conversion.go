/*
This file contains common utility functions for converting between the wire
formats of the upstream APIs and the fixed point types used by the estimator.
*/

package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	sdkmath "cosmossdk.io/math"
)

const (
	// LamportsPrecision is the number of decimals between lamports and SOL.
	LamportsPrecision = 9
	// BpsDenominator is the number of basis points in a whole.
	BpsDenominator = 10000
)

var (
	ErrAmountInvalid    = errors.New("amount is not a valid decimal")
	ErrAmountNegative   = errors.New("amount is negative")
	ErrNotFinite        = errors.New("value is not finite")
	ErrConversionFailed = errors.New("conversion failed")
)

var half = sdkmath.LegacyNewDecWithPrec(5, 1)

// ParseLamports parses a decimal string of lamports. Empty strings are zero.
func ParseLamports(s string) (sdkmath.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return sdkmath.ZeroInt(), nil
	}
	amount, ok := sdkmath.NewIntFromString(s)
	if !ok {
		// Some feeds serialise lamports with a fractional part; round like the dashboard does.
		dec, err := sdkmath.LegacyNewDecFromStr(s)
		if err != nil {
			return sdkmath.ZeroInt(), fmt.Errorf("%w: %q", ErrAmountInvalid, s)
		}
		amount = RoundHalfUp(dec)
	}
	if amount.IsNegative() {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %s", ErrAmountNegative, s)
	}
	return amount, nil
}

// LamportsToSol converts lamports to SOL without loss of precision.
func LamportsToSol(lamports sdkmath.Int) sdkmath.LegacyDec {
	return sdkmath.LegacyNewDecFromIntWithPrec(lamports, LamportsPrecision)
}

// DecFromNumber converts a JSON number into a fixed point decimal.
// Exponent notation is accepted and rounded to 18 decimals.
func DecFromNumber(n json.Number) (sdkmath.LegacyDec, error) {
	s := strings.TrimSpace(n.String())
	if s == "" {
		return sdkmath.LegacyZeroDec(), nil
	}
	if dec, err := sdkmath.LegacyNewDecFromStr(s); err == nil {
		return dec, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return sdkmath.LegacyDec{}, fmt.Errorf("%w: %q", ErrAmountInvalid, s)
	}
	return Float64ToDec(f)
}

// IntFromNumber converts a JSON number into an integer, rounding half up.
func IntFromNumber(n json.Number) (sdkmath.Int, error) {
	s := strings.TrimSpace(n.String())
	if amount, ok := sdkmath.NewIntFromString(s); ok {
		return amount, nil
	}
	dec, err := DecFromNumber(n)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return RoundHalfUp(dec), nil
}

// Float64ToDec converts a float64 into a decimal with 18 digits of precision.
func Float64ToDec(f float64) (sdkmath.LegacyDec, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return sdkmath.LegacyDec{}, fmt.Errorf("%w: %f", ErrNotFinite, f)
	}
	dec, err := sdkmath.LegacyNewDecFromStr(strconv.FormatFloat(f, 'f', sdkmath.LegacyPrecision, 64))
	if err != nil {
		return sdkmath.LegacyDec{}, fmt.Errorf("%w: %w", ErrConversionFailed, err)
	}
	return dec, nil
}

// DecToFloat64 is used for metrics and logging only.
func DecToFloat64(d sdkmath.LegacyDec) float64 {
	if d.IsNil() {
		return 0
	}
	f, err := d.Float64()
	if err != nil {
		return math.NaN()
	}
	return f
}

// RoundHalfUp rounds to the nearest integer, ties towards positive infinity.
func RoundHalfUp(d sdkmath.LegacyDec) sdkmath.Int {
	shifted := d.Add(half)
	floor := shifted.TruncateDec()
	if shifted.IsNegative() && !floor.Equal(shifted) {
		floor = floor.Sub(sdkmath.LegacyOneDec())
	}
	return floor.TruncateInt()
}

// BpsToFraction turns basis points into a fraction of one.
func BpsToFraction(bps int64) sdkmath.LegacyDec {
	return sdkmath.LegacyNewDec(bps).QuoInt64(BpsDenominator)
}
