package datafetcher

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"cosmossdk.io/math"

	"github.com/marinade-finance/psr-dashboard/internal/utils"
)

// numericString holds a number the feeds send either quoted or bare. Null is empty.
type numericString string

func (n *numericString) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*n = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*n = numericString(strings.TrimSpace(s))
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("expected a number, got %s", data)
	}
	*n = numericString(num)
	return nil
}

// numberParser converts wire numbers and remembers the first failure, so a
// record can be parsed field by field and checked once.
type numberParser struct {
	err error
}

func (p *numberParser) fail(field string, value numericString, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("field %s=%q: %w", field, string(value), err)
	}
}

func (p *numberParser) uint64(field string, value numericString) uint64 {
	parsed, err := strconv.ParseUint(string(value), 10, 64)
	if err != nil {
		p.fail(field, value, err)
	}
	return parsed
}

func (p *numberParser) int64(field string, value numericString) int64 {
	if value == "" {
		return 0
	}
	parsed, err := utils.IntFromNumber(json.Number(value))
	if err != nil {
		p.fail(field, value, err)
		return 0
	}
	if !parsed.IsInt64() {
		p.fail(field, value, utils.ErrConversionFailed)
		return 0
	}
	return parsed.Int64()
}

func (p *numberParser) int(field string, value numericString) int {
	return int(p.int64(field, value))
}

func (p *numberParser) lamports(field string, value numericString) math.Int {
	parsed, err := utils.ParseLamports(string(value))
	if err != nil {
		p.fail(field, value, err)
		return math.ZeroInt()
	}
	return parsed
}

func (p *numberParser) dec(field string, value numericString) math.LegacyDec {
	parsed, err := utils.DecFromNumber(json.Number(value))
	if err != nil {
		p.fail(field, value, err)
		return math.LegacyZeroDec()
	}
	return parsed
}
