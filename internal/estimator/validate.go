package estimator

import (
	"errors"
	"fmt"

	"cosmossdk.io/math"

	"github.com/marinade-finance/psr-dashboard/internal/types"
	"github.com/marinade-finance/psr-dashboard/internal/utils"
)

var ErrInvalidSettlementConfig = errors.New("invalid settlement config")

// ValidateSettlementConfig checks every band and makes sure bands of the same
// detector kind neither overlap nor share a funder, so a loss is never paid twice
// and a funder gets at most one event per validator-epoch and kind.
func ValidateSettlementConfig(cfg types.SettlementConfig) error {
	var errs []error

	lowCreditsRanges := make([]types.BpsRange, 0, len(cfg.LowCredits))
	lowCreditsFunders := make([]types.SettlementFunder, 0, len(cfg.LowCredits))
	for i, band := range cfg.LowCredits {
		if band.GraceLowCreditsBps < 0 {
			errs = append(errs, fmt.Errorf("low credits band %d: grace must not be negative, got %d", i, band.GraceLowCreditsBps))
		}
		errs = append(errs, validateBand(fmt.Sprintf("low credits band %d", i), band.Meta, band.MinSettlementLamports, band.CoveredRangeBps)...)
		lowCreditsRanges = append(lowCreditsRanges, band.CoveredRangeBps)
		lowCreditsFunders = append(lowCreditsFunders, band.Meta.Funder)
	}
	errs = append(errs, validateNoOverlap("low credits", lowCreditsRanges)...)
	errs = append(errs, validateDistinctFunders("low credits", lowCreditsFunders)...)

	commissionRanges := make([]types.BpsRange, 0, len(cfg.CommissionIncrease))
	commissionFunders := make([]types.SettlementFunder, 0, len(cfg.CommissionIncrease))
	for i, band := range cfg.CommissionIncrease {
		if band.GraceCommissionIncrease < 0 {
			errs = append(errs, fmt.Errorf("commission increase band %d: grace must not be negative, got %d", i, band.GraceCommissionIncrease))
		}
		errs = append(errs, validateBand(fmt.Sprintf("commission increase band %d", i), band.Meta, band.MinSettlementLamports, band.CoveredRangeBps)...)
		commissionRanges = append(commissionRanges, band.CoveredRangeBps)
		commissionFunders = append(commissionFunders, band.Meta.Funder)
	}
	errs = append(errs, validateNoOverlap("commission increase", commissionRanges)...)
	errs = append(errs, validateDistinctFunders("commission increase", commissionFunders)...)

	if len(errs) > 0 {
		return errors.Join(append([]error{ErrInvalidSettlementConfig}, errs...)...)
	}
	return nil
}

func validateBand(name string, meta types.SettlementMeta, minSettlementLamports math.Int, coveredRangeBps types.BpsRange) []error {
	var errs []error
	if !meta.Funder.Valid() {
		errs = append(errs, fmt.Errorf("%s: unknown funder %q", name, meta.Funder))
	}
	if minSettlementLamports.IsNil() || minSettlementLamports.IsNegative() {
		errs = append(errs, fmt.Errorf("%s: minimum settlement must be set and not negative", name))
	}
	if coveredRangeBps.Lower < 0 || coveredRangeBps.Upper > utils.BpsDenominator || coveredRangeBps.Lower > coveredRangeBps.Upper {
		errs = append(errs, fmt.Errorf("%s: covered range %s must satisfy 0 <= lower <= upper <= %d", name, coveredRangeBps, utils.BpsDenominator))
	}
	return errs
}

func validateNoOverlap(kind string, ranges []types.BpsRange) []error {
	var errs []error
	for i := range ranges {
		for j := i + 1; j < len(ranges); j++ {
			if ranges[i].Overlaps(ranges[j]) {
				errs = append(errs, fmt.Errorf("%s bands %d %s and %d %s overlap", kind, i, ranges[i], j, ranges[j]))
			}
		}
	}
	return errs
}

func validateDistinctFunders(kind string, funders []types.SettlementFunder) []error {
	var errs []error
	firstBand := make(map[types.SettlementFunder]int, len(funders))
	for i, funder := range funders {
		if first, exists := firstBand[funder]; exists {
			errs = append(errs, fmt.Errorf("%s bands %d and %d share funder %q", kind, first, i, funder))
			continue
		}
		firstBand[funder] = i
	}
	return errs
}
