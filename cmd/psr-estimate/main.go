package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"

	"github.com/marinade-finance/psr-dashboard/internal/config"
	"github.com/marinade-finance/psr-dashboard/internal/dashboard"
	"github.com/marinade-finance/psr-dashboard/internal/datafetcher"
	"github.com/marinade-finance/psr-dashboard/internal/estimator"
	"github.com/marinade-finance/psr-dashboard/internal/logger"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run prints the estimated protected events of the running epoch as JSON.
// Logs go to stderr so stdout carries only the result.
func run(args []string, stdout io.Writer) error {
	_ = godotenv.Load()
	if err := config.LoadConfig(); err != nil {
		return err
	}

	flags := flag.NewFlagSet("psr-estimate", flag.ContinueOnError)
	verboseFlag := flags.Bool("verbose", false, "enable verbose (debug) logging")
	validatorsAPIFlag := flags.String("validators-api", config.ValidatorsAPI, "validators API base URL (or set VALIDATORS_API env var)")
	bondsAPIFlag := flags.String("bonds-api", config.BondsAPI, "validator bonds API base URL (or set BONDS_API env var)")
	epochsFlag := flags.Int("epochs", config.ValidatorEpochs, "number of past epochs of validator stats to request")
	timeoutFlag := flags.Duration("timeout", config.HTTPTimeout, "timeout of each upstream request")
	retriesFlag := flags.Int("retries", config.FetchMaxRetries, "attempts per upstream request")
	mergedFlag := flags.Bool("merged", false, "print the dashboard view: settled events merged with estimates")
	bondsFlag := flags.Bool("bonds", false, "print validators joined with their bonds instead of events")
	bondMultiplierFlag := flags.Int64("bond-stake-multiplier", config.BondStakeMultiplier, "lamports of stake protected per lamport of bond (with --bonds)")
	lastDryrunEpochFlag := flags.Uint64("last-dryrun-epoch", config.LastDryrunEpoch, "last epoch whose settlements were not paid out (with --merged)")
	prettyFlag := flags.Bool("pretty", false, "indent the JSON output")

	if err := flags.Parse(args); err != nil {
		return err
	}

	level := "warn"
	if *verboseFlag {
		level = "debug"
	}
	logger.InitializeWithWriter(level, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := datafetcher.NewClientWithConfig(datafetcher.ClientConfig{
		ValidatorsAPI: *validatorsAPIFlag,
		BondsAPI:      *bondsAPIFlag,
		Timeout:       *timeoutFlag,
		MaxRetries:    *retriesFlag,
		RetryDelay:    time.Second,
	})

	est, err := estimator.NewEstimator(estimator.Config{Rewards: client, Settlement: config.DefaultSettlementConfig})
	if err != nil {
		return err
	}

	var result any
	if *mergedFlag || *bondsFlag {
		cfg := dashboard.Config{
			Validators:      client,
			SettledEvents:   client,
			Estimator:       est,
			ValidatorEpochs: *epochsFlag,
			LastDryrunEpoch: *lastDryrunEpochFlag,
		}
		if *bondsFlag {
			cfg.Bonds = client
			cfg.BondStakeMultiplier = *bondMultiplierFlag
		}
		service, err := dashboard.New(cfg)
		if err != nil {
			return err
		}
		snapshot, err := service.Refresh(ctx)
		if err != nil {
			return err
		}
		if *bondsFlag {
			if snapshot.Bonds == nil {
				return errors.New("bonds feed unavailable")
			}
			result = snapshot.Bonds
		} else {
			result = snapshot.Events
		}
	} else {
		validators, err := client.FetchValidators(ctx, *epochsFlag)
		if err != nil {
			return err
		}
		events, err := est.Estimate(ctx, validators)
		if err != nil {
			return err
		}
		result = events
	}

	encoder := json.NewEncoder(stdout)
	if *prettyFlag {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(result)
}
