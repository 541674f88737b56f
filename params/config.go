// Package params loads the kernel's scalar configuration: registry
// margin/liquidation/oracle knobs plus the service-level addresses and
// paths, read from environment variables (optionally via a .env file)
// with compiled-in defaults.
package params

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/percmarket/percolator/pkg/fixedpoint"
	"github.com/percmarket/percolator/pkg/kernel/crisis"
	"github.com/percmarket/percolator/pkg/kernel/executor"
	"github.com/percmarket/percolator/pkg/kernel/liquidation"
	"github.com/percmarket/percolator/pkg/kernel/portfolio"
	"github.com/percmarket/percolator/pkg/kernel/registry"
)

// Service carries the process-level knobs that sit outside the
// Registry's own on-chain-style configuration: where to listen, where
// to persist state, and where to log.
type Service struct {
	ListenAddr string
	DataDir    string
	LogPath    string
}

// Config is the full set of knobs a deployment needs to construct a
// registry.Kernel and its surrounding service.
type Config struct {
	Margin      portfolio.Params
	Liquidation liquidation.Params
	Executor    executor.Params
	Registry    registry.Params
	Materialize crisis.MaterializeParams
	Service     Service
}

// Default returns the compiled-in configuration, matching the
// magnitudes named in the registry's on-disk layout (imr/mmr/liq bands
// in bps, oracle tolerance in bps, staleness in seconds).
func Default() Config {
	return Config{
		Margin: portfolio.Params{
			IMRBps: 500,  // 5%
			MMRBps: 250,  // 2.5%
		},
		Liquidation: liquidation.Params{
			PreliqBuffer:     fixedpoint.NewI128FromInt64(1_000_000), // 1.0 in Fixed units
			PreliqBandBps:    50,
			LiqBandBps:       200,
			OracleTolBps:     100,
			RouterCapPerSlab: fixedpoint.Fixed(100_000 * fixedpoint.Scale),
			CooldownSeconds:  30,
		},
		Executor: executor.Params{
			MaxOracleStalenessSecs: 30,
			FeeBps:                 10,
		},
		Registry: registry.Params{
			MinRentExempt: fixedpoint.NewI128FromInt64(0),
		},
		Materialize: crisis.DefaultMaterializeParams(0),
		Service: Service{
			ListenAddr: ":8080",
			DataDir:    "./data",
			LogPath:    "./logs/percolator.log",
		},
	}
}

// LoadFromEnv loads a .env file (if present) and overrides Default()
// with any matching environment variables. Priority: process env > .env
// file > compiled-in defaults.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	if v := os.Getenv("IMR_BPS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Margin.IMRBps = n
		}
	}
	if v := os.Getenv("MMR_BPS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Margin.MMRBps = n
		}
	}
	if v := os.Getenv("LIQ_BAND_BPS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Liquidation.LiqBandBps = n
		}
	}
	if v := os.Getenv("PRELIQ_BAND_BPS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Liquidation.PreliqBandBps = n
		}
	}
	if v := os.Getenv("PRELIQ_BUFFER"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Liquidation.PreliqBuffer = fixedpoint.NewI128FromInt64(n)
		}
	}
	if v := os.Getenv("ROUTER_CAP_PER_SLAB"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Liquidation.RouterCapPerSlab = fixedpoint.Fixed(n)
		}
	}
	if v := os.Getenv("ORACLE_TOL_BPS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Liquidation.OracleTolBps = n
		}
	}
	if v := os.Getenv("MAX_ORACLE_STALENESS_SECS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Executor.MaxOracleStalenessSecs = n
		}
	}
	if v := os.Getenv("LIQUIDATION_COOLDOWN_SECS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Liquidation.CooldownSeconds = n
		}
	}
	if v := os.Getenv("FEE_BPS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Executor.FeeBps = n
		}
	}
	if v := os.Getenv("MIN_RENT_EXEMPT"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Registry.MinRentExempt = fixedpoint.NewI128FromInt64(n)
		}
	}
	if v := os.Getenv("VESTING_TAU_SLOTS"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Materialize.TauSlots = n
		}
	}
	if v := os.Getenv("VESTING_BURN_PRINCIPAL_FIRST"); v != "" {
		cfg.Materialize.BurnPrincipalFirst = v == "true"
	}
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		cfg.Service.ListenAddr = v
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Service.DataDir = v
	}
	if v := os.Getenv("LOG_PATH"); v != "" {
		cfg.Service.LogPath = v
	}

	return cfg
}
