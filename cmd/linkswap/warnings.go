package main

import (
	"log"

	"github.com/djlord-it/linkswap/internal/config"
)

// logConfigWarnings logs operational warnings for risky configuration
// combinations. It never blocks startup.
func logConfigWarnings(cfg *config.Config) {
	if cfg.CircuitBreakerThreshold == 0 {
		log.Println("linkswap: WARNING [P1]: CIRCUIT_BREAKER_THRESHOLD=0; every request hits the store while it is down")
	}

	if !cfg.MetricsEnabled {
		log.Println("linkswap: WARNING [P1]: METRICS_ENABLED=false; decision and store error rates are not observable")
	}

	if cfg.InterstitialRatio < 1 {
		log.Printf("linkswap: WARNING [P1]: INTERSTITIAL_RATIO=%g is below 1; balanced pairs will be interrupted", cfg.InterstitialRatio)
	}

	switch cfg.StoreBackend {
	case config.BackendSQLite:
		log.Println("linkswap: INFO: STORE_BACKEND=sqlite serializes writes; run a single instance against one file")
	case config.BackendRedis:
		log.Println("linkswap: INFO: STORE_BACKEND=redis keeps counters only as durably as the server's persistence settings")
	}

	if !cfg.StatsEnabled() {
		log.Println("linkswap: INFO: STATS_SCHEDULE=off; pair totals gauges will not be updated")
	}
}
