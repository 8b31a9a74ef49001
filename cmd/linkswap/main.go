package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Build-time variables set via -ldflags
var (
	version = "dev"
	commit  = "unknown"
)

const (
	exitSuccess       = 0
	exitRuntimeError  = 1
	exitInvalidConfig = 2
)

// exitError carries the process exit code out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func runtimeError(format string, args ...any) error {
	return &exitError{code: exitRuntimeError, err: fmt.Errorf(format, args...)}
}

func configError(err error) error {
	return &exitError{code: exitInvalidConfig, err: err}
}

func main() {
	os.Exit(execute(os.Args[1:]))
}

func execute(args []string) int {
	cmd := newRootCmd()
	cmd.SetArgs(args)

	err := cmd.Execute()
	if err == nil {
		return exitSuccess
	}

	fmt.Fprintf(os.Stderr, "%v\n", err)
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return exitRuntimeError
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "linkswap",
		Short: "linkswap - reciprocal link exchange redirector",
		Long: `linkswap redirects visitors between partner sites and shows a
"please go back" page when one site sends far more traffic than it receives.

Configuration is read from the environment. Run "linkswap config" to see the
effective values.

Environment Variables:
  STORE_BACKEND             postgres, sqlite or redis (default: "postgres")
  DATABASE_URL              PostgreSQL connection string (postgres backend)
  SQLITE_PATH               SQLite database file (default: "linkswap.db")
  REDIS_ADDR                Redis address (redis backend)
  REDIS_PASSWORD            Redis password (optional)
  REDIS_PREFIX              Redis key prefix (default: "linkswap")
  HTTP_ADDR                 HTTP server address (default: ":8080", or ":$PORT")

  DB_OP_TIMEOUT             Store operation timeout (default: "5s")
  DB_MAX_OPEN_CONNS         Max open connections (default: "25")
  DB_MAX_IDLE_CONNS         Max idle connections (default: "5")
  DB_CONN_MAX_LIFETIME      Max connection lifetime (default: "30m")
  DB_CONN_MAX_IDLE_TIME     Max connection idle time (default: "5m")
  HTTP_SHUTDOWN_TIMEOUT     Graceful HTTP shutdown timeout (default: "10s")

  METRICS_ENABLED           Enable Prometheus metrics (default: "false")
  METRICS_PATH              Metrics endpoint path (default: "/metrics")
  METRICS_PORT              Metrics server port (default: "9090")

  INTERSTITIAL_RATIO        Forward/reverse ratio that interrupts a link (default: "1.2")
  INTERSTITIAL_MINIMUM      Forward count that must also be exceeded (default: "5")
  CIRCUIT_BREAKER_THRESHOLD Consecutive store failures before failing fast, 0 disables (default: "5")
  CIRCUIT_BREAKER_COOLDOWN  Time before probing the store again (default: "30s")
  STATS_SCHEDULE            Cron expression for the totals gauges, "off" disables (default: "*/5 * * * *")
  OTEL_ENDPOINT             OTLP/HTTP trace collector URL (optional)`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		serveCmd(),
		migrateCmd(),
		statsCmd(),
		validateCmd(),
		configCmd(),
		versionCmd(),
	)
	return root
}
