package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kartoza/labcalc/internal/cli"
	"github.com/kartoza/labcalc/internal/config"
	"github.com/kartoza/labcalc/internal/logger"
	"github.com/kartoza/labcalc/internal/server"
)

var version = "dev"

var (
	cfgFile string
	verbose bool
	port    int
	cfg     = config.Default()
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "labcalc",
		Short: "Laboratory error propagation, curve fitting and statistics",
		Long: `labcalc serves the laboratory calculator API and runs its engines locally.

Examples:
  # Serve the API (default command)
  labcalc --port 8000

  # Propagate uncertainties
  labcalc calc division --x 10 --dx 1 --y 2 --dy 0.1

  # Fit a line with uncertainties on both axes
  labcalc fit --file spring.json

  # Mean and standard error of repeated measurements
  labcalc gauss 9.78 9.81 9.83 9.80 9.79
`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			loaded.Version = version
			if cmd.Flags().Changed("port") {
				loaded.Port = port
			}
			cfg = loaded
			logger.SetVerbose(verbose)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().IntVarP(&port, "port", "p", cfg.Port, "HTTP server port")
	rootCmd.SetVersionTemplate("labcalc v{{.Version}}\n")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	})
	rootCmd.AddCommand(cli.NewCalcCmd(&cfg))
	rootCmd.AddCommand(cli.NewFitCmd(&cfg))
	rootCmd.AddCommand(cli.NewGaussCmd())
	rootCmd.AddCommand(cli.NewOpsCmd())
	rootCmd.AddCommand(cli.NewReplCmd())

	rootCmd.CompletionOptions.DisableDefaultCmd = true

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func serve() error {
	// Find an available port (try up to 10 ports starting from the requested one)
	availablePort, err := findAvailablePort(cfg.Port, 10)
	if err != nil {
		return fmt.Errorf("failed to find available port: %w", err)
	}
	if availablePort != cfg.Port {
		logger.Warnf("port %d in use, using port %d instead", cfg.Port, availablePort)
	}
	cfg.Port = availablePort

	logger.Infof("labcalc v%s starting on port %d", cfg.Version, cfg.Port)

	srv, err := server.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	// Graceful shutdown on SIGINT/SIGTERM
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	waitForServer(fmt.Sprintf("localhost:%d", cfg.Port), 10*time.Second)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-stop:
		logger.Infof("received %v signal, shutting down...", sig)
		if err := srv.Stop(); err != nil {
			return fmt.Errorf("error during shutdown: %w", err)
		}
	}
	return nil
}

// waitForServer polls until the server is accepting connections
func waitForServer(addr string, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, 500*time.Millisecond)
		if err == nil {
			conn.Close()
			logger.Debugf("server ready at %s", addr)
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
	logger.Warnf("server may not be ready at %s", addr)
}

// findAvailablePort finds an available port, starting from the given port.
// If the port is in use, it tries subsequent ports up to maxAttempts times.
func findAvailablePort(startPort int, maxAttempts int) (int, error) {
	for i := 0; i < maxAttempts; i++ {
		port := startPort + i
		addr := fmt.Sprintf(":%d", port)
		listener, err := net.Listen("tcp", addr)
		if err == nil {
			listener.Close()
			return port, nil
		}
	}
	return 0, fmt.Errorf("no available port found after %d attempts starting from %d", maxAttempts, startPort)
}
