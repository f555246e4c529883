package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	readout "github.com/next-exp/muonbar_go/pkg"
	"github.com/next-exp/muonbar_go/pkg/archive"
)

var (
	logger     = NewLogger()
	configFile string
	traceFile  string
	runNumber  int
	numWorkers int
	outputFile string
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "muonbar",
		Short:        "Per-event readout and bookkeeping of muon bar transport traces",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "Configuration file path (.json or .yaml)")

	replay := &cobra.Command{
		Use:   "replay",
		Short: "Replay a transport trace and append the run to the output files",
		RunE:  runReplay,
	}
	replay.Flags().StringVar(&traceFile, "trace", "", "Trace file, overrides file_in")
	replay.Flags().IntVar(&runNumber, "run", 0, "Run number, overrides run_number")
	replay.Flags().IntVar(&numWorkers, "workers", 0, "Number of lanes, overrides num_workers")

	config := &cobra.Command{
		Use:   "config",
		Short: "Print and validate the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			configuration, err := loadConfiguration(cmd)
			if err != nil {
				return err
			}
			printConfiguration(configuration, logger)
			if err := configuration.Validate(); err != nil {
				return err
			}
			if outputFile != "" {
				if err := readout.SaveConfiguration(outputFile, configuration); err != nil {
					logger.Error(err.Error())
					return err
				}
				logger.Info(fmt.Sprintf("Configuration written to %s", outputFile), "main")
			}
			return nil
		},
	}
	config.Flags().StringVar(&outputFile, "output", "", "Write the effective configuration to this file (.json or .yaml)")

	root.AddCommand(replay, config)
	return root
}

func loadConfiguration(cmd *cobra.Command) (readout.Configuration, error) {
	configuration := readout.DefaultConfiguration()
	if configFile != "" {
		var err error
		configuration, err = readout.LoadConfiguration(configFile)
		if err != nil {
			message := fmt.Errorf("Error reading configuration file: %w", err)
			logger.Error(message.Error())
			return configuration, message
		}
	}
	if cmd.Flags().Changed("trace") {
		configuration.FileIn = traceFile
	}
	if cmd.Flags().Changed("run") {
		configuration.RunNumber = runNumber
	}
	if cmd.Flags().Changed("workers") {
		configuration.NumWorkers = numWorkers
	}
	return configuration, nil
}

func runReplay(cmd *cobra.Command, args []string) error {
	start := time.Now()
	configuration, err := loadConfiguration(cmd)
	if err != nil {
		return err
	}
	readout.SetConfiguration(configuration)
	readout.SetLogger(logger)

	if configuration.Verbosity > 0 {
		logger.Info(fmt.Sprintf("Reading configuration file: %s", configFile), "main")
		printConfiguration(configuration, logger)
	}

	if !configuration.NoDB {
		dbConn, err := readout.ConnectToDatabase(configuration.User, configuration.Passwd, configuration.Host, configuration.DBName)
		if err != nil {
			message := fmt.Errorf("Error connection to database: %w", err)
			logger.Error(message.Error())
			return message
		}
		defer dbConn.Close()

		configuration, err = readout.ApplyCalibration(dbConn, configuration)
		if err != nil {
			return err
		}
		readout.SetConfiguration(configuration)
	}

	store, err := readout.NewRunStore(configuration)
	if err != nil {
		logger.Error(err.Error())
		return err
	}
	if configuration.WriteHDF5 {
		store.AddSink(archive.Sink(configuration.OutputDir, configuration.Window(), configuration.CompressionLevel))
	}
	if configuration.WriteParquet {
		store.AddSink(readout.ParquetSink(configuration.OutputDir, configuration.ParquetCodec))
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if configuration.MetricsAddr != "" {
		metrics := readout.NewMetrics()
		store.SetMetrics(metrics)
		server := serveMetrics(configuration.MetricsAddr, metrics)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.Error(fmt.Sprintf("error shutting down metrics server: %v", err))
			}
		}()
	}

	events, err := readout.ReadTraceFile(configuration.FileIn)
	if err != nil {
		message := fmt.Errorf("Error reading trace: %w", err)
		logger.Error(message.Error())
		return message
	}
	if configuration.Verbosity > 0 {
		logger.Info(fmt.Sprintf("Number of events: %d", len(events)), "main")
	}

	_, err = store.WithRun(configuration.RunNumber, func(s *readout.RunStore) (int, error) {
		return readout.Replay(ctx, s, configuration, events)
	})
	if err != nil {
		logger.Error(err.Error())
		return err
	}

	duration := time.Since(start)
	logger.Info(fmt.Sprintf("Total time: %d ms", duration.Milliseconds()), "main")
	return nil
}

func serveMetrics(addr string, metrics *readout.Metrics) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	server := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(fmt.Sprintf("metrics server: %v", err))
		}
	}()
	return server
}
