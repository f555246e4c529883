package main

import (
	"fmt"

	readout "github.com/next-exp/muonbar_go/pkg"
)

func printConfiguration(config readout.Configuration, logger readout.Logger) {
	logger.Info(fmt.Sprintf("File in: %s", config.FileIn), "config")
	logger.Info(fmt.Sprintf("Output dir: %s", config.OutputDir), "config")
	logger.Info(fmt.Sprintf("Counts file: %s", config.CountsFile), "config")
	logger.Info(fmt.Sprintf("Histogram file: %s", config.HistFile), "config")
	logger.Info(fmt.Sprintf("Run number: %d", config.RunNumber), "config")
	logger.Info(fmt.Sprintf("Time window: [%v, %v) ns", config.TimeMin, config.TimeMax), "config")
	logger.Info(fmt.Sprintf("Bin width: %v ns", config.BinWidth), "config")
	logger.Info(fmt.Sprintf("Gain: %v", config.Gain), "config")
	logger.Info(fmt.Sprintf("Decay time: %v ns", config.DecayTime), "config")
	logger.Info(fmt.Sprintf("Active volume: %s", config.ActiveVolume), "config")
	logger.Info(fmt.Sprintf("Window volume: %s", config.WindowVolume), "config")
	logger.Info(fmt.Sprintf("Scintillation process: %s", config.ScintProcess), "config")
	logger.Info(fmt.Sprintf("Number of workers: %d", config.NumWorkers), "config")
	logger.Info(fmt.Sprintf("Write HDF5: %t", config.WriteHDF5), "config")
	logger.Info(fmt.Sprintf("Write Parquet: %t", config.WriteParquet), "config")
	logger.Info(fmt.Sprintf("Compression level: %d", config.CompressionLevel), "config")
	logger.Info(fmt.Sprintf("Parquet codec: %s", config.ParquetCodec), "config")
	logger.Info(fmt.Sprintf("No DB: %t", config.NoDB), "config")
	logger.Info(fmt.Sprintf("Host: %s", config.Host), "config")
	logger.Info(fmt.Sprintf("DB name: %s", config.DBName), "config")
	logger.Info(fmt.Sprintf("Metrics address: %s", config.MetricsAddr), "config")
	logger.Info(fmt.Sprintf("Verbosity: %d", config.Verbosity), "config")
}
