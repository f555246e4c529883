package readout

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/apache/arrow/go/v14/parquet/compress"
	"gopkg.in/yaml.v3"
)

type Configuration struct {
	Verbosity        int          `json:"verbosity" yaml:"verbosity"`
	FileIn           string       `json:"file_in" yaml:"file_in"`
	OutputDir        string       `json:"output_dir" yaml:"output_dir"`
	CountsFile       string       `json:"counts_file" yaml:"counts_file"`
	HistFile         string       `json:"hist_file" yaml:"hist_file"`
	RunNumber        int          `json:"run_number" yaml:"run_number"`
	TimeMin          float64      `json:"t_min_ns" yaml:"t_min_ns"`
	TimeMax          float64      `json:"t_max_ns" yaml:"t_max_ns"`
	BinWidth         float64      `json:"bin_width_ns" yaml:"bin_width_ns"`
	Gain             float64      `json:"gain" yaml:"gain"`
	DecayTime        float64      `json:"decay_time_ns" yaml:"decay_time_ns"`
	ActiveVolume     string       `json:"active_volume" yaml:"active_volume"`
	WindowVolume     string       `json:"window_volume" yaml:"window_volume"`
	ScintProcess     string       `json:"scint_process" yaml:"scint_process"`
	NumWorkers       int          `json:"num_workers" yaml:"num_workers"`
	WriteHDF5        bool         `json:"write_hdf5" yaml:"write_hdf5"`
	WriteParquet     bool         `json:"write_parquet" yaml:"write_parquet"`
	CompressionLevel int          `json:"compression_level" yaml:"compression_level"`
	ParquetCodec     ParquetCodec `json:"parquet_codec" yaml:"parquet_codec"`
	NoDB             bool         `json:"no_db" yaml:"no_db"`
	Host             string       `json:"host" yaml:"host"`
	User             string       `json:"user" yaml:"user"`
	Passwd           string       `json:"pass" yaml:"pass"`
	DBName           string       `json:"dbname" yaml:"dbname"`
	MetricsAddr      string       `json:"metrics_addr" yaml:"metrics_addr"`
}

var configuration = DefaultConfiguration()

func GetConfiguration() Configuration {
	return configuration
}

func SetConfiguration(config Configuration) {
	configuration = config
}

func DefaultConfiguration() Configuration {
	return Configuration{
		Verbosity:        0,
		OutputDir:        "output",
		CountsFile:       "photon_counts.csv",
		HistFile:         "time_histograms.csv",
		RunNumber:        0,
		TimeMin:          0,
		TimeMax:          200,
		BinWidth:         1,
		Gain:             1e6,
		DecayTime:        30,
		ActiveVolume:     "RodLV",
		WindowVolume:     "SiPMWindowLV",
		ScintProcess:     "Scintillation",
		NumWorkers:       1,
		WriteHDF5:        false,
		WriteParquet:     false,
		CompressionLevel: 4,
		ParquetCodec:     ParquetCodec{Name: "snappy", Code: compress.Codecs.Snappy},
		NoDB:             true,
		Host:             "localhost",
		User:             "muonreader",
		DBName:           "MUONBAR",
	}
}

// LoadConfiguration overlays the file on top of the defaults. Files ending
// in .yaml or .yml are read as YAML, anything else as JSON.
func LoadConfiguration(filename string) (Configuration, error) {
	config := DefaultConfiguration()

	data, err := os.ReadFile(filename)
	if err != nil {
		return config, err
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &config)
	default:
		err = json.Unmarshal(data, &config)
	}
	if err != nil {
		return config, fmt.Errorf("error parsing %s: %w", filename, err)
	}
	return config, nil
}

// SaveConfiguration writes config to filename, as YAML or JSON by the same
// extension rule as LoadConfiguration.
func SaveConfiguration(filename string, config Configuration) error {
	var data []byte
	var err error
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(config)
	default:
		data, err = json.MarshalIndent(config, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("error encoding configuration: %w", err)
	}
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return &ErrOpenFile{Filename: filename, Err: err}
	}
	return nil
}

// Window returns the arrival-time window and binning.
func (c Configuration) Window() TimeWindow {
	return TimeWindow{Min: c.TimeMin, Max: c.TimeMax, BinWidth: c.BinWidth}
}

func (c Configuration) Calibration() Calibration {
	return Calibration{Gain: c.Gain, DecayTime: c.DecayTime}
}

// Validate rejects configurations that would only fail mid-run.
func (c Configuration) Validate() error {
	if !(c.BinWidth > 0) || math.IsInf(c.BinWidth, 0) {
		return &ErrInvalidConfig{Field: "bin_width_ns", Reason: fmt.Sprintf("must be positive, got %v", c.BinWidth)}
	}
	if math.IsNaN(c.TimeMin) || math.IsNaN(c.TimeMax) || !(c.TimeMax > c.TimeMin) {
		return &ErrInvalidConfig{Field: "t_max_ns", Reason: fmt.Sprintf("window [%v, %v) is empty or inverted", c.TimeMin, c.TimeMax)}
	}
	if c.Window().NumBins() < 1 {
		return &ErrInvalidConfig{Field: "bin_width_ns", Reason: fmt.Sprintf("bin width %v is wider than the window", c.BinWidth)}
	}
	if !c.Window().WholeBins() {
		return &ErrInvalidConfig{Field: "bin_width_ns", Reason: fmt.Sprintf("window [%v, %v) is not a whole number of %v ns bins, "+
			"arrival times in the partial last bin would be counted as detected but left out of the histogram", c.TimeMin, c.TimeMax, c.BinWidth)}
	}
	if !(c.Gain > 0) {
		return &ErrInvalidConfig{Field: "gain", Reason: fmt.Sprintf("must be positive, got %v", c.Gain)}
	}
	if !(c.DecayTime > 0) {
		return &ErrInvalidConfig{Field: "decay_time_ns", Reason: fmt.Sprintf("must be positive, got %v", c.DecayTime)}
	}
	if c.OutputDir == "" {
		return &ErrInvalidConfig{Field: "output_dir", Reason: "must not be empty"}
	}
	if c.CountsFile == "" || c.HistFile == "" {
		return &ErrInvalidConfig{Field: "counts_file", Reason: "output file names must not be empty"}
	}
	if c.CountsFile == c.HistFile {
		return &ErrInvalidConfig{Field: "hist_file", Reason: "must differ from counts_file"}
	}
	if c.NumWorkers < 1 {
		return &ErrInvalidConfig{Field: "num_workers", Reason: fmt.Sprintf("must be at least 1, got %d", c.NumWorkers)}
	}
	return nil
}
