package readout

import (
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	sqlx "github.com/jmoiron/sqlx" //make alias name the package to sqlx
)

func ConnectToDatabase(user string, pass string, host string, dbname string) (*sqlx.DB, error) {
	port := "3306"
	dbURI := fmt.Sprintf("%s:%s@(%s:%s)/%s?parseTime=true", user, pass, host, port, dbname)
	db, err := sqlx.Connect("mysql", dbURI)
	return db, err
}

type CalibrationEntry struct {
	MinRun    int     `db:"MinRun"`
	MaxRun    int     `db:"MaxRun"`
	Gain      float64 `db:"Gain"`
	DecayTime float64 `db:"DecayTimeNs"`
}

var ErrNoCalibration = errors.New("no calibration found")

const calibrationQuery = `SELECT MinRun, MaxRun, Gain, DecayTimeNs FROM SipmCalibration
WHERE MinRun <= ? AND MaxRun >= ? ORDER BY MinRun DESC LIMIT 1`

// LoadCalibration reads the SiPM gain and decay time valid for runNumber.
func LoadCalibration(db *sqlx.DB, runNumber int) (Calibration, error) {
	if configuration.Verbosity > 0 {
		message := fmt.Sprintf("Reading SiPM calibration for run %d from database", runNumber)
		logger.Info(message, "database")
	}
	if configuration.Verbosity > 2 {
		message := fmt.Sprintf("Query: %s", calibrationQuery)
		logger.Info(message, "database")
	}

	var entry CalibrationEntry
	err := db.Get(&entry, calibrationQuery, runNumber, runNumber)
	if errors.Is(err, sql.ErrNoRows) {
		return Calibration{}, fmt.Errorf("run %d: %w", runNumber, ErrNoCalibration)
	}
	if err != nil {
		return Calibration{}, fmt.Errorf("error querying database: %w", err)
	}

	calibration := Calibration{Gain: entry.Gain, DecayTime: entry.DecayTime}
	if !(calibration.Gain > 0) || !(calibration.DecayTime > 0) {
		return Calibration{}, &ErrInvalidConfig{
			Field:  "SipmCalibration",
			Reason: fmt.Sprintf("runs %d-%d have gain %v and decay time %v", entry.MinRun, entry.MaxRun, entry.Gain, entry.DecayTime),
		}
	}
	return calibration, nil
}

// ApplyCalibration replaces gain and decay time in config with the ones
// stored for config.RunNumber.
func ApplyCalibration(db *sqlx.DB, config Configuration) (Configuration, error) {
	calibration, err := LoadCalibration(db, config.RunNumber)
	if err != nil {
		errMessage := fmt.Errorf("error getting SiPM calibration from database: %w", err)
		logger.Error(errMessage.Error())
		return config, errMessage
	}
	config.Gain = calibration.Gain
	config.DecayTime = calibration.DecayTime
	return config, nil
}
