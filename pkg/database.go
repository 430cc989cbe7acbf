package coincidence

import (
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	sqlx "github.com/jmoiron/sqlx" //make alias name the package to sqlx
	_ "modernc.org/sqlite"
)

// ConnectToDatabase opens the geometry/calibration database. For the
// sqlite driver dbname is the database file path and the other arguments
// are ignored.
func ConnectToDatabase(driver string, user string, pass string, host string, dbname string) (*sqlx.DB, error) {
	switch driver {
	case "", "mysql":
		port := "3306"
		dbURI := fmt.Sprintf("%s:%s@(%s:%s)/%s?parseTime=true", user, pass, host, port, dbname)
		return sqlx.Connect("mysql", dbURI)
	case "sqlite":
		return sqlx.Connect("sqlite", dbname)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

func LoadDetectorFromDB(dbConn *sqlx.DB, runNumber int) (*Detector, error) {
	scins, err := getScintillatorsFromDB(dbConn, runNumber)
	if err != nil {
		errMessage := fmt.Errorf("error getting scintillators from database: %w", err)
		logger.Error(errMessage.Error())
		return nil, errMessage
	}
	pms, err := getPhotosensorsFromDB(dbConn, runNumber)
	if err != nil {
		errMessage := fmt.Errorf("error getting photosensors from database: %w", err)
		logger.Error(errMessage.Error())
		return nil, errMessage
	}
	channels, err := getChannelsFromDB(dbConn, runNumber)
	if err != nil {
		errMessage := fmt.Errorf("error getting channel mapping from database: %w", err)
		logger.Error(errMessage.Error())
		return nil, errMessage
	}
	return NewDetector(scins, pms, channels)
}

func LoadCalibrationFromDB(dbConn *sqlx.DB, runNumber int) (*Calibration, error) {
	query := "SELECT ScinID, Param, Value FROM Calibration WHERE MinRun <= %d and MaxRun >= %d ORDER BY ScinID"
	query = fmt.Sprintf(query, runNumber, runNumber)
	if configuration.Verbosity > 0 {
		logger.Info("Reading calibration from database", "database")
	}
	if configuration.Verbosity > 2 {
		message := fmt.Sprintf("Query: %s", query)
		logger.Info(message, "database")
	}

	entries, err := queryTable[CalibrationEntry](dbConn, query)
	if err != nil {
		errMessage := fmt.Errorf("error getting calibration from database: %w", err)
		logger.Error(errMessage.Error())
		return nil, errMessage
	}
	calib := NewCalibration()
	for _, entry := range entries {
		calib.Set(entry.ScinID, entry.Param, entry.Value)
	}

	offsets, err := getChannelOffsetsFromDB(dbConn, runNumber)
	if err != nil {
		errMessage := fmt.Errorf("error getting channel offsets from database: %w", err)
		logger.Error(errMessage.Error())
		return nil, errMessage
	}
	for _, entry := range offsets {
		calib.SetChannelOffset(entry.ChannelID, entry.Offset)
	}
	return calib, nil
}

func getChannelOffsetsFromDB(db *sqlx.DB, runNumber int) ([]ChannelOffsetEntry, error) {
	query := "SELECT ChannelID, TimeOffset FROM ChannelOffsets WHERE MinRun <= %d and MaxRun >= %d ORDER BY ChannelID"
	query = fmt.Sprintf(query, runNumber, runNumber)
	if configuration.Verbosity > 2 {
		message := fmt.Sprintf("Query: %s", query)
		logger.Info(message, "database")
	}
	return queryTable[ChannelOffsetEntry](db, query)
}

func getScintillatorsFromDB(db *sqlx.DB, runNumber int) ([]Scintillator, error) {
	query := "SELECT ScinID, SlotID, X, Y, Z, RotX, RotY, RotZ, Theta, Length FROM Scintillators WHERE MinRun <= %d and MaxRun >= %d ORDER BY ScinID"
	query = fmt.Sprintf(query, runNumber, runNumber)
	if configuration.Verbosity > 0 {
		logger.Info("Scintillators read from DB", "database")
	}
	if configuration.Verbosity > 2 {
		message := fmt.Sprintf("Query: %s", query)
		logger.Info(message, "database")
	}
	return queryTable[Scintillator](db, query)
}

func getPhotosensorsFromDB(db *sqlx.DB, runNumber int) ([]Photosensor, error) {
	query := "SELECT PMID, ScinID, Side, MatrixPosition FROM Photosensors WHERE MinRun <= %d and MaxRun >= %d ORDER BY PMID"
	query = fmt.Sprintf(query, runNumber, runNumber)
	if configuration.Verbosity > 0 {
		logger.Info("Photosensors read from DB", "database")
	}
	if configuration.Verbosity > 2 {
		message := fmt.Sprintf("Query: %s", query)
		logger.Info(message, "database")
	}
	return queryTable[Photosensor](db, query)
}

func getChannelsFromDB(db *sqlx.DB, runNumber int) ([]Channel, error) {
	query := "SELECT ChannelID, PMID, Board, ThresholdNumber, ThresholdValue FROM ChannelMapping WHERE MinRun <= %d and MaxRun >= %d ORDER BY ChannelID"
	query = fmt.Sprintf(query, runNumber, runNumber)
	if configuration.Verbosity > 0 {
		logger.Info("Channel mapping read from DB", "database")
	}
	if configuration.Verbosity > 2 {
		message := fmt.Sprintf("Query: %s", query)
		logger.Info(message, "database")
	}
	return queryTable[Channel](db, query)
}

func queryTable[T any](db *sqlx.DB, query string) ([]T, error) {
	rows, err := db.Queryx(query)
	if err != nil {
		errMessage := fmt.Errorf("error querying database: %w", err)
		return nil, errMessage
	}
	defer rows.Close()

	results := make([]T, 0)
	for rows.Next() {
		var result T
		err := rows.StructScan(&result)
		if err != nil {
			errMessage := fmt.Errorf("error scanning DB row: %w", err)
			return nil, errMessage
		}
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error reading DB rows: %w", err)
	}
	return results, nil
}
