package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	sqlx "github.com/jmoiron/sqlx"
	coincidence "github.com/next-exp/coincidence_go/pkg"
)

var dbConn *sqlx.DB
var configuration coincidence.Configuration

var logger Logger

func init() {
	opts := &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}
	handlerStdOut := NewHandler(os.Stdout, opts)
	handlerStdErr := slog.NewJSONHandler(os.Stderr, opts)
	logger = Logger{
		InfoLog:  slog.New(handlerStdOut),
		ErrorLog: slog.New(handlerStdErr),
	}
}

func main() {
	configFilename := flag.String("config", "", "Configuration file path")
	runNumber := flag.Int("run", -1, "Run number, overrides the configuration file")
	numWorkers := flag.Int("workers", 0, "Number of workers, overrides the configuration file")
	flag.Parse()

	if err := run(*configFilename, *runNumber, *numWorkers); err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}
}

func run(configFilename string, runNumber int, numWorkers int) error {
	var err error
	configuration, err = coincidence.LoadConfiguration(configFilename)
	if err != nil {
		return fmt.Errorf("Error reading configuration file: %w", err)
	}
	if runNumber >= 0 {
		configuration.RunNumber = runNumber
	}
	if numWorkers > 0 {
		configuration.NumWorkers = numWorkers
	}
	if err := configuration.Validate(); err != nil {
		return err
	}
	coincidence.SetConfiguration(configuration)
	coincidence.SetLogger(logger)

	if configuration.Verbosity > 0 {
		message := fmt.Sprintf("Reading configuration file: %s", configFilename)
		logger.Info(message, "main")
		printConfiguration(configuration, logger)
	}

	detector, calib, err := loadSetup()
	if err != nil {
		return err
	}

	file, err := os.Open(configuration.FileIn)
	if err != nil {
		return fmt.Errorf("Error opening file: %w", &coincidence.ErrOpenFile{Filename: configuration.FileIn, Err: err})
	}
	defer file.Close()

	writer, err := coincidence.NewWriter(configuration.FileOut, configuration)
	if err != nil {
		return fmt.Errorf("Error creating output file: %w", err)
	}
	params := configuration.Params()
	runID := uuid.New()
	if err := writer.WriteRunInfo(configuration.RunNumber, runID, params); err != nil {
		return errors.Join(err, writer.Close())
	}
	if configuration.Verbosity > 0 {
		message := fmt.Sprintf("Run %d, reconstruction id %s", configuration.RunNumber, runID)
		logger.Info(message, "main")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stats := coincidence.NewStatistics()
	reco := coincidence.NewReconstructor(params, detector, calib, stats)

	start := time.Now()
	jobs := make(chan coincidence.RawWindow, 100)
	results := make(chan coincidence.WindowResult, 100)
	readErr := make(chan error, 1)

	go func() {
		readErr <- sendWindowsToWorkers(ctx, coincidence.NewWindowReader(file), jobs)
	}()
	go coincidence.RunWorkers(ctx, configuration.NumWorkers, reco, jobs, results)

	var writeErr error
	for result := range results {
		if writeErr != nil {
			continue
		}
		if err := writer.WriteResult(result); err != nil {
			writeErr = err
			cancel()
		}
	}

	err = errors.Join(writeErr, <-readErr, writer.Close())
	if errors.Is(err, context.Canceled) && writeErr == nil {
		logger.Info("Interrupted, output file closed", "main")
		err = nil
	}

	if configuration.Verbosity > 0 {
		for _, line := range stats.Summary() {
			logger.Info(line, "stats")
		}
	}
	duration := time.Since(start)
	message := fmt.Sprintf("Total time: %d ms", duration.Milliseconds())
	logger.Info(message, "main")
	return err
}

// loadSetup reads the detector and calibration either from the files of
// the configuration or from the database, for the configured run.
func loadSetup() (*coincidence.Detector, *coincidence.Calibration, error) {
	if configuration.NoDB {
		detector, err := coincidence.LoadSetupFile(configuration.SetupFile)
		if err != nil {
			return nil, nil, fmt.Errorf("Error reading setup file: %w", err)
		}
		calib := coincidence.NewCalibration()
		if configuration.CalibFile != "" {
			calib, err = coincidence.LoadCalibrationFile(configuration.CalibFile)
			if err != nil {
				return nil, nil, fmt.Errorf("Error reading calibration file: %w", err)
			}
		}
		return detector, calib, nil
	}

	var err error
	dbConn, err = coincidence.ConnectToDatabase(configuration.DBDriver, configuration.User,
		configuration.Passwd, configuration.Host, configuration.DBName)
	if err != nil {
		return nil, nil, fmt.Errorf("Error connection to database: %w", err)
	}
	defer dbConn.Close()

	detector, err := coincidence.LoadDetectorFromDB(dbConn, configuration.RunNumber)
	if err != nil {
		return nil, nil, err
	}
	calib, err := coincidence.LoadCalibrationFromDB(dbConn, configuration.RunNumber)
	if err != nil {
		return nil, nil, err
	}
	return detector, calib, nil
}
