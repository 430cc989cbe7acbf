package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	coincidence "github.com/next-exp/coincidence_go/pkg"
)

var configuration coincidence.Configuration

var logger Logger

func init() {
	opts := &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}
	handlerStdOut := slog.NewTextHandler(os.Stdout, opts)
	handlerStdErr := slog.NewJSONHandler(os.Stderr, opts)
	logger = Logger{
		InfoLog:  slog.New(handlerStdOut),
		ErrorLog: slog.New(handlerStdErr),
	}
}

// scanParams reruns the reconstruction of the same windows for a range of
// ab_time_diff values and prints how many hits and unmatched signals each
// value produces.
func main() {
	configFilename := flag.String("config", "", "Configuration file path")
	from := flag.Float64("from", 1000, "First ab_time_diff value (ps)")
	to := flag.Float64("to", 10000, "Last ab_time_diff value (ps)")
	step := flag.Float64("step", 1000, "ab_time_diff step (ps)")
	flag.Parse()

	var err error
	configuration, err = coincidence.LoadConfiguration(*configFilename)
	if err != nil {
		message := fmt.Errorf("Error reading configuration file: %w", err)
		logger.Error(message.Error())
		os.Exit(1)
	}
	if err := configuration.Validate(); err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}
	if *step <= 0 || *to < *from {
		logger.Error(fmt.Sprintf("Invalid scan range [%.1f, %.1f] step %.1f", *from, *to, *step))
		os.Exit(1)
	}
	coincidence.SetConfiguration(configuration)
	coincidence.SetLogger(logger)

	detector, err := coincidence.LoadSetupFile(configuration.SetupFile)
	if err != nil {
		logger.Error(fmt.Errorf("Error reading setup file: %w", err).Error())
		os.Exit(1)
	}
	calib := coincidence.NewCalibration()
	if configuration.CalibFile != "" {
		if calib, err = coincidence.LoadCalibrationFile(configuration.CalibFile); err != nil {
			logger.Error(fmt.Errorf("Error reading calibration file: %w", err).Error())
			os.Exit(1)
		}
	}

	windows, err := readWindows(configuration.FileIn)
	if err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}
	fmt.Println("Total windows read: ", len(windows))

	start := time.Now()
	for value := *from; value <= *to; value += *step {
		params := configuration.Params()
		params.ABTimeDiff = value
		stats := coincidence.NewStatistics()
		reco := coincidence.NewReconstructor(params, detector, calib, stats)

		scanStart := time.Now()
		processWindows(reco, windows)
		duration := time.Since(scanStart)

		fmt.Printf("(ab_time_diff %.1f ps) Hits: %.0f, unmatched: %.0f, accepted LORs: %.0f, time: %d ms\n",
			value,
			coincidence.CounterValue(stats.Hits),
			coincidence.CounterValue(stats.UnmatchedSignals),
			coincidence.CounterValue(stats.AcceptedLORs),
			duration.Milliseconds())
	}
	duration := time.Since(start)
	fmt.Printf("Total time: %d ms\n", duration.Milliseconds())
}

func readWindows(filename string) ([]coincidence.RawWindow, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, &coincidence.ErrOpenFile{Filename: filename, Err: err}
	}
	defer file.Close()

	reader := coincidence.NewWindowReader(file)
	windows := make([]coincidence.RawWindow, 0)
	for len(windows) < configuration.MaxWindows {
		window, err := reader.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("error reading window: %w", err)
		}
		windows = append(windows, window)
	}
	return windows, nil
}

func processWindows(reco *coincidence.Reconstructor, windows []coincidence.RawWindow) {
	jobs := make(chan coincidence.RawWindow, 100)
	results := make(chan coincidence.WindowResult, 100)
	go func() {
		for _, window := range windows {
			jobs <- window
		}
		close(jobs)
	}()
	go coincidence.RunWorkers(context.Background(), configuration.NumWorkers, reco, jobs, results)
	for range results {
	}
}
