package main

import (
	"fmt"

	coincidence "github.com/next-exp/coincidence_go/pkg"
)

func printConfiguration(config coincidence.Configuration, logger Logger) {
	logger.Info(fmt.Sprintf("File in: %s", config.FileIn), "config")
	logger.Info(fmt.Sprintf("File out: %s", config.FileOut), "config")
	logger.Info(fmt.Sprintf("No DB: %t", config.NoDB), "config")
	if config.NoDB {
		logger.Info(fmt.Sprintf("Setup file: %s", config.SetupFile), "config")
		logger.Info(fmt.Sprintf("Calibration file: %s", config.CalibFile), "config")
	} else {
		logger.Info(fmt.Sprintf("DB driver: %s", config.DBDriver), "config")
		logger.Info(fmt.Sprintf("Host: %s", config.Host), "config")
		logger.Info(fmt.Sprintf("DB name: %s", config.DBName), "config")
	}
	logger.Info(fmt.Sprintf("Run number: %d", config.RunNumber), "config")
	logger.Info(fmt.Sprintf("Skip: %d", config.Skip), "config")
	logger.Info(fmt.Sprintf("Max windows: %d", config.MaxWindows), "config")
	logger.Info(fmt.Sprintf("Verbosity: %d", config.Verbosity), "config")
	logger.Info(fmt.Sprintf("Number of workers: %d", config.NumWorkers), "config")
	logger.Info(fmt.Sprintf("Event builder: %s", config.EventBuilder), "config")
	logger.Info(fmt.Sprintf("Event time window: %.1f ps", config.EventTimeWindow), "config")
	logger.Info(fmt.Sprintf("Min event multiplicity: %d", config.MinEventMultiplicity), "config")
	logger.Info(fmt.Sprintf("AB time diff: %.1f ps", config.ABTimeDiff), "config")
	logger.Info(fmt.Sprintf("Edge max time: %.1f ns", config.EdgeMaxTime), "config")
	logger.Info(fmt.Sprintf("Lead-trail max time: %.1f ns", config.LeadTrailMaxTime), "config")
	logger.Info(fmt.Sprintf("Merging time: %.1f ps", config.MergingTime), "config")
	logger.Info(fmt.Sprintf("Thresholds: %d", config.NumThresholds), "config")
	logger.Info(fmt.Sprintf("Trigger channel stride: %d", config.TriggerChannelStride), "config")
	logger.Info(fmt.Sprintf("Scatter threshold: %.2f cm", config.ScatterThreshold), "config")
	logger.Info(fmt.Sprintf("Reference scintillator: %d", config.ReferenceScinID), "config")
	logger.Info(fmt.Sprintf("Reference slot: %d", config.ReferenceSlotID), "config")
	logger.Info(fmt.Sprintf("Write hits: %t", config.WriteHits), "config")
	logger.Info(fmt.Sprintf("Write events: %t", config.WriteEvents), "config")
	logger.Info(fmt.Sprintf("Write LORs: %t", config.WriteLORs), "config")
}
