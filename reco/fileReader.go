package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	coincidence "github.com/next-exp/coincidence_go/pkg"
)

// sendWindowsToWorkers feeds the windows of the input file to the workers,
// honouring skip and max_windows, and closes jobs when done.
func sendWindowsToWorkers(ctx context.Context, reader *coincidence.WindowReader, jobs chan<- coincidence.RawWindow) error {
	defer close(jobs)
	count := 0
	for {
		window, err := reader.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("error reading window %d: %w", count, err)
		}
		count++
		if count > configuration.MaxWindows {
			if configuration.Verbosity > 0 {
				logger.Info("Max windows reached", "fileReader")
			}
			return nil
		}
		if count <= configuration.Skip {
			if configuration.Verbosity > 1 {
				message := fmt.Sprintf("Skipping window %d", window.Index)
				logger.Info(message, "fileReader")
			}
			continue
		}
		if configuration.Verbosity > 1 {
			message := fmt.Sprintf("Reading window %d with %d records", window.Index, len(window.Records))
			logger.Info(message, "fileReader")
		}
		select {
		case jobs <- window:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
