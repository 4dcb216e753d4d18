package scheduler

import "errors"

var (
	// ErrSchedulerRunning is returned when registering a job on a started scheduler
	ErrSchedulerRunning = errors.New("scheduler is already running")

	// ErrJobNotFound is returned when a job is not found
	ErrJobNotFound = errors.New("job not found")

	// ErrJobPanicked wraps a panic recovered from a job body
	ErrJobPanicked = errors.New("job panicked")

	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid scheduler configuration")
)
