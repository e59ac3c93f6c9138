package watcher

import "time"

const (
	defaultWorkerCount = 8
	defaultSafetyDepth = 6

	sleepDuration     = 5 * time.Second
	longSleepDuration = 1 * time.Minute
)
