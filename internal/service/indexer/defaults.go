package indexer

import "time"

const (
	defaultWorkerCount = 4
	defaultBatchSize   = 100

	sleepDuration     = 5 * time.Second
	longSleepDuration = 1 * time.Minute
)
