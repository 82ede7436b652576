package config

import "time"

// Stress run defaults.
const (
	DefaultStressWorkers         = 8
	DefaultStressOps             = 10000
	DefaultStressSubscribeRatio  = 0.45
	DefaultStressPublishRatio    = 0.10
	DefaultStressInitialCapacity = 0
	DefaultStressSlotBudget      = "64KiB"
	DefaultStressSampleInterval  = 10 * time.Millisecond
	DefaultStressMetricsAddr     = ""
	DefaultStressPlot            = ""
	DefaultStressSeed            = int64(0)
)

// Logging defaults.
const (
	DefaultLoggingLevel  = "info"
	DefaultLoggingFormat = "text"
)

// Observability defaults.
const (
	DefaultObservabilityEnvironment  = ""
	DefaultObservabilityOTLPEndpoint = ""
	DefaultObservabilitySampleRatio  = 1.0
)

// slotWordBytes is the storage cost of one slot: a single machine pointer.
const slotWordBytes = 8
