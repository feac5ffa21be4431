package config

import "time"

// Miner defaults.
const (
	DefaultWindowSize = 3
	DefaultLanguage   = "kotlin"
)

// Cherry-pick matching defaults.
const (
	DefaultCherryPickTimeout = 180 * time.Second
	DefaultMaxScenarios      = 50
	DefaultPatchCacheSize    = 4096
)

// Batch defaults. A zero worker count means one worker per CPU.
const (
	DefaultBatchWorkers = 0
	DefaultKeepClones   = false
)

// Logging defaults.
const (
	DefaultLogLevel  = "info"
	DefaultLogFormat = LogFormatText
)

// Accepted logging.format values.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)
