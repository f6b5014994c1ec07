package config

import "runtime"

const (
	defaultOutputDir             = "~/.local/share/passfuse/output"
	defaultLogDir                = "~/.local/share/passfuse/logs"
	defaultStateDir              = "~/.local/share/passfuse"
	defaultK                     = 10000
	defaultOverfetch             = 2.0
	defaultFairness              = 1.0
	defaultMinWindow             = 16
	defaultBatchSize             = 8
	defaultStrengthMin           = 0.0
	defaultStrengthMax           = 128.0
	defaultTimeoutSeconds        = 120
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	defaultMissingPolicy         = "skip"
	defaultHTTPAPIKeyEnvironment = "PASSFUSE_HTTP_API_KEY"
)

// Default returns a Config populated with defaults. Generators are filled in
// during normalization when none are configured.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir: defaultOutputDir,
			LogDir:    defaultLogDir,
			StateDir:  defaultStateDir,
		},
		Budget: Budget{
			K:         defaultK,
			Overfetch: defaultOverfetch,
			Fairness:  defaultFairness,
			MinWindow: defaultMinWindow,
			BatchSize: defaultBatchSize,
		},
		Strength: Strength{
			Min: defaultStrengthMin,
			Max: defaultStrengthMax,
		},
		Pipeline: Pipeline{
			Workers:               runtime.NumCPU(),
			DefaultTimeoutSeconds: defaultTimeoutSeconds,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
