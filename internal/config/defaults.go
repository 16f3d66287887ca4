package config

const (
	defaultStagingDir          = "~/.local/share/chaptercast/staging"
	defaultLogDir              = "~/.local/share/chaptercast/logs"
	defaultAPIBind             = "127.0.0.1:7817"
	defaultScraperUserAgent    = "chaptercast/dev"
	defaultScraperTimeout      = 60
	defaultScraperAttempts     = 3
	defaultTTSCommand          = "piper"
	defaultTTSTimeout          = 1800
	defaultFFmpegBinary        = "ffmpeg"
	defaultBitrateKbps         = 320
	defaultConverterTimeout    = 900
	defaultSyncTimeout         = 1800
	defaultSyncLockTTL         = 2100
	defaultSyncContentionDelay = 30
	defaultSyncSettleDelay     = 300
	defaultQueuePollInterval   = 5
	defaultTaskLeaseSeconds    = 300
	defaultRetryBaseDelay      = 60
	defaultRetryMaxDelay       = 600
	defaultRetryMaxAttempts    = 5
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StagingDir: defaultStagingDir,
			LogDir:     defaultLogDir,
			APIBind:    defaultAPIBind,
		},
		Scraper: Scraper{
			UserAgent:      defaultScraperUserAgent,
			RequestTimeout: defaultScraperTimeout,
			FetchAttempts:  defaultScraperAttempts,
		},
		TTS: TTS{
			Command:        defaultTTSCommand,
			TimeoutSeconds: defaultTTSTimeout,
		},
		Converter: Converter{
			FFmpegBinary:   defaultFFmpegBinary,
			BitrateKbps:    defaultBitrateKbps,
			TimeoutSeconds: defaultConverterTimeout,
		},
		Sync: Sync{
			Enabled:                false,
			TimeoutSeconds:         defaultSyncTimeout,
			LockTTLSeconds:         defaultSyncLockTTL,
			ContentionDelaySeconds: defaultSyncContentionDelay,
			SettleDelaySeconds:     defaultSyncSettleDelay,
		},
		Workflow: Workflow{
			QueuePollInterval:     defaultQueuePollInterval,
			TaskLeaseSeconds:      defaultTaskLeaseSeconds,
			RetryBaseDelaySeconds: defaultRetryBaseDelay,
			RetryMaxDelaySeconds:  defaultRetryMaxDelay,
			RetryMaxAttempts:      defaultRetryMaxAttempts,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
