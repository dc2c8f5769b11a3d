package config

import "runtime"

const (
	defaultGamedataWindows = "~/Documents/My Games/Tabletop Simulator"
	defaultGamedataDarwin  = "~/Library/Tabletop Simulator"
	defaultGamedataLinux   = "~/.local/share/Tabletop Simulator"
	defaultOutputDir       = "."
	defaultTimeoutSeconds  = 5
	defaultRetries         = 3
	defaultUserAgent       = "tts-backup"
	defaultLogFormat       = "console"
	defaultLogLevel        = "info"

	// modLocationFile redirects the gamedata directory when the game's
	// data lives outside the platform default (e.g. a Steam library).
	modLocationFile = "mod_location.txt"
	gamedataEnv     = "TTSYNC_GAMEDATA"
)

// DefaultGamedataDir returns the platform's default Tabletop Simulator data directory.
func DefaultGamedataDir() string {
	switch runtime.GOOS {
	case "darwin":
		return defaultGamedataDarwin
	case "linux":
		return defaultGamedataLinux
	default:
		return defaultGamedataWindows
	}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			GamedataDir: DefaultGamedataDir(),
			OutputDir:   defaultOutputDir,
		},
		Fetch: Fetch{
			TimeoutSeconds: defaultTimeoutSeconds,
			Retries:        defaultRetries,
			UserAgent:      defaultUserAgent,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
