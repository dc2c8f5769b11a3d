// Package config loads, normalizes, and validates ttsync configuration data.
//
// It supplies repository defaults (including the per-platform Tabletop
// Simulator data directory), expands user paths with tilde shortcuts, reads
// TOML files, and honours the TTSYNC_GAMEDATA environment override and the
// game's mod_location.txt redirect file.
//
// Always obtain settings through this package so downstream code receives
// absolute paths and clear validation errors.
package config
