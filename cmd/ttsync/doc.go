// Command ttsync keeps a Tabletop Simulator asset cache in sync with the
// URLs referenced by save files and workshop mods, and bundles a mod with its
// cached assets into a zip archive.
//
// Subcommands:
//   - prefetch: download every referenced asset missing from the cache
//   - backup: write a zip archive of a mod and its cached assets
//   - urls: list the references of a document and where they are cached
//   - config: create or validate the configuration file
//   - doctor: check directory permissions and index health
package main
