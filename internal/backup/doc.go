// Package backup bundles a save document, its thumbnail and every cached
// asset it references into one zip archive.
//
// Run walks the document's references in extraction order, maps each to its
// cache path with asset.Cache and hands the result to archive.Writer. Entries
// that cannot be resolved fall back to the bare normalized URL so they are
// still reported as missing. Progress is reported through a Progress sink so
// the CLI can drive a terminal progress bar without this package knowing
// about terminals.
package backup
