// Package archive writes backup zip files.
//
// A Writer stores each destination path at most once, tracks referenced files
// that could not be found, and embeds a small JSON manifest as the zip
// comment. In dry-run mode it performs the same checks and logging without
// creating any file. Finalize renames the finished archive so its name carries
// the number of missing entries and removes archives left by earlier runs.
package archive
