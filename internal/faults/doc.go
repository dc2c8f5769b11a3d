// Package faults defines the error taxonomy shared by the extractor, fetch
// engine and archive writer.
//
// Each failure class is a sentinel marker. Stage code wraps underlying errors
// with Wrap so callers can classify with errors.Is while the message still
// names the stage, operation and offending URL or path.
package faults
