// Package batch runs a per-document task over the documents named on the
// command line.
//
// Names that do not exist are looked up among the downloaded workshop mods.
// In --all mode each name is a directory whose documents are selected by the
// processed-timestamp index, so only documents changed since their last
// successful run are revisited. The first failing document aborts the batch;
// a document's timestamp is recorded only after it succeeds and never in a
// dry run.
package batch
