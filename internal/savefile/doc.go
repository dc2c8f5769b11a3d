// Package savefile decodes Tabletop Simulator save documents and extracts the
// asset references they contain.
//
// Documents are decoded into an order-preserving tree so that reference
// extraction follows the document's own key order. Extraction deduplicates by
// raw URL within a pass: the first structural path at which a URL appears is
// the one reported.
package savefile
