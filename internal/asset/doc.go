// Package asset classifies save-document references by asset kind and maps
// them onto the game's on-disk cache layout.
//
// Each kind owns a cache subdirectory, an ordered list of candidate
// extensions, a content-type predicate and a default extension. Cache paths
// are derived from the reference URL with every character that is not a
// letter or digit removed, so the same URL always lands on the same stem.
package asset
