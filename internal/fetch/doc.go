// Package fetch downloads the assets referenced by a save document into the
// game's cache.
//
// References are processed one at a time in document order. Each URL is tried
// at most once per Engine. Per-reference problems (HTTP errors, wrong content
// types, removed files) are collected as Missing records and written to a
// sidecar report; exhausted retries and failed writes abort the run. Payloads
// are written through fileutil.WriteAtomic so a cancelled or failed download
// never leaves a truncated file in the cache.
package fetch
