// Package mtimes remembers when each save document was last processed so that
// batch runs only revisit documents modified since.
//
// One SQLite database lives in each directory it describes (or in the backup
// output directory), keyed by document file name. The index is advisory: a
// missing or empty index simply makes every document due.
package mtimes
