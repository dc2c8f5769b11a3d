// Package textutil provides filename sanitization for names derived from save
// documents, such as archive and missing-report file names.
package textutil
