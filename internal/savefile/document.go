package savefile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/tidwall/jsonc"

	"ttsync/internal/faults"
)

// UnknownSaveName is reported when a document carries no SaveName.
const UnknownSaveName = "???"

// Document is a decoded save or workshop mod.
type Document struct {
	path string
	root *Node
}

// Load reads and decodes the document at path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read save %s: %w", path, err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	doc.path = path
	return doc, nil
}

// Parse decodes a document held in memory. Comments and trailing commas are
// tolerated; anything else that is not a UTF-8 JSON object is rejected with
// faults.ErrNotASaveDocument.
func Parse(data []byte) (*Document, error) {
	if !utf8.Valid(data) {
		return nil, faults.Wrap(faults.ErrNotASaveDocument, "decode", "", "invalid UTF-8", nil)
	}
	root, err := decodeTree(jsonc.ToJSON(data))
	if err != nil {
		return nil, faults.Wrap(faults.ErrNotASaveDocument, "decode", "", "invalid JSON", err)
	}
	if root.Kind != Object {
		return nil, faults.Wrap(faults.ErrNotASaveDocument, "decode", "", "top-level value is not an object", nil)
	}
	return &Document{root: root}, nil
}

// Path returns the file the document was loaded from, if any.
func (d *Document) Path() string { return d.path }

// Root returns the top-level object.
func (d *Document) Root() *Node { return d.root }

// ID returns the document's file name without extension, which for workshop
// mods is the workshop id.
func (d *Document) ID() string {
	base := filepath.Base(d.path)
	if d.path == "" {
		return ""
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// SaveName returns the document's display name, or UnknownSaveName.
func (d *Document) SaveName() string {
	node, ok := d.root.Get("SaveName")
	if !ok {
		return UnknownSaveName
	}
	name, ok := node.String()
	if !ok {
		return UnknownSaveName
	}
	return name
}
