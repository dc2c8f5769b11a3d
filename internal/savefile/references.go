package savefile

import (
	"errors"
	"fmt"
	"iter"
	"regexp"
	"slices"
	"strings"

	"golang.org/x/text/cases"

	"ttsync/internal/asset"
	"ttsync/internal/faults"
)

// Reference is an asset URL together with the chain of keys leading to it.
type Reference struct {
	Path []string
	URL  string
}

// Key returns the last element of the reference path.
func (r Reference) Key() string {
	if len(r.Path) == 0 {
		return ""
	}
	return r.Path[len(r.Path)-1]
}

const (
	audioLibraryKey = "AudioLibrary"
	audioItemKey    = "Item1"
	luaScriptKey    = "LuaScript"
	pageURLKey      = "PageURL"
)

// extensionlessHosts serve assets without a file extension in the URL.
var extensionlessHosts = []string{
	"steamusercontent.com",
	"pastebin.com",
	"paste.ee",
	"drive.google.com",
}

var (
	// deck art URLs may carry metadata in braces
	braceMetadata = regexp.MustCompile(`\{.*\}`)
	scriptURL     = regexp.MustCompile(`(?:http|https)://[\p{L}\p{N}_\-]+(?:\.[\p{L}\p{N}_\-]+)+(?:[\p{L}\p{N}_\-.,@?^=%&:/~+#]*[\p{L}\p{N}_\-@?^=%&/~+#])?`)
)

// References lazily yields every asset reference in document order. Each call
// starts a fresh pass with its own deduplication set. A non-nil error ends the
// sequence.
func (d *Document) References() iter.Seq2[Reference, error] {
	return func(yield func(Reference, error) bool) {
		w := &walker{seen: map[string]struct{}{}, yield: yield, fold: cases.Fold()}
		if err := w.object(d.root, nil); err != nil && !errors.Is(err, errStopped) {
			yield(Reference{}, err)
		}
	}
}

// Collect drains References into a slice.
func (d *Document) Collect() ([]Reference, error) {
	var refs []Reference
	for ref, err := range d.References() {
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

var errStopped = errors.New("iteration stopped")

type walker struct {
	seen  map[string]struct{}
	yield func(Reference, error) bool
	fold  cases.Caser
}

func (w *walker) emit(path []string, url string) error {
	if _, dup := w.seen[url]; dup {
		return nil
	}
	w.seen[url] = struct{}{}
	if !w.yield(Reference{Path: slices.Clone(path), URL: url}, nil) {
		return errStopped
	}
	return nil
}

func (w *walker) object(node *Node, trail []string) error {
	for _, field := range node.Fields {
		path := append(slices.Clip(trail), field.Key)
		if err := w.field(field.Key, field.Value, path); err != nil {
			return err
		}
	}
	return nil
}

func (w *walker) field(key string, value *Node, path []string) error {
	switch {
	case key == audioLibraryKey:
		return w.audioLibrary(value, path)
	case value.Kind == Object:
		return w.object(value, path)
	case value.Kind == Array:
		for _, item := range value.Items {
			if item.Kind != Object {
				continue
			}
			if err := w.object(item, path); err != nil {
				return err
			}
		}
		return nil
	case strings.HasSuffix(w.fold.String(key), "url"):
		if key == pageURLKey {
			return nil
		}
		url, ok := value.String()
		if !ok || url == "" {
			return nil
		}
		return w.emit(path, braceMetadata.ReplaceAllString(url, ""))
	case key == luaScriptKey:
		script, ok := value.String()
		if !ok {
			return nil
		}
		for _, url := range scriptURL.FindAllString(script, -1) {
			if !acceptScriptURL(url) {
				continue
			}
			if err := w.emit(path, url); err != nil {
				return err
			}
		}
	}
	return nil
}

// audioLibrary handles the music player's playlist: records whose Item1 slot
// holds the URL and Item2 the title.
func (w *walker) audioLibrary(value *Node, path []string) error {
	if value.Kind == Scalar && value.Value == nil {
		return nil
	}
	if value.Kind != Array {
		return faults.Wrap(faults.ErrUnknownReferenceKind, "extract", strings.Join(path, "/"), "audio library is not a list", nil)
	}
	for i, item := range value.Items {
		slot, ok := item.Get(audioItemKey)
		if !ok {
			return faults.Wrap(faults.ErrUnknownReferenceKind, "extract", strings.Join(path, "/"),
				fmt.Sprintf("audio library entry %d has no %s", i, audioItemKey), nil)
		}
		url, ok := slot.String()
		if !ok || url == "" {
			continue
		}
		if err := w.emit(path, url); err != nil {
			return err
		}
	}
	return nil
}

func acceptScriptURL(url string) bool {
	lowered := strings.ToLower(url)
	for _, host := range extensionlessHosts {
		if strings.Contains(lowered, host) {
			return true
		}
	}
	return asset.ContainsKnownExtension(url)
}
