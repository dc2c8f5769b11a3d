package asset

import (
	"fmt"
	"slices"
	"strings"

	"ttsync/internal/faults"
)

// Kind identifies how a reference is stored in the cache.
type Kind int

const (
	Image Kind = iota
	Mesh
	Bundle
	Audio
	PDF
	Text
	Script
	CustomUI
)

// CustomUIMarker is the path element that marks custom UI assets.
const CustomUIMarker = "CustomUIAssets"

type kindSpec struct {
	name       string
	subdir     string
	exts       []string
	defaultExt string
	accepts    func(mime string) bool
}

var (
	audioExts  = []string{".MP3", ".WAV", ".OGV", ".OGG"}
	imageExts  = []string{".png", ".jpg", ".mp4", ".m4v", ".webm", ".mov"}
	meshExts   = []string{".obj"}
	bundleExts = []string{".unity3d"}
	pdfExts    = []string{".PDF"}
	textExts   = []string{".TXT"}
)

// probeOrder lists the kinds whose directories are searched when a
// reference's kind is ambiguous.
var probeOrder = []Kind{Audio, Mesh, Bundle, PDF, Image, Text}

var kindSpecs = map[Kind]kindSpec{
	Mesh: {
		name:       "mesh",
		subdir:     "Mods/Models",
		exts:       meshExts,
		defaultExt: ".obj",
		accepts:    hasAnyPrefix("text/plain", "application/binary", "application/octet-stream", "application/json", "application/x-tgif"),
	},
	Bundle: {
		name:       "bundle",
		subdir:     "Mods/Assetbundles",
		exts:       bundleExts,
		defaultExt: ".unity3d",
		accepts:    hasAnyPrefix("application/binary", "application/octet-stream"),
	},
	Audio: {
		name:       "audio",
		subdir:     "Mods/Audio",
		exts:       audioExts,
		defaultExt: ".MP3",
		accepts: func(mime string) bool {
			return isOneOf(mime, "application/octet-stream", "application/binary") || strings.HasPrefix(mime, "audio/")
		},
	},
	PDF: {
		name:       "pdf",
		subdir:     "Mods/PDF",
		exts:       pdfExts,
		defaultExt: ".PDF",
		accepts:    oneOf("application/pdf", "application/binary", "application/octet-stream"),
	},
	Image: {
		name:       "image",
		subdir:     "Mods/Images",
		exts:       imageExts,
		defaultExt: ".png",
		accepts:    oneOf("image/jpeg", "image/jpg", "image/png", "application/octet-stream", "application/binary", "video/mp4"),
	},
	Text: {
		name:       "text",
		subdir:     "Mods/Text",
		exts:       textExts,
		defaultExt: ".TXT",
		accepts:    acceptsAny,
	},
	Script: {
		name:    "script",
		accepts: acceptsAny,
	},
	CustomUI: {
		name:    "custom_ui",
		accepts: acceptsAny,
	},
}

// acceptsAny is the content-type predicate for references whose kind is only
// known once the payload arrives.
var acceptsAny = oneOf(
	"application/pdf",
	"application/binary",
	"application/octet-stream",
	"application/json",
	"application/x-tgif",
	"image/jpeg",
	"image/jpg",
	"image/png",
	"video/mp4",
)

func (k Kind) spec() kindSpec {
	s, ok := kindSpecs[k]
	if !ok {
		panic(fmt.Sprintf("asset: unknown kind %d", int(k)))
	}
	return s
}

func (k Kind) String() string {
	s, ok := kindSpecs[k]
	if !ok {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return s.name
}

// Subdir returns the cache-relative directory for the kind, or "" for kinds
// that can live in any directory.
func (k Kind) Subdir() string { return k.spec().subdir }

// Extensions returns the candidate extensions in probe order.
func (k Kind) Extensions() []string { return slices.Clone(k.spec().exts) }

// DefaultExtension is used when a fetched payload offers no extension hint.
func (k Kind) DefaultExtension() string { return k.spec().defaultExt }

// Ambiguous reports whether the kind's directory is only known after probing
// the cache or fetching the payload.
func (k Kind) Ambiguous() bool { return k == Script || k == CustomUI }

// FixedExtension reports whether the kind always uses a single extension.
func (k Kind) FixedExtension() bool {
	switch k {
	case Mesh, Bundle, PDF:
		return true
	default:
		return false
	}
}

// AcceptsContentType reports whether a response media type is plausible for the
// kind. Parameters such as charset are ignored.
func (k Kind) AcceptsContentType(contentType string) bool {
	return k.spec().accepts(MediaType(contentType))
}

// MediaType strips parameters from a Content-Type header value.
func MediaType(contentType string) string {
	mediaType, _, _ := strings.Cut(contentType, ";")
	return strings.ToLower(strings.TrimSpace(mediaType))
}

// Classify determines the kind of a reference from its structural path.
func Classify(path []string) (Kind, error) {
	if len(path) == 0 {
		return Image, faults.Wrap(faults.ErrUnknownReferenceKind, "classify", "", "empty reference path", nil)
	}
	switch path[len(path)-1] {
	case "MeshURL", "ColliderURL":
		return Mesh, nil
	case "AssetbundleURL", "AssetbundleSecondaryURL":
		return Bundle, nil
	case "CurrentAudioURL", "AudioLibrary":
		return Audio, nil
	case "PDFUrl":
		return PDF, nil
	case "LuaScript":
		return Script, nil
	}
	if slices.Contains(path, CustomUIMarker) {
		return CustomUI, nil
	}
	return Image, nil
}

// FixExtCase applies the game's extension casing: audio, PDF and text files
// use upper-case extensions, everything else lower-case.
func FixExtCase(ext string) string {
	upper := strings.ToUpper(ext)
	for _, k := range []Kind{Audio, PDF, Text} {
		if slices.Contains(kindSpecs[k].exts, upper) {
			return upper
		}
	}
	return strings.ToLower(ext)
}

// ContainsKnownExtension reports whether s mentions any cache extension,
// compared case-insensitively.
func ContainsKnownExtension(s string) bool {
	lowered := strings.ToLower(s)
	for _, k := range probeOrder {
		for _, ext := range kindSpecs[k].exts {
			if strings.Contains(lowered, strings.ToLower(ext)) {
				return true
			}
		}
	}
	return false
}

func hasAnyPrefix(prefixes ...string) func(string) bool {
	return func(mime string) bool {
		for _, p := range prefixes {
			if strings.HasPrefix(mime, p) {
				return true
			}
		}
		return false
	}
}

func oneOf(values ...string) func(string) bool {
	return func(mime string) bool { return isOneOf(mime, values...) }
}

func isOneOf(mime string, values ...string) bool {
	return slices.Contains(values, mime)
}
