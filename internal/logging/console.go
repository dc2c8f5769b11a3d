package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// consoleHandler writes one line per record:
//
//	14:02:11 WARN  fetch: asset unavailable [Image] http://host/a.png (123.json) reason="HTTPError 404 (Not Found)"
//
// Component, kind, url and document are lifted out of the key=value tail.
// Run ids and source locations appear only in verbose mode.
type consoleHandler struct {
	out     *syncWriter
	level   slog.Level
	verbose bool
	group   string
	lifted  lineFields
	tail    []field
}

type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) write(p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.w.Write(p)
	return err
}

type field struct {
	key   string
	value slog.Value
}

type lineFields struct {
	component string
	kind      string
	url       string
	document  string
	runID     string
}

func (f *lineFields) lift(key string, v slog.Value) bool {
	switch key {
	case FieldComponent:
		f.component = v.String()
	case FieldKind:
		f.kind = v.String()
	case FieldURL:
		f.url = v.String()
	case FieldDocument:
		f.document = filepath.Base(v.String())
	case FieldRunID:
		f.runID = v.String()
	default:
		return false
	}
	return true
}

func newConsoleHandler(w io.Writer, level slog.Level, verbose bool) *consoleHandler {
	return &consoleHandler{out: &syncWriter{w: w}, level: level, verbose: verbose}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *consoleHandler) Handle(_ context.Context, r slog.Record) error {
	lifted := h.lifted
	tail := append([]field(nil), h.tail...)
	r.Attrs(func(a slog.Attr) bool {
		tail = collect(tail, &lifted, h.group, a)
		return true
	})

	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	var b strings.Builder
	b.WriteString(ts.Local().Format(time.TimeOnly))
	fmt.Fprintf(&b, " %-5s ", levelName(r.Level))
	if lifted.component != "" {
		b.WriteString(lifted.component)
		b.WriteString(": ")
	}
	if msg := strings.TrimSpace(r.Message); msg != "" {
		b.WriteString(msg)
	} else {
		b.WriteString("(no message)")
	}
	if lifted.kind != "" {
		b.WriteString(" [" + lifted.kind + "]")
	}
	if lifted.url != "" {
		b.WriteString(" " + quoteIfNeeded(lifted.url))
	}
	if lifted.document != "" {
		b.WriteString(" (" + lifted.document + ")")
	}
	if h.verbose {
		if lifted.runID != "" {
			b.WriteString(" run=" + shortID(lifted.runID))
		}
		if src := r.Source(); r.PC != 0 && src != nil {
			b.WriteString(" <" + filepath.Base(src.File) + ":" + strconv.Itoa(src.Line) + ">")
		}
	}
	for _, f := range tail {
		b.WriteString(" " + f.key + "=" + formatValue(f.value))
	}
	b.WriteByte('\n')
	return h.out.write([]byte(b.String()))
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.tail = append([]field(nil), h.tail...)
	for _, a := range attrs {
		clone.tail = collect(clone.tail, &clone.lifted, clone.group, a)
	}
	return &clone
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.group = joinKey(h.group, name)
	return &clone
}

// collect flattens a into dst, lifting line fields that are not grouped.
func collect(dst []field, lifted *lineFields, group string, a slog.Attr) []field {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return dst
	}
	if a.Value.Kind() == slog.KindGroup {
		inner := group
		if a.Key != "" {
			inner = joinKey(group, a.Key)
		}
		for _, member := range a.Value.Group() {
			dst = collect(dst, lifted, inner, member)
		}
		return dst
	}
	if group == "" && lifted.lift(a.Key, a.Value) {
		return dst
	}
	return append(dst, field{key: joinKey(group, a.Key), value: a.Value})
}

func joinKey(group, key string) string {
	if group == "" {
		return key
	}
	return group + "." + key
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func levelName(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}

func formatValue(v slog.Value) string {
	switch v.Kind() {
	case slog.KindString:
		return quoteIfNeeded(v.String())
	case slog.KindTime:
		return v.Time().Local().Format(time.DateTime)
	case slog.KindDuration:
		return v.Duration().Round(time.Millisecond).String()
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return quoteIfNeeded(err.Error())
		}
		return quoteIfNeeded(fmt.Sprint(v.Any()))
	default:
		return v.String()
	}
}

func quoteIfNeeded(s string) string {
	if s == "" || strings.ContainsFunc(s, func(r rune) bool { return r <= ' ' || r == '"' || r == '=' }) {
		return strconv.Quote(s)
	}
	return s
}
