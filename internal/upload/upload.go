package upload

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// MaxFiles is the selection bound for count-gated pickers.
const MaxFiles = 4

var ErrUnsupportedType = errors.New("Only PDF, TXT, CSV, DOCX, and XLSX files are allowed!")

// AllowedTypes is the benchmarking allow-list.
var AllowedTypes = []string{
	"application/pdf",
	"text/plain",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"text/csv",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

var extTypes = map[string]string{
	".pdf":  "application/pdf",
	".txt":  "text/plain",
	".csv":  "text/csv",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".md":   "text/markdown",
	".json": "application/json",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
}

type File struct {
	Name string
	Path string
	MIME string
	Size int64
}

// LimitError rejects a whole batch that would overflow the selection.
type LimitError struct {
	Remaining int
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("You can only add %d more files", e.Remaining)
}

// Field is an ordered file selection. A zero max disables the count gate.
type Field struct {
	max    int
	files  []File
	picker string
}

func NewField(max int) *Field {
	return &Field{max: max}
}

func (f *Field) Files() []File {
	out := make([]File, len(f.files))
	copy(out, f.files)
	return out
}

func (f *Field) Len() int { return len(f.files) }

func (f *Field) Max() int { return f.max }

func (f *Field) Names() []string {
	names := make([]string, 0, len(f.files))
	for _, file := range f.files {
		names = append(names, file.Name)
	}
	return names
}

// AddFiles appends candidates in order, or rejects all of them when the
// batch would exceed the bound.
func (f *Field) AddFiles(candidates []File) ([]File, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	if f.max > 0 && len(f.files)+len(candidates) > f.max {
		return nil, &LimitError{Remaining: f.max - len(f.files)}
	}
	f.files = append(f.files, candidates...)
	accepted := make([]File, len(candidates))
	copy(accepted, candidates)
	return accepted, nil
}

// Replace swaps the whole selection for the allowed subset of candidates.
// The returned error is ErrUnsupportedType when anything was dropped.
func (f *Field) Replace(candidates []File) ([]File, error) {
	accepted, _, err := Filter(candidates)
	f.files = accepted
	return f.Files(), err
}

func (f *Field) Remove(index int) {
	if index < 0 || index >= len(f.files) {
		return
	}
	f.files = append(f.files[:index:index], f.files[index+1:]...)
}

// Clear empties the selection and the picker line.
func (f *Field) Clear() {
	f.files = nil
	f.picker = ""
}

func (f *Field) SetPicker(value string) { f.picker = value }

func (f *Field) Picker() string { return f.picker }

// Filter keeps the candidates whose MIME type is on the allow-list.
func Filter(candidates []File) (accepted []File, rejected int, err error) {
	accepted = make([]File, 0, len(candidates))
	for _, c := range candidates {
		if Allowed(c.MIME) {
			accepted = append(accepted, c)
			continue
		}
		rejected++
	}
	if rejected > 0 {
		err = ErrUnsupportedType
	}
	return accepted, rejected, err
}

func Allowed(mime string) bool {
	base := baseType(mime)
	for _, t := range AllowedTypes {
		if base == t {
			return true
		}
	}
	return false
}

// Open describes a local file. The MIME type is derived from the extension
// first and sniffed from the content otherwise.
func Open(path string) (File, error) {
	path = filepath.Clean(strings.TrimSpace(path))
	st, err := os.Stat(path)
	if err != nil {
		return File{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if st.IsDir() {
		return File{}, fmt.Errorf("%s is a directory", path)
	}

	typ, ok := extTypes[strings.ToLower(filepath.Ext(path))]
	if !ok {
		m, err := mimetype.DetectFile(path)
		if err != nil {
			return File{}, fmt.Errorf("detect type of %s: %w", path, err)
		}
		typ = baseType(m.String())
	}
	return File{
		Name: filepath.Base(path),
		Path: path,
		MIME: typ,
		Size: st.Size(),
	}, nil
}

// Expand turns a picker line into file paths. Entries are comma separated
// and may be glob patterns.
func Expand(input string) ([]string, error) {
	var paths []string
	for _, part := range strings.Split(input, ",") {
		part = expandHome(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		if !strings.ContainsAny(part, "*?[") {
			paths = append(paths, part)
			continue
		}
		matches, err := filepath.Glob(part)
		if err != nil {
			return nil, fmt.Errorf("expand %q: %w", part, err)
		}
		sort.Strings(matches)
		paths = append(paths, matches...)
	}
	return paths, nil
}

// OpenAll resolves a picker line into files, stopping at the first bad path.
func OpenAll(input string) ([]File, error) {
	paths, err := Expand(input)
	if err != nil {
		return nil, err
	}
	files := make([]File, 0, len(paths))
	for _, p := range paths {
		file, err := Open(p)
		if err != nil {
			return nil, err
		}
		files = append(files, file)
	}
	return files, nil
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}

func baseType(mime string) string {
	base, _, _ := strings.Cut(mime, ";")
	return strings.ToLower(strings.TrimSpace(base))
}
