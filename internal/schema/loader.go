package schema

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/flowmesh/dexterity/internal/logger"
)

var windowsAbsPath = regexp.MustCompile(`^[A-Za-z]:[\\/]`)

// Loader compiles model documents from inline text or files.
// Compiled models are memoized by source text, so identical sources
// always yield the same *Model.
type Loader struct {
	validator *Validator
	log       zerolog.Logger

	mu        sync.RWMutex
	bySource  map[string]*Model
	byFile    map[string]*Model
	resources map[string]fs.FS
	readFile  func(name string) ([]byte, error)
}

// NewLoader creates a loader with no resource roots
func NewLoader() *Loader {
	return &Loader{
		validator: NewValidator(),
		log:       logger.WithComponent("model-loader"),
		bySource:  make(map[string]*Model),
		byFile:    make(map[string]*Model),
		resources: make(map[string]fs.FS),
		readFile:  os.ReadFile,
	}
}

// AddResourceRoot makes package-relative references "pkg:path" resolvable
// against fsys
func (l *Loader) AddResourceRoot(pkg string, fsys fs.FS) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.resources[pkg] = fsys
}

// LoadString compiles an inline model document
func (l *Loader) LoadString(src string) (*Model, error) {
	return l.load("", []byte(src))
}

// LoadFile compiles the model file named by ref. With reload set the file
// is read again even if it was loaded before.
func (l *Loader) LoadFile(ref string, reload bool) (*Model, error) {
	if !reload {
		l.mu.RLock()
		m, ok := l.byFile[ref]
		l.mu.RUnlock()
		if ok {
			return m, nil
		}
	}

	data, err := l.ReadModelFile(ref)
	if err != nil {
		return nil, err
	}

	m, err := l.load(ref, data)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.byFile[ref] = m
	l.mu.Unlock()

	l.log.Debug().Str("model_file", ref).Msg("Loaded model file")
	return m, nil
}

// ReadModelFile returns the raw document named by ref. Absolute paths are
// read from the OS filesystem, "pkg:path" references from resource roots.
func (l *Loader) ReadModelFile(ref string) ([]byte, error) {
	if filepath.IsAbs(ref) || windowsAbsPath.MatchString(ref) {
		data, err := l.readFile(ref)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, NotFoundError{Name: ref}
		}
		return data, err
	}

	pkg, rel, ok := strings.Cut(ref, ":")
	if !ok || pkg == "" || rel == "" {
		return nil, InvalidModelError{Ref: ref, Reason: "model file must be an absolute path or package:path"}
	}

	l.mu.RLock()
	fsys, ok := l.resources[pkg]
	l.mu.RUnlock()
	if !ok {
		return nil, NotFoundError{Name: ref}
	}

	data, err := fs.ReadFile(fsys, rel)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, NotFoundError{Name: ref}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", ref, err)
	}
	return data, nil
}

func (l *Loader) load(ref string, src []byte) (*Model, error) {
	key := string(src)

	l.mu.RLock()
	m, ok := l.bySource[key]
	l.mu.RUnlock()
	if ok {
		return m, nil
	}

	m, err := compileModel(l.validator, ref, src)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if existing, ok := l.bySource[key]; ok {
		return existing, nil
	}
	l.bySource[key] = m
	return m, nil
}
