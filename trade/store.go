package trade

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rustyeddy/tradebook/pkg/atomicfile"
)

// ChartsDir is the per-ticker directory name reserved for price history. The
// store never treats files below it as trade records.
const ChartsDir = "charts"

// Store keeps one JSON file per trade at {root}/{ticker}/{id}.json.
type Store struct {
	root   string
	writer atomicfile.Writer
}

type StoreOption func(*Store)

// WithWriter replaces the atomic writer, e.g. to inject failures.
func WithWriter(w atomicfile.Writer) StoreOption {
	return func(s *Store) { s.writer = w }
}

func NewStore(root string, opts ...StoreOption) *Store {
	s := &Store{root: root, writer: atomicfile.Default}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Store) Root() string { return s.root }

func (s *Store) Path(ticker, id string) string {
	return filepath.Join(s.root, ticker, id+".json")
}

// Save writes the full state. Failures come back as *PersistenceError.
func (s *Store) Save(st State) error {
	path := s.Path(st.Ticker, st.ID)
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return &PersistenceError{Path: path, Err: err}
	}
	if err := s.writer.WriteFile(path, data, 0o644); err != nil {
		return &PersistenceError{Path: path, Err: err}
	}
	return nil
}

// Exists reports whether a file for (ticker, id) is present.
func (s *Store) Exists(ticker, id string) bool {
	_, err := os.Stat(s.Path(ticker, id))
	return err == nil
}

func (s *Store) Load(ticker, id string) (State, error) {
	path := s.Path(ticker, id)
	st, err := LoadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return State{}, fmt.Errorf("%s/%s: %w", ticker, id, ErrNotFound)
	}
	return st, err
}

// Find locates a trade by id alone by scanning the ticker directories.
func (s *Store) Find(id string) (State, error) {
	matches, _ := filepath.Glob(filepath.Join(s.root, "*", id+".json"))
	if len(matches) == 0 {
		return State{}, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return LoadFile(matches[0])
}

// LoadFile decodes and validates one trade file. Decode and invariant
// failures come back as *MalformedError.
func LoadFile(path string) (State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return State{}, err
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return State{}, &MalformedError{Path: path, Err: err}
	}
	if err := st.Validate(); err != nil {
		return State{}, &MalformedError{Path: path, Err: err}
	}
	return st, nil
}

// Skipped is a file that could not be loaded during a scan.
type Skipped struct {
	Path string
	Err  error
}

// Walk loads every trade file below the root. Files that fail to load are
// reported in skipped rather than aborting the scan. A missing root yields
// no trades.
func (s *Store) Walk() (states []State, skipped []Skipped, err error) {
	err = filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path == s.root {
				return filepath.SkipAll
			}
			return err
		}
		if d.IsDir() {
			if d.Name() == ChartsDir {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(d.Name(), ".json") {
			return nil
		}
		st, lerr := LoadFile(path)
		if lerr != nil {
			skipped = append(skipped, Skipped{Path: path, Err: lerr})
			return nil
		}
		states = append(states, st)
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("scan %s: %w", s.root, err)
	}

	sort.Slice(states, func(i, j int) bool {
		if states[i].Ticker != states[j].Ticker {
			return states[i].Ticker < states[j].Ticker
		}
		return states[i].ID < states[j].ID
	})
	return states, skipped, nil
}
