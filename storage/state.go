// Package storage is recruitctl's durable client storage: session flags and
// remembered cookies in one JSON state file shared by concurrent processes.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// SavedCookie is the persisted form of a cookie.
type SavedCookie struct {
	Name    string    `json:"name"`
	Value   string    `json:"value"`
	Path    string    `json:"path,omitempty"`
	Expires time.Time `json:"expires,omitzero"`
}

// State is the content of the state file.
type State struct {
	Flags   map[string]bool          `json:"flags"`
	Cookies map[string][]SavedCookie `json:"cookies,omitempty"` // key = origin
}

// FileStore keeps State in a JSON file. Every write happens under a file lock
// and replaces the file atomically.
type FileStore struct {
	path string
}

// NewFileStore returns a store backed by path. The file is created on first write.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the location of the state file.
func (f *FileStore) Path() string {
	return f.path
}

// Load reads the state file. A missing file is an empty state.
func (f *FileStore) Load() (*State, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return &State{Flags: make(map[string]bool)}, nil
	}
	if err != nil {
		return nil, err
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("failed to parse state file: %w", err)
	}
	if st.Flags == nil {
		st.Flags = make(map[string]bool)
	}
	return &st, nil
}

// Update applies fn to the current state and writes the result back.
func (f *FileStore) Update(fn func(*State)) error {
	if dir := filepath.Dir(f.path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("failed to create state directory: %w", err)
		}
	}

	lock, err := acquireFileLock(f.path)
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer func() {
		if releaseErr := lock.release(); releaseErr != nil {
			fmt.Fprintf(os.Stderr, "failed to release lock: %v\n", releaseErr)
		}
	}()

	// Read inside the lock; an unreadable file starts over empty.
	st, err := f.Load()
	if err != nil {
		st = &State{Flags: make(map[string]bool)}
	}
	fn(st)

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}

	tempFile := f.path + ".tmp"
	if err := os.WriteFile(tempFile, data, 0o600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tempFile, f.path); err != nil {
		if removeErr := os.Remove(tempFile); removeErr != nil {
			return fmt.Errorf(
				"failed to rename temp file: %v; additionally failed to remove temp file: %w",
				err,
				removeErr,
			)
		}
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// SetFlag stores a boolean flag.
func (f *FileStore) SetFlag(key string, on bool) error {
	return f.Update(func(st *State) {
		st.Flags[key] = on
	})
}

// Flag reports whether key is set. Read errors count as unset.
func (f *FileStore) Flag(key string) bool {
	st, err := f.Load()
	if err != nil {
		return false
	}
	return st.Flags[key]
}

// ClearFlags removes the given flags.
func (f *FileStore) ClearFlags(keys ...string) error {
	return f.Update(func(st *State) {
		for _, k := range keys {
			delete(st.Flags, k)
		}
	})
}

// SaveCookies replaces the cookies remembered for origin.
func (f *FileStore) SaveCookies(origin string, cookies []*http.Cookie) error {
	return f.Update(func(st *State) {
		if len(cookies) == 0 {
			delete(st.Cookies, origin)
			return
		}
		if st.Cookies == nil {
			st.Cookies = make(map[string][]SavedCookie)
		}
		saved := make([]SavedCookie, 0, len(cookies))
		for _, c := range cookies {
			saved = append(saved, SavedCookie{
				Name:    c.Name,
				Value:   c.Value,
				Path:    c.Path,
				Expires: c.Expires,
			})
		}
		st.Cookies[origin] = saved
	})
}

// Cookies returns the unexpired cookies remembered for origin.
func (f *FileStore) Cookies(origin string) ([]*http.Cookie, error) {
	st, err := f.Load()
	if err != nil {
		return nil, err
	}
	now := time.Now()
	var out []*http.Cookie
	for _, c := range st.Cookies[origin] {
		if !c.Expires.IsZero() && c.Expires.Before(now) {
			continue
		}
		path := c.Path
		if path == "" {
			path = "/"
		}
		out = append(out, &http.Cookie{
			Name:    c.Name,
			Value:   c.Value,
			Path:    path,
			Expires: c.Expires,
		})
	}
	return out, nil
}
