package mapping

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"
)

// FileStoreVersion is the current schema version for the rules file.
const FileStoreVersion = 1

// fileStoreData is the serialized form of the rules file.
type fileStoreData struct {
	Version int    `json:"version"`
	Rules   []Rule `json:"rules"`
}

// FileStore persists rules as a JSON file shared between processes.
//
// Every operation takes an advisory lockfile next to the rules file and
// re-reads it, so concurrent CLI invocations see each other's writes. Writes
// go through a temp file and rename.
type FileStore struct {
	mu       sync.Mutex
	filePath string
}

// NewFileStore returns a FileStore backed by filePath. The file is created on
// the first Put.
func NewFileStore(filePath string) (*FileStore, error) {
	if filePath == "" {
		return nil, errors.New("mapping rules file path cannot be empty")
	}
	return &FileStore{filePath: filePath}, nil
}

// Path returns the rules file path.
func (s *FileStore) Path() string { return s.filePath }

// Get returns the rule stored under key.
func (s *FileStore) Get(_ context.Context, key Key) (Rule, bool, error) {
	var (
		found Rule
		ok    bool
	)
	err := s.withLock(func() error {
		rules, err := s.read()
		if err != nil {
			return err
		}
		if r, hit := rules[key]; hit {
			found, ok = r.clone(), true
		}
		return nil
	})
	return found, ok, err
}

// Put replaces the rule with the same key and rewrites the file.
func (s *FileStore) Put(_ context.Context, rule Rule) error {
	return s.withLock(func() error {
		rules, err := s.read()
		if err != nil {
			return err
		}
		c := rule.clone()
		rules[rule.Key()] = &c
		return s.write(rules)
	})
}

// List returns all rules in key order.
func (s *FileStore) List(_ context.Context) ([]Rule, error) {
	var out []Rule
	err := s.withLock(func() error {
		rules, err := s.read()
		if err != nil {
			return err
		}
		out = make([]Rule, 0, len(rules))
		for _, r := range rules {
			out = append(out, r.clone())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortRules(out)
	return out, nil
}

func (s *FileStore) withLock(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	unlock, err := s.acquireFileLock()
	if err != nil {
		return fmt.Errorf("acquiring file lock: %w", err)
	}
	defer unlock()
	return fn()
}

// read loads the rules file. A missing file is an empty rule set; a file that
// cannot be parsed is ErrStoreCorrupted.
func (s *FileStore) read() (map[Key]*Rule, error) {
	rules := make(map[Key]*Rule)

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return rules, nil
		}
		return nil, fmt.Errorf("reading mapping rules file: %w", err)
	}

	var stored fileStoreData
	if unmarshalErr := json.Unmarshal(data, &stored); unmarshalErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreCorrupted, unmarshalErr)
	}
	if stored.Version != FileStoreVersion {
		return nil, fmt.Errorf("%w: unsupported version %d (expected %d)",
			ErrStoreCorrupted, stored.Version, FileStoreVersion)
	}

	for i := range stored.Rules {
		r := stored.Rules[i]
		rules[r.Key()] = &r
	}
	return rules, nil
}

func (s *FileStore) write(rules map[Key]*Rule) error {
	stored := fileStoreData{Version: FileStoreVersion, Rules: make([]Rule, 0, len(rules))}
	for _, r := range rules {
		stored.Rules = append(stored.Rules, *r)
	}
	sortRules(stored.Rules)

	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling mapping rules: %w", err)
	}

	if mkdirErr := os.MkdirAll(filepath.Dir(s.filePath), 0o750); mkdirErr != nil {
		return fmt.Errorf("creating mapping rules directory: %w", mkdirErr)
	}

	tmpPath := s.filePath + ".tmp"
	if writeErr := os.WriteFile(tmpPath, data, 0o600); writeErr != nil {
		return fmt.Errorf("writing mapping rules temp file: %w", writeErr)
	}
	if renameErr := os.Rename(tmpPath, s.filePath); renameErr != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("renaming mapping rules temp file: %w", renameErr)
	}
	return nil
}

func (s *FileStore) lockFilePath() string {
	return s.filePath + ".lock"
}

// acquireFileLock creates the lockfile exclusively, retrying and clearing
// locks left behind by dead processes. The returned func releases it.
func (s *FileStore) acquireFileLock() (func(), error) {
	lockPath := s.lockFilePath()

	if err := os.MkdirAll(filepath.Dir(lockPath), 0o750); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}

	const maxRetries = 10
	const retryDelay = 100 * time.Millisecond
	const staleLockAge = 30 * time.Second

	for range maxRetries {
		f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if err == nil {
			_, _ = fmt.Fprintf(f, "%d", os.Getpid())
			_ = f.Close()
			return func() { _ = os.Remove(lockPath) }, nil
		}

		if removeStaleLock(lockPath, staleLockAge) {
			continue
		}
		time.Sleep(retryDelay)
	}

	return nil, fmt.Errorf("could not acquire lock on %s after retries", lockPath)
}

// removeStaleLock removes a lock older than staleLockAge whose owner is gone.
// Returns true if the caller should retry immediately.
func removeStaleLock(lockPath string, staleLockAge time.Duration) bool {
	info, statErr := os.Stat(lockPath)
	if statErr != nil || time.Since(info.ModTime()) <= staleLockAge {
		return false
	}
	if isLockHeldByLiveProcess(lockPath) {
		return false
	}
	_ = os.Remove(lockPath)
	return true
}

func isLockHeldByLiveProcess(lockPath string) bool {
	pidData, readErr := os.ReadFile(lockPath)
	if readErr != nil || len(pidData) == 0 {
		return false
	}
	var pid int
	if _, scanErr := fmt.Sscanf(string(pidData), "%d", &pid); scanErr != nil || pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// Signal 0 probes for existence without delivering anything.
	return proc.Signal(syscall.Signal(0)) == nil
}
