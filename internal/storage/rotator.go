package storage

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
)

const (
	// Rotation triggers
	MaxMatchesPerFile = 1000
	MaxFileAge        = 1 * time.Hour

	spoolPrefix = "matches_"
	spoolExt    = ".jsonl"
)

// FileRotator writes match documents to rotating JSONL files.
// Files move hot -> warm on rotation and warm -> cold when compressed.
type FileRotator struct {
	mu sync.Mutex

	// Directories
	hotDir  string // Active writes
	warmDir string // Closed files awaiting extraction
	coldDir string // Compressed archives

	maxMatches int
	maxAge     time.Duration
	seq        int

	// Current file state
	currentFile   *os.File
	currentWriter *bufio.Writer
	currentPath   string
	matchCount    int
	fileOpenedAt  time.Time
}

// RotatorOption configures a FileRotator
type RotatorOption func(*FileRotator)

// WithMaxMatches rotates after n matches instead of MaxMatchesPerFile
func WithMaxMatches(n int) RotatorOption {
	return func(r *FileRotator) {
		if n > 0 {
			r.maxMatches = n
		}
	}
}

// WithMaxAge rotates files older than d instead of MaxFileAge
func WithMaxAge(d time.Duration) RotatorOption {
	return func(r *FileRotator) {
		if d > 0 {
			r.maxAge = d
		}
	}
}

// NewFileRotator creates a new rotator with the given base directory
func NewFileRotator(baseDir string, opts ...RotatorOption) (*FileRotator, error) {
	hotDir, warmDir, coldDir := spoolDirs(baseDir)

	for _, dir := range []string{hotDir, warmDir, coldDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	r := &FileRotator{
		hotDir:     hotDir,
		warmDir:    warmDir,
		coldDir:    coldDir,
		maxMatches: MaxMatchesPerFile,
		maxAge:     MaxFileAge,
	}
	for _, opt := range opts {
		opt(r)
	}

	if err := r.rotate(); err != nil {
		return nil, err
	}

	return r, nil
}

func spoolDirs(baseDir string) (hot, warm, cold string) {
	return filepath.Join(baseDir, "hot"), filepath.Join(baseDir, "warm"), filepath.Join(baseDir, "cold")
}

// SetColdDir allows setting a different cold storage path (e.g., HDD)
func (r *FileRotator) SetColdDir(path string) error {
	if err := os.MkdirAll(path, 0755); err != nil {
		return fmt.Errorf("failed to create cold directory: %w", err)
	}
	r.mu.Lock()
	r.coldDir = path
	r.mu.Unlock()
	return nil
}

// WriteMatch appends one document as a JSON line, flushes, and rotates
// the file if it is full or too old
func (r *FileRotator) WriteMatch(doc *MatchDocument) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal match %s: %w", doc.MatchID, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.currentFile == nil {
		return fmt.Errorf("rotator is closed")
	}
	if _, err := r.currentWriter.Write(data); err != nil {
		return fmt.Errorf("failed to write match %s: %w", doc.MatchID, err)
	}
	if err := r.currentWriter.WriteByte('\n'); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	r.matchCount++
	if err := r.currentWriter.Flush(); err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}

	if r.shouldRotate() {
		return r.rotate()
	}
	return nil
}

func (r *FileRotator) shouldRotate() bool {
	if r.currentFile == nil {
		return true
	}
	if r.matchCount >= r.maxMatches {
		return true
	}
	return time.Since(r.fileOpenedAt) >= r.maxAge
}

// rotate closes current file and opens a new one
func (r *FileRotator) rotate() error {
	if r.currentFile != nil {
		if err := r.closeCurrent(); err != nil {
			return err
		}
	}

	// Timestamp plus sequence keeps names unique and in write order
	r.seq++
	filename := fmt.Sprintf("%s%s_%04d%s", spoolPrefix, time.Now().UTC().Format("2006-01-02_15-04-05"), r.seq, spoolExt)
	r.currentPath = filepath.Join(r.hotDir, filename)

	file, err := os.Create(r.currentPath)
	if err != nil {
		return fmt.Errorf("failed to create new file: %w", err)
	}

	r.currentFile = file
	r.currentWriter = bufio.NewWriterSize(file, 64*1024) // 64KB buffer
	r.matchCount = 0
	r.fileOpenedAt = time.Now()

	log.Printf("[Rotator] Opened new file: %s", filename)
	return nil
}

// closeCurrent closes the open file and moves it to warm, or removes it if empty
func (r *FileRotator) closeCurrent() error {
	if err := r.currentWriter.Flush(); err != nil {
		return fmt.Errorf("failed to flush before rotation: %w", err)
	}
	if err := r.currentFile.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}
	r.currentFile = nil

	if r.matchCount == 0 {
		os.Remove(r.currentPath)
		return nil
	}

	warmPath := filepath.Join(r.warmDir, filepath.Base(r.currentPath))
	if err := os.Rename(r.currentPath, warmPath); err != nil {
		return fmt.Errorf("failed to move to warm storage: %w", err)
	}
	log.Printf("[Rotator] Moved %s to warm storage (%d matches)", filepath.Base(r.currentPath), r.matchCount)
	return nil
}

// Close flushes and closes the current file
func (r *FileRotator) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.currentFile == nil {
		return nil
	}
	return r.closeCurrent()
}

// Stats returns current rotator statistics
func (r *FileRotator) Stats() (matchesInCurrentFile int, currentFileName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.matchCount, filepath.Base(r.currentPath)
}

// CompressWarm moves every warm file to cold storage and returns how many
// files were compressed
func (r *FileRotator) CompressWarm() (int, error) {
	r.mu.Lock()
	warmDir, coldDir := r.warmDir, r.coldDir
	r.mu.Unlock()

	files, err := listSpool(warmDir, spoolExt)
	if err != nil {
		return 0, err
	}
	for i, path := range files {
		if err := CompressToCold(path, coldDir); err != nil {
			return i, err
		}
	}
	return len(files), nil
}

// CompressToCold compresses a warm file and moves it to cold storage
func CompressToCold(warmPath, coldDir string) error {
	src, err := os.Open(warmPath)
	if err != nil {
		return err
	}
	defer src.Close()

	coldPath := filepath.Join(coldDir, filepath.Base(warmPath)+".gz")
	dst, err := os.Create(coldPath)
	if err != nil {
		return err
	}
	defer dst.Close()

	gzWriter := gzip.NewWriter(dst)
	if _, err := io.Copy(gzWriter, src); err != nil {
		return err
	}
	if err := gzWriter.Close(); err != nil {
		return err
	}

	if err := os.Remove(warmPath); err != nil {
		return err
	}

	log.Printf("[Rotator] Compressed %s to cold storage", filepath.Base(warmPath))
	return nil
}

// listSpool returns the spool files in dir with the given suffix, sorted by name
func listSpool(dir, suffix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var files []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, spoolPrefix) || !strings.HasSuffix(name, suffix) {
			continue
		}
		files = append(files, filepath.Join(dir, name))
	}
	sort.Strings(files)
	return files, nil
}
