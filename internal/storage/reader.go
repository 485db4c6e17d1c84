package storage

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	json "github.com/goccy/go-json"
)

// Reader streams match documents back out of a spool directory
type Reader struct {
	warmDir string
	coldDir string

	skipped int
}

// NewReader reads the warm and cold files below baseDir. Hot files are still
// being written and are ignored.
func NewReader(baseDir string) *Reader {
	_, warm, cold := spoolDirs(baseDir)
	return &Reader{warmDir: warm, coldDir: cold}
}

// WithColdDir reads compressed files from a different cold directory
func (r *Reader) WithColdDir(dir string) *Reader {
	r.coldDir = dir
	return r
}

// Files returns the spool files in write order: warm .jsonl and cold
// .jsonl.gz merged by file name
func (r *Reader) Files() ([]string, error) {
	warm, err := listSpool(r.warmDir, spoolExt)
	if err != nil {
		return nil, fmt.Errorf("failed to list warm files: %w", err)
	}
	cold, err := listSpool(r.coldDir, spoolExt+".gz")
	if err != nil {
		return nil, fmt.Errorf("failed to list cold files: %w", err)
	}

	files := append(warm, cold...)
	sort.SliceStable(files, func(i, j int) bool {
		return spoolKey(files[i]) < spoolKey(files[j])
	})
	return files, nil
}

func spoolKey(path string) string {
	return strings.TrimSuffix(filepath.Base(path), ".gz")
}

// Skipped returns how many undecodable lines were skipped so far
func (r *Reader) Skipped() int {
	return r.skipped
}

// Each calls fn for every document in every spool file, in order
func (r *Reader) Each(ctx context.Context, fn func(doc *MatchDocument) error) error {
	files, err := r.Files()
	if err != nil {
		return err
	}
	log.Printf("[Reader] Streaming %d spool files", len(files))

	for _, path := range files {
		if err := r.eachInFile(ctx, path, fn); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reader) eachInFile(ctx context.Context, path string, fn func(doc *MatchDocument) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	var src io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("failed to open gzip %s: %w", path, err)
		}
		defer gz.Close()
		src = gz
	}

	// Timeline lines exceed bufio.Scanner's default token size
	br := bufio.NewReaderSize(src, 1024*1024)
	lineNo := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		line, readErr := br.ReadBytes('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return fmt.Errorf("failed to read %s: %w", path, readErr)
		}
		lineNo++

		line = bytes.TrimSpace(line)
		if len(line) > 0 {
			var doc MatchDocument
			if err := json.Unmarshal(line, &doc); err != nil || doc.MatchID == "" {
				r.skipped++
				log.Printf("[Reader] Skipping bad line %d in %s: %v", lineNo, filepath.Base(path), err)
			} else if err := fn(&doc); err != nil {
				return err
			}
		}

		if errors.Is(readErr, io.EOF) {
			return nil
		}
	}
}
