package storage

import (
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"malariascope/internal/logger"
	"malariascope/internal/model"
	"malariascope/internal/repository"
)

const (
	// TimestampLayout is shared by both files of a run.
	TimestampLayout = "20060102_150405"

	InputPrefix  = "input_"
	OutputPrefix = "output_"
	Extension    = ".jpg"
)

// WriteError means a run's directory or one of its files could not be written.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("failed to save results to %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// ArtifactStore writes the original and annotated image of every run under
// <root>/<username>/.
type ArtifactStore struct {
	root   string
	logger *logger.Logger

	mu  sync.RWMutex
	now func() time.Time
}

// NewArtifactStore creates a store rooted at root.
func NewArtifactStore(root string, logger *logger.Logger) *ArtifactStore {
	return &ArtifactStore{
		root:   root,
		logger: logger,
		now:    time.Now,
	}
}

// SetClock replaces the time source used for file names.
func (s *ArtifactStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Root returns the directory all user folders live in.
func (s *ArtifactStore) Root() string {
	return s.root
}

// UserDir returns the directory of username, rejecting names that are not a
// single path element.
func (s *ArtifactStore) UserDir(username string) (string, error) {
	if username == "" || username == "." || username == ".." ||
		strings.ContainsAny(username, `/\`) || strings.ContainsRune(username, 0) {
		return "", &WriteError{Path: s.root, Err: fmt.Errorf("invalid username %q", username)}
	}
	return filepath.Join(s.root, username), nil
}

// Save writes input_<ts>.jpg then output_<ts>.jpg. A failed second write
// leaves the first file in place. Two saves in the same second overwrite.
func (s *ArtifactStore) Save(original, annotated image.Image, username string) (*model.ArtifactPair, error) {
	dir, err := s.UserDir(username)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	now := s.now()
	s.mu.RUnlock()
	ts := now.Format(TimestampLayout)

	if err := os.MkdirAll(dir, 0755); err != nil {
		s.logger.Error("Error creating directory %s: %v", dir, err)
		return nil, &WriteError{Path: dir, Err: err}
	}

	pair := &model.ArtifactPair{
		Username:   username,
		Timestamp:  now,
		InputPath:  filepath.Join(dir, InputPrefix+ts+Extension),
		OutputPath: filepath.Join(dir, OutputPrefix+ts+Extension),
	}

	if err := writeJPEG(pair.InputPath, original); err != nil {
		s.logger.Error("Error saving image %s: %v", pair.InputPath, err)
		return nil, err
	}
	if err := writeJPEG(pair.OutputPath, annotated); err != nil {
		s.logger.Error("Error saving image %s: %v", pair.OutputPath, err)
		return nil, err
	}

	s.logger.Info("Saved run for %s to %s", username, dir)
	return pair, nil
}

func writeJPEG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return &WriteError{Path: path, Err: err}
	}
	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: jpeg.DefaultQuality}); err != nil {
		f.Close()
		return &WriteError{Path: path, Err: err}
	}
	if err := f.Close(); err != nil {
		return &WriteError{Path: path, Err: err}
	}
	return nil
}

// List pairs the input and output files in a user's directory by timestamp,
// oldest first. Inputs without an output are skipped.
func (s *ArtifactStore) List(username string) ([]model.ArtifactPair, error) {
	dir, err := s.UserDir(username)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	outputs := make(map[string]bool)
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() && strings.HasPrefix(name, OutputPrefix) && strings.HasSuffix(name, Extension) {
			outputs[strings.TrimSuffix(strings.TrimPrefix(name, OutputPrefix), Extension)] = true
		}
	}

	var pairs []model.ArtifactPair
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, InputPrefix) || !strings.HasSuffix(name, Extension) {
			continue
		}
		ts := strings.TrimSuffix(strings.TrimPrefix(name, InputPrefix), Extension)
		if !outputs[ts] {
			continue
		}
		parsed, err := time.ParseInLocation(TimestampLayout, ts, time.Local)
		if err != nil {
			continue
		}
		pairs = append(pairs, model.ArtifactPair{
			Username:   username,
			Timestamp:  parsed,
			InputPath:  filepath.Join(dir, name),
			OutputPath: filepath.Join(dir, OutputPrefix+ts+Extension),
		})
	}

	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].Timestamp.Before(pairs[j].Timestamp)
	})
	return pairs, nil
}

// Users returns every user that has a results directory.
func (s *ArtifactStore) Users() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.root, err)
	}

	var users []string
	for _, entry := range entries {
		if entry.IsDir() {
			users = append(users, entry.Name())
		}
	}
	return users, nil
}

// Remove deletes both files of a run. Missing files are ignored.
func (s *ArtifactStore) Remove(inputPath, outputPath string) error {
	for _, path := range []string{inputPath, outputPath} {
		if !s.owns(path) {
			return fmt.Errorf("refusing to remove %s outside %s", path, s.root)
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", path, err)
		}
	}
	return nil
}

func (s *ArtifactStore) owns(path string) bool {
	rel, err := filepath.Rel(s.root, path)
	if err != nil {
		return false
	}
	return rel != "." && !strings.HasPrefix(rel, "..") && !filepath.IsAbs(rel)
}

// Reindex records every saved pair that the run index does not know yet and
// returns how many were added. Detections of reindexed runs are unknown.
func (s *ArtifactStore) Reindex(runRepo repository.RunRepository) (int, error) {
	users, err := s.Users()
	if err != nil {
		return 0, err
	}

	added := 0
	for _, username := range users {
		pairs, err := s.List(username)
		if err != nil {
			s.logger.Warning("Skipping results of %s: %v", username, err)
			continue
		}
		for _, pair := range pairs {
			exists, err := runRepo.ExistsByInputPath(pair.InputPath)
			if err != nil {
				return added, err
			}
			if exists {
				continue
			}
			run := &model.Run{
				Username:   pair.Username,
				Timestamp:  pair.Timestamp,
				InputPath:  pair.InputPath,
				OutputPath: pair.OutputPath,
			}
			if _, err := runRepo.Insert(run); err != nil {
				return added, err
			}
			added++
		}
	}

	s.logger.Info("Reindexed %d runs from %s", added, s.root)
	return added, nil
}
