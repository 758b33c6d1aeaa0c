package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"caregraph/internal/config"
	"caregraph/internal/patient"
)

// PatientStore is the subset of the store the ingest pipeline needs.
type PatientStore interface {
	EnsureSchema(ctx context.Context) error
	UpsertPatient(ctx context.Context, g *patient.ClinicalGraph) error
}

type Result struct {
	PatientsUpserted int
	FilesSkipped     int
	Errors           []error
}

// Run walks the configured source directories for patient history files and
// synchronises them into the store. Per-file failures are collected rather
// than aborting the run.
func Run(ctx context.Context, cfg *config.ProjectConfig, db PatientStore) (*Result, error) {
	if len(cfg.Sources) == 0 {
		return nil, fmt.Errorf("no sources configured")
	}
	if err := db.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	files, skipped, err := walkPatientFiles(cfg.Sources, cfg.Exclude)
	if err != nil {
		return nil, fmt.Errorf("walking sources: %w", err)
	}

	result := &Result{FilesSkipped: skipped}
	for _, path := range files {
		g, err := ParsePatientFile(path)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("parsing %s: %w", path, err))
			continue
		}
		if err := db.UpsertPatient(ctx, g); err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("upserting %s: %w", path, err))
			continue
		}
		result.PatientsUpserted++
	}
	return result, nil
}

// ParsePatientFile reads one patient history YAML file into a validated
// clinical graph.
func ParsePatientFile(path string) (*patient.ClinicalGraph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading patient file: %w", err)
	}
	return ParsePatient(data)
}

func ParsePatient(data []byte) (*patient.ClinicalGraph, error) {
	var file PatientFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing patient file: %w", err)
	}
	return file.ToGraph()
}

func walkPatientFiles(sources, exclude []string) ([]string, int, error) {
	var files []string
	skipped := 0
	seen := make(map[string]struct{})

	for _, source := range sources {
		err := filepath.WalkDir(source, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if isExcluded(path, exclude) {
					return filepath.SkipDir
				}
				return nil
			}
			ext := strings.ToLower(filepath.Ext(path))
			if ext != ".yaml" && ext != ".yml" {
				skipped++
				return nil
			}
			if isExcluded(path, exclude) {
				skipped++
				return nil
			}
			if _, dup := seen[path]; dup {
				return nil
			}
			seen[path] = struct{}{}
			files = append(files, path)
			return nil
		})
		if err != nil {
			return nil, 0, fmt.Errorf("walking %s: %w", source, err)
		}
	}
	return files, skipped, nil
}

func isExcluded(path string, exclude []string) bool {
	for _, prefix := range exclude {
		cleaned := filepath.Clean(prefix)
		if path == cleaned || strings.HasPrefix(path, cleaned+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
