package store

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/srand/capataz/pkg/job"
)

// Job records as tab indented JSON files, one per job.
type fileRecords struct {
	fs   afero.Fs
	path string
}

// Creates a store keeping job records as files in config.Path.
func NewFileStore(fs afero.Fs, config *Config, opts ...Option) (*PersistentStore, error) {
	path := config.Path
	if path == "" {
		path = DefaultFilePath
	}

	if err := fs.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create job folder: %w", err)
	}

	return newPersistentStore(&fileRecords{fs: fs, path: path}, config, opts...), nil
}

func (r *fileRecords) filePath(id job.ID) string {
	return filepath.Join(r.path, fmt.Sprintf("job-%010d.json", id))
}

func (r *fileRecords) Read(id job.ID) (*job.Job, error) {
	data, err := afero.ReadFile(r.fs, r.filePath(id))
	if err != nil {
		return nil, err
	}

	j := &job.Job{}
	if err := json.Unmarshal(data, j); err != nil {
		return nil, err
	}
	return j, nil
}

func (r *fileRecords) Write(j *job.Job) error {
	data, err := json.MarshalIndent(j, "", "\t")
	if err != nil {
		return err
	}
	return afero.WriteFile(r.fs, r.filePath(j.ID), data, 0o644)
}

func (r *fileRecords) Close() error {
	return nil
}
