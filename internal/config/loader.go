package config

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// LoadPaths resolves a list of CLI-supplied watch paths into loaded
// Documents. Each path may be a single file or a directory; directories
// are walked recursively and every file matching `*.y*ml` is loaded, per
// spec.md §6's CLI surface. Files within a directory are loaded in
// lexical path order for deterministic output across runs.
func LoadPaths(paths []string) ([]*Document, []error) {
	var docs []*Document
	var errs []error

	for _, p := range paths {
		files, err := expandPath(p)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, f := range files {
			doc, err := LoadFile(f)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			docs = append(docs, doc)
		}
	}
	return docs, errs
}

func expandPath(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if matched, _ := filepath.Match("*.y*ml", d.Name()); matched {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}
