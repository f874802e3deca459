// Package paths resolves path patterns to the concrete set of container
// files a conversion job reads, with a two-tier error taxonomy: "nothing
// matched the pattern at all" is a different failure from "things matched
// but none of them are container files". The first means a mistyped path,
// the second a directory with no data files of the expected format.
package paths

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/ajitpratap0/tabavro/pkg/avro/ocf"
	"github.com/ajitpratap0/tabavro/pkg/errors"
	"github.com/ajitpratap0/tabavro/pkg/logger"
)

// Resolve expands each pattern with glob semantics (a pattern without
// wildcards that names a directory lists its immediate files instead),
// takes the union, and filters it to files carrying the container magic
// bytes. An empty union fails with KindNoFiles; a non-empty union with no
// container files fails with KindNoAvroFiles.
//
// Results are de-duplicated, sorted within each pattern, and returned in
// pattern argument order.
func Resolve(patterns []string) ([]string, error) {
	log := logger.Named("paths")

	var matched []string
	seen := make(map[string]bool)
	for _, pattern := range patterns {
		expanded, err := expand(pattern)
		if err != nil {
			return nil, err
		}
		sort.Strings(expanded)
		for _, path := range expanded {
			if !seen[path] {
				seen[path] = true
				matched = append(matched, path)
			}
		}
	}

	if len(matched) == 0 {
		return nil, errors.Newf(errors.KindNoFiles,
			"no files matched %s", strings.Join(patterns, ", ")).
			WithDetail("patterns", patterns)
	}

	var containers []string
	for _, path := range matched {
		if hasMagic(path) {
			containers = append(containers, path)
		}
	}
	if len(containers) == 0 {
		return nil, errors.Newf(errors.KindNoAvroFiles,
			"%d file(s) matched %s but none is a container file",
			len(matched), strings.Join(patterns, ", ")).
			WithDetail("patterns", patterns).
			WithDetail("matched", len(matched))
	}

	log.Debug("resolved container files",
		zap.Strings("patterns", patterns),
		zap.Int("matched", len(matched)),
		zap.Int("containers", len(containers)))
	return containers, nil
}

// expand resolves one pattern to filesystem entries. Matches that are
// directories themselves are skipped; a wildcard-free directory path is
// listed instead.
func expand(pattern string) ([]string, error) {
	if !hasWildcard(pattern) {
		info, err := os.Stat(pattern)
		if os.IsNotExist(err) {
			return nil, nil
		}
		if err != nil {
			return nil, errors.Wrap(err, errors.KindIO, "stat path").WithPath(pattern)
		}
		if info.IsDir() {
			return listFiles(pattern)
		}
		return []string{pattern}, nil
	}

	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindIO, "malformed glob pattern").WithPath(pattern)
	}
	files := matches[:0]
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || info.IsDir() {
			continue
		}
		files = append(files, m)
	}
	return files, nil
}

func hasWildcard(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[")
}

// listFiles returns the immediate regular files of a directory.
func listFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindIO, "list directory").WithPath(dir)
	}
	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	return files, nil
}

// hasMagic reports whether the file starts with the container magic bytes.
// Reading the full header is deliberately not required at this stage; an
// unreadable file is simply not a container.
func hasMagic(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	head := make([]byte, len(ocf.Magic))
	if _, err := io.ReadFull(f, head); err != nil {
		return false
	}
	return bytes.Equal(head, ocf.Magic)
}
