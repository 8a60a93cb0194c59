package manifest

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Environment variables that extend the include search path.
const (
	EnvInclude       = "BARANIUM_INCLUDE"        // path list
	EnvIncludeConfig = "BARANIUM_INCLUDE_CONFIG" // file holding a path list
)

// ReadPathList reads a path-list file. Each line holds one or more paths
// separated by the OS list separator; blank lines and lines starting with
// # are skipped. Relative entries are taken relative to the file.
func ReadPathList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	base := filepath.Dir(path)
	var paths []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		for _, p := range filepath.SplitList(line) {
			if p = strings.TrimSpace(p); p == "" {
				continue
			}
			if !filepath.IsAbs(p) {
				p = filepath.Join(base, p)
			}
			paths = append(paths, p)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return paths, nil
}

// EnvIncludePaths returns the include directories named by the
// environment: BARANIUM_INCLUDE first, then the entries of the file named
// by BARANIUM_INCLUDE_CONFIG.
func EnvIncludePaths() ([]string, error) {
	var paths []string
	for _, p := range filepath.SplitList(os.Getenv(EnvInclude)) {
		if p != "" {
			paths = append(paths, p)
		}
	}
	if cfg := os.Getenv(EnvIncludeConfig); cfg != "" {
		more, err := ReadPathList(cfg)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", EnvIncludeConfig, err)
		}
		paths = append(paths, more...)
	}
	return paths, nil
}
