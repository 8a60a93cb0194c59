package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestReadPathList(t *testing.T) {
	dir := t.TempDir()
	list := filepath.Join(dir, "paths.txt")
	abs := filepath.Join(dir, "abs")
	writeFile(t, list, strings.Join([]string{
		"# search path",
		"",
		"include",
		abs + string(os.PathListSeparator) + "vendor/lib",
	}, "\n"))

	got, err := ReadPathList(list)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{filepath.Join(dir, "include"), abs, filepath.Join(dir, "vendor", "lib")}
	if len(got) != len(want) {
		t.Fatalf("ReadPathList = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("path %d = %q, want %q", i, got[i], want[i])
		}
	}

	if _, err := ReadPathList(filepath.Join(dir, "missing.txt")); err == nil {
		t.Error("ReadPathList accepted a missing file")
	}
}

func TestEnvIncludePaths(t *testing.T) {
	dir := t.TempDir()
	list := filepath.Join(dir, "paths.txt")
	writeFile(t, list, "/from/config\n")

	t.Setenv(EnvInclude, "/a"+string(os.PathListSeparator)+"/b")
	t.Setenv(EnvIncludeConfig, list)

	got, err := EnvIncludePaths()
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"/a", "/b", "/from/config"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("EnvIncludePaths = %v, want %v", got, want)
	}

	t.Setenv(EnvIncludeConfig, filepath.Join(dir, "missing"))
	if _, err := EnvIncludePaths(); err == nil {
		t.Error("EnvIncludePaths ignored a missing config file")
	}
}
