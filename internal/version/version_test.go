package version

import (
	"strings"
	"testing"
)

func TestInfo_contains_version(t *testing.T) {
	if !strings.Contains(Info(), Version) {
		t.Errorf("Info() = %q, want it to contain %q", Info(), Version)
	}
}

func TestMap_keys(t *testing.T) {
	m := Map()
	for _, k := range []string{"version", "git_commit", "build_date", "go_version"} {
		if _, ok := m[k]; !ok {
			t.Errorf("Map() missing key %q", k)
		}
	}
}
