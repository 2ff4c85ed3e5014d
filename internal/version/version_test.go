package version

import "testing"

func TestResolvePrefersLinkerValues(t *testing.T) {
	oldV, oldC := Version, Commit
	t.Cleanup(func() { Version, Commit = oldV, oldC })

	Version, Commit = "v1.2.3", "0123456789abcdef0123"
	info := Resolve()
	if info.Version != "v1.2.3" {
		t.Fatalf("version: got %q want %q", info.Version, "v1.2.3")
	}
	if got := String(); got != "v1.2.3 (0123456789ab)" {
		t.Fatalf("string: got %q want %q", got, "v1.2.3 (0123456789ab)")
	}
}

func TestResolveNeverEmpty(t *testing.T) {
	oldV := Version
	t.Cleanup(func() { Version = oldV })

	Version = ""
	if v := Resolve().Version; v == "" {
		t.Fatalf("version is empty")
	}
}
