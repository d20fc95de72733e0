package migrations

import (
	"io/fs"
	"strings"
	"testing"
)

func TestMigrationsArePaired(t *testing.T) {
	names, err := fs.Glob(FS, "*.sql")
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(names) == 0 {
		t.Fatal("no migrations embedded")
	}
	seen := map[string]int{}
	for _, n := range names {
		switch {
		case strings.HasSuffix(n, ".up.sql"):
			seen[strings.TrimSuffix(n, ".up.sql")]++
		case strings.HasSuffix(n, ".down.sql"):
			seen[strings.TrimSuffix(n, ".down.sql")]++
		default:
			t.Errorf("unexpected migration file %s", n)
		}
	}
	for base, count := range seen {
		if count != 2 {
			t.Errorf("migration %s is missing its up or down file", base)
		}
	}

	up, err := fs.ReadFile(FS, "000001_create_intake_records.up.sql")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(up), "intake_records") {
		t.Fatal("initial migration should create intake_records")
	}
}
