package main

import "testing"

func TestCollect(t *testing.T) {
	names := []string{"002_history.up.sql", "001_init.down.sql", "001_init.up.sql", "README.md", "010_idx.up.sql"}

	up, err := collect(names, ".up.sql")
	if err != nil {
		t.Fatal(err)
	}
	want := []int64{1, 2, 10}
	if len(up) != len(want) {
		t.Fatalf("expected %d up migrations, got %d", len(want), len(up))
	}
	for i, m := range up {
		if m.version != want[i] {
			t.Errorf("migration %d: got version %d, want %d", i, m.version, want[i])
		}
	}

	down, err := collect(names, ".down.sql")
	if err != nil {
		t.Fatal(err)
	}
	if len(down) != 1 || down[0].file != "001_init.down.sql" {
		t.Errorf("unexpected down migrations: %+v", down)
	}
}

func TestVersionFromFile_invalid(t *testing.T) {
	for _, name := range []string{"init.up.sql", "abc_init.up.sql"} {
		if _, err := versionFromFile(name); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}
