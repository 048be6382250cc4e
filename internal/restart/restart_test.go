package restart

import (
	"os"
	"path/filepath"
	"testing"
)

func TestReadHandoff_parsesIDFdNameHost(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "handoff")
	contents := "a1b2c3d4-0000-0000-0000-000000000001 7 aragorn 10.0.0.1\n" +
		"e5f6a7b8-0000-0000-0000-000000000002 9 legolas 10.0.0.2\n" +
		"-1\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}

	records, err := ReadHandoff(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("want 2 records, got %d", len(records))
	}
	if records[0].id != "a1b2c3d4-0000-0000-0000-000000000001" || records[0].fd != 7 || records[0].name != "aragorn" || records[0].host != "10.0.0.1" {
		t.Fatalf("unexpected first record: %+v", records[0])
	}
	if records[1].name != "legolas" || records[1].fd != 9 {
		t.Fatalf("unexpected second record: %+v", records[1])
	}
}

func TestReadHandoff_stopsAtTerminator(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "handoff")
	contents := "id-1 3 frodo 10.0.0.3\n-1\nid-2 4 sam 10.0.0.4\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}

	records, err := ReadHandoff(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Fatalf("want records to stop at the -1 terminator, got %v", records)
	}
}

func TestSentinel_writePresentClear(t *testing.T) {
	dir := t.TempDir()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(old)

	if SentinelPresent() {
		t.Fatal("want no sentinel present before WriteSentinel")
	}
	if err := WriteSentinel(); err != nil {
		t.Fatal(err)
	}
	if !SentinelPresent() {
		t.Fatal("want sentinel present after WriteSentinel")
	}
	ClearSentinel()
	if SentinelPresent() {
		t.Fatal("want sentinel gone after ClearSentinel")
	}
}
