package migrator

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestMigrationFiles_SortedAndFiltered(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"002_second.sql",
		"001_first.sql",
		"README.sql",
		"notes.txt",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("SELECT 1;"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "003_dir.sql"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	files, err := migrationFiles(dir)
	if err != nil {
		t.Fatalf("migrationFiles: %v", err)
	}

	want := []string{"001_first.sql", "002_second.sql"}
	if !reflect.DeepEqual(files, want) {
		t.Errorf("files = %v, want %v", files, want)
	}
}

func TestMigrationFiles_MissingDir(t *testing.T) {
	if _, err := migrationFiles(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestVerifyChecksum(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "001_users.sql")
	if err := os.WriteFile(path, []byte("CREATE TABLE x (id INT);"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	sum, _, err := fileChecksum(path)
	if err != nil {
		t.Fatalf("fileChecksum: %v", err)
	}

	m := New(nil, dir, nil)
	if err := m.verifyChecksum("001_users.sql", sum); err != nil {
		t.Errorf("unchanged file: unexpected error %v", err)
	}
	if err := m.verifyChecksum("001_users.sql", ""); err != nil {
		t.Errorf("unknown stored checksum: unexpected error %v", err)
	}

	err = m.verifyChecksum("001_users.sql", strings.Repeat("0", 64))
	if err == nil || !strings.Contains(err.Error(), "migration has been modified") {
		t.Errorf("expected modification error, got %v", err)
	}
}

func TestRepositoryMigrationsPresent(t *testing.T) {
	files, err := migrationFiles(filepath.Join("..", "migrations"))
	if err != nil {
		t.Fatalf("migrationFiles: %v", err)
	}
	if len(files) == 0 || files[0] != "001_create_users.sql" {
		t.Errorf("expected 001_create_users.sql first, got %v", files)
	}
}
