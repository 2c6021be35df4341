package attachment

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vnmchuo/quill/internal/apperr"
	"github.com/vnmchuo/quill/internal/profile"
)

func setupManager(t *testing.T, maxSize int64) (*Manager, *profile.Store, string) {
	t.Helper()
	dir := t.TempDir()
	root := filepath.Join(dir, "profiles")
	disk := NewDisk(root)

	store, err := profile.Open(context.Background(), filepath.Join(dir, "profiles.json"), disk)
	if err != nil {
		t.Fatalf("profile.Open failed: %v", err)
	}
	if err := store.Upsert(context.Background(), "blog", profile.Profile{Name: "Blog"}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	return NewManager(store, disk, maxSize), store, root
}

func upload(name, content string) Upload {
	return Upload{Name: name, Size: int64(len(content)), Content: strings.NewReader(content)}
}

func TestStore_AcceptsTextDocuments(t *testing.T) {
	m, store, root := setupManager(t, 0)
	ctx := context.Background()

	names, err := m.Store(ctx, "blog", []Upload{upload("notes.md", "# Notes"), upload("Data.JSON", `{"a":1}`)})
	if err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	if len(names) != 2 || names[0] != "notes.md" || names[1] != "Data.JSON" {
		t.Errorf("Unexpected names: %v", names)
	}

	p, _ := store.Get("blog")
	if len(p.DocFiles) != 2 || p.DocFiles[0] != "notes.md" {
		t.Errorf("Expected docFiles updated, got %v", p.DocFiles)
	}

	data, err := os.ReadFile(filepath.Join(root, "blog", "docs", "notes.md"))
	if err != nil || string(data) != "# Notes" {
		t.Errorf("Expected stored content, got %q (%v)", data, err)
	}
}

func TestStore_RejectsUnsupportedType(t *testing.T) {
	m, store, root := setupManager(t, 0)

	_, err := m.Store(context.Background(), "blog", []Upload{upload("ok.txt", "fine"), upload("notes.exe", "MZ")})
	if !apperr.Is(err, apperr.KindUnsupportedType) {
		t.Fatalf("Expected unsupported type, got %v", err)
	}

	p, _ := store.Get("blog")
	if len(p.DocFiles) != 0 {
		t.Errorf("Rejected batch must not touch docFiles, got %v", p.DocFiles)
	}
	if _, err := os.Stat(filepath.Join(root, "blog", "docs", "ok.txt")); !os.IsNotExist(err) {
		t.Error("Rejected batch must not write any file")
	}
}

func TestStore_RejectsDeclaredTooLarge(t *testing.T) {
	m, _, _ := setupManager(t, 0)

	u := Upload{Name: "big.md", Size: DefaultMaxSize + 1, Content: strings.NewReader("x")}
	_, err := m.Store(context.Background(), "blog", []Upload{u})
	if !apperr.Is(err, apperr.KindTooLarge) {
		t.Errorf("Expected too large, got %v", err)
	}
}

func TestStore_RejectsObservedTooLarge(t *testing.T) {
	m, store, root := setupManager(t, 8)

	u := Upload{Name: "big.md", Size: -1, Content: bytes.NewReader(make([]byte, 9))}
	_, err := m.Store(context.Background(), "blog", []Upload{upload("small.md", "ok"), u})
	if !apperr.Is(err, apperr.KindTooLarge) {
		t.Fatalf("Expected too large, got %v", err)
	}

	entries, _ := os.ReadDir(filepath.Join(root, "blog", "docs"))
	if len(entries) != 0 {
		t.Errorf("Expected staged files discarded, found %d entries", len(entries))
	}
	if p, _ := store.Get("blog"); len(p.DocFiles) != 0 {
		t.Errorf("Expected no docFiles, got %v", p.DocFiles)
	}
}

func TestStore_ExactlyAtLimit(t *testing.T) {
	m, _, _ := setupManager(t, 4)
	if _, err := m.Store(context.Background(), "blog", []Upload{upload("four.txt", "1234")}); err != nil {
		t.Errorf("Expected file at the limit to be accepted, got %v", err)
	}
}

func TestStore_Errors(t *testing.T) {
	m, _, _ := setupManager(t, 0)
	ctx := context.Background()

	if _, err := m.Store(ctx, "blog", nil); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("Expected validation error for no files, got %v", err)
	}
	if _, err := m.Store(ctx, "ghost", []Upload{upload("a.md", "x")}); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("Expected not found, got %v", err)
	}
	if _, err := m.Store(ctx, "blog", []Upload{upload("../evil.md", "x")}); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("Expected validation error for traversal, got %v", err)
	}
}

func TestStore_ReuploadOverwritesAndKeepsDuplicateEntry(t *testing.T) {
	m, store, _ := setupManager(t, 0)
	ctx := context.Background()

	if _, err := m.Store(ctx, "blog", []Upload{upload("a.md", "v1")}); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Store(ctx, "blog", []Upload{upload("a.md", "v2")}); err != nil {
		t.Fatal(err)
	}

	p, _ := store.Get("blog")
	if len(p.DocFiles) != 2 {
		t.Errorf("Expected duplicate list entries, got %v", p.DocFiles)
	}
	out := m.ReadAll(ctx, "blog")
	if strings.Contains(out, "v1") || !strings.Contains(out, "v2") {
		t.Errorf("Expected last write to win, got %q", out)
	}
}

func TestRemove(t *testing.T) {
	m, store, root := setupManager(t, 0)
	ctx := context.Background()

	if _, err := m.Store(ctx, "blog", []Upload{upload("a.md", "A"), upload("b.md", "B")}); err != nil {
		t.Fatal(err)
	}
	if err := m.Remove(ctx, "blog", "a.md"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	p, _ := store.Get("blog")
	if len(p.DocFiles) != 1 || p.DocFiles[0] != "b.md" {
		t.Errorf("Expected only b.md, got %v", p.DocFiles)
	}
	if _, err := os.Stat(filepath.Join(root, "blog", "docs", "a.md")); !os.IsNotExist(err) {
		t.Error("Expected a.md deleted")
	}
}

func TestRemove_MissingFileStillUpdatesMetadata(t *testing.T) {
	m, store, root := setupManager(t, 0)
	ctx := context.Background()

	if _, err := m.Store(ctx, "blog", []Upload{upload("a.md", "A")}); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(filepath.Join(root, "blog", "docs", "a.md")); err != nil {
		t.Fatal(err)
	}

	err := m.Remove(ctx, "blog", "a.md")
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("Expected not found from storage, got %v", err)
	}
	if p, _ := store.Get("blog"); len(p.DocFiles) != 0 {
		t.Errorf("Expected metadata removal to persist, got %v", p.DocFiles)
	}
}

func TestRemove_UnknownProfile(t *testing.T) {
	m, _, _ := setupManager(t, 0)
	if err := m.Remove(context.Background(), "ghost", "a.md"); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("Expected not found, got %v", err)
	}
}

func TestReadAll_FormatAndOrder(t *testing.T) {
	m, _, _ := setupManager(t, 0)
	ctx := context.Background()

	if _, err := m.Store(ctx, "blog", []Upload{upload("b.md", "second"), upload("a.txt", "first")}); err != nil {
		t.Fatal(err)
	}

	want := "--- Documentation: b.md ---\nsecond\n--- Documentation: a.txt ---\nfirst\n"
	if got := m.ReadAll(ctx, "blog"); got != want {
		t.Errorf("ReadAll() = %q, want %q", got, want)
	}
}

func TestReadAll_SkipsMissingFiles(t *testing.T) {
	m, _, root := setupManager(t, 0)
	ctx := context.Background()

	if _, err := m.Store(ctx, "blog", []Upload{upload("a.md", "A"), upload("b.md", "B"), upload("c.md", "C")}); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(filepath.Join(root, "blog", "docs", "b.md")); err != nil {
		t.Fatal(err)
	}

	want := "--- Documentation: a.md ---\nA\n--- Documentation: c.md ---\nC\n"
	if got := m.ReadAll(ctx, "blog"); got != want {
		t.Errorf("ReadAll() = %q, want %q", got, want)
	}
}

func TestReadAll_IgnoresNamesOutsideDocsDir(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "profiles")
	disk := NewDisk(root)
	ctx := context.Background()

	if err := os.WriteFile(filepath.Join(dir, "secret.txt"), []byte("TOP SECRET"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(root, "blog", "docs"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "blog", "docs", "a.md"), []byte("A"), 0o644); err != nil {
		t.Fatal(err)
	}
	edited := `{"profiles":{"default":{"name":"Par défaut","docFiles":[]},` +
		`"blog":{"name":"Blog","docFiles":["a.md","../../../secret.txt","..","sub/x.md"]}},` +
		`"activeProfile":"blog"}`
	path := filepath.Join(dir, "profiles.json")
	if err := os.WriteFile(path, []byte(edited), 0o644); err != nil {
		t.Fatal(err)
	}

	store, err := profile.Open(ctx, path, disk)
	if err != nil {
		t.Fatalf("profile.Open failed: %v", err)
	}
	m := NewManager(store, disk, 0)

	got := m.ReadAll(ctx, "blog")
	if strings.Contains(got, "TOP SECRET") {
		t.Fatalf("ReadAll leaked a file outside the docs directory: %q", got)
	}
	if want := "--- Documentation: a.md ---\nA\n"; got != want {
		t.Errorf("ReadAll() = %q, want %q", got, want)
	}
}

func TestDiskRead_RejectsPaths(t *testing.T) {
	dir := t.TempDir()
	disk := NewDisk(filepath.Join(dir, "profiles"))
	if err := os.WriteFile(filepath.Join(dir, "secret.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"../../../secret.txt", "..", ".", "", "sub/a.md"} {
		if _, err := disk.Read("blog", name); !errors.Is(err, errInvalidName) {
			t.Errorf("Read(%q) error = %v, want errInvalidName", name, err)
		}
	}
}

func TestReadAll_UnknownProfile(t *testing.T) {
	m, _, _ := setupManager(t, 0)
	if got := m.ReadAll(context.Background(), "ghost"); got != "" {
		t.Errorf("Expected empty string, got %q", got)
	}
}

func TestProfileRemovePurgesDocuments(t *testing.T) {
	m, store, root := setupManager(t, 0)
	ctx := context.Background()

	if _, err := m.Store(ctx, "blog", []Upload{upload("a.md", "A")}); err != nil {
		t.Fatal(err)
	}
	if err := store.Remove(ctx, "blog"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(root, "blog")); !os.IsNotExist(err) {
		t.Error("Expected profile directory removed")
	}
}
