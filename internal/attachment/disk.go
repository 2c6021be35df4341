package attachment

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

var (
	errLimitExceeded = errors.New("size limit exceeded")
	errInvalidName   = errors.New("invalid document name")
)

// Disk lays documents out as <root>/<profileID>/docs/<filename>. Callers validate ids
// and filenames before they reach it.
type Disk struct {
	root string
}

func NewDisk(root string) *Disk {
	return &Disk{root: root}
}

func (d *Disk) docsDir(profileID string) string {
	return filepath.Join(d.root, profileID, "docs")
}

func (d *Disk) Ensure(profileID string) error {
	return os.MkdirAll(d.docsDir(profileID), 0o755)
}

// Purge removes everything stored for profileID.
func (d *Disk) Purge(profileID string) error {
	return os.RemoveAll(filepath.Join(d.root, profileID))
}

// Read returns the content of one document. Anything but a bare file name is refused.
func (d *Disk) Read(profileID, name string) ([]byte, error) {
	if name == "" || filepath.Base(name) != name || name == "." || name == ".." {
		return nil, fmt.Errorf("%w: %q", errInvalidName, name)
	}
	return os.ReadFile(filepath.Join(d.docsDir(profileID), name))
}

func (d *Disk) Delete(profileID, name string) error {
	return os.Remove(filepath.Join(d.docsDir(profileID), name))
}

// staged is a fully written temp file waiting to replace its target.
type staged struct {
	tmp    string
	target string
}

// stage copies r into a temp file next to the target. It fails with
// errLimitExceeded when r yields more than limit bytes.
func (d *Disk) stage(profileID, name string, r io.Reader, limit int64) (*staged, error) {
	dir := d.docsDir(profileID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create docs directory: %w", err)
	}

	tmp := filepath.Join(dir, ".upload-"+uuid.NewString())
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}

	n, err := io.Copy(f, io.LimitReader(r, limit+1))
	closeErr := f.Close()
	switch {
	case err != nil:
		_ = os.Remove(tmp)
		return nil, fmt.Errorf("failed to write %s: %w", name, err)
	case closeErr != nil:
		_ = os.Remove(tmp)
		return nil, fmt.Errorf("failed to write %s: %w", name, closeErr)
	case n > limit:
		_ = os.Remove(tmp)
		return nil, errLimitExceeded
	}

	return &staged{tmp: tmp, target: filepath.Join(dir, name)}, nil
}

func (s *staged) commit() error {
	return os.Rename(s.tmp, s.target)
}

func (s *staged) discard() {
	_ = os.Remove(s.tmp)
}
