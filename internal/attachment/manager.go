package attachment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/vnmchuo/quill/internal/apperr"
	"github.com/vnmchuo/quill/internal/logger"
	"github.com/vnmchuo/quill/internal/profile"
)

// DefaultMaxSize is the per-file upload ceiling.
const DefaultMaxSize int64 = 5 << 20

var allowedExtensions = map[string]bool{
	".txt":  true,
	".md":   true,
	".json": true,
}

// Upload is one incoming file. Size is the declared size, or -1 when unknown; the
// ceiling is enforced again while copying.
type Upload struct {
	Name    string
	Size    int64
	Content io.Reader
}

type Manager struct {
	store   *profile.Store
	disk    *Disk
	maxSize int64
}

func NewManager(store *profile.Store, disk *Disk, maxSize int64) *Manager {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Manager{store: store, disk: disk, maxSize: maxSize}
}

// MaxSize is the per-document size limit in bytes.
func (m *Manager) MaxSize() int64 {
	return m.maxSize
}

// Store validates every upload, writes them under the profile and appends their names
// to the profile's document list. A re-uploaded name replaces the previous content.
func (m *Manager) Store(ctx context.Context, profileID string, uploads []Upload) ([]string, error) {
	if len(uploads) == 0 {
		return nil, apperr.Validation("no files provided")
	}
	if _, err := m.store.Get(profileID); err != nil {
		return nil, err
	}

	for _, u := range uploads {
		if err := m.validate(u); err != nil {
			return nil, err
		}
	}

	batch := make([]*staged, 0, len(uploads))
	discardAll := func() {
		for _, s := range batch {
			s.discard()
		}
	}
	for _, u := range uploads {
		s, err := m.disk.stage(profileID, u.Name, u.Content, m.maxSize)
		if errors.Is(err, errLimitExceeded) {
			discardAll()
			return nil, apperr.TooLarge("file %s exceeds %d bytes", u.Name, m.maxSize)
		}
		if err != nil {
			discardAll()
			return nil, apperr.Internal("failed to store document", err)
		}
		batch = append(batch, s)
	}

	names := make([]string, 0, len(batch))
	for i, s := range batch {
		if err := s.commit(); err != nil {
			for _, rest := range batch[i:] {
				rest.discard()
			}
			return nil, apperr.Internal("failed to store document", err)
		}
		names = append(names, uploads[i].Name)
	}

	err := m.store.Update(ctx, profileID, func(p *profile.Profile) error {
		p.DocFiles = append(p.DocFiles, names...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "documents uploaded", "profile_id", profileID, "count", len(names))
	return names, nil
}

func (m *Manager) validate(u Upload) error {
	if err := profile.ValidateFilename(u.Name); err != nil {
		return err
	}
	ext := strings.ToLower(filepath.Ext(u.Name))
	if !allowedExtensions[ext] {
		return apperr.UnsupportedType("unsupported file type: %q", ext)
	}
	if u.Size > m.maxSize {
		return apperr.TooLarge("file %s exceeds %d bytes", u.Name, m.maxSize)
	}
	return nil
}

// Remove drops filename from the profile's list, then deletes its content. A missing
// file is reported as NotFound after the list has already been updated.
func (m *Manager) Remove(ctx context.Context, profileID, filename string) error {
	if err := profile.ValidateFilename(filename); err != nil {
		return err
	}

	err := m.store.Update(ctx, profileID, func(p *profile.Profile) error {
		kept := make([]string, 0, len(p.DocFiles))
		for _, f := range p.DocFiles {
			if f != filename {
				kept = append(kept, f)
			}
		}
		p.DocFiles = kept
		return nil
	})
	if err != nil {
		return err
	}

	if err := m.disk.Delete(profileID, filename); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return apperr.NotFound("document %q not found", filename)
		}
		return apperr.Internal("failed to delete document", err)
	}
	return nil
}

// ReadAll concatenates the profile's documents in list order. Unreadable documents are
// skipped with a warning; an unknown profile yields an empty string.
func (m *Manager) ReadAll(ctx context.Context, profileID string) string {
	p, err := m.store.Get(profileID)
	if err != nil {
		return ""
	}

	var b strings.Builder
	for _, name := range p.DocFiles {
		if err := profile.ValidateFilename(name); err != nil {
			logger.Warn(ctx, "skipping invalid document name", "profile_id", profileID, "file", name)
			continue
		}
		content, err := m.disk.Read(profileID, name)
		if err != nil {
			logger.Warn(ctx, "skipping unreadable document", "profile_id", profileID, "file", name, "error", err)
			continue
		}
		fmt.Fprintf(&b, "--- Documentation: %s ---\n%s\n", name, content)
	}
	return b.String()
}
