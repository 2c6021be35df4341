package profile

import (
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/vnmchuo/quill/internal/apperr"
)

const (
	DefaultID   = "default"
	defaultName = "Par défaut"
	maxIDLength = 128
)

var idPattern = regexp.MustCompile(`^[a-z0-9_-]+$`)

// Profile is a named bundle of instructions and attached documents. JSON field names
// match what the task pane reads and writes.
type Profile struct {
	Name              string   `json:"name"`
	CreateInstruction string   `json:"createInstruction"`
	EditInstruction   string   `json:"editInstruction"`
	DocFiles          []string `json:"docFiles"`
}

func (p Profile) clone() Profile {
	p.DocFiles = append([]string{}, p.DocFiles...)
	return p
}

// Snapshot is the whole store as persisted on disk.
type Snapshot struct {
	Profiles      map[string]Profile `json:"profiles"`
	ActiveProfile string             `json:"activeProfile"`
}

func (s Snapshot) clone() Snapshot {
	out := Snapshot{
		Profiles:      make(map[string]Profile, len(s.Profiles)),
		ActiveProfile: s.ActiveProfile,
	}
	for id, p := range s.Profiles {
		out.Profiles[id] = p.clone()
	}
	return out
}

func defaultSnapshot() Snapshot {
	return Snapshot{
		Profiles: map[string]Profile{
			DefaultID: {Name: defaultName, DocFiles: []string{}},
		},
		ActiveProfile: DefaultID,
	}
}

// repair restores the invariants: default exists, the active pointer is valid and
// every doc list is non-nil.
func (s *Snapshot) repair() {
	if s.Profiles == nil {
		s.Profiles = make(map[string]Profile)
	}
	if _, ok := s.Profiles[DefaultID]; !ok {
		s.Profiles[DefaultID] = Profile{Name: defaultName, DocFiles: []string{}}
	}
	if _, ok := s.Profiles[s.ActiveProfile]; !ok {
		s.ActiveProfile = DefaultID
	}
	for id, p := range s.Profiles {
		if p.DocFiles == nil {
			p.DocFiles = []string{}
			s.Profiles[id] = p
		}
	}
}

// Slug derives a profile id from a display name: lower-case, and every character
// outside [a-z0-9] becomes '-'. Accented letters are not folded.
func Slug(name string) string {
	var b strings.Builder
	for _, r := range cases.Lower(language.Und).String(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('-')
		}
	}
	return b.String()
}

// ValidateID rejects ids that could not safely name a storage directory.
func ValidateID(id string) error {
	if id == "" {
		return apperr.Validation("profileId is required")
	}
	if len(id) > maxIDLength || !idPattern.MatchString(id) {
		return apperr.Validation("invalid profile id: %q", id)
	}
	return nil
}

// ValidateFilename accepts only a bare file name that stays inside a docs directory.
func ValidateFilename(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || filepath.Base(name) != name {
		return apperr.Validation("invalid filename: %q", name)
	}
	return nil
}
