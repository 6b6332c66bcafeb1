// Package templates stores reusable job submission settings, one JSON
// file of flat string fields per template.
package templates

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/rileyhilliard/slurmterm/internal/config"
	"github.com/rileyhilliard/slurmterm/internal/errors"
)

// DirEnv overrides the template directory.
const DirEnv = "SLURMTERM_TEMPLATES_DIR"

// MaxNameLength bounds template names.
const MaxNameLength = 100

var namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_ -]*$`)

// Record is one named template.
type Record struct {
	Name   string
	Fields map[string]string
}

// Get returns a field, "" when absent.
func (r Record) Get(key string) string {
	return r.Fields[key]
}

// Store reads and writes templates in a directory.
type Store struct {
	dir string
}

// NewStore returns a store rooted at dir. The directory is created on the
// first save.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// ResolveDir picks the template directory: the environment variable, then
// the configured directory, then ~/.config/slurmterm/templates.
func ResolveDir(configured string) string {
	if dir := os.Getenv(DirEnv); dir != "" {
		return config.ExpandTilde(dir)
	}
	if configured != "" {
		return config.Expand(configured)
	}
	return config.ExpandTilde("~/.config/slurmterm/templates")
}

// Dir returns the directory the store uses.
func (s *Store) Dir() string {
	return s.dir
}

// ValidateName trims and checks a template name. Names become file names,
// so only letters, digits, underscores, hyphens and spaces are allowed.
func ValidateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.Validation("Template name must not be empty")
	}
	if !namePattern.MatchString(name) {
		return "", errors.Validation("Invalid template name: %q (only letters, digits, underscores, hyphens, and spaces)", name)
	}
	if len(name) > MaxNameLength {
		return "", errors.Validation("Template name too long (max %d chars)", MaxNameLength)
	}
	return name, nil
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name+".json")
}

// List returns the saved template names, sorted. A missing directory is
// an empty list.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrIO,
			fmt.Sprintf("Cannot list templates in %s", s.dir), "")
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".json"))
	}
	sort.Strings(names)
	return names, nil
}

// Save writes a template, replacing any previous one of the same name.
func (s *Store) Save(name string, fields map[string]string) error {
	name, err := ValidateName(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return errors.WrapWithCode(err, errors.ErrIO,
			fmt.Sprintf("Cannot create template directory %s", s.dir), "")
	}
	if fields == nil {
		fields = map[string]string{}
	}
	data, err := json.MarshalIndent(fields, "", "  ")
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrIO, "Cannot encode template "+name, "")
	}
	if err := os.WriteFile(s.path(name), append(data, '\n'), 0o644); err != nil {
		return errors.WrapWithCode(err, errors.ErrIO,
			fmt.Sprintf("Cannot write template %s", name), "")
	}
	return nil
}

// Load reads a template. A missing template is an ErrNotFound error and a
// file that is not a JSON object of strings is an ErrConfig error.
func (s *Store) Load(name string) (Record, error) {
	name, err := ValidateName(name)
	if err != nil {
		return Record{}, err
	}
	data, err := os.ReadFile(s.path(name))
	if os.IsNotExist(err) {
		return Record{}, errors.New(errors.ErrNotFound,
			fmt.Sprintf("Template %q not found", name),
			"Run 'slurmterm template list' to see saved templates")
	}
	if err != nil {
		return Record{}, errors.WrapWithCode(err, errors.ErrIO,
			fmt.Sprintf("Cannot read template %s", name), "")
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Record{}, errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Template %q is not valid JSON", name),
			fmt.Sprintf("Fix or delete %s", s.path(name)))
	}
	fields := make(map[string]string, len(raw))
	for k, v := range raw {
		switch t := v.(type) {
		case nil:
			fields[k] = ""
		case string:
			fields[k] = t
		default:
			fields[k] = fmt.Sprint(t)
		}
	}
	return Record{Name: name, Fields: fields}, nil
}

// Delete removes a template and reports whether it existed.
func (s *Store) Delete(name string) (bool, error) {
	name, err := ValidateName(name)
	if err != nil {
		return false, err
	}
	err = os.Remove(s.path(name))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, errors.WrapWithCode(err, errors.ErrIO,
			fmt.Sprintf("Cannot delete template %s", name), "")
	}
	return true, nil
}

// EnsureDefaults seeds the built-in templates when the store holds none.
// A default the user deleted later stays deleted as long as any template
// remains.
func (s *Store) EnsureDefaults() (bool, error) {
	names, err := s.List()
	if err != nil {
		return false, err
	}
	if len(names) > 0 {
		return false, nil
	}
	for _, name := range DefaultNames() {
		if err := s.Save(name, Defaults[name]); err != nil {
			return false, err
		}
	}
	return true, nil
}
