package adventure

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// FileExt is the extension of adventure content files.
const FileExt = ".mdoc"

var (
	ErrNoFrontmatter = errors.New("no frontmatter found (missing --- delimiters)")
	frontmatterDelim = []byte("---")
)

// SplitFrontmatter separates the YAML frontmatter from the markdown body.
func SplitFrontmatter(data []byte) (frontmatter []byte, body string, err error) {
	data = bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))
	if !bytes.HasPrefix(data, append(frontmatterDelim, '\n')) {
		return nil, "", ErrNoFrontmatter
	}
	rest := data[len(frontmatterDelim)+1:]

	end := bytes.Index(rest, []byte("\n---"))
	if end < 0 {
		return nil, "", ErrNoFrontmatter
	}
	frontmatter = rest[:end]
	after := rest[end+len("\n---"):]
	// The closing delimiter must stand on its own line.
	if len(after) > 0 && after[0] != '\n' {
		return nil, "", ErrNoFrontmatter
	}
	return frontmatter, strings.TrimSpace(string(after)), nil
}

// Parse decodes an adventure document. The id argument overrides any id in the
// frontmatter when non-empty.
func Parse(data []byte, id string) (*Adventure, error) {
	fm, body, err := SplitFrontmatter(data)
	if err != nil {
		return nil, err
	}

	var adv Adventure
	if err := yaml.Unmarshal(fm, &adv); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}
	if id != "" {
		adv.ID = id
	}
	adv.Body = body
	return &adv, nil
}

// LoadFile reads an adventure from disk.
// The filename (without extension) overrides any ID in the frontmatter.
func LoadFile(path string) (*Adventure, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read adventure file: %w", err)
	}
	adv, err := Parse(data, IDFromPath(path))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	return adv, nil
}

// IDFromPath derives the adventure id from its content file name.
func IDFromPath(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

// DisplayTitle returns the title, falling back to a title-cased id.
func (a *Adventure) DisplayTitle() string {
	if strings.TrimSpace(a.Title) != "" {
		return a.Title
	}
	words := strings.NewReplacer("-", " ", "_", " ").Replace(a.ID)
	return cases.Title(language.English).String(words)
}
