package skills

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// OtherCategory is reported for skills the taxonomy does not know.
const OtherCategory = "Other"

// ErrConfiguration reports a missing or unusable taxonomy. Nothing can be
// extracted without one, so callers should treat it as fatal.
var ErrConfiguration = errors.New("skills: configuration error")

//go:embed taxonomy.yaml
var defaultTaxonomy []byte

type Skill struct {
	Name    string   `yaml:"name"`
	Aliases []string `yaml:"aliases"`
}

type Category struct {
	Name   string  `yaml:"name"`
	Skills []Skill `yaml:"skills"`
}

// Role maps a job title to the skills it implies.
type Role struct {
	Name    string   `yaml:"name"`
	Aliases []string `yaml:"aliases"`
	Skills  []string `yaml:"skills"`
}

// Conflict records an alias that was claimed by more than one skill.
type Conflict struct {
	Alias   string
	Kept    string
	Ignored string
}

type taxonomyFile struct {
	Categories []Category `yaml:"categories"`
	Roles      []Role     `yaml:"roles"`
}

// Taxonomy is the immutable categorized skill catalogue with an alias index.
type Taxonomy struct {
	categories     []Category
	roles          []Role
	skillCategory  map[string]string
	aliases        map[string]string
	roleAliases    map[string]int
	compoundTokens map[string]bool
	maxPhrase      int
	conflicts      []Conflict
}

// DefaultTaxonomy returns the built-in taxonomy.
func DefaultTaxonomy() (*Taxonomy, error) {
	return LoadTaxonomy(defaultTaxonomy)
}

// LoadTaxonomyFile reads a YAML taxonomy from path.
func LoadTaxonomyFile(path string) (*Taxonomy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading taxonomy %q: %v", ErrConfiguration, path, err)
	}
	return LoadTaxonomy(data)
}

// LoadTaxonomy parses YAML taxonomy data and builds the alias index.
func LoadTaxonomy(data []byte) (*Taxonomy, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, fmt.Errorf("%w: taxonomy is empty", ErrConfiguration)
	}

	var file taxonomyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: parsing taxonomy: %v", ErrConfiguration, err)
	}

	return NewTaxonomy(file.Categories, file.Roles)
}

// NewTaxonomy validates categories and roles and indexes their aliases.
// Canonical names are registered as aliases of themselves.
func NewTaxonomy(categories []Category, roles []Role) (*Taxonomy, error) {
	if len(categories) == 0 {
		return nil, fmt.Errorf("%w: taxonomy has no categories", ErrConfiguration)
	}

	t := &Taxonomy{
		categories:     make([]Category, len(categories)),
		roles:          roles,
		skillCategory:  make(map[string]string),
		aliases:        make(map[string]string),
		roleAliases:    make(map[string]int),
		compoundTokens: make(map[string]bool),
	}

	seenCategories := make(map[string]bool, len(categories))
	for i, category := range categories {
		name := strings.TrimSpace(category.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: category without a name", ErrConfiguration)
		}
		category.Name = name
		t.categories[i] = category
		if seenCategories[name] {
			return nil, fmt.Errorf("%w: duplicate category %q", ErrConfiguration, name)
		}
		seenCategories[name] = true

		for _, skill := range category.Skills {
			if strings.TrimSpace(skill.Name) == "" {
				return nil, fmt.Errorf("%w: skill without a name in category %q", ErrConfiguration, name)
			}
			if _, ok := t.skillCategory[skill.Name]; ok {
				return nil, fmt.Errorf("%w: duplicate skill %q", ErrConfiguration, skill.Name)
			}
			t.skillCategory[skill.Name] = name

			for _, alias := range append([]string{skill.Name}, skill.Aliases...) {
				t.addAlias(alias, skill.Name)
			}
		}
	}

	for i, role := range roles {
		if strings.TrimSpace(role.Name) == "" {
			return nil, fmt.Errorf("%w: role without a name", ErrConfiguration)
		}
		for _, skill := range role.Skills {
			if _, ok := t.skillCategory[skill]; !ok {
				return nil, fmt.Errorf("%w: role %q refers to unknown skill %q", ErrConfiguration, role.Name, skill)
			}
		}
		for _, alias := range role.Aliases {
			key := t.indexPhrase(alias)
			if key == "" {
				continue
			}
			if _, ok := t.roleAliases[key]; !ok {
				t.roleAliases[key] = i
			}
		}
	}

	if len(t.aliases) == 0 {
		return nil, fmt.Errorf("%w: taxonomy has no skills", ErrConfiguration)
	}

	return t, nil
}

func (t *Taxonomy) addAlias(alias, canonical string) {
	key := t.indexPhrase(alias)
	if key == "" {
		return
	}
	if kept, ok := t.aliases[key]; ok {
		if kept != canonical {
			t.conflicts = append(t.conflicts, Conflict{Alias: key, Kept: kept, Ignored: canonical})
		}
		return
	}
	t.aliases[key] = canonical
}

// indexPhrase normalizes alias and tracks what the matcher needs to know
// about it: its length in tokens and any token that carries a slash or period.
func (t *Taxonomy) indexPhrase(alias string) string {
	toks := scan(alias)
	if len(toks) == 0 {
		return ""
	}
	words := make([]string, len(toks))
	for i, tok := range toks {
		words[i] = tok.text
		if strings.ContainsAny(tok.text, "/.") {
			t.compoundTokens[tok.text] = true
		}
	}
	if len(toks) > t.maxPhrase {
		t.maxPhrase = len(toks)
	}
	return strings.Join(words, " ")
}

// LookupCategory returns the category of a canonical skill name or "Other".
func (t *Taxonomy) LookupCategory(canonical string) string {
	if category, ok := t.skillCategory[canonical]; ok {
		return category
	}
	return OtherCategory
}

// Categories returns category names in registration order.
func (t *Taxonomy) Categories() []string {
	names := make([]string, len(t.categories))
	for i, c := range t.categories {
		names[i] = c.Name
	}
	return names
}

// Lookup resolves an alias to its canonical skill name.
func (t *Taxonomy) Lookup(alias string) (string, bool) {
	canonical, ok := t.aliases[phraseKey(alias)]
	return canonical, ok
}

// Conflicts lists aliases claimed by several skills. The first registration
// is the one in effect.
func (t *Taxonomy) Conflicts() []Conflict {
	return append([]Conflict(nil), t.conflicts...)
}

// Roles returns the configured roles.
func (t *Taxonomy) Roles() []Role {
	return append([]Role(nil), t.roles...)
}
