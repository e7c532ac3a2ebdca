package skills

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

type Source string

const (
	SourceExplicit Source = "explicit"
	SourceInferred Source = "inferred"
)

// DetectedSkill is a canonical skill found in a document.
type DetectedSkill struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Source   Source `json:"source"`
	FromRole string `json:"from_role,omitempty"`
}

// CategorySkills holds the skills detected for one taxonomy category.
type CategorySkills struct {
	Name   string
	Skills []DetectedSkill
}

// ExtractionResult lists every taxonomy category in registration order, with
// an empty list for categories where nothing was found.
type ExtractionResult struct {
	Categories  []CategorySkills
	TotalSkills int
	Levels      map[string]Proficiency
}

// Skills flattens the result in category then discovery order.
func (r *ExtractionResult) Skills() []DetectedSkill {
	if r == nil {
		return nil
	}
	out := make([]DetectedSkill, 0, r.TotalSkills)
	for _, c := range r.Categories {
		out = append(out, c.Skills...)
	}
	return out
}

// Category returns the skills of the named category.
func (r *ExtractionResult) Category(name string) ([]DetectedSkill, bool) {
	if r == nil {
		return nil, false
	}
	for _, c := range r.Categories {
		if c.Name == name {
			return c.Skills, true
		}
	}
	return nil, false
}

type ExtractionSummary struct {
	TotalSkills     int           `json:"total_skills"`
	Explicit        int           `json:"explicit_skills"`
	Inferred        int           `json:"inferred_skills"`
	CategoriesFound int           `json:"categories_found"`
	Levels          map[Level]int `json:"skills_with_levels"`
}

func (r *ExtractionResult) Summary() ExtractionSummary {
	s := ExtractionSummary{Levels: make(map[Level]int)}
	if r == nil {
		return s
	}
	s.TotalSkills = r.TotalSkills
	for _, c := range r.Categories {
		if len(c.Skills) > 0 {
			s.CategoriesFound++
		}
		for _, skill := range c.Skills {
			if skill.Source == SourceInferred {
				s.Inferred++
			} else {
				s.Explicit++
			}
		}
	}
	for _, p := range r.Levels {
		if p.Level != "" {
			s.Levels[p.Level]++
		}
	}
	return s
}

// MarshalJSON keeps categories in registration order.
func (r ExtractionResult) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"categories":{`)
	for i, c := range r.Categories {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(c.Name)
		if err != nil {
			return nil, err
		}
		skills := c.Skills
		if skills == nil {
			skills = []DetectedSkill{}
		}
		value, err := json.Marshal(skills)
		if err != nil {
			return nil, fmt.Errorf("encoding category %q: %w", c.Name, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteString(`},"total_skills":`)
	buf.WriteString(strconv.Itoa(r.TotalSkills))

	levels := r.Levels
	if levels == nil {
		levels = map[string]Proficiency{}
	}
	value, err := json.Marshal(levels)
	if err != nil {
		return nil, err
	}
	buf.WriteString(`,"skill_levels":`)
	buf.Write(value)
	buf.WriteByte('}')

	return buf.Bytes(), nil
}

// Extractor finds taxonomy skills in free text. It holds no state besides the
// taxonomy and is safe for concurrent use.
type Extractor struct {
	taxonomy *Taxonomy
}

func NewExtractor(t *Taxonomy) (*Extractor, error) {
	if t == nil || len(t.aliases) == 0 {
		return nil, fmt.Errorf("%w: skill taxonomy is not loaded", ErrConfiguration)
	}
	return &Extractor{taxonomy: t}, nil
}

func (e *Extractor) Taxonomy() *Taxonomy { return e.taxonomy }

type phraseHit struct {
	value string
	start int
	size  int
}

// ExtractAllSkills matches aliases as whole token sequences. Each canonical
// skill is reported once, at its first occurrence.
func (e *Extractor) ExtractAllSkills(text string) *ExtractionResult {
	t := e.taxonomy
	toks := splitCompound(scan(text), t.compoundTokens)
	skillHits, roleHits := e.match(toks)

	covered := make([]bool, len(toks))
	for _, h := range append(append([]phraseHit(nil), skillHits...), roleHits...) {
		for i := h.start; i < h.start+h.size; i++ {
			covered[i] = true
		}
	}

	perCategory := make(map[string][]DetectedSkill)
	seen := make(map[string]bool)
	levels := make(map[string]Proficiency)

	for _, h := range skillHits {
		if seen[h.value] {
			continue
		}
		seen[h.value] = true
		category := t.LookupCategory(h.value)
		perCategory[category] = append(perCategory[category], DetectedSkill{
			Name:     h.value,
			Category: category,
			Source:   SourceExplicit,
		})
		if p, ok := proficiencyFor(toks, covered, toks[h.start].sentence); ok {
			levels[h.value] = p
		}
	}

	seenRoles := make(map[string]bool)
	for _, h := range roleHits {
		if seenRoles[h.value] {
			continue
		}
		seenRoles[h.value] = true
		role := t.roleByName(h.value)
		for _, skill := range role.Skills {
			if seen[skill] {
				continue
			}
			seen[skill] = true
			category := t.LookupCategory(skill)
			perCategory[category] = append(perCategory[category], DetectedSkill{
				Name:     skill,
				Category: category,
				Source:   SourceInferred,
				FromRole: role.Name,
			})
		}
	}

	result := &ExtractionResult{
		Categories: make([]CategorySkills, len(t.categories)),
		Levels:     levels,
	}
	for i, c := range t.categories {
		skills := perCategory[c.Name]
		if skills == nil {
			skills = []DetectedSkill{}
		}
		result.Categories[i] = CategorySkills{Name: c.Name, Skills: skills}
		result.TotalSkills += len(skills)
	}

	return result
}

// match slides a window of up to maxPhrase glued tokens over toks and records
// every alias and role phrase found, ordered by start then length.
func (e *Extractor) match(toks []token) (skills, roles []phraseHit) {
	t := e.taxonomy
	var phrase []byte
	for i := range toks {
		phrase = phrase[:0]
		for n := 1; n <= t.maxPhrase && i+n <= len(toks); n++ {
			next := toks[i+n-1]
			if n > 1 {
				if !next.glued {
					break
				}
				phrase = append(phrase, ' ')
			}
			phrase = append(phrase, next.text...)

			key := string(phrase)
			if canonical, ok := t.aliases[key]; ok {
				skills = append(skills, phraseHit{value: canonical, start: i, size: n})
			}
			if idx, ok := t.roleAliases[key]; ok {
				roles = append(roles, phraseHit{value: t.roles[idx].Name, start: i, size: n})
			}
		}
	}
	return skills, roles
}

func (t *Taxonomy) roleByName(name string) Role {
	for _, r := range t.roles {
		if r.Name == name {
			return r
		}
	}
	return Role{}
}
