package skills

import (
	"strconv"
	"strings"
)

type Level string

const (
	LevelExpert       Level = "expert"
	LevelIntermediate Level = "intermediate"
	LevelBeginner     Level = "beginner"
)

// Proficiency is the level and experience stated next to a skill.
type Proficiency struct {
	Level Level `json:"level,omitempty"`
	Years int   `json:"years,omitempty"`
}

var levelKeywords = map[string]Level{
	"expert":       LevelExpert,
	"advanced":     LevelExpert,
	"senior":       LevelExpert,
	"proficient":   LevelExpert,
	"strong":       LevelExpert,
	"intermediate": LevelIntermediate,
	"experienced":  LevelIntermediate,
	"basic":        LevelBeginner,
	"beginner":     LevelBeginner,
	"familiar":     LevelBeginner,
	"novice":       LevelBeginner,
	"learning":     LevelBeginner,
}

var levelRank = map[Level]int{
	LevelBeginner:     1,
	LevelIntermediate: 2,
	LevelExpert:       3,
}

var yearWords = map[string]bool{"year": true, "years": true, "yr": true, "yrs": true}

// proficiencyFor reads level cues from one sentence. Tokens that belong to a
// matched skill or role ("machine learning") are not cues. The strongest
// level wins; the first "N years" sets the experience.
func proficiencyFor(toks []token, covered []bool, sentence int) (Proficiency, bool) {
	var p Proficiency
	for i, tok := range toks {
		if tok.sentence != sentence {
			continue
		}

		if p.Years == 0 && i+1 < len(toks) && yearWords[toks[i+1].text] && toks[i+1].sentence == sentence {
			if years, err := strconv.Atoi(strings.TrimSuffix(tok.text, "+")); err == nil && years > 0 {
				p.Years = years
			}
		}

		if covered[i] {
			continue
		}
		level, ok := levelKeywords[tok.text]
		if !ok && tok.text == "working" && i+1 < len(toks) && toks[i+1].text == "knowledge" && toks[i+1].glued {
			level, ok = LevelIntermediate, true
		}
		if ok && levelRank[level] > levelRank[p.Level] {
			p.Level = level
		}
	}

	return p, p.Level != "" || p.Years > 0
}
