package analysis

import (
	"strings"

	"github.com/seanblong/promptcoach/pkg/models"
)

type section int

const (
	sectionNone section = iota
	sectionAssessment
	sectionStrengths
	sectionWeaknesses
	sectionRefined
	sectionExplanation
)

// headers are checked in order; the first match wins.
var headers = []struct {
	section  section
	keywords []string
}{
	{sectionAssessment, []string{"assessment", "overall"}},
	{sectionStrengths, []string{"strength"}},
	{sectionWeaknesses, []string{"weakness", "improvement"}},
	{sectionRefined, []string{"refined", "improved"}},
	{sectionExplanation, []string{"explanation", "changes"}},
}

func matchHeader(line string) (section, bool) {
	lower := strings.ToLower(line)
	for _, h := range headers {
		for _, kw := range h.keywords {
			if strings.Contains(lower, kw) {
				return h.section, true
			}
		}
	}
	return sectionNone, false
}

// parser accumulates fields while scanning a reply line by line.
type parser struct {
	current     section
	assessment  string
	strengths   []string
	weaknesses  []string
	refined     []string
	explanation []string
}

func (p *parser) feed(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}

	if s, ok := matchHeader(line); ok {
		p.current = s
		if s == sectionAssessment {
			p.assessment = ""
			if _, after, found := strings.Cut(line, ":"); found {
				p.assessment = strings.TrimSpace(after)
			}
		}
		return
	}

	switch p.current {
	case sectionAssessment:
		if p.assessment == "" {
			p.assessment = line
		}
	case sectionStrengths:
		if item, ok := strings.CutPrefix(line, "-"); ok {
			p.strengths = append(p.strengths, strings.TrimSpace(item))
		}
	case sectionWeaknesses:
		if item, ok := strings.CutPrefix(line, "-"); ok {
			p.weaknesses = append(p.weaknesses, strings.TrimSpace(item))
		}
	case sectionRefined:
		p.refined = append(p.refined, line)
	case sectionExplanation:
		p.explanation = append(p.explanation, line)
	}
}

func (p *parser) empty() bool {
	return p.assessment == "" && len(p.strengths) == 0 && len(p.weaknesses) == 0 &&
		len(p.refined) == 0 && len(p.explanation) == 0
}

// Parse decodes a free-form model reply into an Analysis. ok is false when no
// recognizable section captured anything; the caller then keeps the raw text.
// Fields left empty are not filled here; see WithDefaults.
func Parse(reply string) (a models.Analysis, ok bool) {
	var p parser
	for _, line := range strings.Split(reply, "\n") {
		p.feed(line)
	}
	if p.empty() {
		return models.Analysis{}, false
	}
	return models.Analysis{
		Assessment:    p.assessment,
		Strengths:     p.strengths,
		Weaknesses:    p.weaknesses,
		RefinedPrompt: strings.TrimSpace(strings.Join(p.refined, " ")),
		Explanation:   strings.TrimSpace(strings.Join(p.explanation, " ")),
	}, true
}

// WithDefaults fills every empty field of a with generic text.
func WithDefaults(a models.Analysis, prompt string) models.Analysis {
	if a.Assessment == "" {
		a.Assessment = "This prompt could be improved based on Google's prompt engineering guide."
	}
	if len(a.Strengths) == 0 {
		a.Strengths = []string{"The prompt provides a basic instruction"}
	}
	if len(a.Weaknesses) == 0 {
		a.Weaknesses = []string{"The prompt lacks specificity", "Context could be improved"}
	}
	if a.RefinedPrompt == "" {
		a.RefinedPrompt = "Improved version of: " + prompt
	}
	if a.Explanation == "" {
		a.Explanation = "The refined prompt adds more specificity and context."
	}
	return a
}
