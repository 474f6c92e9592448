package models

import "encoding/json"

type Chunk struct {
	Content   string    `json:"content"`
	Embedding []float32 `json:"embedding"`
	Filename  string    `json:"filename"`
}

type ScoredChunk struct {
	Chunk      Chunk   `json:"chunk"`
	Similarity float64 `json:"similarity"`
}

type Section struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type Analysis struct {
	Assessment    string   `json:"assessment"`
	Strengths     []string `json:"strengths"`
	Weaknesses    []string `json:"weaknesses"`
	RefinedPrompt string   `json:"refined_prompt"`
	Explanation   string   `json:"explanation"`
}

// AnalysisKind tells which variant of AnalysisResult is populated.
type AnalysisKind string

const (
	KindStructured AnalysisKind = "structured"
	KindRaw        AnalysisKind = "raw"
)

// Source records which path produced the analysis text.
type Source string

const (
	SourceModel            Source = "model"
	SourceRaw              Source = "raw"
	SourcePlaceholderDemo  Source = "placeholder_demo"
	SourcePlaceholderError Source = "placeholder_error"
)

// AnalysisResult is the outcome of one analysis call. Exactly one of
// Structured or Raw is meaningful, selected by Kind.
type AnalysisResult struct {
	OriginalPrompt   string
	Kind             AnalysisKind
	Structured       *Analysis
	Raw              string
	RelevantSections []Section
	Source           Source
	Degraded         bool
}

// wireResult is the JSON shape hosts consume: "analysis" is an object for
// structured results and a plain string for raw ones.
type wireResult struct {
	OriginalPrompt   string          `json:"original_prompt"`
	Analysis         json.RawMessage `json:"analysis"`
	RelevantSections []Section       `json:"relevant_sections"`
	Source           Source          `json:"source"`
	Degraded         bool            `json:"degraded"`
}

func (r AnalysisResult) MarshalJSON() ([]byte, error) {
	var payload any = r.Raw
	if r.Kind != KindRaw {
		payload = r.Structured
	}
	a, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	sections := r.RelevantSections
	if sections == nil {
		sections = []Section{}
	}
	return json.Marshal(wireResult{
		OriginalPrompt:   r.OriginalPrompt,
		Analysis:         a,
		RelevantSections: sections,
		Source:           r.Source,
		Degraded:         r.Degraded,
	})
}

func (r *AnalysisResult) UnmarshalJSON(b []byte) error {
	var w wireResult
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*r = AnalysisResult{
		OriginalPrompt:   w.OriginalPrompt,
		RelevantSections: w.RelevantSections,
		Source:           w.Source,
		Degraded:         w.Degraded,
	}
	if len(w.Analysis) > 0 && w.Analysis[0] == '"' {
		r.Kind = KindRaw
		return json.Unmarshal(w.Analysis, &r.Raw)
	}
	r.Kind = KindStructured
	r.Structured = &Analysis{}
	return json.Unmarshal(w.Analysis, r.Structured)
}

// SectionsFrom converts ranked chunks into display sections, keeping order.
func SectionsFrom(chunks []ScoredChunk) []Section {
	out := make([]Section, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, Section{Title: c.Chunk.Filename, Content: c.Chunk.Content})
	}
	return out
}
