package characters

// Record tracks one named character across a session. Records are created
// on first extraction and mutated on later mentions; they are never deleted
// within a session.
type Record struct {
	Name        string   `json:"name"`
	Gender      Gender   `json:"gender"`
	Confidence  float64  `json:"confidence"`
	Evidence    []string `json:"evidence,omitempty"`
	Appearances int      `json:"appearances"`
	Culture     Culture  `json:"cultural_origin"`
}

// Apply merges a new inference into the record. A determination may
// overwrite the stored gender only when its confidence is at least as high
// as what is already recorded; high-confidence data never silently
// downgrades.
func (r *Record) Apply(inf Inference) {
	if inf.Gender == GenderUnknown {
		return
	}
	if r.Gender != GenderUnknown && inf.Confidence < r.Confidence {
		return
	}
	r.Gender = inf.Gender
	r.Confidence = inf.Confidence
	r.Evidence = inf.Evidence
	if inf.Culture != "" {
		r.Culture = inf.Culture
	}
}
