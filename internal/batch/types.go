package batch

import "fmt"

// Section is the exam section a batch is generated for.
type Section string

const (
	SectionQuantitative Section = "quantitative"
	SectionVerbal       Section = "verbal"
)

// Track affects topic weighting and the difficulty mix of a batch.
type Track string

const (
	TrackScientific Track = "scientific"
	TrackLiterary   Track = "literary"
)

// SessionType determines the default batch size of a session.
type SessionType string

const (
	SessionFull     SessionType = "full"
	SessionPractice SessionType = "practice"
)

// Difficulty is the self-reported difficulty of a question.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// QuestionType describes the presentation style of a question.
type QuestionType string

const (
	QuestionTypeMCQ        QuestionType = "mcq"
	QuestionTypeComparison QuestionType = "comparison"
	QuestionTypePassage    QuestionType = "passage"
)

const (
	// FullBatchSize is the default number of questions per batch in a full exam.
	FullBatchSize = 10

	// PracticeBatchSize is the default number of questions per batch in practice mode.
	PracticeBatchSize = 5

	// ChoiceCount is the number of answer choices every question carries.
	ChoiceCount = 4

	// DefaultMaxBatches caps the number of batches generated per session.
	DefaultMaxBatches = 10
)

// sectionTopics is the ordered topic taxonomy per section. Order matters:
// category rotation walks this list by batch index.
var sectionTopics = map[Section][]string{
	SectionQuantitative: {
		"arithmetic",
		"algebra",
		"geometry",
		"statistics",
		"comparison",
		"word_problems",
	},
	SectionVerbal: {
		"reading_comprehension",
		"sentence_completion",
		"verbal_analogy",
		"contextual_error",
		"odd_word_out",
	},
}

var sectionPrefixes = map[Section]string{
	SectionQuantitative: "quant",
	SectionVerbal:       "verbal",
}

// Sections returns every known section.
func Sections() []Section {
	return []Section{SectionQuantitative, SectionVerbal}
}

// ParseSection validates a section name.
func ParseSection(s string) (Section, error) {
	sec := Section(s)
	if _, ok := sectionTopics[sec]; !ok {
		return "", fmt.Errorf("unknown section %q", s)
	}
	return sec, nil
}

// ParseTrack validates a track name.
func ParseTrack(s string) (Track, error) {
	switch t := Track(s); t {
	case TrackScientific, TrackLiterary:
		return t, nil
	}
	return "", fmt.Errorf("unknown track %q", s)
}

// ParseSessionType validates a session type name.
func ParseSessionType(s string) (SessionType, error) {
	switch t := SessionType(s); t {
	case SessionFull, SessionPractice:
		return t, nil
	}
	return "", fmt.Errorf("unknown session type %q", s)
}

// DefaultBatchSize returns the batch size for a session type.
func (t SessionType) DefaultBatchSize() int {
	if t == SessionPractice {
		return PracticeBatchSize
	}
	return FullBatchSize
}

// Topics returns a copy of the section's topic list.
func (s Section) Topics() []string {
	return append([]string(nil), sectionTopics[s]...)
}

// HasTopic reports whether topic belongs to the section.
func (s Section) HasTopic(topic string) bool {
	for _, t := range sectionTopics[s] {
		if t == topic {
			return true
		}
	}
	return false
}

// IDPrefix returns the question ID prefix for the section.
func (s Section) IDPrefix() string {
	if p, ok := sectionPrefixes[s]; ok {
		return p
	}
	return string(s)
}

// Valid reports whether d is a known difficulty.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// Valid reports whether q is a known question type.
func (q QuestionType) Valid() bool {
	switch q {
	case QuestionTypeMCQ, QuestionTypeComparison, QuestionTypePassage:
		return true
	}
	return false
}
