package prompt

import "github.com/abhisek/examforge/internal/batch"

// topicGuides describes each topic for the stable instruction segment.
var topicGuides = map[string]string{
	"arithmetic":            "Operations on integers, fractions, decimals and percentages; order of operations; divisibility, primes, LCM and GCD.",
	"algebra":               "Linear and quadratic equations, inequalities, exponents and roots, simple systems of two equations, algebraic expressions.",
	"geometry":              "Angles, triangles, quadrilaterals, circles, area, perimeter, volume, coordinate geometry and similarity.",
	"statistics":            "Mean, median, mode, range, simple probability, reading tables and charts described in text.",
	"comparison":            "Quantitative comparison: two quantities A and B. Choices are always: A is greater, B is greater, they are equal, the relation cannot be determined.",
	"word_problems":         "Rates, ratios, work, ages, mixtures and money problems stated in a short realistic scenario.",
	"reading_comprehension": "A short passage (60 to 120 words) followed by a question about its main idea, a detail, an inference or the meaning of a word in context.",
	"sentence_completion":   "A sentence with one blank; choose the word or phrase that best completes the meaning.",
	"verbal_analogy":        "A pair of related words; choose the pair with the same relationship.",
	"contextual_error":      "A sentence in which one word is used incorrectly for the context; choose that word.",
	"odd_word_out":          "Four words of which three share a category or relation; choose the one that does not belong.",
}

// trackEmphasis describes how the track weights topics within a section.
var trackEmphasis = map[batch.Track]map[batch.Section]string{
	batch.TrackScientific: {
		batch.SectionQuantitative: "Favour algebra, geometry and comparison items. Multi-step reasoning is expected at medium and hard levels.",
		batch.SectionVerbal:       "Prefer passages and vocabulary drawn from science, technology and nature.",
	},
	batch.TrackLiterary: {
		batch.SectionQuantitative: "Favour arithmetic, statistics and word problems. Keep computation light and reasoning explicit.",
		batch.SectionVerbal:       "Prefer passages and vocabulary drawn from literature, history and society. Reading and analogy items may be longer.",
	},
}
