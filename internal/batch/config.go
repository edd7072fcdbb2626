package batch

import (
	"errors"
	"fmt"
)

// rotationWidth is the number of topics a rotated batch covers.
const rotationWidth = 3

// BatchConfig describes a single generation request. It is created fresh
// for every call and never mutated; retries of the same logical batch reuse
// the identical value.
type BatchConfig struct {
	// SessionID is an opaque correlation key.
	SessionID string `json:"sessionId"`

	// BatchIndex is the 0-based sequence number of the batch within the session.
	BatchIndex int `json:"batchIndex"`

	// BatchSize is the target number of questions.
	BatchSize int `json:"batchSize"`

	Section Section `json:"section"`
	Track   Track   `json:"track"`

	// Categories optionally pins the topics for this batch. When empty the
	// topics are derived from BatchIndex by rotation.
	Categories []string `json:"categories,omitempty"`
}

// Validate checks the config for structural problems.
func (c BatchConfig) Validate() error {
	if c.BatchIndex < 0 {
		return fmt.Errorf("batch index must be >= 0, got %d", c.BatchIndex)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be > 0, got %d", c.BatchSize)
	}
	if _, err := ParseSection(string(c.Section)); err != nil {
		return err
	}
	if _, err := ParseTrack(string(c.Track)); err != nil {
		return err
	}
	var errs []error
	for _, cat := range c.Categories {
		if !c.Section.HasTopic(cat) {
			errs = append(errs, fmt.Errorf("category %q is not a %s topic", cat, c.Section))
		}
	}
	return errors.Join(errs...)
}

// EffectiveCategories returns the explicit categories, or the rotation
// derived from BatchIndex over the section's topic list.
func (c BatchConfig) EffectiveCategories() []string {
	if len(c.Categories) > 0 {
		return append([]string(nil), c.Categories...)
	}
	return RotateCategories(c.Section, c.BatchIndex)
}

// RotateCategories picks rotationWidth consecutive topics starting at
// batchIndex (mod the topic count), wrapping around the list.
func RotateCategories(s Section, batchIndex int) []string {
	topics := sectionTopics[s]
	if len(topics) == 0 {
		return nil
	}
	n := min(rotationWidth, len(topics))
	start := batchIndex % len(topics)
	out := make([]string, 0, n)
	for i := range n {
		out = append(out, topics[(start+i)%len(topics)])
	}
	return out
}

// IDPrefix returns the question ID prefix for this batch.
func (c BatchConfig) IDPrefix() string {
	return c.Section.IDPrefix()
}
