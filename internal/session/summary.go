package session

import (
	"context"
	"sort"

	"github.com/abhisek/examforge/internal/batch"
)

// TopicResult is the per-topic score of a session.
type TopicResult struct {
	Topic     string `json:"topic"`
	Attempted int    `json:"attempted"`
	Correct   int    `json:"correct"`
}

// Summary is the score sheet of a session.
type Summary struct {
	SessionID      string        `json:"sessionId"`
	TotalQuestions int           `json:"totalQuestions"`
	Answered       int           `json:"answered"`
	Correct        int           `json:"correct"`
	Accuracy       float64       `json:"accuracy"`
	Topics         []TopicResult `json:"topics"`
}

// BuildSummary scores answers against the delivered questions. Answers
// pointing past the question list are ignored.
func BuildSummary(sessionID string, questions []batch.SessionQuestion, answers []batch.Answer) *Summary {
	sum := &Summary{SessionID: sessionID, TotalQuestions: len(questions)}

	byTopic := map[string]*TopicResult{}
	for _, a := range answers {
		if a.QuestionIndex < 0 || a.QuestionIndex >= len(questions) {
			continue
		}
		topic := questions[a.QuestionIndex].Topic
		tr, ok := byTopic[topic]
		if !ok {
			tr = &TopicResult{Topic: topic}
			byTopic[topic] = tr
		}
		tr.Attempted++
		sum.Answered++
		if a.Correct {
			tr.Correct++
			sum.Correct++
		}
	}

	for _, tr := range byTopic {
		sum.Topics = append(sum.Topics, *tr)
	}
	sort.Slice(sum.Topics, func(i, j int) bool { return sum.Topics[i].Topic < sum.Topics[j].Topic })

	if sum.Answered > 0 {
		sum.Accuracy = float64(sum.Correct) / float64(sum.Answered)
	}
	return sum
}

// Summary scores the session so far.
func (s *Service) Summary(ctx context.Context, sessionID string) (*Summary, error) {
	questions, err := s.Questions(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	answers, err := s.answers.List(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return BuildSummary(sessionID, questions, answers), nil
}
