package prompt

import "github.com/abhisek/examforge/internal/batch"

// Quota is the number of questions per difficulty level in a batch.
type Quota struct {
	Easy   int
	Medium int
	Hard   int
}

// Total returns the number of questions the quota covers.
func (q Quota) Total() int {
	return q.Easy + q.Medium + q.Hard
}

// For returns the count allotted to a difficulty.
func (q Quota) For(d batch.Difficulty) int {
	switch d {
	case batch.DifficultyEasy:
		return q.Easy
	case batch.DifficultyHard:
		return q.Hard
	default:
		return q.Medium
	}
}

// DifficultyQuota splits size into 30% easy, 20% hard and the remainder medium.
func DifficultyQuota(size int) Quota {
	if size <= 0 {
		return Quota{}
	}
	easy := size * 3 / 10
	hard := size * 2 / 10
	return Quota{Easy: easy, Medium: size - easy - hard, Hard: hard}
}
