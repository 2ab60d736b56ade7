package assessment

import (
	"math"
	"sync"
)

// Draft is a quiz in progress: one answer slot per loaded question.
type Draft struct {
	mu          sync.Mutex
	CandidateID string   `json:"candidate_id"`
	Answers     []Answer `json:"answers"`
}

// NewDraft initialises one blank answer per question, in question order.
func NewDraft(candidateID string, questions []Question) *Draft {
	d := &Draft{CandidateID: candidateID, Answers: make([]Answer, 0, len(questions))}
	for _, q := range questions {
		d.Answers = append(d.Answers, Answer{QuestionID: q.ID})
	}
	return d
}

// Choose records option as the answer to questionID and clears any skip.
func (d *Draft) Choose(questionID string, option int) bool {
	return d.update(questionID, func(a *Answer) {
		choice := option
		a.Answer = &choice
		a.IsSkip = 0
	})
}

// Skip marks questionID as skipped and clears its answer.
func (d *Draft) Skip(questionID string) bool {
	return d.update(questionID, func(a *Answer) {
		a.Answer = nil
		a.IsSkip = 1
	})
}

// Note sets the free-text "other" answer.
func (d *Draft) Note(questionID, text string) bool {
	return d.update(questionID, func(a *Answer) { a.Other = text })
}

// Answer returns the current answer slot for questionID.
func (d *Draft) Answer(questionID string) (Answer, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, a := range d.Answers {
		if a.QuestionID == questionID {
			return a, true
		}
	}
	return Answer{}, false
}

// Answered counts slots with a chosen option.
func (d *Draft) Answered() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, a := range d.Answers {
		if a.Answer != nil {
			n++
		}
	}
	return n
}

func (d *Draft) update(questionID string, fn func(*Answer)) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.Answers {
		if d.Answers[i].QuestionID == questionID {
			fn(&d.Answers[i])
			return true
		}
	}
	return false
}

// Summary is the headline of a reviewed submission.
type Summary struct {
	Total   int
	Correct int
	Skipped int
	Percent int
}

// Summarize counts correct (point > 0) and skipped (is_skip == 1) answers. Percent
// is rounded to the nearest integer and 0 for an empty submission.
func Summarize(sub *Submission) Summary {
	var s Summary
	if sub == nil {
		return s
	}
	s.Total = len(sub.Answers)
	for _, a := range sub.Answers {
		if a.Point > 0 {
			s.Correct++
		}
		if a.IsSkip == 1 {
			s.Skipped++
		}
	}
	if s.Total > 0 {
		s.Percent = int(math.Round(float64(s.Correct) / float64(s.Total) * 100))
	}
	return s
}
