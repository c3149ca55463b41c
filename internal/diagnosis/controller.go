package diagnosis

import (
	"context"
	"log"
)

// State is a node of the session state machine.
type State interface {
	isState()
}

// Initial is the state before retrieval has completed.
type Initial struct{}

// Attempting is a pending draft attempt. Feedback carries the most recent
// reviewer suggestions.
type Attempting struct {
	Index      int
	Feedback   *Suggestions
	Rejections int
}

// Accepted holds the reviewed and accepted diagnosis.
type Accepted struct {
	Diagnosis  string
	Rejections int
}

// Exhausted means every reviewed attempt was used up. One more draft is
// produced from Feedback and returned without review.
type Exhausted struct {
	Feedback   *Suggestions
	Rejections int
}

// Fatal ends the session with a user-facing reason.
type Fatal struct {
	Reason string
}

func (Initial) isState()    {}
func (Attempting) isState() {}
func (Accepted) isState()   {}
func (Exhausted) isState()  {}
func (Fatal) isState()      {}

// attemptOutcome is what one draft-and-review round produced. Err is set
// when either stage failed.
type attemptOutcome struct {
	Draft  string
	Review Review
	Err    error
}

// begin leaves Initial once retrieval has finished.
func begin(retrievalErr error) State {
	if retrievalErr != nil {
		return Fatal{Reason: retrievalErr.Error()}
	}
	return Attempting{}
}

// advance is the transition out of Attempting.
func advance(s Attempting, o attemptOutcome, maxRetries int) State {
	last := s.Index >= maxRetries-1

	if o.Err != nil {
		if last {
			return Exhausted{Feedback: s.Feedback, Rejections: s.Rejections}
		}
		return Attempting{Index: s.Index + 1, Feedback: s.Feedback, Rejections: s.Rejections}
	}

	if o.Review.Accepted {
		return Accepted{Diagnosis: o.Draft, Rejections: s.Rejections}
	}

	feedback := o.Review.Suggestions
	if feedback == nil {
		feedback = placeholderSuggestions()
	}
	rejections := s.Rejections + 1
	if last {
		return Exhausted{Feedback: feedback, Rejections: rejections}
	}
	return Attempting{Index: s.Index + 1, Feedback: feedback, Rejections: rejections}
}

// Controller drives the draft and review loop over a retrieval bundle.
type Controller struct {
	Drafter    Drafter
	Reviewer   Reviewer
	MaxRetries int
}

// run executes the state machine and fills the outcome fields of res.
func (c *Controller) run(ctx context.Context, symptoms string, b *Bundle, retrievalErr error, res *Result) {
	maxRetries := c.MaxRetries
	if maxRetries <= 0 {
		maxRetries = MaxRetries
	}

	var state State = Initial{}
	for {
		switch s := state.(type) {
		case Initial:
			state = begin(retrievalErr)

		case Attempting:
			o, rec := c.attempt(ctx, symptoms, b, s)
			res.Attempts = append(res.Attempts, rec)
			state = advance(s, o, maxRetries)

		case Accepted:
			res.Diagnosis = s.Diagnosis
			res.Outcome = OutcomeAccepted
			res.Rejections = s.Rejections
			log.Printf("controller: diagnosis accepted after %d rejections", s.Rejections)
			return

		case Exhausted:
			log.Printf("controller: retries exhausted with %d rejections, drafting final diagnosis", s.Rejections)
			rec := AttemptRecord{Index: len(res.Attempts), Verdict: VerdictFinal, Feedback: s.Feedback}
			draft, err := c.Drafter.Draft(ctx, symptoms, b, s.Feedback)
			if err != nil {
				rec.Err = err.Error()
				res.Diagnosis = "doctor模块最终诊断失败: " + err.Error()
			} else {
				rec.Draft = draft
				res.Diagnosis = draft
			}
			res.Attempts = append(res.Attempts, rec)
			res.Outcome = OutcomeExhausted
			res.Rejections = s.Rejections
			return

		case Fatal:
			res.Diagnosis = s.Reason
			res.Outcome = OutcomeFatal
			return
		}
	}
}

func (c *Controller) attempt(ctx context.Context, symptoms string, b *Bundle, s Attempting) (attemptOutcome, AttemptRecord) {
	rec := AttemptRecord{Index: s.Index, Feedback: s.Feedback}
	log.Printf("controller: attempt %d", s.Index+1)

	draft, err := c.Drafter.Draft(ctx, symptoms, b, s.Feedback)
	if err != nil {
		log.Printf("controller: attempt %d draft failed: %v", s.Index+1, err)
		rec.Verdict, rec.Err = VerdictFailed, err.Error()
		return attemptOutcome{Err: err}, rec
	}
	rec.Draft = draft

	review, err := c.Reviewer.Review(ctx, symptoms, b, draft)
	if err != nil {
		log.Printf("controller: attempt %d review failed: %v", s.Index+1, err)
		rec.Verdict, rec.Err = VerdictFailed, err.Error()
		return attemptOutcome{Draft: draft, Err: err}, rec
	}

	if review.Accepted {
		rec.Verdict = VerdictAccepted
	} else {
		rec.Verdict = VerdictRejected
	}
	return attemptOutcome{Draft: draft, Review: review}, rec
}
