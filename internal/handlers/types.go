package handlers

import "time"

// ActionRequest addresses one throttled action of the calling visitor.
type ActionRequest struct {
	Action string `doc:"The limited action" example:"contact_form" maxLength:"64" path:"action" pattern:"^[a-z0-9_]+$"`
}

// AttemptResponse is the outcome of recording one attempt.
type AttemptResponse struct {
	Body struct {
		Allowed      bool      `doc:"Whether the attempt was within budget"       json:"allowed"`
		AttemptCount int       `doc:"Attempts recorded in the current window"      json:"attemptCount"`
		Remaining    int       `doc:"Attempts left before the limit"               json:"remaining"`
		ResetAt      time.Time `doc:"When the current window ends"                 json:"resetAt"`
		RetryIn      string    `doc:"Time until reset, empty when allowed"         example:"2m 15s" json:"retryIn,omitempty"`
	}
}

// StatusResponse is a read-only view of an action's limiter.
type StatusResponse struct {
	Body struct {
		AttemptCount int        `doc:"Attempts recorded in the current window" json:"attemptCount"`
		Remaining    int        `doc:"Attempts left before the limit"          json:"remaining"`
		CanProceed   bool       `doc:"Whether a next attempt would be allowed" json:"canProceed"`
		ResetAt      *time.Time `doc:"When the current window ends"            json:"resetAt,omitempty"`
		RetryIn      string     `doc:"Time until reset"                        example:"15s" json:"retryIn,omitempty"`
	}
}

// ContactRequest is a demo form submission.
type ContactRequest struct {
	Body struct {
		Name    string `doc:"Sender name"   example:"Ada"              json:"name"    maxLength:"200"  minLength:"1"`
		Email   string `doc:"Sender email"  example:"ada@example.com"  format:"email" json:"email"`
		Message string `doc:"Message text"  example:"Hello there"      json:"message" maxLength:"5000" minLength:"1"`
	}
}

// ContactResponse acknowledges an accepted submission.
type ContactResponse struct {
	Status int
	Body   struct {
		Status    string `doc:"Submission status"                example:"accepted" json:"status"`
		Remaining int    `doc:"Submissions left in this window"  json:"remaining"`
	}
}
