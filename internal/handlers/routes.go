package handlers

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/formguard/internal/ratelimit"
)

// RegisterRoutes registers the form and limiter routes. Only the contact form
// carries throttling metadata; the attempts API records explicitly.
func RegisterRoutes(api huma.API, attempts *AttemptsHandler, contact *ContactHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "submit-contact",
		Method:      http.MethodPost,
		Path:        "/contact",
		Summary:     "Submit contact form",
		Description: "Accepts a contact form submission. Each submission counts against the visitor's budget.",
		Tags:        []string{"Forms"},
		Metadata: map[string]any{
			ratelimit.MetadataKey: ratelimit.EndpointConfig{Action: ActionContactForm},
		},
	}, contact.Submit)

	huma.Register(api, huma.Operation{
		OperationID: "record-attempt",
		Method:      http.MethodPost,
		Path:        "/actions/{action}/attempts",
		Summary:     "Record attempt",
		Description: "Counts one attempt of the action and reports whether it was within budget.",
		Tags:        []string{"Limits"},
	}, attempts.RecordAttempt)

	huma.Register(api, huma.Operation{
		OperationID: "get-action-status",
		Method:      http.MethodGet,
		Path:        "/actions/{action}",
		Summary:     "Get action status",
		Description: "Returns the visitor's counters for the action without counting an attempt.",
		Tags:        []string{"Limits"},
	}, attempts.GetStatus)

	huma.Register(api, huma.Operation{
		OperationID:   "reset-action",
		Method:        http.MethodDelete,
		Path:          "/actions/{action}",
		Summary:       "Reset action",
		Description:   "Discards the visitor's counters for the action.",
		Tags:          []string{"Limits"},
		DefaultStatus: http.StatusNoContent,
	}, attempts.Reset)
}
