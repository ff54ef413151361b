package fhir

import "net/http"

// OperationOutcomeIssue is one issue in an OperationOutcome.
type OperationOutcomeIssue struct {
	Severity    string `json:"severity"`
	Code        string `json:"code"`
	Diagnostics string `json:"diagnostics,omitempty"`
}

// OperationOutcome is the FHIR error/report resource returned by the /fhir
// surface whenever an operation fails.
type OperationOutcome struct {
	ResourceType string                  `json:"resourceType"`
	Issue        []OperationOutcomeIssue `json:"issue"`
}

// NewOperationOutcome creates an OperationOutcome with a single issue.
func NewOperationOutcome(severity, code, diagnostics string) *OperationOutcome {
	return &OperationOutcome{
		ResourceType: "OperationOutcome",
		Issue: []OperationOutcomeIssue{
			{Severity: severity, Code: code, Diagnostics: diagnostics},
		},
	}
}

// ErrorOutcome maps an HTTP status to an OperationOutcome with the matching
// FHIR issue code.
func ErrorOutcome(status int, diagnostics string) *OperationOutcome {
	code := "processing"
	switch status {
	case http.StatusNotFound:
		code = "not-found"
	case http.StatusBadRequest:
		code = "invalid"
	case http.StatusConflict:
		code = "conflict"
	case http.StatusUnauthorized:
		code = "security"
	case http.StatusForbidden:
		code = "forbidden"
	case http.StatusTooManyRequests:
		code = "throttled"
	case http.StatusServiceUnavailable:
		code = "transient"
	}
	return NewOperationOutcome("error", code, diagnostics)
}
