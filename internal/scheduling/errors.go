package scheduling

import "fmt"

// ValidationError rejects a request whose payload can never succeed.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid request: %s", e.Reason)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ConflictError rejects a request that lost a race for shared state, such
// as a professional time slot or a concurrent status write.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict: %s", e.Reason)
}

// NotFoundError reports a missing resource.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// Warning codes. Warnings ride on successful results: the local state change
// committed, but a best-effort side effect did not fully apply.
const (
	WarnExternalService = "external_service"
	WarnPartialSuccess  = "partial_success"
)

// Warning describes a side effect that failed after the state change
// committed. It is never an error: callers decide whether to surface it.
type Warning struct {
	Code   string `json:"code"`
	Detail string `json:"detail"`
}

// ExternalServiceWarning flags a failed call to an external collaborator
// (calendar mirror, email). The intent stays queued for later retry.
func ExternalServiceWarning(detail string) Warning {
	return Warning{Code: WarnExternalService, Detail: detail}
}

// PartialSuccessWarning flags a local follow-up write that failed, such as
// the automatic return or a lead stage update.
func PartialSuccessWarning(detail string) Warning {
	return Warning{Code: WarnPartialSuccess, Detail: detail}
}
