package model

// ValidationResult is the outcome of a credential format check or live
// validation probe. Message is a short classification; Details carries a
// human-readable explanation. Neither ever contains secret material.
type ValidationResult struct {
	Valid   bool
	Message string
	Details string
}

// SuccessResult builds a passing ValidationResult. details may be empty.
func SuccessResult(message, details string) ValidationResult {
	return ValidationResult{Valid: true, Message: message, Details: details}
}

// FailureResult builds a failing ValidationResult. details may be empty.
func FailureResult(message, details string) ValidationResult {
	return ValidationResult{Valid: false, Message: message, Details: details}
}
