// Package errors provides structured error handling with error codes for authcore.
//
// Every failure the authentication core reports to callers is an *Error with
// an ErrorCode, a human-readable message and optional details. The HTTP layer
// in front of the core maps codes to status codes with MapErrorCodeToHTTPStatus.
//
// # Basic Usage
//
//	err := errors.New(errors.ErrCodeUserLocked, "account is locked")
//
//	// Policy rejections carry all violated rules
//	err := errors.PasswordComplexity([]string{"Password must contain at least one digit"})
//	for _, v := range errors.Violations(err) {
//		fmt.Println(v)
//	}
//
//	// Infrastructure faults keep their cause
//	err := errors.InternalWrap(dbErr, "failed to load account")
//
// # Inspection
//
//	if errors.IsCode(err, errors.ErrCodeTokenExpired) {
//		// ask the client to refresh
//	}
//	status := errors.MapErrorCodeToHTTPStatus(errors.GetCode(err))
//
// Errors that are not structured report ErrCodeInternal from GetCode.
package errors
