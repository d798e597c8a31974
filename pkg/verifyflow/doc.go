// Package verifyflow implements the client side of the login verification
// flow: a small state machine that ingests a pending-verification record,
// fires at most one automatic attempt for deep-link entries, handles manual
// verification and resend, classifies remote failures, and hands successful
// verifications to the auth-session initializer.
//
// States:
//
//	Idle -> AutoVerifying -> (Success | ManualEntry)
//	ManualEntry -> Verifying -> (Success | ManualEntry)
//
// The controller is safe for use from multiple goroutines, but the intended
// usage is a single UI loop: duplicate verify/resend submissions while a call
// is outstanding are rejected with a busy outcome rather than queued.
package verifyflow
