// Package auth establishes an authenticated session on the referee portal.
//
// The Authenticator fills the login form, activates the first visible submit
// control from an ordered list of selector strategies, and then verifies that
// the resulting page no longer looks like the login page. The same Page keeps
// its session for the navigation to the schedule page.
package auth
