// Package signup implements the client side of an account sign-up flow: a
// session state machine backed by device storage, remote email availability
// checks with a short lived cache, navigation guards and a record of which
// testing scenarios a user has walked through.
//
// Session store:
//   - SessionStore moves between loading, loggedIn and loggedOut. The user
//     snapshot persisted under StorageKeyUser is the source of truth; the
//     store only keeps the state in memory and re-derives it when storage
//     changes underneath it.
//   - SignUp is only offered while logged out and LogOut only while logged
//     in. Requests made in any other state fail with ErrInvalidTransition.
//
// Availability:
//   - AvailabilityValidator asks an AvailabilityChecker whether an email can
//     be used and caches the answer for DefaultAvailabilityTTL. Only a 422
//     answer means taken; every other failure lets the user continue.
//
// Guards and scenarios:
//   - RequireAuthenticated and RequireAnonymous redirect to RootPath. Hitting
//     the sign-up page while logged in marks ScenarioSignUpPageInaccessible.
//   - ScenarioTracker stores three monotonic flags as a single record.
//
// Activity sinks:
//   - ActivitySink receives state changes, sign-up outcomes, availability
//     answers and redirects. Sinks run best-effort (errors are logged).
//
// The client package talks to the account service over HTTP and the server
// package implements that service on go-router (fiber adapter) and bun.
package signup
