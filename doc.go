// Package auth provides patient platform authentication: bcrypt credential
// verification, HS256 session tokens, cookie backed sessions and a facade
// that ties them to the user store.
//
// Sessions:
//   - A session is a signed JWT stored in an HttpOnly, Secure, SameSite=Strict
//     cookie. A second, script readable cookie carries the non sensitive
//     profile subset (name, user type, survey and care plan flags).
//   - Tokens are self contained. Logout clears the cookies but a captured
//     token stays valid until its exp claim passes.
//
// Users:
//   - Emails are unique and compared in lower case. Registration inserts with
//     an insert if absent primitive so concurrent sign ups for one address
//     produce a single record.
//   - HasCarePlan is derived from the care_plans table, never stored.
//   - Schema comes from bun CreateSchema or the embedded SQL migrations, see
//     GetMigrationsFS.
//
// Activity sinks:
//   - ActivitySink receives registration, login, logout and access events.
//     Sinks run best effort (errors are logged) so a slow audit backend never
//     blocks authentication.
package auth
