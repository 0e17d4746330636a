// Package identity is the authentication and credential-lifecycle core for a
// multi-tenant learning platform. It covers registration, login, JWT session
// tokens (access + refresh), single-use email verification and password reset
// tokens, and role-gated authorization.
//
// Account lifecycle:
//   - Accounts carry an AccountStatus persisted via Bun. The graph is small on
//     purpose: accounts are created active and deactivation is the terminal
//     soft-delete state. AccountStateMachine centralizes the transition rules
//     and emits ActivityEvents with ActorRef metadata for admin moves.
//
// Tokens:
//   - TokenIssuer signs stateless HS256 JWTs carrying a token class claim so a
//     refresh token can never be replayed where an access token is expected.
//   - EphemeralTokens issues opaque single-use tokens (256-bit, hex) persisted
//     on the account record; reset tokens expire, verification tokens do not.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter used by Service and the
//     state machine for login, registration, reset, and status-change events.
//     Sinks run best-effort (errors are logged) so you can forward to a
//     database or queue without blocking authentication.
package identity
