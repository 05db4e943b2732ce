// Package authflow orchestrates client side authentication flows (sign in,
// sign up, password reset, attribute verification and sign out) on top of a
// pluggable identity provider.
//
// Flows:
//   - Authenticator supervises at most one child flow at a time. Each child
//     is an explicit reducer that turns events and settled handler calls into
//     state changes, and hands a typed ActorDoneData payload back when it
//     finishes. The authenticator picks the next flow from ordered completion
//     tables.
//   - Handlers is the provider capability set the flows drive. Rejections
//     should carry a provider error name (see ProviderError) so guards can
//     branch on "UserNotConfirmedException" and friends.
//
// Read side:
//   - Snapshot is published after every effective event or result. RouteOf
//     and NewFacade flatten it into the single Route and the display fields
//     a UI needs. Subscribe and WaitFor observe the stream.
//
// Hub:
//   - Hub is a named pub/sub registry for identity lifecycle events on the
//     "auth" channel. ListenToHub bridges redirect completions, sign outs and
//     token refresh failures into the authenticator; CurrentUserTracker keeps
//     a lightweight signed in user view without running flows.
//
// Activity sinks:
//   - ActivitySink receives audit events (authenticated, signed out, flow
//     completed, operation failed). Sinks run best-effort: errors are logged
//     and never block the flows.
package authflow
