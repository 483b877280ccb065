// Package assistant implements the email-assistant workflow: a single
// SharedState threaded through a fixed sequence of steps (summarize,
// route, reply, schedule, budget), with branching decided by the action
// router.
//
// The package owns the state transition logic only. Mail retrieval, the
// language-model oracle, calendar access, and the invoice/memory sinks
// are collaborators injected through small interfaces; their failures are
// recovered inside the owning step and surface as status text plus a
// terminal action value, never as an error from Run.
//
// One workflow run is strictly sequential. Callers that may trigger runs
// concurrently (the HTTP service, the poll loop) are responsible for
// single-flight guarding; the orchestrator itself shares no mutable data
// between runs except the debounce timestamp, which it guards.
package assistant
