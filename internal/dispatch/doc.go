// Package dispatch implements the subscriber registry.
//
// The Dispatcher:
//   - Maps event types to any number of handlers
//   - Returns a disposer from Subscribe (or an ID for Unsubscribe)
//   - Recovers and logs handler panics so other subscribers still receive the event
//   - Makes no promise about delivery order between handlers of one type
package dispatch
