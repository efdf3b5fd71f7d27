// Package event defines the push message envelope and the typed payloads the
// server emits.
//
// Every frame is decoded once at the transport boundary by Parse. The
// envelope keeps the raw JSON so consumers decode only the variants they care
// about:
//
//	var s event.StatusEvent
//	if err := ev.Decode(&s); err != nil { ... }
//
// Frames that are not JSON objects, or that carry no "type" tag, are rejected
// with ErrMalformedMessage or ErrMissingType.
package event
