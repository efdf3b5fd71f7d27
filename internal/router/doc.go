// Package router implements throttling between the connection and the
// subscribers.
//
// The Router:
//   - Classifies open, close and error as critical and delivers them at once
//   - Spaces other event types at most MaxMessagesPerSecond per type
//   - Buffers throttled events in a CoalescingBuffer keyed by
//     (emitted type, payload type), latest payload wins
//   - Drains the buffer on every FlushScheduler tick
package router
