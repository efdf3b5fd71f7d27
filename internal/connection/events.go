package connection

import (
	"github.com/rickgao/wsfeed/internal/event"
)

// OnConnected subscribes to the server greeting.
func (m *Manager) OnConnected(fn func(event.ConnectedEvent)) func() {
	return subscribeTyped(m, event.TypeConnected, fn)
}

// OnStatus subscribes to server status updates.
func (m *Manager) OnStatus(fn func(event.StatusEvent)) func() {
	return subscribeTyped(m, event.TypeStatus, fn)
}

// OnTranscription subscribes to final transcription results.
func (m *Manager) OnTranscription(fn func(event.TranscriptionEvent)) func() {
	return subscribeTyped(m, event.TypeTranscription, fn)
}

// OnTranscriptionUpdate subscribes to partial transcription results.
func (m *Manager) OnTranscriptionUpdate(fn func(event.TranscriptionEvent)) func() {
	return subscribeTyped(m, event.TypeTranscriptionUpdate, fn)
}

// OnTranscriptionProgress subscribes to file transcription progress.
func (m *Manager) OnTranscriptionProgress(fn func(event.TranscriptionProgressEvent)) func() {
	return subscribeTyped(m, event.TypeTranscriptionProgress, fn)
}

// OnDownloadProgress subscribes to model download progress.
func (m *Manager) OnDownloadProgress(fn func(event.DownloadProgressEvent)) func() {
	return subscribeTyped(m, event.TypeDownloadProgress, fn)
}

// OnBatchProgress subscribes to batch job progress.
func (m *Manager) OnBatchProgress(fn func(event.BatchProgressEvent)) func() {
	return subscribeTyped(m, event.TypeBatchProgress, fn)
}

// OnError subscribes to error events, both server-sent and connection
// failures.
func (m *Manager) OnError(fn func(event.ErrorEvent)) func() {
	return subscribeTyped(m, event.TypeError, fn)
}

func subscribeTyped[T any](m *Manager, eventType string, fn func(T)) func() {
	return m.bus.Subscribe(eventType, func(ev event.Event) {
		var v T
		if err := ev.Decode(&v); err != nil {
			m.logger.Warn("dropping undecodable event", "event", eventType, "error", err)
			return
		}
		fn(v)
	})
}
