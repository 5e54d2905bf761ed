package service

// Notifier pushes "topic changed" events to observers after a mutation
// commits. Events carry only topic/action/id — observers re-pull the
// authoritative state through the read endpoints. The websocket hub
// satisfies this interface.
type Notifier interface {
	Publish(topic, action, entityID string)
}
