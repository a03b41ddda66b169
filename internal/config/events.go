package config

import "github.com/kstrand/modkit/internal/event"

// TopicChanged is published after the configuration is saved.
const TopicChanged event.Topic = "config.changed"

// ChangedMessage announces that the persisted configuration changed.
// Modules subscribe to this instead of watching the file themselves.
type ChangedMessage struct {
	// Path is the configuration file that was written.
	Path string

	// Modules lists the module names whose configuration changed since
	// the previous save, in no particular order.
	Modules []string
}

// MessageTopic implements event.Message.
func (ChangedMessage) MessageTopic() event.Topic { return TopicChanged }
