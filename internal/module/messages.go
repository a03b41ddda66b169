package module

import "github.com/kstrand/modkit/internal/event"

// Bus topics for module lifecycle notifications.
const (
	// TopicLoaded is published after a module finishes loading.
	TopicLoaded event.Topic = "module.loaded"

	// TopicUnloaded is published after a module is unloaded.
	TopicUnloaded event.Topic = "module.unloaded"
)

// LoadedMessage announces a successful module load.
type LoadedMessage struct {
	Name    string
	Version string
}

// MessageTopic implements event.Message.
func (LoadedMessage) MessageTopic() event.Topic { return TopicLoaded }

// UnloadedMessage announces a module unload.
type UnloadedMessage struct {
	Name string
}

// MessageTopic implements event.Message.
func (UnloadedMessage) MessageTopic() event.Topic { return TopicUnloaded }
