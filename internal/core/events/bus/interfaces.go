package bus

import "time"

// EventBus is a synchronous, in-process pub/sub bus.
//
// Key characteristics:
// - Type-based fan-out: handlers subscribe by Event.Type().
// - Topics: handlers subscribe within a topic; the default topic is "".
// - Ordered delivery: handlers of one event type run in subscription order, in
//   the publisher's goroutine.
// - Error aggregation: handler errors are joined and returned from Publish.
//   A topic created with StopOnError stops at the first failing handler.
// - Optional observability: metrics are collected only while observers are registered.
//
// All methods are safe for concurrent use.
type EventBus interface {
	// Publish delivers event to the subscribers of event.Type() in the default topic.
	Publish(event Event) error
	// Subscribe registers handler for eventType in the default topic.
	Subscribe(eventType string, handler EventHandler) (Subscription, error)
	// Unsubscribe cancels sub. A nil sub is ignored.
	Unsubscribe(sub Subscription) error

	// PublishWithFilters drops the event without error when a filter rejects it.
	PublishWithFilters(event Event, filters ...EventFilter) error

	// CreateTopic declares a topic. Redeclaring a topic updates its config.
	CreateTopic(name string, config TopicConfig) error
	// SubscribeTopic registers handler for eventType within topic.
	SubscribeTopic(topic, eventType string, handler EventHandler) (Subscription, error)
	// PublishToTopic publishes event within topic.
	PublishToTopic(topic string, event Event) error
	// PublishBatch publishes events in order and joins their errors.
	PublishBatch(events ...Event) error

	AddObserver(obs EventBusObserver)
	RemoveObserver(obs EventBusObserver)
	// GetMetrics returns a snapshot of the counters.
	GetMetrics() EventBusMetrics
	// GetTopics returns the known topics sorted by name.
	GetTopics() []TopicInfo
}

// Event is an immutable message transported by the EventBus.
type Event interface {
	Type() string
	Source() string
	Timestamp() time.Time
	Data() any
	Metadata() map[string]any
}

type (
	// EventHandler is called once per delivered event.
	EventHandler func(event Event) error
	// EventFilter decides whether an event is delivered at all.
	EventFilter func(event Event) bool
)

// Subscription is a handler registered for one event type.
type Subscription interface {
	ID() string
	Topic() string
	EventType() string
	IsActive() bool
	// Cancel removes the handler from the bus. Repeated calls are no-ops.
	Cancel() error
}

// TopicConfig holds per topic delivery settings.
type TopicConfig struct {
	// StopOnError stops delivery at the first handler returning an error.
	StopOnError bool
}

// EventBusObserver is notified about deliveries. Observers should return quickly.
type EventBusObserver interface {
	OnPublish(topic, eventType string, event Event)
	OnDelivered(topic, eventType string, handlers int, err error, duration time.Duration)
}

// EventBusMetrics is updated only while at least one observer is registered.
type EventBusMetrics struct {
	Published         uint64
	DeliveredHandlers uint64
	Errors            uint64
	DroppedByFilters  uint64
	SubscribersActive uint64
	Topics            uint64
}

// TopicInfo is a snapshot of one topic.
type TopicInfo struct {
	Name       string
	EventTypes int
	Subs       int
}
