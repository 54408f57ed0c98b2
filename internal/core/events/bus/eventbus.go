package bus

import (
	"errors"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

type simpleEvent struct {
	typ    string
	source string
	ts     time.Time
	data   any
	meta   map[string]any
}

func (e simpleEvent) Type() string             { return e.typ }
func (e simpleEvent) Source() string           { return e.source }
func (e simpleEvent) Timestamp() time.Time     { return e.ts }
func (e simpleEvent) Data() any                { return e.data }
func (e simpleEvent) Metadata() map[string]any { return e.meta }

// NewEvent creates an Event stamped with the current time.
func NewEvent(typ, source string, data any, metadata map[string]any) Event {
	return simpleEvent{typ: typ, source: source, ts: time.Now(), data: data, meta: metadata}
}

type subscription struct {
	id        string
	topic     string
	eventType string
	handler   EventHandler
	bus       *inMemoryBus

	mu     sync.Mutex
	active bool
}

func (s *subscription) ID() string        { return s.id }
func (s *subscription) Topic() string     { return s.topic }
func (s *subscription) EventType() string { return s.eventType }

func (s *subscription) IsActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *subscription) Cancel() error {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return nil
	}
	s.active = false
	s.mu.Unlock()
	s.bus.remove(s)
	return nil
}

type topic struct {
	config TopicConfig
	// handlers: eventType -> subscriptions in registration order
	handlers map[string][]*subscription
}

type inMemoryBus struct {
	mu        sync.RWMutex
	topics    map[string]*topic
	metrics   EventBusMetrics
	observers []EventBusObserver
}

// New creates an empty EventBus.
func New() EventBus {
	return &inMemoryBus{topics: make(map[string]*topic)}
}

func (b *inMemoryBus) Publish(event Event) error {
	return b.deliver("", event)
}

func (b *inMemoryBus) PublishToTopic(name string, event Event) error {
	return b.deliver(name, event)
}

func (b *inMemoryBus) PublishWithFilters(event Event, filters ...EventFilter) error {
	for _, f := range filters {
		if f(event) {
			continue
		}
		b.mu.Lock()
		if len(b.observers) > 0 {
			b.metrics.DroppedByFilters++
		}
		b.mu.Unlock()
		return nil
	}
	return b.Publish(event)
}

func (b *inMemoryBus) PublishBatch(events ...Event) error {
	var errs []error
	for _, e := range events {
		errs = append(errs, b.Publish(e))
	}
	return errors.Join(errs...)
}

func (b *inMemoryBus) Subscribe(eventType string, handler EventHandler) (Subscription, error) {
	return b.SubscribeTopic("", eventType, handler)
}

func (b *inMemoryBus) SubscribeTopic(name, eventType string, handler EventHandler) (Subscription, error) {
	if handler == nil {
		return nil, ErrNilHandler
	}
	if eventType == "" {
		return nil, ErrEmptyEventType
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	t := b.topicLocked(name)
	s := &subscription{
		id:        uuid.NewString(),
		topic:     name,
		eventType: eventType,
		handler:   handler,
		bus:       b,
		active:    true,
	}
	t.handlers[eventType] = append(t.handlers[eventType], s)
	return s, nil
}

func (b *inMemoryBus) Unsubscribe(sub Subscription) error {
	if sub == nil {
		return nil
	}
	return sub.Cancel()
}

func (b *inMemoryBus) remove(s *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.topics[s.topic]
	if !ok {
		return
	}
	subs := slices.DeleteFunc(t.handlers[s.eventType], func(o *subscription) bool { return o == s })
	if len(subs) == 0 {
		delete(t.handlers, s.eventType)
		return
	}
	t.handlers[s.eventType] = subs
}

func (b *inMemoryBus) CreateTopic(name string, config TopicConfig) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.topicLocked(name).config = config
	return nil
}

func (b *inMemoryBus) AddObserver(obs EventBusObserver) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !slices.Contains(b.observers, obs) {
		b.observers = append(b.observers, obs)
	}
}

func (b *inMemoryBus) RemoveObserver(obs EventBusObserver) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.observers = slices.DeleteFunc(b.observers, func(o EventBusObserver) bool { return o == obs })
}

func (b *inMemoryBus) GetMetrics() EventBusMetrics {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.metrics
}

func (b *inMemoryBus) GetTopics() []TopicInfo {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]TopicInfo, 0, len(b.topics))
	for _, name := range slices.Sorted(maps.Keys(b.topics)) {
		t := b.topics[name]
		info := TopicInfo{Name: name, EventTypes: len(t.handlers)}
		for _, subs := range t.handlers {
			info.Subs += len(subs)
		}
		out = append(out, info)
	}
	return out
}

func (b *inMemoryBus) topicLocked(name string) *topic {
	t, ok := b.topics[name]
	if !ok {
		t = &topic{handlers: make(map[string][]*subscription)}
		b.topics[name] = t
	}
	return t
}

func (b *inMemoryBus) deliver(name string, event Event) error {
	start := time.Now()
	etype := event.Type()

	b.mu.RLock()
	var (
		subs []*subscription
		stop bool
	)
	if t, ok := b.topics[name]; ok {
		subs = slices.Clone(t.handlers[etype])
		stop = t.config.StopOnError
	}
	observers := slices.Clone(b.observers)
	b.mu.RUnlock()

	for _, obs := range observers {
		obs.OnPublish(name, etype, event)
	}

	var (
		errs      []error
		delivered int
	)
	for _, s := range subs {
		if !s.IsActive() {
			continue
		}
		delivered++
		if err := s.handler(event); err != nil {
			errs = append(errs, err)
			if stop {
				break
			}
		}
	}
	err := errors.Join(errs...)

	if len(observers) == 0 {
		return err
	}
	for _, obs := range observers {
		obs.OnDelivered(name, etype, delivered, err, time.Since(start))
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.metrics.Published++
	b.metrics.DeliveredHandlers += uint64(delivered)
	if err != nil {
		b.metrics.Errors++
	}
	b.metrics.Topics = uint64(len(b.topics))
	var active uint64
	for _, t := range b.topics {
		for _, s := range t.handlers {
			active += uint64(len(s))
		}
	}
	b.metrics.SubscribersActive = active
	return err
}
