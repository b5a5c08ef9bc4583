package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// AuditEvent records a state-changing action taken by the engine.
type AuditEvent struct {
	// ID is the unique identifier for this event.
	ID string `json:"id"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Type is the event type.
	Type string `json:"type"`

	// OrganizationID is the organization the action applied to.
	OrganizationID string `json:"organization_id,omitempty"`

	// ActorID identifies the access token that performed the action.
	ActorID string `json:"actor_id,omitempty"`

	// ResourceID is the secret or project affected, if any.
	ResourceID string `json:"resource_id,omitempty"`

	// Message is a human-readable event message.
	Message string `json:"message"`
}

// Audit event types.
const (
	AuditLogin          = "auth.login"
	AuditLoginFailed    = "auth.login_failed"
	AuditSecretCreated  = "secret.created"
	AuditSecretUpdated  = "secret.updated"
	AuditSecretDeleted  = "secret.deleted"
	AuditProjectCreated = "project.created"
	AuditProjectUpdated = "project.updated"
	AuditProjectDeleted = "project.deleted"
)

// AuditSubscriber handles published events.
type AuditSubscriber func(event AuditEvent)

// AuditPublisher fans audit events out to subscribers.
type AuditPublisher struct {
	config      AuditConfig
	buffer      chan AuditEvent
	subscribers []AuditSubscriber
	wg          sync.WaitGroup
	mu          sync.RWMutex
	closeOnce   sync.Once
	done        chan struct{}
}

// NewAuditPublisher creates a publisher. With EnableAsync, events are
// delivered from a background goroutine until Shutdown.
func NewAuditPublisher(cfg AuditConfig) *AuditPublisher {
	ap := &AuditPublisher{
		config: cfg,
		done:   make(chan struct{}),
	}
	if cfg.Enabled && cfg.EnableAsync {
		ap.buffer = make(chan AuditEvent, cfg.BufferSize)
		ap.wg.Add(1)
		go ap.processEvents()
	}
	return ap
}

// Subscribe registers a subscriber for all future events.
func (ap *AuditPublisher) Subscribe(subscriber AuditSubscriber) {
	ap.mu.Lock()
	defer ap.mu.Unlock()
	ap.subscribers = append(ap.subscribers, subscriber)
}

// Publish delivers an event to all subscribers. A full async buffer drops
// the event and returns an error.
func (ap *AuditPublisher) Publish(event AuditEvent) error {
	if ap == nil || !ap.config.Enabled {
		return nil
	}

	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	if ap.buffer == nil {
		ap.deliver(event)
		return nil
	}

	select {
	case <-ap.done:
		return fmt.Errorf("audit publisher stopped")
	default:
	}

	select {
	case ap.buffer <- event:
		return nil
	default:
		return fmt.Errorf("audit buffer full, event %s dropped", event.Type)
	}
}

func (ap *AuditPublisher) processEvents() {
	defer ap.wg.Done()
	for {
		select {
		case event := <-ap.buffer:
			ap.deliver(event)
		case <-ap.done:
			// Drain what is already buffered
			for {
				select {
				case event := <-ap.buffer:
					ap.deliver(event)
				default:
					return
				}
			}
		}
	}
}

func (ap *AuditPublisher) deliver(event AuditEvent) {
	ap.mu.RLock()
	defer ap.mu.RUnlock()
	for _, sub := range ap.subscribers {
		sub(event)
	}
}

// Shutdown stops the background goroutine after draining buffered events.
func (ap *AuditPublisher) Shutdown(ctx context.Context) error {
	if ap == nil {
		return nil
	}
	ap.closeOnce.Do(func() { close(ap.done) })

	finished := make(chan struct{})
	go func() {
		ap.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("audit publisher shutdown timeout")
	}
}

// LogSubscriber returns a subscriber that writes events to logger at info level.
func LogSubscriber(logger *Logger) AuditSubscriber {
	return func(event AuditEvent) {
		logger.WithFields(map[string]interface{}{
			"audit_id":        event.ID,
			"audit_type":      event.Type,
			"organization_id": event.OrganizationID,
			"actor_id":        event.ActorID,
			"resource_id":     event.ResourceID,
		}).Info(event.Message)
	}
}
