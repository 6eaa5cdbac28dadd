package services

import "log"

// Event types published on the storefront exchange.
const (
	EventCartUpdated = "cart.updated"
	EventOrderPlaced = "order.placed"
)

// EventPublisher is satisfied by *rabbitmq.Client.
type EventPublisher interface {
	PublishEvent(eventType string, payload interface{}) error
}

// publish is best effort: a broker outage must not fail the shopper's request.
func publish(p EventPublisher, eventType string, payload interface{}) {
	if p == nil {
		return
	}
	if err := p.PublishEvent(eventType, payload); err != nil {
		log.Printf("Warning: failed to publish %s event: %v", eventType, err)
	}
}
