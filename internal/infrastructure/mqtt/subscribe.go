package mqtt

import "fmt"

// Subscribe registers a handler for a topic pattern (+ and # allowed).
//
// The subscription is recorded before the broker acknowledges it, so a
// reconnect racing with this call still restores it. If the broker rejects
// the subscription or does not answer in time, the record is dropped again.
//
// Parameters:
//   - topic: Topic filter, e.g. "statestore/request/+/+"
//   - qos: 0, 1 or 2
//   - handler: Invoked for every matching message (see MessageHandler)
//
// Returns:
//   - error: ErrInvalidTopic, ErrInvalidQoS, ErrNotConnected or a wrapped ErrSubscribeFailed
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if handler == nil {
		return fmt.Errorf("%w: handler cannot be nil", ErrSubscribeFailed)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	sub := subscription{topic: topic, qos: qos, handler: handler}
	c.remember(sub)

	if err := awaitToken(c.client.Subscribe(topic, qos, c.wrapHandler(handler)), defaultOperationTimeout, ErrSubscribeFailed); err != nil {
		c.forget(topic)
		return err
	}
	return nil
}

// Unsubscribe removes a subscription.
//
// The record is dropped first so a reconnect during the call does not
// resubscribe. Messages already delivered to paho may still reach the
// handler after Unsubscribe returns.
//
// Returns:
//   - error: ErrInvalidTopic, ErrNotConnected or a wrapped ErrUnsubscribeFailed
func (c *Client) Unsubscribe(topic string) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.forget(topic)

	return awaitToken(c.client.Unsubscribe(topic), defaultOperationTimeout, ErrUnsubscribeFailed)
}

// HasSubscription reports whether the exact topic pattern is subscribed.
func (c *Client) HasSubscription(topic string) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	_, exists := c.subscriptions[topic]
	return exists
}

// remember records a subscription for restoration after reconnects.
// Subscribing to the same filter again replaces the handler.
func (c *Client) remember(sub subscription) {
	c.subMu.Lock()
	c.subscriptions[sub.topic] = sub
	c.subMu.Unlock()
}

func (c *Client) forget(topic string) {
	c.subMu.Lock()
	delete(c.subscriptions, topic)
	c.subMu.Unlock()
}

// snapshotSubscriptions copies the recorded subscriptions so they can be
// replayed without holding subMu while waiting on the broker.
func (c *Client) snapshotSubscriptions() []subscription {
	c.subMu.RLock()
	defer c.subMu.RUnlock()

	subs := make([]subscription, 0, len(c.subscriptions))
	for _, sub := range c.subscriptions {
		subs = append(subs, sub)
	}
	return subs
}
