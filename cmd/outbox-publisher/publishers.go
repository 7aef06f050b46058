package main

import (
	"context"
	"errors"
	"sync"

	gcppubsub "cloud.google.com/go/pubsub/v2"
)

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
	ResumePublish(orderingKey string)
}

type publishResult interface {
	Get(context.Context) (string, error)
}

type publisherSource interface {
	Publisher(topic string) publisher
}

type topicPublisherFactory interface {
	Publisher(name string) *gcppubsub.Publisher
}

// publisherCache keeps one ordered publisher per topic for the life of the
// process. Stop flushes pending messages.
type publisherCache struct {
	mu      sync.Mutex
	factory topicPublisherFactory
	topics  map[string]*gcpPublisher
}

func newPublisherCache(factory topicPublisherFactory) *publisherCache {
	return &publisherCache{factory: factory, topics: make(map[string]*gcpPublisher)}
}

func (c *publisherCache) Publisher(topic string) publisher {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.topics[topic]; ok {
		return p
	}
	raw := c.factory.Publisher(topic)
	if raw == nil {
		return nil
	}
	raw.EnableMessageOrdering = true
	p := &gcpPublisher{pub: raw}
	c.topics[topic] = p
	return p
}

func (c *publisherCache) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for topic, p := range c.topics {
		p.pub.Stop()
		delete(c.topics, topic)
	}
}

type gcpPublisher struct {
	pub *gcppubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return gcpPublishResult{res: p.pub.Publish(ctx, msg)}
}

func (p *gcpPublisher) ResumePublish(orderingKey string) {
	if orderingKey != "" {
		p.pub.ResumePublish(orderingKey)
	}
}

type gcpPublishResult struct {
	res *gcppubsub.PublishResult
}

func (r gcpPublishResult) Get(ctx context.Context) (string, error) {
	if r.res == nil {
		return "", errors.New("publish result is nil")
	}
	return r.res.Get(ctx)
}
