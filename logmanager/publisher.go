package logmanager

import (
	"sync/atomic"

	"github.com/go-jafka/jafka/logging"
	"github.com/go-jafka/jafka/types"
)

// publisher is the Registry Publisher (spec §4.6): a single
// background worker draining an unbounded FIFO queue of topic names
// and announcing each to the external registry.
type publisher struct {
	client  types.RegistryClient
	queue   *topicQueue
	stopped atomic.Bool
	done    chan struct{}
}

func newPublisher(client types.RegistryClient) *publisher {
	return &publisher{
		client: client,
		queue:  newTopicQueue(),
		done:   make(chan struct{}),
	}
}

func (p *publisher) start() {
	go p.run()
}

func (p *publisher) run() {
	defer close(p.done)
	log := logging.Named("logmanager")
	for {
		topic := p.queue.dequeue()
		if topic == "" {
			// Reserved wakeup token (spec §4.6, §9). Only stop() ever
			// enqueues one, and only after setting stopped.
			if p.stopped.Load() {
				return
			}
			continue
		}
		if err := p.client.RegisterTopic(topic); err != nil {
			log.Error("failed to register topic with registry", "topic", topic, "error", err)
		}
	}
}

// enqueue announces a newly created topic. Empty strings are silently
// dropped since they are reserved as the shutdown wakeup token.
func (p *publisher) enqueue(topic string) {
	if topic == "" {
		return
	}
	p.queue.enqueue(topic)
}

// stop sets the stop flag, wakes the worker, and waits for it to
// drain and exit (spec §4.6 shutdown, §4.7 close step 3).
func (p *publisher) stop() {
	p.stopped.Store(true)
	p.queue.enqueue("")
	<-p.done
}
