package main

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

const (
	defaultQueueCapacity = 1024
	defaultPutTimeout    = 1 * time.Second
	pollInterval         = 1 * time.Second
)

// MessageQueue is a bounded FIFO between pipeline stages. Puts block up to
// the given timeout and then report failure; the caller drops the message
// (backpressure policy: shed, never block the producer indefinitely).
type MessageQueue struct {
	ch chan *Message
}

func NewMessageQueue(capacity int) *MessageQueue {
	if capacity <= 0 {
		capacity = defaultQueueCapacity
	}
	return &MessageQueue{ch: make(chan *Message, capacity)}
}

// Put enqueues msg, waiting up to timeout. Returns false if the queue stayed
// full for the whole wait.
func (q *MessageQueue) Put(msg *Message, timeout time.Duration) bool {
	select {
	case q.ch <- msg:
		return true
	default:
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case q.ch <- msg:
		return true
	case <-timer.C:
		return false
	}
}

// poll waits up to timeout for a message. The second result is false when the
// wait expired.
func (q *MessageQueue) poll(timeout time.Duration) (*Message, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case msg := <-q.ch:
		return msg, true
	case <-timer.C:
		return nil, false
	}
}

// Len reports the number of queued messages.
func (q *MessageQueue) Len() int {
	return len(q.ch)
}

// stopMessage is the sentinel enqueued by StopGracefully; the loop drains
// everything before it and then exits.
var stopMessage = &Message{}

// Condition decides whether a handler applies to a message.
type Condition func(*Message) bool

// Handler processes a message. A non-nil result is forwarded to the stage's
// output queue; a nil result drops the message. Errors are logged by the
// dispatcher and never stop the stage.
type Handler func(*Message) (*Message, error)

// ConditionalHandler pairs a condition with its handler.
type ConditionalHandler struct {
	Condition Condition
	Handler   Handler
}

// PassThrough forwards the message unchanged.
func PassThrough(msg *Message) (*Message, error) {
	return msg, nil
}

var dispatcherInstances atomic.Int64

// Dispatcher is a single-consumer pipeline stage: it reads messages from its
// input queue, evaluates conditions in order and runs the first matching
// handler (or the default handler when none match). At most one handler fires
// per message; further matches are logged and ignored.
type Dispatcher struct {
	name           string
	in             *MessageQueue
	out            *MessageQueue
	handlers       []ConditionalHandler
	defaultHandler Handler
	putTimeout     time.Duration

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewDispatcher creates the stage and starts its consumer goroutine. An empty
// name is replaced by an auto-generated "Dispatcher#N". A nil defaultHandler
// logs and drops unmatched messages.
func NewDispatcher(name string, in, out *MessageQueue, handlers []ConditionalHandler, defaultHandler Handler) *Dispatcher {
	n := dispatcherInstances.Add(1)
	if name == "" {
		name = fmt.Sprintf("Dispatcher#%d", n-1)
	}
	d := &Dispatcher{
		name:           name,
		in:             in,
		out:            out,
		handlers:       handlers,
		defaultHandler: defaultHandler,
		putTimeout:     defaultPutTimeout,
		stop:           make(chan struct{}),
		done:           make(chan struct{}),
	}
	if d.defaultHandler == nil {
		d.defaultHandler = d.noHandler
	}
	go d.run()
	log.Printf("[%s] dispatcher started", d.name)
	return d
}

func (d *Dispatcher) Name() string {
	return d.name
}

func (d *Dispatcher) noHandler(msg *Message) (*Message, error) {
	log.Printf("[%s] no handler for message id=%s device=%s type=%s", d.name, msg.ID, msg.DeviceName, msg.Type)
	return nil, nil
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for {
		select {
		case <-d.stop:
			log.Printf("[%s] dispatcher force stopped", d.name)
			return
		default:
		}

		msg, ok := d.in.poll(pollInterval)
		if !ok {
			continue
		}
		if msg == stopMessage {
			log.Printf("[%s] dispatcher stopped", d.name)
			return
		}
		if msg == nil {
			log.Printf("[%s] nil message dropped", d.name)
			continue
		}
		d.dispatch(msg)
	}
}

func (d *Dispatcher) dispatch(msg *Message) {
	matched := false
	for _, ch := range d.handlers {
		if !ch.Condition(msg) {
			continue
		}
		if matched {
			log.Printf("[%s] ignored extra match: id=%s device=%s type=%s", d.name, msg.ID, msg.DeviceName, msg.Type)
			break
		}
		matched = true
		d.processAndPut(ch.Handler, msg)
	}
	if !matched {
		d.processAndPut(d.defaultHandler, msg)
	}
}

func (d *Dispatcher) processAndPut(handler Handler, msg *Message) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[%s] handler panic on id=%s device=%s type=%s: %v", d.name, msg.ID, msg.DeviceName, msg.Type, r)
		}
	}()
	result, err := handler(msg)
	if err != nil {
		log.Printf("[%s] handler error on id=%s device=%s type=%s: %v", d.name, msg.ID, msg.DeviceName, msg.Type, err)
		return
	}
	if result == nil || d.out == nil {
		return
	}
	if !d.out.Put(result, d.putTimeout) {
		log.Printf("[%s] output queue full, dropped id=%s device=%s", d.name, result.ID, result.DeviceName)
	}
}

// StopGracefully lets the stage drain everything already enqueued, then waits
// for the loop to exit.
func (d *Dispatcher) StopGracefully() {
	d.in.Put(stopMessage, d.putTimeout)
	<-d.done
}

// ForceStop makes the loop exit at its next poll tick without draining.
func (d *Dispatcher) ForceStop() {
	d.stopOnce.Do(func() { close(d.stop) })
}

// Wait blocks until the consumer goroutine has exited.
func (d *Dispatcher) Wait() {
	<-d.done
}
