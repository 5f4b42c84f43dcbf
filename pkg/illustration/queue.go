package illustration

import (
	"context"
	"errors"
	"sync"

	"github.com/charmbracelet/log"

	"storyteller/pkg/utils"
)

// ErrQueueFull is returned by Add when the buffer is saturated.
var ErrQueueFull = errors.New("queue is full")

// ErrQueueStopped is returned for work submitted after Stop.
var ErrQueueStopped = errors.New("queue is stopped")

// Queue serialises calls to one Backend across every session.
type Queue struct {
	backend Backend
	items   chan *Item
	stop    chan struct{}
	once    sync.Once
}

type Item struct {
	ctx       context.Context
	Directive string
	Response  chan []byte
	Error     chan error
}

func NewQueue(backend Backend, size int) *Queue {
	if size <= 0 {
		size = 100
	}
	return &Queue{
		backend: backend,
		items:   make(chan *Item, size),
		stop:    make(chan struct{}),
	}
}

func (q *Queue) Start() {
	go q.processLoop()
}

func (q *Queue) Stop() {
	q.once.Do(func() { close(q.stop) })
}

// Add enqueues a directive. Exactly one of the returned channels receives a value.
func (q *Queue) Add(ctx context.Context, directive string) (chan []byte, chan error, error) {
	select {
	case <-q.stop:
		return nil, nil, ErrQueueStopped
	default:
	}

	respCh := make(chan []byte, 1)
	errCh := make(chan error, 1)

	select {
	case q.items <- &Item{
		ctx:       ctx,
		Directive: directive,
		Response:  respCh,
		Error:     errCh,
	}:
		return respCh, errCh, nil
	default:
		return nil, nil, ErrQueueFull
	}
}

func (q *Queue) processLoop() {
	log.Info("Illustration queue started")
	for {
		select {
		case <-q.stop:
			log.Info("Illustration queue stopped")
			q.drain()
			return
		case item := <-q.items:
			q.processItem(item)
		}
	}
}

func (q *Queue) drain() {
	for {
		select {
		case item := <-q.items:
			item.Error <- ErrQueueStopped
		default:
			return
		}
	}
}

func (q *Queue) processItem(item *Item) {
	if err := item.ctx.Err(); err != nil {
		item.Error <- err
		return
	}

	log.Debug("Processing illustration", "directive", utils.LimitStr(item.Directive, 50))

	img, err := q.backend.Generate(item.ctx, item.Directive)
	if err != nil {
		log.Warn("Illustration failed", "err", err)
		item.Error <- err
		return
	}
	item.Response <- img
}
