package snapshot

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

type item struct {
	lobbyID string
	state   []byte
}

// Persister drains snapshot writes onto a single goroutine so lobby
// actors never block on the database. Enqueue is best effort: when the
// queue is full the write is dropped, the next mutation will enqueue a
// fresher snapshot anyway.
type Persister struct {
	store *Store
	queue chan item
	done  chan struct{}
	log   *zap.Logger

	mu     sync.RWMutex
	closed bool
}

func NewPersister(store *Store, log *zap.Logger) *Persister {
	p := &Persister{
		store: store,
		queue: make(chan item, 256),
		done:  make(chan struct{}),
		log:   log,
	}
	go p.loop()
	return p
}

func (p *Persister) Enqueue(lobbyID string, state []byte) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return
	}
	select {
	case p.queue <- item{lobbyID: lobbyID, state: state}:
	default:
		p.log.Warn("snapshot queue full, dropping write", zap.String("lobby", lobbyID))
	}
}

func (p *Persister) loop() {
	for it := range p.queue {
		if err := p.store.Save(it.lobbyID, it.state, time.Now()); err != nil {
			p.log.Error("snapshot save failed", zap.String("lobby", it.lobbyID), zap.Error(err))
		}
	}
	close(p.done)
}

// Close flushes queued writes and stops the loop. Enqueue calls after
// Close are silently discarded.
func (p *Persister) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		<-p.done
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()
	<-p.done
}
