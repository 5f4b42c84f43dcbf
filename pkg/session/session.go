package session

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/patrickmn/go-cache"
	"github.com/segmentio/ksuid"

	"storyteller/pkg/narration"
	"storyteller/pkg/story"
)

// Event is one message on a session's stream.
type Event struct {
	Name string
	Data any
}

// Flash is a one-shot message rendered on the next page load.
type Flash struct {
	Level   string `json:"level"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// Session is everything one browser owns. State is replaced wholesale on commit
// so readers never observe a half-applied submission.
type Session struct {
	ID      string
	Speaker narration.Speaker

	mu            sync.RWMutex
	user          string
	authenticated bool
	state         *story.State
	flash         *Flash
	status        string

	busy sync.Mutex

	smu  sync.Mutex
	subs map[chan Event]struct{}
}

func newSession() *Session {
	s := &Session{
		ID:    ksuid.New().String(),
		state: story.NewState(),
		subs:  make(map[chan Event]struct{}),
	}
	s.Speaker = narration.NewBrowser(s)
	return s
}

func (s *Session) Login(user string) {
	s.mu.Lock()
	s.user, s.authenticated = user, true
	s.mu.Unlock()
}

func (s *Session) Logout() {
	s.mu.Lock()
	s.user, s.authenticated = "", false
	s.state = story.NewState()
	s.mu.Unlock()
}

func (s *Session) User() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user, s.authenticated
}

// Snapshot returns a private copy of the story state.
func (s *Session) Snapshot() *story.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// Commit replaces the story state. Only the holder of TryBegin may call it.
func (s *Session) Commit(st *story.State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *Session) SetFlash(f Flash) {
	s.mu.Lock()
	s.flash = &f
	s.mu.Unlock()
}

// TakeFlash returns and clears the pending flash.
func (s *Session) TakeFlash() *Flash {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := s.flash
	s.flash = nil
	return f
}

// Status is the last progress line, empty when idle.
func (s *Session) Status() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Progress records msg and pushes it to subscribers.
func (s *Session) Progress(msg string) {
	s.mu.Lock()
	s.status = msg
	s.mu.Unlock()
	s.Publish("status", map[string]string{"message": msg})
}

// TryBegin claims the session for one submission. It reports false when one is running.
func (s *Session) TryBegin() bool {
	return s.busy.TryLock()
}

func (s *Session) End() {
	s.mu.Lock()
	s.status = ""
	s.mu.Unlock()
	s.busy.Unlock()
	s.Publish("status", map[string]string{"message": ""})
}

// Subscribe opens an event stream. cancel must be called when the reader leaves.
func (s *Session) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 16)
	s.smu.Lock()
	s.subs[ch] = struct{}{}
	s.smu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.smu.Lock()
			if _, ok := s.subs[ch]; ok {
				delete(s.subs, ch)
				close(ch)
			}
			s.smu.Unlock()
		})
	}
}

// Publish never blocks. It reports whether at least one subscriber took the event.
func (s *Session) Publish(name string, data any) bool {
	s.smu.Lock()
	defer s.smu.Unlock()

	delivered := false
	for ch := range s.subs {
		select {
		case ch <- Event{Name: name, Data: data}:
			delivered = true
		default:
			log.Debug("event dropped for slow subscriber", "session", s.ID, "event", name)
		}
	}
	return delivered
}

func (s *Session) close() {
	s.smu.Lock()
	for ch := range s.subs {
		delete(s.subs, ch)
		close(ch)
	}
	s.smu.Unlock()
}

// Store holds sessions in memory until they sit idle for the TTL.
type Store struct {
	cache *cache.Cache
	ttl   time.Duration
}

func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 6 * time.Hour
	}
	c := cache.New(ttl, min(ttl, 10*time.Minute))
	c.OnEvicted(func(id string, v any) {
		if s, ok := v.(*Session); ok {
			log.Debug("session expired", "session", id)
			s.close()
		}
	})
	return &Store{cache: c, ttl: ttl}
}

// New creates and stores a fresh unauthenticated session.
func (st *Store) New() *Session {
	s := newSession()
	st.cache.Set(s.ID, s, cache.DefaultExpiration)
	return s
}

// Get returns the session for id and extends its lifetime.
func (st *Store) Get(id string) (*Session, bool) {
	v, ok := st.cache.Get(id)
	if !ok {
		return nil, false
	}
	s := v.(*Session)
	st.cache.Set(id, s, cache.DefaultExpiration)
	return s, true
}

func (st *Store) Delete(id string) {
	st.cache.Delete(id)
}

func (st *Store) Count() int {
	return st.cache.ItemCount()
}

func (st *Store) TTL() time.Duration { return st.ttl }
