package assessment

import "sync"

// BasketEventKind names a change to the basket.
type BasketEventKind string

const (
	// BasketLoaded replaces the whole list, typically with a fresh search result.
	BasketLoaded  BasketEventKind = "loaded"
	BasketAdded   BasketEventKind = "added"
	BasketRemoved BasketEventKind = "removed"
	BasketCleared BasketEventKind = "cleared"
)

// BasketEvent carries the basket contents after the change.
type BasketEvent struct {
	Kind      BasketEventKind
	Questions []Question
}

// Basket hands the questions picked for a quiz from the search screen to the quiz
// screen. Subscribers receive a snapshot after every change; a subscriber that
// falls behind only sees the latest snapshot.
type Basket struct {
	mu          sync.Mutex
	items       []Question
	subscribers map[int]chan BasketEvent
	nextID      int
}

func NewBasket() *Basket {
	return &Basket{subscribers: make(map[int]chan BasketEvent)}
}

// Load replaces the contents.
func (b *Basket) Load(questions []Question) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = append([]Question(nil), questions...)
	b.publishLocked(BasketLoaded)
}

// Add appends questions not already present, matched by ID.
func (b *Basket) Add(questions ...Question) {
	b.mu.Lock()
	defer b.mu.Unlock()
	seen := make(map[string]struct{}, len(b.items))
	for _, q := range b.items {
		seen[q.ID] = struct{}{}
	}
	added := false
	for _, q := range questions {
		if _, dup := seen[q.ID]; dup && q.ID != "" {
			continue
		}
		seen[q.ID] = struct{}{}
		b.items = append(b.items, q)
		added = true
	}
	if added {
		b.publishLocked(BasketAdded)
	}
}

// Remove drops the question with id and reports whether it was present.
func (b *Basket) Remove(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, q := range b.items {
		if q.ID == id {
			b.items = append(b.items[:i:i], b.items[i+1:]...)
			b.publishLocked(BasketRemoved)
			return true
		}
	}
	return false
}

func (b *Basket) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = nil
	b.publishLocked(BasketCleared)
}

// Items returns a copy of the contents.
func (b *Basket) Items() []Question {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Question(nil), b.items...)
}

// Subscribe registers a listener. The returned func unsubscribes and closes the channel.
func (b *Basket) Subscribe() (<-chan BasketEvent, func()) {
	ch := make(chan BasketEvent, 1)
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subscribers[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subscribers, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

func (b *Basket) publishLocked(kind BasketEventKind) {
	event := BasketEvent{Kind: kind, Questions: append([]Question(nil), b.items...)}
	for _, ch := range b.subscribers {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- event:
		default:
		}
	}
}
