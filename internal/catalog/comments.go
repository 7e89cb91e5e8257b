package catalog

import (
	"math/rand"
	"strings"
	"sync"

	"github.com/gravitas-games/sortshift/pkg/models"
)

// CommentBank maps item types to customer lines such as
// "Got any steak back there?". A request shows one line picked at random.
type CommentBank struct {
	mu    sync.Mutex
	lines map[models.ItemType][]string
	rng   *rand.Rand
}

// NewCommentBank builds a bank from lines keyed by item type. Blank lines are
// dropped.
func NewCommentBank(seed int64, lines map[models.ItemType][]string) *CommentBank {
	b := &CommentBank{
		lines: make(map[models.ItemType][]string, len(lines)),
		rng:   rand.New(rand.NewSource(seed)),
	}
	for t, ls := range lines {
		for _, l := range ls {
			if l = strings.TrimSpace(l); l != "" {
				b.lines[t] = append(b.lines[t], l)
			}
		}
	}
	return b
}

// PromptFor returns a line for t, or false when the bank has none.
func (b *CommentBank) PromptFor(t models.ItemType) (string, bool) {
	if b == nil {
		return "", false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	ls := b.lines[t]
	if len(ls) == 0 {
		return "", false
	}
	return ls[b.rng.Intn(len(ls))], true
}

// Len returns how many item types have at least one line.
func (b *CommentBank) Len() int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.lines)
}
