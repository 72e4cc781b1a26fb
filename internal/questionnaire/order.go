package questionnaire

import (
	"fmt"

	"github.com/kkogteva6/ReadingPlatform/internal/model"
)

// Attention item placement: at least this index, and at least this share of the
// shuffled sequence.
const (
	attentionMinIndex = 10
	attentionShare    = 0.55
)

// Shuffler is satisfied by *math/rand/v2.Rand and *math/rand.Rand
type Shuffler interface {
	Shuffle(n int, swap func(i, j int))
}

// Order is the presentation sequence of a single session
type Order []model.QuestionItem

// IDs returns the item ids in presentation order
func (o Order) IDs() []string {
	ids := make([]string, len(o))
	for i, q := range o {
		ids[i] = q.ID
	}
	return ids
}

// AttentionIndex returns the position of the attention item, or -1
func (o Order) AttentionIndex() int {
	for i, q := range o {
		if q.Attention {
			return i
		}
	}
	return -1
}

// BuildOrder shuffles the substantive items and splices the attention item in
// at max(10, floor(0.55*n)), capped at n, where n is the number of shuffled items.
func BuildOrder(bank *Bank, rng Shuffler) Order {
	shuffled := bank.Substantive()
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	at := attentionIndex(len(shuffled))
	order := make(Order, 0, len(shuffled)+1)
	order = append(order, shuffled[:at]...)
	order = append(order, bank.Attention())
	order = append(order, shuffled[at:]...)
	return order
}

func attentionIndex(n int) int {
	i := int(attentionShare * float64(n))
	if i < attentionMinIndex {
		i = attentionMinIndex
	}
	if i > n {
		i = n
	}
	return i
}

// OrderFromIDs rebuilds a persisted order against the bank. Every bank item must
// appear exactly once.
func OrderFromIDs(bank *Bank, ids []string) (Order, error) {
	if len(ids) != bank.Len() {
		return nil, fmt.Errorf("%w: order has %d items, bank has %d", ErrInvalidState, len(ids), bank.Len())
	}
	seen := make(map[string]bool, len(ids))
	order := make(Order, 0, len(ids))
	for _, id := range ids {
		q, ok := bank.Item(id)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownItem, id)
		}
		if seen[id] {
			return nil, fmt.Errorf("%w: %q appears twice", ErrInvalidState, id)
		}
		seen[id] = true
		order = append(order, q)
	}
	return order, nil
}
