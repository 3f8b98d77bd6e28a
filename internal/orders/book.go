package orders

import "time"

// Book holds the shared order-lifecycle state: the in-progress and
// last-processed maps, the per-strategy child-order lists, and the
// modification queue.
//
// Book does no locking of its own. The owning coordinator serializes every
// access — placement, reconciliation, and scheduling — under one mutex so
// that at most one in-flight mutation per order can exist.
//
// Invariant: an order_id is a member of at most one of InProgress and
// LastProcessed at any instant; once absent from both it is terminal.
type Book struct {
	InProgress    map[string]*Order
	LastProcessed map[string]*Order
	ChildrenByTag map[string][]*Order

	queue modQueue
}

func NewBook() *Book {
	return &Book{
		InProgress:    make(map[string]*Order),
		LastProcessed: make(map[string]*Order),
		ChildrenByTag: make(map[string][]*Order),
	}
}

// Register records a freshly placed or re-modified order as in progress,
// removing any confirmed entry so the membership invariant holds.
func (b *Book) Register(o *Order) {
	delete(b.LastProcessed, o.OrderID)
	b.InProgress[o.OrderID] = o
}

// AppendChild adds an order to its strategy's child-order list.
func (b *Book) AppendChild(o *Order) {
	b.ChildrenByTag[o.Tag] = append(b.ChildrenByTag[o.Tag], o)
}

func (b *Book) removeChild(tag, orderID string) {
	children := b.ChildrenByTag[tag]
	for i, child := range children {
		if child.OrderID == orderID {
			b.ChildrenByTag[tag] = append(children[:i], children[i+1:]...)
			return
		}
	}
}

// dropEverywhere removes an order from both lifecycle maps and, when known,
// from its strategy's child-order list.
func (b *Book) dropEverywhere(orderID string) {
	var tag string
	if o, ok := b.InProgress[orderID]; ok {
		tag = o.Tag
	} else if o, ok := b.LastProcessed[orderID]; ok {
		tag = o.Tag
	}
	delete(b.InProgress, orderID)
	delete(b.LastProcessed, orderID)
	if tag != "" {
		b.removeChild(tag, orderID)
	}
}

// Schedule queues an order for re-evaluation at the given time.
func (b *Book) Schedule(orderID string, due time.Time) {
	b.queue.push(modEntry{due: due, orderID: orderID})
}

// QueueLen reports the number of pending modification entries.
func (b *Book) QueueLen() int {
	return b.queue.Len()
}
