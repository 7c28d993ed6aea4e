package animation

import (
	"github.com/jmylchreest/quickpanel/internal/model"
	"github.com/jmylchreest/quickpanel/internal/render"
)

// ItemType is the ordering tag used by category-ordered insertion.
// Lower values sort nearer the top of a container.
type ItemType int

const (
	// ItemOngoing items are ranked above normal ones.
	ItemOngoing ItemType = iota
	// ItemNormal items follow ongoing ones.
	ItemNormal
	// ItemBanner is used for the heads-up banner container.
	ItemBanner
)

// ItemTypeFor maps a record category to its ordering tag.
func ItemTypeFor(c model.Category) ItemType {
	if c == model.CategoryOngoing {
		return ItemOngoing
	}
	return ItemNormal
}

// Item is one animatable element of a container.
type Item struct {
	ID      int
	Type    ItemType
	View    render.ViewHandle
	MinSize render.Size // Used when the renderer reports a 0x0 geometry
}

// PolicyKind selects how an insertion index is resolved.
type PolicyKind int

const (
	// PolicyOrdered appends after every item of equal or higher rank.
	PolicyOrdered PolicyKind = iota
	// PolicyOrderedHead inserts at the head of the item's rank group.
	PolicyOrderedHead
	// PolicyBefore inserts directly before a sibling.
	PolicyBefore
	// PolicyAfter inserts directly after a sibling.
	PolicyAfter
)

// Position is an insertion position policy.
type Position struct {
	Kind    PolicyKind
	Sibling int // Sibling item id for PolicyBefore and PolicyAfter
}

// Ordered returns the default category-ordered policy.
func Ordered() Position { return Position{Kind: PolicyOrdered} }

// OrderedHead returns the head-of-group category-ordered policy.
func OrderedHead() Position { return Position{Kind: PolicyOrderedHead} }

// Before returns a policy that inserts before the sibling with the given id.
func Before(sibling int) Position { return Position{Kind: PolicyBefore, Sibling: sibling} }

// After returns a policy that inserts after the sibling with the given id.
func After(sibling int) Position { return Position{Kind: PolicyAfter, Sibling: sibling} }

// Container is the data-side model of an on-screen list: the packed item
// sequence plus where the list starts.
type Container struct {
	Name  string
	X, Y  int
	Gap   int
	items []*Item
}

// NewContainer creates an empty container anchored at (x, y).
func NewContainer(name string, x, y, gap int) *Container {
	return &Container{Name: name, X: x, Y: y, Gap: gap}
}

// Items returns the packed items, top to bottom.
func (c *Container) Items() []*Item {
	items := make([]*Item, len(c.items))
	copy(items, c.items)
	return items
}

// Len returns the number of packed items.
func (c *Container) Len() int {
	return len(c.items)
}

// Index returns the position of the item with id, or -1.
func (c *Container) Index(id int) int {
	for i, it := range c.items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

// Item returns the packed item with id, or nil.
func (c *Container) Item(id int) *Item {
	if i := c.Index(id); i >= 0 {
		return c.items[i]
	}
	return nil
}

// IDs returns packed item ids, top to bottom.
func (c *Container) IDs() []int {
	ids := make([]int, len(c.items))
	for i, it := range c.items {
		ids[i] = it.ID
	}
	return ids
}

func (c *Container) contains(item *Item) bool {
	for _, it := range c.items {
		if it == item {
			return true
		}
	}
	return false
}

func (c *Container) pack(item *Item, index int) {
	if index < 0 || index > len(c.items) {
		index = len(c.items)
	}
	c.items = append(c.items, nil)
	copy(c.items[index+1:], c.items[index:])
	c.items[index] = item
}

func (c *Container) unpack(item *Item) bool {
	for i, it := range c.items {
		if it == item {
			c.items = append(c.items[:i], c.items[i+1:]...)
			return true
		}
	}
	return false
}

// resolve returns the index item would be packed at under pos, computed
// against the current sequence without item itself.
func (c *Container) resolve(item *Item, pos Position) int {
	seq := make([]*Item, 0, len(c.items))
	for _, it := range c.items {
		if it != item {
			seq = append(seq, it)
		}
	}

	switch pos.Kind {
	case PolicyBefore, PolicyAfter:
		for i, it := range seq {
			if it.ID == pos.Sibling {
				if pos.Kind == PolicyAfter {
					return i + 1
				}
				return i
			}
		}
		// Unknown sibling falls back to category order.
		return orderedIndex(seq, item.Type, false)
	case PolicyOrderedHead:
		return orderedIndex(seq, item.Type, true)
	default:
		return orderedIndex(seq, item.Type, false)
	}
}

// orderedIndex walks seq and returns the index of the first item ranked after
// t (or, with head set, the first item ranked at or after t).
func orderedIndex(seq []*Item, t ItemType, head bool) int {
	for i, it := range seq {
		if it.Type > t || (head && it.Type == t) {
			return i
		}
	}
	return len(seq)
}
