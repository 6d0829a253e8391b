package bitstate

import (
	"errors"
	"fmt"
	"strconv"
)

var (
	// ErrCatalogTooLarge indicates more names than addressable items.
	ErrCatalogTooLarge = errors.New("catalog: more names than items")
	// ErrDuplicateItemName indicates a name was declared twice.
	ErrDuplicateItemName = errors.New("catalog: names must be unique")
)

// ItemDescriptor describes one item of a register.
type ItemDescriptor struct {
	Index    int    `json:"index"`
	Name     string `json:"name"`
	Set      bool   `json:"set"`
	Active   bool   `json:"active"`
	Radio    bool   `json:"radio,omitempty"`
	Changed  bool   `json:"changed,omitempty"`
	Declared bool   `json:"declared"`
}

// Catalog names the items of a register. Position in the constructor list is
// the item index; an empty string leaves that index unnamed.
type Catalog struct {
	names []string
	index map[string]int
}

// NewCatalog builds a catalog from names ordered by index.
func NewCatalog(names ...string) (*Catalog, error) {
	if len(names) > MaxItems {
		return nil, fmt.Errorf("%w: %d", ErrCatalogTooLarge, len(names))
	}
	c := &Catalog{
		names: append([]string(nil), names...),
		index: make(map[string]int, len(names)),
	}
	for i, name := range names {
		if name == "" {
			continue
		}
		if _, exists := c.index[name]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateItemName, name)
		}
		c.index[name] = i
	}
	return c, nil
}

// MustCatalog is NewCatalog for package-level declarations.
func MustCatalog(names ...string) *Catalog {
	c, err := NewCatalog(names...)
	if err != nil {
		panic(err)
	}
	return c
}

// Len returns the number of declared positions.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.names)
}

// Index returns the index registered for name.
func (c *Catalog) Index(name string) (int, bool) {
	if c == nil {
		return 0, false
	}
	i, ok := c.index[name]
	return i, ok
}

// Name returns the declared name of index i, or "item<i>" when unnamed.
func (c *Catalog) Name(i int) string {
	if c != nil && i >= 0 && i < len(c.names) && c.names[i] != "" {
		return c.names[i]
	}
	return "item" + strconv.Itoa(i)
}

// Mask returns the mask of the named items, ignoring unknown names.
func (c *Catalog) Mask(names ...string) Mask {
	var m Mask
	for _, name := range names {
		if i, ok := c.Index(name); ok {
			m |= Bit(i)
		}
	}
	return m
}

// Names returns the names of the indices in mask in ascending order.
func (c *Catalog) Names(mask Mask) []string {
	out := make([]string, 0, mask.Count())
	for i := range mask.Indices() {
		out = append(out, c.Name(i))
	}
	return out
}

// Describe lists every declared item of r. Items set or disabled beyond the
// declared positions are included as undeclared entries.
func (c *Catalog) Describe(r Reader) []ItemDescriptor {
	if r == nil {
		return []ItemDescriptor{}
	}
	s := r.State()
	var changed Mask
	if cr, ok := r.(interface{ ChangedMask() Mask }); ok {
		changed = cr.ChangedMask()
	}
	indices := Span(0, c.Len()-1) | s.Bits | s.Disabled
	out := make([]ItemDescriptor, 0, indices.Count())
	for i := range indices.Indices() {
		out = append(out, ItemDescriptor{
			Index:    i,
			Name:     c.Name(i),
			Set:      s.Bits.Has(i),
			Active:   !s.Disabled.Has(i),
			Radio:    s.Radio.Has(i),
			Changed:  changed.Has(i),
			Declared: i < c.Len() && c.names[i] != "",
		})
	}
	return out
}

// bind returns a name keyed view of values, used by rule environments.
func (c *Catalog) bind(values Mask) map[string]any {
	out := make(map[string]any, c.Len())
	if c == nil {
		return out
	}
	for name, i := range c.index {
		out[name] = values.Has(i)
	}
	return out
}
