package tlv

import (
	"fmt"
	"strings"
)

// MapValue is a composite value built once from an ordered field list.
// It has no mutating methods.
type MapValue struct {
	order  []Tag
	values map[Tag]Value
	size   int
}

// NewMapValue collapses fields into a tag lookup. A later field replaces an
// earlier one with the same tag; a field with a nil value removes the tag.
// The encoded map must fit in a single TLV value.
func NewMapValue(fields ...Field) (*MapValue, error) {
	m := &MapValue{values: make(map[Tag]Value, len(fields))}
	for _, f := range fields {
		if f.IsDeletion() {
			m.remove(f.Tag)
			continue
		}
		if f.Value.Len() > MaxValueLen {
			return nil, fmt.Errorf("%w: tag %s has %d bytes", ErrValueTooLarge, f.Tag, f.Value.Len())
		}
		if _, exists := m.values[f.Tag]; !exists {
			m.order = append(m.order, f.Tag)
		}
		m.values[f.Tag] = f.Value
	}

	for _, tag := range m.order {
		m.size += HeaderLen + m.values[tag].Len()
	}
	if m.size > MaxValueLen {
		return nil, fmt.Errorf("%w: map encodes to %d bytes", ErrValueTooLarge, m.size)
	}
	return m, nil
}

func (m *MapValue) remove(tag Tag) {
	if _, exists := m.values[tag]; !exists {
		return
	}
	delete(m.values, tag)
	for i, t := range m.order {
		if t == tag {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

// Get returns the value stored under tag.
func (m *MapValue) Get(tag Tag) (Value, bool) {
	v, ok := m.values[tag]
	return v, ok
}

// Has reports whether tag is present.
func (m *MapValue) Has(tag Tag) bool {
	_, ok := m.values[tag]
	return ok
}

// Tags returns the present tags in first-seen order.
func (m *MapValue) Tags() []Tag {
	out := make([]Tag, len(m.order))
	copy(out, m.order)
	return out
}

// Fields returns a copy of the collapsed field list.
func (m *MapValue) Fields() []Field {
	out := make([]Field, 0, len(m.order))
	for _, tag := range m.order {
		out = append(out, Field{Tag: tag, Value: m.values[tag]})
	}
	return out
}

// Count returns the number of present tags.
func (m *MapValue) Count() int { return len(m.order) }

func (m *MapValue) Kind() Kind { return KindMap }

// Len returns the encoded length of the map in bytes.
func (m *MapValue) Len() int { return m.size }

// Bytes returns the concatenation of the encoded sub-fields in order.
func (m *MapValue) Bytes() []byte {
	out := make([]byte, 0, m.size)
	for _, tag := range m.order {
		out = appendField(out, tag, m.values[tag].Bytes(), 0)
	}
	return out
}

func (m *MapValue) String() string {
	parts := make([]string, 0, len(m.order))
	for _, tag := range m.order {
		parts = append(parts, tag.String()+"="+m.values[tag].String())
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func (m *MapValue) equal(o *MapValue) bool {
	if m.Count() != o.Count() {
		return false
	}
	for tag, v := range m.values {
		ov, ok := o.values[tag]
		if !ok || !Equal(v, ov) {
			return false
		}
	}
	return true
}
