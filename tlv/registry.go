package tlv

// Registry maps tags to the kind their values decode as. Registration is
// expected to happen during setup; once shared, a registry is read-only and
// safe for concurrent use.
type Registry struct {
	kinds  map[Tag]Kind
	nested map[Tag]*Registry
}

// NewRegistry returns an empty registry. Every tag decodes as raw until
// registered.
func NewRegistry() *Registry {
	return &Registry{
		kinds:  make(map[Tag]Kind),
		nested: make(map[Tag]*Registry),
	}
}

// Register declares the kind of tag and returns r for chaining.
func (r *Registry) Register(tag Tag, kind Kind) *Registry {
	r.kinds[tag] = kind
	return r
}

// RegisterMap declares tag as a composite whose sub-fields decode with fields.
// A nil fields registry decodes every sub-field as raw.
func (r *Registry) RegisterMap(tag Tag, fields *Registry) *Registry {
	r.kinds[tag] = KindMap
	r.nested[tag] = fields
	return r
}

// Kind returns the registered kind of tag, KindRaw when unknown.
func (r *Registry) Kind(tag Tag) Kind {
	if r == nil {
		return KindRaw
	}
	if k, ok := r.kinds[tag]; ok {
		return k
	}
	return KindRaw
}

// Nested returns the registry used for the sub-fields of a map tag.
func (r *Registry) Nested(tag Tag) *Registry {
	if r == nil {
		return nil
	}
	return r.nested[tag]
}
