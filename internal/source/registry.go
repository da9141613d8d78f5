package source

// Registry maps source identity, and injector stream-id, to Source
// state. It is owned exclusively by the mixer thread; registration is
// idempotent, matching the ingest contract that an unknown source
// creates a new entry on first packet.
type Registry struct {
	byIdentity map[string]*Source
	byStreamID map[string]*Source
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byIdentity: make(map[string]*Source),
		byStreamID: make(map[string]*Source),
	}
}

// GetOrCreate returns the existing source for identity, or creates and
// registers a new one with a fresh ring buffer and gap tracker.
func (r *Registry) GetOrCreate(identity string, kind Kind, params Params, randomAccess bool) *Source {
	if s, ok := r.byIdentity[identity]; ok {
		return s
	}
	s := New(identity, kind, params, randomAccess)
	r.byIdentity[identity] = s
	return s
}

// AttachStreamID associates an injector source with a stream-id for
// byte-wise lookup. A stream-id mismatch against an existing mapping
// simply creates/overwrites the mapping, per the "stream-id mismatch
// creates a new injector" error-handling rule.
func (r *Registry) AttachStreamID(streamID string, s *Source) {
	s.StreamID = streamID
	r.byStreamID[streamID] = s
}

// ByIdentity looks a source up by its identity.
func (r *Registry) ByIdentity(identity string) (*Source, bool) {
	s, ok := r.byIdentity[identity]
	return s, ok
}

// ByStreamID looks an injector source up by stream-id.
func (r *Registry) ByStreamID(streamID string) (*Source, bool) {
	s, ok := r.byStreamID[streamID]
	return s, ok
}

// Remove deletes a source from the registry (driven by external
// liveness tracking, out of this module's scope).
func (r *Registry) Remove(identity string) {
	if s, ok := r.byIdentity[identity]; ok {
		if s.StreamID != "" {
			delete(r.byStreamID, s.StreamID)
		}
		delete(r.byIdentity, identity)
	}
}

// All returns every registered source. The returned slice is a fresh
// copy; callers must not assume any ordering.
func (r *Registry) All() []*Source {
	out := make([]*Source, 0, len(r.byIdentity))
	for _, s := range r.byIdentity {
		out = append(out, s)
	}
	return out
}

// Len returns the number of registered sources.
func (r *Registry) Len() int { return len(r.byIdentity) }
