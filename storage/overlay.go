package storage

// Overlay buffers writes against an underlying database so a multi-step
// operation can be committed atomically or abandoned without partial effects.
// Reads observe staged writes before falling through to the backend.
type Overlay struct {
	db      Database
	pending map[string][]byte
	deleted map[string]struct{}
}

// NewOverlay creates an empty overlay on top of the provided database.
func NewOverlay(db Database) *Overlay {
	return &Overlay{
		db:      db,
		pending: make(map[string][]byte),
		deleted: make(map[string]struct{}),
	}
}

func (o *Overlay) Put(key []byte, value []byte) error {
	stored := make([]byte, len(value))
	copy(stored, value)
	o.pending[string(key)] = stored
	delete(o.deleted, string(key))
	return nil
}

func (o *Overlay) Get(key []byte) ([]byte, error) {
	if _, gone := o.deleted[string(key)]; gone {
		return nil, ErrKeyNotFound
	}
	if value, ok := o.pending[string(key)]; ok {
		out := make([]byte, len(value))
		copy(out, value)
		return out, nil
	}
	return o.db.Get(key)
}

func (o *Overlay) Delete(key []byte) error {
	delete(o.pending, string(key))
	o.deleted[string(key)] = struct{}{}
	return nil
}

// Close satisfies the Database interface; the underlying database stays open.
func (o *Overlay) Close() {}

// Commit flushes all staged writes and deletions to the underlying database.
// A failed flush leaves the overlay intact so callers can report the error
// without having applied a partial batch to a fresh overlay.
func (o *Overlay) Commit() error {
	for key := range o.deleted {
		if err := o.db.Delete([]byte(key)); err != nil {
			return err
		}
	}
	for key, value := range o.pending {
		if err := o.db.Put([]byte(key), value); err != nil {
			return err
		}
	}
	o.pending = make(map[string][]byte)
	o.deleted = make(map[string]struct{})
	return nil
}

// Discard drops all staged writes without touching the backend.
func (o *Overlay) Discard() {
	o.pending = make(map[string][]byte)
	o.deleted = make(map[string]struct{})
}
