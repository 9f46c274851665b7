package storage

// PrefixDB confines its user to one key namespace of a shared DB. The wallet
// keeps each identity's tokens under the identity name, and the local ledger
// keeps its records and blocks under its own namespace.
type PrefixDB struct {
	inner  DB
	prefix []byte
}

// NewPrefixDB returns a view of inner in which every key is under prefix.
func NewPrefixDB(inner DB, prefix []byte) *PrefixDB {
	return &PrefixDB{inner: inner, prefix: cloneBytes(prefix)}
}

func (p *PrefixDB) key(k []byte) []byte {
	out := make([]byte, 0, len(p.prefix)+len(k))
	return append(append(out, p.prefix...), k...)
}

func (p *PrefixDB) Get(key []byte) ([]byte, error) { return p.inner.Get(p.key(key)) }
func (p *PrefixDB) Put(key, value []byte) error   { return p.inner.Put(p.key(key), value) }
func (p *PrefixDB) Delete(key []byte) error        { return p.inner.Delete(p.key(key)) }
func (p *PrefixDB) Has(key []byte) (bool, error)   { return p.inner.Has(p.key(key)) }

// ForEach visits keys under prefix inside the namespace. fn sees keys with
// the namespace stripped.
func (p *PrefixDB) ForEach(prefix []byte, fn func(key, value []byte) error) error {
	n := len(p.prefix)
	return p.inner.ForEach(p.key(prefix), func(key, value []byte) error {
		return fn(key[n:], value)
	})
}

// Close does nothing; the owner of the inner DB closes it.
func (p *PrefixDB) Close() error {
	return nil
}

// NewBatch returns a batch confined to the namespace. It is atomic when the
// inner DB supports batches and writes through on Commit otherwise.
func (p *PrefixDB) NewBatch() Batch {
	if b, ok := p.inner.(Batcher); ok {
		return &prefixBatch{db: p, inner: b.NewBatch()}
	}
	return &writeThroughBatch{db: p}
}

type prefixBatch struct {
	db    *PrefixDB
	inner Batch
}

func (b *prefixBatch) Put(key, value []byte) error { return b.inner.Put(b.db.key(key), value) }
func (b *prefixBatch) Delete(key []byte) error     { return b.inner.Delete(b.db.key(key)) }
func (b *prefixBatch) Commit() error               { return b.inner.Commit() }

// writeThroughBatch queues operations and applies them in order on Commit.
// A failed Commit may leave earlier operations applied.
type writeThroughBatch struct {
	db  *PrefixDB
	ops []batchOp
}

type batchOp struct {
	key, value []byte
	del        bool
}

func (b *writeThroughBatch) Put(key, value []byte) error {
	b.ops = append(b.ops, batchOp{key: cloneBytes(key), value: cloneBytes(value)})
	return nil
}

func (b *writeThroughBatch) Delete(key []byte) error {
	b.ops = append(b.ops, batchOp{key: cloneBytes(key), del: true})
	return nil
}

func (b *writeThroughBatch) Commit() error {
	for _, op := range b.ops {
		var err error
		if op.del {
			err = b.db.Delete(op.key)
		} else {
			err = b.db.Put(op.key, op.value)
		}
		if err != nil {
			return err
		}
	}
	b.ops = nil
	return nil
}
