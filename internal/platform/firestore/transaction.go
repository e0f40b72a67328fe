package firestore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	defaultTxAttempts = 5
	defaultTxTimeout  = 15 * time.Second
)

// TxFunc is executed within a Firestore transaction.
type TxFunc func(ctx context.Context, tx *firestore.Transaction) error

// TxOption customises transaction behaviour.
type TxOption func(*txConfig)

type txConfig struct {
	attempts int
	timeout  time.Duration
}

// WithTxAttempts overrides the retry attempts for a transaction.
func WithTxAttempts(attempts int) TxOption {
	return func(cfg *txConfig) {
		if attempts > 0 {
			cfg.attempts = attempts
		}
	}
}

// WithTxTimeout sets a timeout for the transaction context.
func WithTxTimeout(timeout time.Duration) TxOption {
	return func(cfg *txConfig) {
		if timeout > 0 {
			cfg.timeout = timeout
		}
	}
}

// RunTransaction executes fn within a transaction on the provided client.
func RunTransaction(ctx context.Context, client *firestore.Client, fn TxFunc, opts ...TxOption) error {
	if client == nil {
		return WrapError("transaction", errors.New("firestore: client is nil"))
	}
	if fn == nil {
		return WrapError("transaction", errors.New("firestore: transaction function is nil"))
	}

	cfg := txConfig{attempts: defaultTxAttempts, timeout: defaultTxTimeout}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	txnCtx := ctx
	var cancel context.CancelFunc
	if cfg.timeout > 0 {
		deadline, hasDeadline := ctx.Deadline()
		if !hasDeadline || time.Until(deadline) > cfg.timeout {
			txnCtx, cancel = context.WithTimeout(ctx, cfg.timeout)
		}
	}
	if cancel != nil {
		defer cancel()
	}

	firestoreOpts := make([]firestore.TransactionOption, 0, 1)
	if cfg.attempts > 0 {
		firestoreOpts = append(firestoreOpts, firestore.MaxAttempts(cfg.attempts))
	}

	err := client.RunTransaction(txnCtx, func(ctx context.Context, tx *firestore.Transaction) error {
		return fn(ctx, tx)
	}, firestoreOpts...)

	return WrapError("transaction", err)
}

type scopeKey struct{}

type writeKind int

const (
	writeSet writeKind = iota
	writeCreate
	writeDelete
)

type pendingWrite struct {
	ref   *firestore.DocumentRef
	kind  writeKind
	value any
}

// Scope is a unit of work over one Firestore transaction. Firestore rejects
// reads issued after a write, so writes are buffered and applied when the
// callback returns. Reads of a document written earlier in the same scope
// see the buffered value; queries do not.
type Scope struct {
	tx *firestore.Transaction

	mu      sync.Mutex
	order   []string
	pending map[string]pendingWrite
}

// ScopeFrom returns the scope carried by ctx, or nil.
func ScopeFrom(ctx context.Context) *Scope {
	scope, _ := ctx.Value(scopeKey{}).(*Scope)
	return scope
}

// RunInScope runs fn in a transaction whose context carries a Scope. Nested
// calls join the outer scope. Errors returned by fn are passed through
// unchanged.
func (p *Provider) RunInScope(ctx context.Context, fn func(ctx context.Context) error, opts ...TxOption) error {
	if ScopeFrom(ctx) != nil {
		return fn(ctx)
	}
	var fnErr error
	err := p.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		fnErr = nil
		scope := &Scope{tx: tx, pending: map[string]pendingWrite{}}
		if err := fn(context.WithValue(ctx, scopeKey{}, scope)); err != nil {
			fnErr = err
			return err
		}
		return scope.flush()
	}, opts...)
	if fnErr != nil {
		return fnErr
	}
	return err
}

func (s *Scope) buffer(w pendingWrite) {
	s.mu.Lock()
	defer s.mu.Unlock()
	path := w.ref.Path
	if _, ok := s.pending[path]; !ok {
		s.order = append(s.order, path)
	} else if prev := s.pending[path]; prev.kind == writeCreate && w.kind == writeSet {
		// still a create as far as the backend is concerned
		w.kind = writeCreate
	}
	s.pending[path] = w
}

func (s *Scope) lookup(ref *firestore.DocumentRef) (pendingWrite, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.pending[ref.Path]
	return w, ok
}

func (s *Scope) flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, path := range s.order {
		w := s.pending[path]
		var err error
		switch w.kind {
		case writeSet:
			err = s.tx.Set(w.ref, w.value)
		case writeCreate:
			err = s.tx.Create(w.ref, w.value)
		case writeDelete:
			err = s.tx.Delete(w.ref)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// GetDoc decodes the document at ref into T, reading through the scope
// carried by ctx if there is one.
func GetDoc[T any](ctx context.Context, ref *firestore.DocumentRef) (T, error) {
	var out T
	op := ref.Parent.ID + ".get"
	scope := ScopeFrom(ctx)
	if scope != nil {
		if w, ok := scope.lookup(ref); ok {
			if w.kind == writeDelete {
				return out, NotFound(op, "document %s deleted in transaction", ref.ID)
			}
			value, ok := w.value.(T)
			if !ok {
				return out, fmt.Errorf("firestore: buffered %s holds %T", ref.Path, w.value)
			}
			return value, nil
		}
	}

	var (
		snap *firestore.DocumentSnapshot
		err  error
	)
	if scope != nil {
		snap, err = scope.tx.Get(ref)
	} else {
		snap, err = ref.Get(ctx)
	}
	if err != nil {
		return out, WrapError(op, err)
	}
	if err := snap.DataTo(&out); err != nil {
		return out, fmt.Errorf("firestore: decode %s: %w", ref.Path, err)
	}
	return out, nil
}

// Exists reports whether ref holds a document, honouring buffered writes.
func Exists(ctx context.Context, ref *firestore.DocumentRef) (bool, error) {
	scope := ScopeFrom(ctx)
	if scope != nil {
		if w, ok := scope.lookup(ref); ok {
			return w.kind != writeDelete, nil
		}
	}
	var err error
	if scope != nil {
		_, err = scope.tx.Get(ref)
	} else {
		_, err = ref.Get(ctx)
	}
	switch status.Code(err) {
	case codes.OK:
		return true, nil
	case codes.NotFound:
		return false, nil
	}
	return false, WrapError(ref.Parent.ID+".exists", err)
}

// SetDoc overwrites ref with value.
func SetDoc(ctx context.Context, ref *firestore.DocumentRef, value any) error {
	if scope := ScopeFrom(ctx); scope != nil {
		scope.buffer(pendingWrite{ref: ref, kind: writeSet, value: value})
		return nil
	}
	_, err := ref.Set(ctx, value)
	return WrapError(ref.Parent.ID+".set", err)
}

// CreateDoc writes value at ref and fails with a conflict if a document
// exists. Inside a scope the existence check happens at commit.
func CreateDoc(ctx context.Context, ref *firestore.DocumentRef, value any) error {
	if scope := ScopeFrom(ctx); scope != nil {
		if w, ok := scope.lookup(ref); ok && w.kind != writeDelete {
			return Conflict(ref.Parent.ID+".create", "document %s exists", ref.ID)
		}
		scope.buffer(pendingWrite{ref: ref, kind: writeCreate, value: value})
		return nil
	}
	_, err := ref.Create(ctx, value)
	return WrapError(ref.Parent.ID+".create", err)
}

// DeleteDoc removes ref. Deleting a missing document is not an error.
func DeleteDoc(ctx context.Context, ref *firestore.DocumentRef) error {
	if scope := ScopeFrom(ctx); scope != nil {
		scope.buffer(pendingWrite{ref: ref, kind: writeDelete})
		return nil
	}
	_, err := ref.Delete(ctx)
	return WrapError(ref.Parent.ID+".delete", err)
}

// QueryDocs runs query and decodes every result into T.
func QueryDocs[T any](ctx context.Context, query firestore.Query) ([]Document[T], error) {
	var iter *firestore.DocumentIterator
	if scope := ScopeFrom(ctx); scope != nil {
		iter = scope.tx.Documents(query)
	} else {
		iter = query.Documents(ctx)
	}
	defer iter.Stop()

	var docs []Document[T]
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			return docs, nil
		}
		if err != nil {
			return nil, WrapError("query", err)
		}
		var data T
		if err := snap.DataTo(&data); err != nil {
			return nil, fmt.Errorf("firestore: decode %s: %w", snap.Ref.Path, err)
		}
		docs = append(docs, Document[T]{
			ID:         snap.Ref.ID,
			Data:       data,
			CreateTime: snap.CreateTime,
			UpdateTime: snap.UpdateTime,
			ReadTime:   snap.ReadTime,
		})
	}
}
