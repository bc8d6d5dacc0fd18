package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"ricorrenze/internal/core"
	"ricorrenze/internal/log"
	"ricorrenze/internal/storage"
)

// DefaultStorageKey is the key the whole collection is persisted under.
const DefaultStorageKey = "expenses"

// Change operations reported to a ChangeNotifier.
const (
	OpCreate    = "create"
	OpUpdate    = "update"
	OpHideMonth = "hide_month"
	OpDeleteAll = "delete_all"
)

// ChangeNotifier is told about every mutation that reached durable storage.
type ChangeNotifier interface {
	PublishExpenseChanged(ctx context.Context, id int64, op string, month core.MonthKey) error
}

// EditSession identifies the record a caller is editing. The caller keeps it
// between BeginEdit and Update; the store holds no editing state.
type EditSession struct {
	ID int64
}

// ExpenseStore owns the ordered expense collection and keeps durable storage
// in step with it.
type ExpenseStore struct {
	kv       storage.KV
	key      string
	notifier ChangeNotifier
	now      func() time.Time

	mu       sync.Mutex
	expenses []core.Expense
	lastID   int64
}

// NewExpenseStore returns an empty store; call Load to read persisted state.
// notifier may be nil.
func NewExpenseStore(kv storage.KV, key string, notifier ChangeNotifier) *ExpenseStore {
	if key == "" {
		key = DefaultStorageKey
	}
	return &ExpenseStore{
		kv:       kv,
		key:      key,
		notifier: notifier,
		now:      time.Now,
	}
}

// Load replaces the in-memory collection with the persisted one.
//
// A missing or unparsable value leaves the store empty. Records that fail
// validation are dropped. Only backend read failures are returned, and the
// store stays usable afterwards.
func (s *ExpenseStore) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.expenses = nil

	raw, err := s.kv.Get(ctx, s.key)
	if errors.Is(err, storage.ErrNotFound) {
		slog.InfoContext(ctx, "No persisted expenses, starting empty", "key", s.key)
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", s.key, err)
	}

	var stored []core.Expense
	if err := json.Unmarshal(raw, &stored); err != nil {
		slog.WarnContext(ctx, "Persisted expenses unreadable, starting empty", "key", s.key, "error", err)
		return nil
	}

	seen := make(map[int64]struct{}, len(stored))
	for _, e := range stored {
		if err := e.Input().Validate(); err != nil {
			slog.WarnContext(ctx, "Skipping invalid persisted expense", "id", e.ID, "error", err)
			continue
		}
		if _, dup := seen[e.ID]; dup {
			slog.WarnContext(ctx, "Skipping duplicate persisted expense", "id", e.ID)
			continue
		}
		seen[e.ID] = struct{}{}
		if e.HiddenMonths == nil {
			e.HiddenMonths = []core.MonthKey{}
		}
		s.expenses = append(s.expenses, e)
		if e.ID > s.lastID {
			s.lastID = e.ID
		}
	}

	slog.InfoContext(ctx, "Expenses loaded", "key", s.key, "count", len(s.expenses))
	return nil
}

// Create validates in and appends a new record with a fresh id.
//
// A *core.PersistenceError means the record was created but not saved.
func (s *ExpenseStore) Create(ctx context.Context, in core.ExpenseInput) (core.Expense, error) {
	if err := in.Validate(); err != nil {
		return core.Expense{}, err
	}

	s.mu.Lock()
	e := core.Expense{
		ID:           s.nextID(),
		Name:         strings.TrimSpace(in.Name),
		Amount:       in.Amount,
		FirstDate:    in.FirstDate,
		EndDate:      in.EndDate,
		HiddenMonths: []core.MonthKey{},
	}
	s.expenses = append(s.expenses, e)
	out := e.Clone()
	c, err := s.commit(ctx, OpCreate, e.ID, "")
	s.mu.Unlock()

	slog.InfoContext(ctx, "Expense created", log.NewFields().
		WithOperation(OpCreate).
		WithExpense(e.ID, "").
		WithAmount(e.Amount.String()).
		ToSlice()...)

	return out, s.publish(ctx, c, err)
}

// BeginEdit opens an edit session for an existing record.
func (s *ExpenseStore) BeginEdit(id int64) (EditSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexOf(id) < 0 {
		return EditSession{}, &core.NotFoundError{ID: id}
	}
	return EditSession{ID: id}, nil
}

// Update replaces the fields of the session's record, keeping its hidden
// months.
func (s *ExpenseStore) Update(ctx context.Context, session EditSession, in core.ExpenseInput) (core.Expense, error) {
	if err := in.Validate(); err != nil {
		return core.Expense{}, err
	}

	s.mu.Lock()
	i := s.indexOf(session.ID)
	if i < 0 {
		s.mu.Unlock()
		return core.Expense{}, &core.NotFoundError{ID: session.ID}
	}

	e := s.expenses[i]
	e.Name = strings.TrimSpace(in.Name)
	e.Amount = in.Amount
	e.FirstDate = in.FirstDate
	e.EndDate = in.EndDate
	s.expenses[i] = e
	out := e.Clone()
	c, err := s.commit(ctx, OpUpdate, e.ID, "")
	s.mu.Unlock()

	slog.InfoContext(ctx, "Expense updated", log.NewFields().
		WithOperation(OpUpdate).
		WithExpense(e.ID, "").
		WithAmount(e.Amount.String()).
		ToSlice()...)

	return out, s.publish(ctx, c, err)
}

// Submit creates a record when session is nil and updates it otherwise.
func (s *ExpenseStore) Submit(ctx context.Context, session *EditSession, in core.ExpenseInput) (core.Expense, error) {
	if session == nil {
		return s.Create(ctx, in)
	}
	return s.Update(ctx, *session, in)
}

// HideMonth removes one month's occurrence without deleting the record.
// Unknown ids, months already hidden and months outside the record's range
// are no-ops.
func (s *ExpenseStore) HideMonth(ctx context.Context, id int64, month core.MonthKey) error {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		slog.DebugContext(ctx, "Hide month on missing expense ignored", log.NewFields().
			WithExpense(id, month.String()).ToSlice()...)
		return nil
	}
	e := s.expenses[i]
	if e.IsHidden(month) || !e.InRange(month) {
		s.mu.Unlock()
		return nil
	}

	e = e.Clone()
	e.HiddenMonths = append(e.HiddenMonths, month)
	s.expenses[i] = e
	c, err := s.commit(ctx, OpHideMonth, id, month)
	s.mu.Unlock()

	slog.InfoContext(ctx, "Expense month hidden", log.NewFields().
		WithOperation(OpHideMonth).
		WithExpense(id, month.String()).
		ToSlice()...)

	return s.publish(ctx, c, err)
}

// DeleteAll removes the record entirely. Unknown ids are a no-op.
func (s *ExpenseStore) DeleteAll(ctx context.Context, id int64) error {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		slog.DebugContext(ctx, "Delete on missing expense ignored", log.NewFields().
			WithExpense(id, "").ToSlice()...)
		return nil
	}
	s.expenses = append(s.expenses[:i:i], s.expenses[i+1:]...)
	c, err := s.commit(ctx, OpDeleteAll, id, "")
	s.mu.Unlock()

	slog.InfoContext(ctx, "Expense deleted", log.NewFields().
		WithOperation(OpDeleteAll).
		WithExpense(id, "").
		ToSlice()...)

	return s.publish(ctx, c, err)
}

// Get returns a copy of the record with id.
func (s *ExpenseStore) Get(id int64) (core.Expense, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return core.Expense{}, false
	}
	return s.expenses[i].Clone(), true
}

// List returns copies of all records in insertion order.
func (s *ExpenseStore) List() []core.Expense {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// Groups derives the monthly groups from the current state.
func (s *ExpenseStore) Groups(opts core.GroupOptions) []core.MonthGroup {
	return core.GroupByMonth(s.List(), opts)
}

func (s *ExpenseStore) snapshot() []core.Expense {
	out := make([]core.Expense, len(s.expenses))
	for i, e := range s.expenses {
		out[i] = e.Clone()
	}
	return out
}

func (s *ExpenseStore) indexOf(id int64) int {
	for i, e := range s.expenses {
		if e.ID == id {
			return i
		}
	}
	return -1
}

// nextID derives ids from the clock in milliseconds and never hands out the
// same or a smaller id twice.
func (s *ExpenseStore) nextID() int64 {
	id := s.now().UnixMilli()
	if id <= s.lastID {
		id = s.lastID + 1
	}
	s.lastID = id
	return id
}

// pendingChange is a saved mutation waiting to be announced.
type pendingChange struct {
	op    string
	id    int64
	month core.MonthKey
}

// commit persists the full collection. The in-memory mutation stays applied
// when saving fails. Callers hold s.mu.
func (s *ExpenseStore) commit(ctx context.Context, op string, id int64, month core.MonthKey) (pendingChange, error) {
	c := pendingChange{op: op, id: id, month: month}
	data, err := json.Marshal(s.snapshot())
	if err != nil {
		return c, &core.PersistenceError{Op: op, Err: fmt.Errorf("encode expenses: %w", err)}
	}
	if err := s.kv.Put(ctx, s.key, data); err != nil {
		slog.ErrorContext(ctx, "Failed to persist expenses", log.NewFields().
			WithOperation(op).
			WithExpense(id, month.String()).
			WithErrorType(log.ErrorTypePersistence).
			WithError(err).
			ToSlice()...)
		return c, &core.PersistenceError{Op: op, Err: err}
	}
	return c, nil
}

// publish announces c when commitErr is nil and returns commitErr. Callers
// must not hold s.mu: the notifier may block on the network.
func (s *ExpenseStore) publish(ctx context.Context, c pendingChange, commitErr error) error {
	if commitErr != nil || s.notifier == nil {
		return commitErr
	}
	if err := s.notifier.PublishExpenseChanged(ctx, c.id, c.op, c.month); err != nil {
		slog.ErrorContext(ctx, "Failed to publish change message", log.NewFields().
			WithOperation(c.op).
			WithExpense(c.id, c.month.String()).
			WithError(err).
			ToSlice()...)
	}
	return nil
}
