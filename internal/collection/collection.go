// Package collection holds the row state machine behind every key/value
// editor in the dashboard: app vars, environment variables, excluded
// resources and their review-app counterparts.
//
// An Editor never talks to the network itself. Actions that need a mutation
// return a *Pending which the caller runs (usually inside a tea.Cmd) and feeds
// back through Complete.
package collection

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Phase is the state of a single row.
type Phase int

const (
	Viewing Phase = iota
	Editing
	Adding
	Confirming
	Submitting
)

func (p Phase) String() string {
	switch p {
	case Viewing:
		return "viewing"
	case Editing:
		return "editing"
	case Adding:
		return "adding"
	case Confirming:
		return "confirming"
	case Submitting:
		return "submitting"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

var (
	ErrUnknownRow = errors.New("unknown row")
	ErrBusy       = errors.New("row is busy")
	ErrNotAllowed = errors.New("action not allowed in current state")
	ErrReadOnly   = errors.New("entries of this kind cannot be edited")
)

// Item is one server-side entry: a key/value tuple or a name/kind reference.
type Item struct {
	Key   string
	Value string
}

// Input is passed to the set and unset operations.
type Input struct {
	OwnerID string
	Key     string
	Value   string
}

// Operation persists a change. A nil error means success; otherwise the
// error message is shown to the operator verbatim.
type Operation func(ctx context.Context, in Input) error

// Variant describes one flavour of collection.
type Variant struct {
	Title      string
	KeyLabel   string
	ValueLabel string
	// ValueIsIdentity marks collections whose entries are identified by
	// key and value together (resource references). Their rows can be
	// added and deleted but never edited in place.
	ValueIsIdentity bool
}

// TupleVariant returns a key/value variant.
func TupleVariant(title string) Variant {
	return Variant{Title: title, KeyLabel: "key", ValueLabel: "value"}
}

// ResourceVariant returns a name/kind variant.
func ResourceVariant(title string) Variant {
	return Variant{Title: title, KeyLabel: "name", ValueLabel: "kind", ValueIsIdentity: true}
}

type action int

const (
	actionNone action = iota
	actionSet
	actionUnset
)

// NewRowID identifies the blank "add" row.
const NewRowID = "\x00new"

// Row is the client-side state of a displayed entry.
type Row struct {
	Key   string
	Value string // last known saved value
	Draft string // value buffer while editing
	Phase Phase
	Err   string

	id      string
	resume  Phase
	action  action
	request string
}

// ID returns the stable identity the row is keyed by.
func (r *Row) ID() string { return r.id }

// Loading reports whether a mutation for this row is in flight.
func (r *Row) Loading() bool { return r.Phase == Submitting }

// Pending is a mutation that has been dispatched by the editor and must be
// run by the caller.
type Pending struct {
	RowID   string
	Request string
	Input   Input
	op      Operation
}

// Run executes the mutation.
func (p *Pending) Run(ctx context.Context) Result {
	return Result{RowID: p.RowID, Request: p.Request, Err: p.op(ctx, p.Input)}
}

// Result is the outcome of a Pending.
type Result struct {
	RowID   string
	Request string
	Err     error
}

// Editor manages rows of one collection owned by one entity.
type Editor struct {
	variant Variant
	owner   string
	set     Operation
	unset   Operation
	rows    map[string]*Row
	newRow  *Row
}

// New returns an empty editor. Call Sync with the query result before use.
func New(variant Variant, owner string, set, unset Operation) *Editor {
	return &Editor{
		variant: variant,
		owner:   owner,
		set:     set,
		unset:   unset,
		rows:    make(map[string]*Row),
	}
}

func (e *Editor) Variant() Variant { return e.variant }
func (e *Editor) Owner() string    { return e.owner }

func (e *Editor) identity(key, value string) string {
	if e.variant.ValueIsIdentity {
		return key + "\x00" + value
	}
	return key
}

// Sync replaces the item list with a fresh query result. Rows that are
// still present keep their phase, buffers and error. Rows that disappeared
// are dropped unless a mutation for them is still in flight.
func (e *Editor) Sync(items []Item) {
	next := make(map[string]*Row, len(items))
	for _, it := range items {
		id := e.identity(it.Key, it.Value)
		if r, ok := e.rows[id]; ok {
			r.Key = it.Key
			r.Value = it.Value
			if r.Phase == Viewing || r.Phase == Confirming {
				r.Draft = it.Value
			}
			next[id] = r
			continue
		}
		next[id] = &Row{id: id, Key: it.Key, Value: it.Value, Draft: it.Value, Phase: Viewing}
	}
	for id, r := range e.rows {
		if _, ok := next[id]; !ok && r.Loading() {
			next[id] = r
		}
	}
	e.rows = next
}

// Rows returns the saved rows ordered by key, then value.
func (e *Editor) Rows() []*Row {
	rows := make([]*Row, 0, len(e.rows))
	for _, r := range e.rows {
		rows = append(rows, r)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Key != rows[j].Key {
			return rows[i].Key < rows[j].Key
		}
		return rows[i].Value < rows[j].Value
	})
	return rows
}

// Row looks up a saved row or the blank row by id.
func (e *Editor) Row(id string) (*Row, bool) {
	if id == NewRowID {
		return e.newRow, e.newRow != nil
	}
	r, ok := e.rows[id]
	return r, ok
}

// NewRow returns the blank row, or nil when it is closed.
func (e *Editor) NewRow() *Row { return e.newRow }

// OpenNew opens the blank row. It is a no-op when already open.
func (e *Editor) OpenNew() *Row {
	if e.newRow == nil {
		e.newRow = &Row{id: NewRowID, Phase: Adding}
	}
	return e.newRow
}

// CloseNew discards the blank row unless it is submitting.
func (e *Editor) CloseNew() error {
	if e.newRow == nil {
		return nil
	}
	if e.newRow.Loading() {
		return ErrBusy
	}
	e.newRow = nil
	return nil
}

// SubmitNew validates and dispatches the blank row.
func (e *Editor) SubmitNew(key, value string) (*Pending, error) {
	r := e.newRow
	if r == nil {
		return nil, ErrUnknownRow
	}
	if r.Loading() {
		return nil, ErrBusy
	}
	r.Key = key
	r.Draft = value
	key, value = strings.TrimSpace(key), strings.TrimSpace(value)
	if key == "" || value == "" {
		r.Err = fmt.Sprintf("%s and %s are required", e.variant.KeyLabel, e.variant.ValueLabel)
		return nil, errors.New(r.Err)
	}
	r.Key, r.Draft = key, value
	return e.dispatch(r, actionSet, e.set, value), nil
}

// BeginEdit switches a viewing row to editing.
func (e *Editor) BeginEdit(id string) error {
	if e.variant.ValueIsIdentity {
		return ErrReadOnly
	}
	r, ok := e.rows[id]
	if !ok {
		return ErrUnknownRow
	}
	switch r.Phase {
	case Editing:
		return nil
	case Viewing:
	case Submitting:
		return ErrBusy
	default:
		return ErrNotAllowed
	}
	r.Phase = Editing
	r.Draft = r.Value
	r.Err = ""
	return nil
}

// SubmitEdit dispatches a new value for an editing row. The key is never
// changed; renaming is a delete followed by an add.
func (e *Editor) SubmitEdit(id, value string) (*Pending, error) {
	r, ok := e.rows[id]
	if !ok {
		return nil, ErrUnknownRow
	}
	if r.Loading() {
		return nil, ErrBusy
	}
	if r.Phase != Editing {
		return nil, ErrNotAllowed
	}
	r.Draft = value
	value = strings.TrimSpace(value)
	if value == "" {
		r.Err = fmt.Sprintf("%s is required", e.variant.ValueLabel)
		return nil, errors.New(r.Err)
	}
	r.Draft = value
	return e.dispatch(r, actionSet, e.set, value), nil
}

// CancelEdit drops the edit buffer and returns the row to viewing.
func (e *Editor) CancelEdit(id string) error {
	if id == NewRowID {
		return e.CloseNew()
	}
	r, ok := e.rows[id]
	if !ok {
		return ErrUnknownRow
	}
	if r.Loading() {
		return ErrBusy
	}
	if r.Phase != Editing {
		return ErrNotAllowed
	}
	r.Draft = r.Value
	r.Phase = Viewing
	r.Err = ""
	return nil
}

// RequestDelete arms the confirmation gate for a viewing row.
func (e *Editor) RequestDelete(id string) error {
	r, ok := e.rows[id]
	if !ok {
		return ErrUnknownRow
	}
	if r.Loading() {
		return ErrBusy
	}
	if r.Phase != Viewing {
		return ErrNotAllowed
	}
	r.Phase = Confirming
	return nil
}

// DeclineDelete disarms the confirmation gate.
func (e *Editor) DeclineDelete(id string) error {
	r, ok := e.rows[id]
	if !ok {
		return ErrUnknownRow
	}
	if r.Phase != Confirming {
		return ErrNotAllowed
	}
	r.Phase = Viewing
	return nil
}

// ConfirmDelete dispatches the unset operation for a confirming row.
func (e *Editor) ConfirmDelete(id string) (*Pending, error) {
	r, ok := e.rows[id]
	if !ok {
		return nil, ErrUnknownRow
	}
	if r.Loading() {
		return nil, ErrBusy
	}
	if r.Phase != Confirming {
		return nil, ErrNotAllowed
	}
	r.Phase = Viewing
	return e.dispatch(r, actionUnset, e.unset, r.Value), nil
}

func (e *Editor) dispatch(r *Row, act action, op Operation, value string) *Pending {
	r.resume = r.Phase
	r.Phase = Submitting
	r.action = act
	r.request = uuid.NewString()
	r.Err = ""
	return &Pending{
		RowID:   r.id,
		Request: r.request,
		Input:   Input{OwnerID: e.owner, Key: r.Key, Value: value},
		op:      op,
	}
}

// Complete applies a mutation result. It reports whether the owner should
// re-query the collection. Results for rows that no longer exist or that
// belong to an older request are ignored.
func (e *Editor) Complete(res Result) (refresh bool) {
	r, ok := e.Row(res.RowID)
	if !ok || r.request != res.Request || !r.Loading() {
		return false
	}
	act := r.action
	r.action = actionNone
	r.request = ""

	if res.Err != nil {
		r.Phase = r.resume
		r.Err = res.Err.Error()
		return false
	}

	switch {
	case res.RowID == NewRowID:
		e.newRow = nil
	case act == actionUnset:
		delete(e.rows, res.RowID)
	default:
		r.Value = r.Draft
		r.Phase = Viewing
		r.Err = ""
	}
	return true
}
