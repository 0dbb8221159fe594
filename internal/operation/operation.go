// Package operation describes typed GraphQL operations: the document text,
// its variables, its kind, and the Go type its response data decodes into.
package operation

import (
	"encoding/json"
	"errors"
	"fmt"

	farm "github.com/dgryski/go-farm"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
)

// Kind is the GraphQL operation type.
type Kind string

const (
	KindQuery        Kind = "query"
	KindMutation     Kind = "mutation"
	KindSubscription Kind = "subscription"
)

var (
	// ErrKindMismatch is returned when a document's operation does not match
	// the constructor used (e.g. a mutation passed to NewQuery).
	ErrKindMismatch = errors.New("operation kind mismatch")

	// ErrNoOperation is returned when the document has no operation with the
	// requested name, or several operations and no name to choose between them.
	ErrNoOperation = errors.New("no matching operation in document")
)

// Operation is a GraphQL request description whose response data decodes
// into D. Build one with NewQuery, NewMutation or NewSubscription.
type Operation[D any] struct {
	Document  string
	Name      string
	Variables map[string]any
	kind      Kind
}

// Kind returns the operation type parsed from the document.
func (o Operation[D]) Kind() Kind {
	return o.kind
}

// Key identifies the operation in the store: the same document, name and
// variables always produce the same key.
func (o Operation[D]) Key() string {
	return Key(o.kind, o.Document, o.Name, o.Variables)
}

// Decode unmarshals response data into D. Absent or null data decodes to nil.
func (o Operation[D]) Decode(data json.RawMessage) (*D, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var out D
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode %s data: %w", o.kind, err)
	}
	return &out, nil
}

// Key computes the store key for an operation identity. Variables are
// marshalled with encoding/json, which sorts map keys, so logically equal
// variable sets hash identically.
func Key(kind Kind, document, name string, variables map[string]any) string {
	vars, err := json.Marshal(variables)
	if err != nil {
		vars = []byte(fmt.Sprint(variables))
	}

	buf := make([]byte, 0, len(kind)+len(document)+len(name)+len(vars)+3)
	buf = append(buf, kind...)
	buf = append(buf, 0)
	buf = append(buf, name...)
	buf = append(buf, 0)
	buf = append(buf, document...)
	buf = append(buf, 0)
	buf = append(buf, vars...)

	return fmt.Sprintf("%s:%016x", kind, farm.Fingerprint64(buf))
}

// Any is satisfied by every typed wrapper; upload accepts any operation kind.
type Any[D any] interface {
	Base() Operation[D]
}

// Query is an operation restricted to the query kind.
type Query[D any] struct{ Operation[D] }

// Mutation is an operation restricted to the mutation kind.
type Mutation[D any] struct{ Operation[D] }

// Subscription is an operation restricted to the subscription kind.
type Subscription[D any] struct{ Operation[D] }

func (q Query[D]) Base() Operation[D]        { return q.Operation }
func (m Mutation[D]) Base() Operation[D]     { return m.Operation }
func (s Subscription[D]) Base() Operation[D] { return s.Operation }

// Option customises operation construction.
type Option func(*options)

type options struct {
	name string
}

// WithName selects the named operation in a document holding several.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// NewQuery parses document and returns it as a typed query.
func NewQuery[D any](document string, variables map[string]any, opts ...Option) (Query[D], error) {
	op, err := build[D](KindQuery, document, variables, opts)
	return Query[D]{op}, err
}

// NewMutation parses document and returns it as a typed mutation.
func NewMutation[D any](document string, variables map[string]any, opts ...Option) (Mutation[D], error) {
	op, err := build[D](KindMutation, document, variables, opts)
	return Mutation[D]{op}, err
}

// NewSubscription parses document and returns it as a typed subscription.
func NewSubscription[D any](document string, variables map[string]any, opts ...Option) (Subscription[D], error) {
	op, err := build[D](KindSubscription, document, variables, opts)
	return Subscription[D]{op}, err
}

// New parses document and returns an operation of whatever kind it declares.
func New[D any](document string, variables map[string]any, opts ...Option) (Operation[D], error) {
	return build[D]("", document, variables, opts)
}

// MustQuery is NewQuery for documents known at compile time.
func MustQuery[D any](document string, variables map[string]any, opts ...Option) Query[D] {
	q, err := NewQuery[D](document, variables, opts...)
	if err != nil {
		panic(err)
	}
	return q
}

// MustMutation is NewMutation for documents known at compile time.
func MustMutation[D any](document string, variables map[string]any, opts ...Option) Mutation[D] {
	m, err := NewMutation[D](document, variables, opts...)
	if err != nil {
		panic(err)
	}
	return m
}

// MustSubscription is NewSubscription for documents known at compile time.
func MustSubscription[D any](document string, variables map[string]any, opts ...Option) Subscription[D] {
	s, err := NewSubscription[D](document, variables, opts...)
	if err != nil {
		panic(err)
	}
	return s
}

func build[D any](want Kind, document string, variables map[string]any, opts []Option) (Operation[D], error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	kind, name, err := Parse(document, o.name)
	if err != nil {
		return Operation[D]{}, err
	}
	if want != "" && kind != want {
		return Operation[D]{}, fmt.Errorf("%w: document declares %s, expected %s", ErrKindMismatch, kind, want)
	}

	return Operation[D]{
		Document:  document,
		Name:      name,
		Variables: variables,
		kind:      kind,
	}, nil
}

// Parse reads a GraphQL document and returns the kind and name of the
// selected operation. An empty name selects the only operation.
func Parse(document, name string) (Kind, string, error) {
	doc, err := parser.ParseQuery(&ast.Source{Input: document})
	if err != nil {
		return "", "", fmt.Errorf("failed to parse operation document: %w", err)
	}

	def := doc.Operations.ForName(name)
	if def == nil {
		if name == "" {
			return "", "", fmt.Errorf("%w: document has %d operations, name one", ErrNoOperation, len(doc.Operations))
		}
		return "", "", fmt.Errorf("%w: %q", ErrNoOperation, name)
	}

	switch def.Operation {
	case ast.Mutation:
		return KindMutation, def.Name, nil
	case ast.Subscription:
		return KindSubscription, def.Name, nil
	default:
		return KindQuery, def.Name, nil
	}
}
