package node

import (
	"reflect"

	"github.com/roach88/wavectl/internal/graph"
)

// ChangeDetector reports whether a derived value changed.
type ChangeDetector[U any] func(old, new U) bool

// DeepChange reports a change when the values are not deeply equal.
func DeepChange[U any](old, new U) bool {
	return !reflect.DeepEqual(old, new)
}

// ComparableChange reports a change when the values differ under ==.
func ComparableChange[U comparable](old, new U) bool {
	return old != new
}

// MappingOption configures a MappingNode.
type MappingOption[U any] func(*mappingConfig[U])

type mappingConfig[U any] struct {
	detect ChangeDetector[U]
	base   []Option
}

// WithChangeDetector replaces the default DeepChange detector.
func WithChangeDetector[U any](d ChangeDetector[U]) MappingOption[U] {
	return func(c *mappingConfig[U]) {
		c.detect = d
	}
}

// WithBaseOptions passes options through to the embedded Base.
func WithBaseOptions[U any](opts ...Option) MappingOption[U] {
	return func(c *mappingConfig[U]) {
		c.base = append(c.base, opts...)
	}
}

// MappingNode subscribes to a single source and holds mapper(source). It
// reports a change, and replaces its value, only when the detector says the
// mapped value differs from the held one. The held value starts as the
// zero value of U.
type MappingNode[S graph.Node, U any] struct {
	Base

	source S
	mapper func(S) (U, error)
	detect ChangeDetector[U]
	value  U
}

// NewMapping returns a MappingNode over source.
func NewMapping[S graph.Node, U any](driver Driver, source S, mapper func(S) (U, error), opts ...MappingOption[U]) *MappingNode[S, U] {
	cfg := mappingConfig[U]{detect: DeepChange[U]}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &MappingNode[S, U]{
		Base:   NewBase(driver, cfg.base...),
		source: source,
		mapper: mapper,
		detect: cfg.detect,
	}
}

// Initialise implements graph.Node.
func (m *MappingNode[S, U]) Initialise(ctx graph.NodeContext) error {
	if err := m.Base.Initialise(ctx); err != nil {
		return err
	}
	return ctx.SubscribeTo(m.source)
}

// Wave implements graph.Node.
func (m *MappingNode[S, U]) Wave() (bool, error) {
	next, err := m.mapper(m.source)
	if err != nil {
		return false, err
	}
	if !m.detect(m.value, next) {
		return false, nil
	}
	m.value = next
	return true, nil
}

// Value returns the held value.
func (m *MappingNode[S, U]) Value() U {
	return m.value
}

// Source returns the source node.
func (m *MappingNode[S, U]) Source() S {
	return m.source
}

// DumpState implements graph.StateDumper.
func (m *MappingNode[S, U]) DumpState() any {
	return map[string]any{"value": m.value}
}
