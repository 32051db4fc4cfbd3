package transform

import (
	"errors"

	"github.com/gyaneshwarpardhi/eventrouter/internal/event"
)

// Record is the output of field assembly before it is built into a
// family specific representation.
type Record map[string]interface{}

// Deriver computes one output field. out holds every field resolved so far,
// including the scaffolding written by Definition.Base.
type Deriver func(ev event.Raw, out Record) (interface{}, error)

type omitted struct{}

// Omit returned by a Deriver leaves an additional field out of the record.
// A required field may not be omitted.
var Omit interface{} = &omitted{}

// Definition describes how to assemble one event family member.
type Definition struct {
	// Name identifies the definition in error messages.
	Name string

	Required   []string
	Additional []string

	// Base seeds the record with fields shared by the whole family.
	Base func(ev event.Raw, out Record) error

	// Values holds literal field values. A literal wins over a deriver.
	Values map[string]interface{}
	// Derivers compute fields not given in Values.
	Derivers map[string]Deriver

	// Finalize runs after every field is assembled.
	Finalize func(out Record)
	// Build converts the assembled record into the output value. When nil
	// the record itself is returned.
	Build func(out Record) (interface{}, error)
}

// Fields returns the required fields followed by the additional ones.
func (d *Definition) Fields() []string {
	fields := make([]string, 0, len(d.Required)+len(d.Additional))
	fields = append(fields, d.Required...)
	return append(fields, d.Additional...)
}

// Check verifies that every declared field has a literal or a deriver.
func (d *Definition) Check(eventType string) error {
	for _, f := range d.Fields() {
		if _, ok := d.Values[f]; ok {
			continue
		}
		if _, ok := d.Derivers[f]; ok {
			continue
		}
		return &MissingMappingError{Field: f, Transformer: d.Name, EventType: eventType}
	}
	return nil
}

// Transformer applies a Definition to one event.
type Transformer struct {
	def *Definition
	ev  event.Raw
}

// Name returns the name of the underlying definition.
func (t *Transformer) Name() string { return t.def.Name }

// Transform assembles the output for the bound event.
func (t *Transformer) Transform() (interface{}, error) {
	out := Record{}
	if t.def.Base != nil {
		if err := t.def.Base(t.ev, out); err != nil {
			return nil, t.wrap("", err)
		}
	}
	for i, f := range t.def.Fields() {
		required := i < len(t.def.Required)
		v, err := t.field(f, out)
		if err != nil {
			return nil, err
		}
		if required && (v == nil || v == Omit) {
			return nil, &RequiredFieldError{Field: f, Transformer: t.def.Name, EventType: t.ev.Name()}
		}
		if v == Omit {
			continue
		}
		out[f] = v
	}
	if t.def.Finalize != nil {
		t.def.Finalize(out)
	}
	if t.def.Build == nil {
		return map[string]interface{}(out), nil
	}
	res, err := t.def.Build(out)
	if err != nil {
		return nil, t.wrap("", err)
	}
	return res, nil
}

func (t *Transformer) field(f string, out Record) (interface{}, error) {
	if v, ok := t.def.Values[f]; ok {
		return v, nil
	}
	d, ok := t.def.Derivers[f]
	if !ok {
		return nil, &MissingMappingError{Field: f, Transformer: t.def.Name, EventType: t.ev.Name()}
	}
	v, err := d(t.ev, out)
	if err != nil {
		return nil, t.wrap(f, err)
	}
	return v, nil
}

func (t *Transformer) wrap(field string, err error) error {
	var mm *MissingMappingError
	var de *DataError
	if errors.As(err, &mm) || errors.As(err, &de) {
		return err
	}
	return &DataError{Field: field, EventType: t.ev.Name(), Err: err}
}
