package transform_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/eventrouter/internal/event"
	"github.com/gyaneshwarpardhi/eventrouter/internal/transform"
)

func TestTransform_FieldOrderAndBase(t *testing.T) {
	var seen []string
	def := &transform.Definition{
		Name:       "ordered",
		Required:   []string{"action", "object"},
		Additional: []string{"target"},
		Base: func(ev event.Raw, out transform.Record) error {
			out["object"] = map[string]interface{}{"seed": true}
			return nil
		},
		Values: map[string]interface{}{"action": "Viewed"},
		Derivers: map[string]transform.Deriver{
			"object": func(ev event.Raw, out transform.Record) (interface{}, error) {
				seen = append(seen, fmt.Sprint(out["action"]))
				obj := out["object"].(map[string]interface{})
				obj["id"] = "obj-1"
				return obj, nil
			},
			"target": func(ev event.Raw, out transform.Record) (interface{}, error) {
				obj := out["object"].(map[string]interface{})
				return map[string]interface{}{"id": obj["id"]}, nil
			},
		},
		Finalize: func(out transform.Record) { out["finalized"] = true },
	}

	reg := transform.NewRegistry()
	require.NoError(t, reg.Register("e", def))
	tr, err := reg.Get(event.Raw{"name": "e", "data": map[string]interface{}{}})
	require.NoError(t, err)

	res, err := tr.Transform()
	require.NoError(t, err)
	out := res.(map[string]interface{})
	assert.Equal(t, []string{"Viewed"}, seen)
	assert.Equal(t, map[string]interface{}{"seed": true, "id": "obj-1"}, out["object"])
	assert.Equal(t, map[string]interface{}{"id": "obj-1"}, out["target"])
	assert.Equal(t, true, out["finalized"])
}

func TestTransform_Omit(t *testing.T) {
	def := &transform.Definition{
		Name:       "omit",
		Additional: []string{"target"},
		Derivers: map[string]transform.Deriver{
			"target": func(event.Raw, transform.Record) (interface{}, error) { return transform.Omit, nil },
		},
	}
	reg := transform.NewRegistry()
	require.NoError(t, reg.Register("e", def))
	tr, _ := reg.Get(event.Raw{"name": "e"})
	res, err := tr.Transform()
	require.NoError(t, err)
	_, has := res.(map[string]interface{})["target"]
	assert.False(t, has)
}

func TestTransform_RequiredFieldMustResolve(t *testing.T) {
	tests := []struct {
		name  string
		value interface{}
	}{
		{"null", nil},
		{"omitted", transform.Omit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := &transform.Definition{
				Name:     "strict",
				Required: []string{"action", "object"},
				Values:   map[string]interface{}{"action": "Viewed"},
				Derivers: map[string]transform.Deriver{
					"object": func(event.Raw, transform.Record) (interface{}, error) { return tt.value, nil },
				},
			}
			reg := transform.NewRegistry()
			require.NoError(t, reg.Register("e", def))
			tr, _ := reg.Get(event.Raw{"name": "e"})
			res, err := tr.Transform()
			assert.Nil(t, res)

			var rf *transform.RequiredFieldError
			require.True(t, errors.As(err, &rf), "got %v", err)
			assert.Equal(t, "object", rf.Field)
			assert.Equal(t, "strict", rf.Transformer)
			assert.Equal(t, "e", rf.EventType)
		})
	}
}

func TestTransform_NullRequiredLiteral(t *testing.T) {
	def := &transform.Definition{
		Name:     "literal",
		Required: []string{"action"},
		Values:   map[string]interface{}{"action": nil},
	}
	reg := transform.NewRegistry()
	require.NoError(t, reg.Register("e", def))
	tr, _ := reg.Get(event.Raw{"name": "e"})
	_, err := tr.Transform()

	var rf *transform.RequiredFieldError
	require.True(t, errors.As(err, &rf))
	assert.Equal(t, "action", rf.Field)
}

func TestTransform_DerivedFieldErrorIsDataError(t *testing.T) {
	def := &transform.Definition{
		Name:     "bad",
		Required: []string{"result"},
		Derivers: map[string]transform.Deriver{
			"result": func(event.Raw, transform.Record) (interface{}, error) { return nil, transform.ErrInvalidScore },
		},
	}
	reg := transform.NewRegistry()
	require.NoError(t, reg.Register("e", def))
	tr, _ := reg.Get(event.Raw{"name": "e"})
	_, err := tr.Transform()

	var de *transform.DataError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "result", de.Field)
	assert.ErrorIs(t, err, transform.ErrInvalidScore)
}

func TestTransform_DoesNotMutateCallerEvent(t *testing.T) {
	def := &transform.Definition{
		Name:     "mutating",
		Required: []string{"object"},
		Derivers: map[string]transform.Deriver{
			"object": func(ev event.Raw, out transform.Record) (interface{}, error) {
				data, err := ev.Data()
				if err != nil {
					return nil, err
				}
				delete(data, "user_id")
				return data, nil
			},
		},
	}
	reg := transform.NewRegistry()
	require.NoError(t, reg.Register("e", def))

	raw := event.Raw{"name": "e", "data": map[string]interface{}{"user_id": 1, "k": "v"}}
	tr, err := reg.Get(raw)
	require.NoError(t, err)
	_, err = tr.Transform()
	require.NoError(t, err)
	assert.Equal(t, 1, raw["data"].(map[string]interface{})["user_id"])
}
