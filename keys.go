package graphstate

import (
	"fmt"
	"reflect"
)

// KeyInspector answers key questions about entity instances using the
// descriptors of a Model.
type KeyInspector struct {
	model *Model
}

// NewKeyInspector constructs a KeyInspector over model. A nil model gets a
// fresh convention-only Model.
func NewKeyInspector(model *Model) *KeyInspector {
	if model == nil {
		model = NewModel()
	}
	return &KeyInspector{model: model}
}

// IsKeySet reports whether any key field of entity holds a non-zero value.
func (k *KeyInspector) IsKeySet(entity any) (bool, error) {
	et, v, err := k.inspect(entity)
	if err != nil {
		return false, err
	}
	return et.isKeySet(v), nil
}

// IsAutoGenerated reports whether the key of the entity's type is assigned by
// the store on insert. entity may also be a reflect.Type.
func (k *KeyInspector) IsAutoGenerated(entity any) (bool, error) {
	et, err := k.model.EntityType(entity)
	if err != nil {
		return false, err
	}
	return et.Generated, nil
}

// HasUsableKey reports whether entity identifies an existing row: its key is
// set, or its key is supplied by the caller.
func (k *KeyInspector) HasUsableKey(entity any) (bool, error) {
	et, v, err := k.inspect(entity)
	if err != nil {
		return false, err
	}
	return et.isKeySet(v) || !et.Generated, nil
}

// KeyValues returns the key values of entity in key declaration order.
func (k *KeyInspector) KeyValues(entity any) ([]any, error) {
	et, v, err := k.inspect(entity)
	if err != nil {
		return nil, err
	}
	return et.keyValues(v), nil
}

func (k *KeyInspector) inspect(entity any) (*EntityType, reflect.Value, error) {
	v := reflect.ValueOf(entity)
	for v.IsValid() && v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil, reflect.Value{}, &ConfigurationError{Type: fmt.Sprintf("%T", entity), Err: ErrInvalidRoot}
		}
		v = v.Elem()
	}
	if !v.IsValid() {
		return nil, reflect.Value{}, &ConfigurationError{Err: ErrInvalidRoot}
	}
	et, err := k.model.EntityType(v.Type())
	if err != nil {
		return nil, reflect.Value{}, err
	}
	return et, v, nil
}
