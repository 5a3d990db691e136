package graphstate

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// DefaultStructTag is the struct tag read when building entity descriptors.
const DefaultStructTag = "graph"

// RelationKind tells single references from collections.
type RelationKind int

const (
	RelationReference RelationKind = iota + 1
	RelationCollection
)

func (k RelationKind) String() string {
	switch k {
	case RelationReference:
		return "reference"
	case RelationCollection:
		return "collection"
	default:
		return "unknown"
	}
}

// Field is a non-relation field of an entity type.
type Field struct {
	Name  string
	Type  reflect.Type
	index []int
}

// Relation is a navigation from one entity type to another.
type Relation struct {
	Name   string
	Kind   RelationKind
	Target *EntityType
	index  []int
	// elemPointer is set for collections of pointers ([]*T).
	elemPointer bool
}

// EntityType is the Key Descriptor and Relation Descriptor of one Go struct
// type. Descriptors are built once per type and shared; treat them as
// read-only.
type EntityType struct {
	Name      string
	GoType    reflect.Type
	Keys      []Field
	Generated bool
	// Fields lists keys and scalar fields in declaration order.
	Fields    []Field
	Relations []Relation
}

// KeyNames returns the key field names.
func (t *EntityType) KeyNames() []string {
	if t == nil {
		return nil
	}
	names := make([]string, 0, len(t.Keys))
	for _, key := range t.Keys {
		names = append(names, key.Name)
	}
	return names
}

// Relation returns the relation called name.
func (t *EntityType) Relation(name string) (*Relation, bool) {
	if t == nil {
		return nil, false
	}
	for i := range t.Relations {
		if t.Relations[i].Name == name {
			return &t.Relations[i], true
		}
	}
	return nil, false
}

// isKeySet reports false only when every key field holds its zero value.
func (t *EntityType) isKeySet(v reflect.Value) bool {
	for _, key := range t.Keys {
		fv, err := v.FieldByIndexErr(key.index)
		if err != nil {
			continue
		}
		if !fv.IsZero() {
			return true
		}
	}
	return false
}

func (t *EntityType) keyValues(v reflect.Value) []any {
	values := make([]any, 0, len(t.Keys))
	for _, key := range t.Keys {
		fv, err := v.FieldByIndexErr(key.index)
		if err != nil {
			values = append(values, nil)
			continue
		}
		values = append(values, fv.Interface())
	}
	return values
}

func (t *EntityType) fieldValues(v reflect.Value) map[string]any {
	values := make(map[string]any, len(t.Fields))
	for _, field := range t.Fields {
		fv, err := v.FieldByIndexErr(field.index)
		if err != nil {
			continue
		}
		values[field.Name] = fv.Interface()
	}
	return values
}

// EntityConfig overrides what conventions and struct tags infer for the type
// called Name. Empty fields keep the inferred values.
type EntityConfig struct {
	Name      string
	Keys      []string
	Generated *bool
	Ignore    []string
}

// ModelOption configures a Model.
type ModelOption func(*Model)

// WithEntityConfig registers descriptor overrides. Later configs for the same
// type name are merged over earlier ones.
func WithEntityConfig(configs ...EntityConfig) ModelOption {
	return func(m *Model) {
		for _, cfg := range configs {
			name := strings.TrimSpace(cfg.Name)
			if name == "" {
				continue
			}
			m.configs[name] = mergeEntityConfig(m.configs[name], cfg)
		}
	}
}

// WithGeneratedKey overrides whether the key of typeName is store-generated.
func WithGeneratedKey(typeName string, generated bool) ModelOption {
	return WithEntityConfig(EntityConfig{Name: typeName, Generated: &generated})
}

// WithStructTag changes the struct tag name read for descriptors.
func WithStructTag(tag string) ModelOption {
	return func(m *Model) {
		if tag = strings.TrimSpace(tag); tag != "" {
			m.tag = tag
		}
	}
}

func mergeEntityConfig(base, override EntityConfig) EntityConfig {
	out := base
	out.Name = strings.TrimSpace(override.Name)
	if len(override.Keys) > 0 {
		out.Keys = append([]string(nil), override.Keys...)
	}
	if override.Generated != nil {
		generated := *override.Generated
		out.Generated = &generated
	}
	if len(override.Ignore) > 0 {
		out.Ignore = append(append([]string(nil), base.Ignore...), override.Ignore...)
	}
	return out
}

// Model is the registry of entity descriptors keyed by Go type. It is safe for
// concurrent use.
type Model struct {
	mu      sync.RWMutex
	tag     string
	configs map[string]EntityConfig
	types   map[reflect.Type]*EntityType
	// plain holds struct types known to have no key.
	plain map[reflect.Type]struct{}
}

// NewModel constructs an empty Model.
func NewModel(opts ...ModelOption) *Model {
	m := &Model{
		tag:     DefaultStructTag,
		configs: map[string]EntityConfig{},
		types:   map[reflect.Type]*EntityType{},
		plain:   map[reflect.Type]struct{}{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// Register builds descriptors ahead of time for the types of values. Values may
// be structs, pointers to structs or reflect.Type values.
func (m *Model) Register(values ...any) error {
	for _, value := range values {
		if _, err := m.EntityType(value); err != nil {
			return err
		}
	}
	return nil
}

// EntityType returns the descriptor for the type of value.
func (m *Model) EntityType(value any) (*EntityType, error) {
	t, ok := value.(reflect.Type)
	if !ok {
		t = reflect.TypeOf(value)
	}
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil, &ConfigurationError{Type: fmt.Sprint(t), Err: ErrInvalidRoot}
	}
	et, err := m.typeOf(t)
	if err != nil {
		return nil, err
	}
	if et == nil {
		return nil, &ConfigurationError{Type: t.String(), Err: ErrNoKeyDescriptor}
	}
	return et, nil
}

// Types returns the descriptors built so far.
func (m *Model) Types() []*EntityType {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*EntityType, 0, len(m.types))
	for _, et := range m.types {
		out = append(out, et)
	}
	return out
}

// typeOf returns nil without error for struct types that have no key.
func (m *Model) typeOf(t reflect.Type) (*EntityType, error) {
	m.mu.RLock()
	et, ok := m.types[t]
	_, plain := m.plain[t]
	m.mu.RUnlock()
	if ok {
		return et, nil
	}
	if plain {
		return nil, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	b := &modelBuilder{model: m, building: map[reflect.Type]*EntityType{}, plain: map[reflect.Type]struct{}{}}
	et, err := b.build(t)
	if err != nil {
		return nil, err
	}
	for typ, built := range b.building {
		m.types[typ] = built
	}
	for typ := range b.plain {
		m.plain[typ] = struct{}{}
	}
	return et, nil
}

type modelBuilder struct {
	model    *Model
	building map[reflect.Type]*EntityType
	plain    map[reflect.Type]struct{}
}

type fieldTag struct {
	skip      bool
	key       bool
	generated *bool
}

func parseFieldTag(raw string) fieldTag {
	var tag fieldTag
	for _, part := range strings.Split(raw, ",") {
		switch strings.TrimSpace(strings.ToLower(part)) {
		case "-":
			tag.skip = true
		case "key":
			tag.key = true
		case "generated":
			v := true
			tag.generated = &v
		case "manual":
			v := false
			tag.generated = &v
		}
	}
	return tag
}

func (b *modelBuilder) lookup(t reflect.Type) (*EntityType, bool) {
	if et, ok := b.model.types[t]; ok {
		return et, true
	}
	if _, ok := b.model.plain[t]; ok {
		return nil, true
	}
	if et, ok := b.building[t]; ok {
		return et, true
	}
	if _, ok := b.plain[t]; ok {
		return nil, true
	}
	return nil, false
}

func (b *modelBuilder) build(t reflect.Type) (*EntityType, error) {
	if et, ok := b.lookup(t); ok {
		return et, nil
	}
	if t.Kind() != reflect.Struct {
		return nil, nil
	}

	cfg := b.model.configs[t.Name()]
	ignored := make(map[string]struct{}, len(cfg.Ignore))
	for _, name := range cfg.Ignore {
		ignored[name] = struct{}{}
	}

	type candidate struct {
		field reflect.StructField
		tag   fieldTag
	}
	var candidates []candidate
	for _, sf := range reflect.VisibleFields(t) {
		if sf.Anonymous || !sf.IsExported() {
			continue
		}
		if _, skip := ignored[sf.Name]; skip {
			continue
		}
		tag := parseFieldTag(sf.Tag.Get(b.model.tag))
		if tag.skip {
			continue
		}
		candidates = append(candidates, candidate{field: sf, tag: tag})
	}

	keyNames := map[string]struct{}{}
	var generated *bool
	switch {
	case len(cfg.Keys) > 0:
		for _, name := range cfg.Keys {
			keyNames[name] = struct{}{}
		}
	default:
		for _, c := range candidates {
			if c.tag.key {
				keyNames[c.field.Name] = struct{}{}
				if c.tag.generated != nil {
					generated = c.tag.generated
				}
			}
		}
		if len(keyNames) == 0 {
			for _, c := range candidates {
				if isConventionalKey(t.Name(), c.field.Name) {
					keyNames[c.field.Name] = struct{}{}
					break
				}
			}
		}
	}
	if len(keyNames) == 0 {
		b.plain[t] = struct{}{}
		return nil, nil
	}

	et := &EntityType{Name: t.Name(), GoType: t}
	for _, c := range candidates {
		if _, ok := keyNames[c.field.Name]; ok {
			et.Keys = append(et.Keys, Field{Name: c.field.Name, Type: c.field.Type, index: c.field.Index})
		}
	}
	if len(et.Keys) != len(keyNames) {
		return nil, &ConfigurationError{
			Type: t.String(),
			Err:  fmt.Errorf("%w: configured keys %v not found", ErrNoKeyDescriptor, cfg.Keys),
		}
	}

	switch {
	case cfg.Generated != nil:
		et.Generated = *cfg.Generated
	case generated != nil:
		et.Generated = *generated
	default:
		et.Generated = len(et.Keys) == 1 && isGeneratedKeyType(et.Keys[0].Type)
	}

	b.building[t] = et

	for _, c := range candidates {
		if _, isKey := keyNames[c.field.Name]; isKey {
			et.Fields = append(et.Fields, Field{Name: c.field.Name, Type: c.field.Type, index: c.field.Index})
			continue
		}
		rel, err := b.relation(c.field)
		if err != nil {
			return nil, err
		}
		if rel != nil {
			et.Relations = append(et.Relations, *rel)
			continue
		}
		et.Fields = append(et.Fields, Field{Name: c.field.Name, Type: c.field.Type, index: c.field.Index})
	}
	return et, nil
}

func (b *modelBuilder) relation(sf reflect.StructField) (*Relation, error) {
	ft := sf.Type
	switch ft.Kind() {
	case reflect.Pointer:
		target, err := b.build(ft.Elem())
		if err != nil || target == nil {
			return nil, err
		}
		return &Relation{Name: sf.Name, Kind: RelationReference, Target: target, index: sf.Index}, nil
	case reflect.Slice, reflect.Array:
		elem := ft.Elem()
		pointer := elem.Kind() == reflect.Pointer
		if pointer {
			elem = elem.Elem()
		}
		target, err := b.build(elem)
		if err != nil || target == nil {
			return nil, err
		}
		return &Relation{Name: sf.Name, Kind: RelationCollection, Target: target, index: sf.Index, elemPointer: pointer}, nil
	default:
		return nil, nil
	}
}

func isConventionalKey(typeName, fieldName string) bool {
	switch fieldName {
	case "ID", "Id", typeName + "ID", typeName + "Id":
		return true
	default:
		return false
	}
}

var uuidType = reflect.TypeOf(uuid.UUID{})

func isGeneratedKeyType(t reflect.Type) bool {
	if t == uuidType {
		return true
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	default:
		return false
	}
}
