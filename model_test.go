package graphstate

import (
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestModelConventions(t *testing.T) {
	model := NewModel()
	cases := []struct {
		value     any
		keys      []string
		generated bool
		relations []string
	}{
		{Customer{}, []string{"ID"}, true, []string{"Country", "Orders"}},
		{&Order{}, []string{"ID"}, true, []string{"Lines", "Product"}},
		{Product{}, []string{"Id"}, false, nil},
		{OrderLine{}, []string{"OrderID", "ProductID"}, false, nil},
		{Device{}, []string{"DeviceID"}, true, []string{"Owner"}},
		{reflect.TypeOf(Employee{}), []string{"ID"}, true, []string{"Manager", "Reports"}},
	}
	for _, tc := range cases {
		et, err := model.EntityType(tc.value)
		if err != nil {
			t.Fatalf("%T: %v", tc.value, err)
		}
		if diff := cmp.Diff(tc.keys, et.KeyNames()); diff != "" {
			t.Fatalf("%s keys mismatch (-want +got):\n%s", et.Name, diff)
		}
		if et.Generated != tc.generated {
			t.Fatalf("%s generated = %v, want %v", et.Name, et.Generated, tc.generated)
		}
		var relations []string
		for _, rel := range et.Relations {
			relations = append(relations, rel.Name)
		}
		if diff := cmp.Diff(tc.relations, relations); diff != "" {
			t.Fatalf("%s relations mismatch (-want +got):\n%s", et.Name, diff)
		}
	}
}

func TestModelRelationKinds(t *testing.T) {
	et, err := NewModel().EntityType(Customer{})
	if err != nil {
		t.Fatalf("customer: %v", err)
	}
	country, ok := et.Relation("Country")
	if !ok || country.Kind != RelationReference || country.Target.Name != "Country" {
		t.Fatalf("unexpected country relation: %+v", country)
	}
	orders, ok := et.Relation("Orders")
	if !ok || orders.Kind != RelationCollection || orders.Kind.String() != "collection" {
		t.Fatalf("unexpected orders relation: %+v", orders)
	}
	if _, ok := et.Relation("Labels"); ok {
		t.Fatalf("maps must not be relations")
	}
	if _, ok := et.Relation("Ignored"); ok {
		t.Fatalf("ignored field must not be a relation")
	}
}

func TestModelSharesDescriptors(t *testing.T) {
	model := NewModel()
	customer, _ := model.EntityType(Customer{})
	device, _ := model.EntityType(Device{})
	owner, _ := device.Relation("Owner")
	if owner.Target != customer {
		t.Fatalf("expected one descriptor per type")
	}
	employee, _ := model.EntityType(Employee{})
	manager, _ := employee.Relation("Manager")
	if manager.Target != employee {
		t.Fatalf("expected self reference to point at its own descriptor")
	}
}

func TestModelEntityConfigOverrides(t *testing.T) {
	model := NewModel(
		WithEntityConfig(EntityConfig{Name: "Region", Keys: []string{"Code"}}),
		WithGeneratedKey("Customer", false),
		WithEntityConfig(EntityConfig{Name: "Order", Ignore: []string{"Product"}}),
	)
	region, err := model.EntityType(Region{})
	if err != nil {
		t.Fatalf("region: %v", err)
	}
	if diff := cmp.Diff([]string{"Code"}, region.KeyNames()); diff != "" || region.Generated {
		t.Fatalf("unexpected region descriptor: keys %v generated %v", region.KeyNames(), region.Generated)
	}
	customer, _ := model.EntityType(Customer{})
	if customer.Generated {
		t.Fatalf("expected generated override")
	}
	order, _ := model.EntityType(Order{})
	if _, ok := order.Relation("Product"); ok {
		t.Fatalf("expected ignored relation to be dropped")
	}

	changes, err := NewResolver(WithModel(model)).Remove(&Customer{})
	if err != nil {
		t.Fatalf("remove with manual key: %v", err)
	}
	if changes.Len() != 1 {
		t.Fatalf("expected one entity, got %d", changes.Len())
	}
}

func TestModelConfigMissingKeyField(t *testing.T) {
	model := NewModel(WithEntityConfig(EntityConfig{Name: "Region", Keys: []string{"Missing"}}))
	_, err := model.EntityType(Region{})
	if !errors.Is(err, ErrNoKeyDescriptor) {
		t.Fatalf("expected ErrNoKeyDescriptor, got %v", err)
	}
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) || cfgErr.Type == "" {
		t.Fatalf("expected ConfigurationError naming the type, got %v", err)
	}
}

func TestModelStructTag(t *testing.T) {
	type Tagged struct {
		Code string `orm:"key"`
		Next *Tagged
	}
	et, err := NewModel(WithStructTag("orm")).EntityType(Tagged{})
	if err != nil {
		t.Fatalf("tagged: %v", err)
	}
	if diff := cmp.Diff([]string{"Code"}, et.KeyNames()); diff != "" {
		t.Fatalf("keys mismatch (-want +got):\n%s", diff)
	}
	if _, err := NewModel().EntityType(Tagged{}); !errors.Is(err, ErrNoKeyDescriptor) {
		t.Fatalf("expected default tag to ignore orm tags, got %v", err)
	}
}

func TestModelRegisterAndTypes(t *testing.T) {
	model := NewModel()
	if err := model.Register(Customer{}, &Product{}); err != nil {
		t.Fatalf("register: %v", err)
	}
	names := map[string]bool{}
	for _, et := range model.Types() {
		names[et.Name] = true
	}
	for _, want := range []string{"Customer", "Country", "Order", "OrderLine", "Product"} {
		if !names[want] {
			t.Fatalf("expected %s registered, got %v", want, names)
		}
	}
	if err := model.Register(Keyless{}); !errors.Is(err, ErrNoKeyDescriptor) {
		t.Fatalf("expected keyless registration to fail, got %v", err)
	}
}

func TestModelConcurrentLookups(t *testing.T) {
	model := NewModel()
	var wg sync.WaitGroup
	results := make([]*EntityType, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			et, err := model.EntityType(Customer{})
			if err != nil {
				t.Errorf("lookup: %v", err)
				return
			}
			results[i] = et
		}(i)
	}
	wg.Wait()
	for _, et := range results[1:] {
		if et != results[0] {
			t.Fatalf("expected every goroutine to share one descriptor")
		}
	}
}
