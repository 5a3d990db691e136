package graphstate

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func statesByPath(t *testing.T, changes *ChangeSet) map[string]State {
	t.Helper()
	out := map[string]State{}
	for _, entry := range changes.Entries() {
		out[entry.Path] = entry.State
	}
	return out
}

func TestAddMarksEveryReachableEntity(t *testing.T) {
	resolver := NewResolver()
	shared := &Product{Id: 4}
	customer := sampleCustomer(3)
	customer.Orders[0].Product = shared
	customer.Orders[1].Product = shared
	customer.Orders[0].Lines = []OrderLine{{OrderID: 1, ProductID: 4, Quantity: 2}}

	changes, err := resolver.Add(customer)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	want := map[string]State{
		"Customer":                    Added,
		"Customer.Country":            Added,
		"Customer.Orders[0]":          Added,
		"Customer.Orders[0].Lines[0]": Added,
		"Customer.Orders[0].Product":  Added,
		"Customer.Orders[1]":          Added,
	}
	if diff := cmp.Diff(want, statesByPath(t, changes)); diff != "" {
		t.Fatalf("states mismatch (-want +got):\n%s", diff)
	}
	if changes.Len() != 6 {
		t.Fatalf("expected 6 distinct entities, got %d", changes.Len())
	}
	if state, ok := changes.State(shared); !ok || state != Added {
		t.Fatalf("expected shared product tracked once as Added, got %s %v", state, ok)
	}
}

func TestUpdateInfersStatePerNode(t *testing.T) {
	resolver := NewResolver()
	customer := &Customer{
		ID:      1,
		Country: &Country{Name: "new"},
		Orders:  []*Order{{ID: 1}, {}},
	}
	changes, err := resolver.Update(customer)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	want := map[string]State{
		"Customer":           Modified,
		"Customer.Country":   Added,
		"Customer.Orders[0]": Modified,
		"Customer.Orders[1]": Added,
	}
	if diff := cmp.Diff(want, statesByPath(t, changes)); diff != "" {
		t.Fatalf("states mismatch (-want +got):\n%s", diff)
	}
}

func TestUpdateRootWithoutKeyIsAdded(t *testing.T) {
	changes, err := NewResolver().Update(&Customer{Country: &Country{ID: 2}})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if state, _ := changes.StateAt("Customer"); state != Added {
		t.Fatalf("expected root Added, got %s", state)
	}
	if state, _ := changes.StateAt("Customer.Country"); state != Modified {
		t.Fatalf("expected keyed country Modified, got %s", state)
	}
}

func TestRemoveDeletesOnlyRoot(t *testing.T) {
	customer := &Customer{
		ID:      1,
		Country: &Country{ID: 1},
		Orders:  []*Order{{}, {}},
	}
	changes, err := NewResolver().Remove(customer)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	want := map[string]State{
		"Customer":           Deleted,
		"Customer.Country":   Unchanged,
		"Customer.Orders[0]": Added,
		"Customer.Orders[1]": Added,
	}
	if diff := cmp.Diff(want, statesByPath(t, changes)); diff != "" {
		t.Fatalf("states mismatch (-want +got):\n%s", diff)
	}
	if changes.Count(Deleted) != 1 {
		t.Fatalf("expected exactly one Deleted entity, got %d", changes.Count(Deleted))
	}
}

func TestRemoveWithoutGeneratedKeyFails(t *testing.T) {
	_, err := NewResolver().Remove(&Customer{Name: "ghost"})
	if !errors.Is(err, ErrInvalidOperation) {
		t.Fatalf("expected ErrInvalidOperation, got %v", err)
	}
	var opErr *InvalidOperationError
	if !errors.As(err, &opErr) {
		t.Fatalf("expected *InvalidOperationError, got %T", err)
	}
	if opErr.Type != "Customer" || opErr.Path != "Customer" || opErr.State != Deleted {
		t.Fatalf("unexpected error details: %+v", opErr)
	}
	if diff := cmp.Diff([]string{"ID"}, opErr.Keys); diff != "" {
		t.Fatalf("keys mismatch (-want +got):\n%s", diff)
	}
}

func TestRemoveWithManualKeySucceeds(t *testing.T) {
	changes, err := NewResolver().Remove(&Product{})
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if state, _ := changes.StateAt("Product"); state != Deleted {
		t.Fatalf("expected Deleted, got %s", state)
	}
}

func TestEntrySetsRootStateWithoutKey(t *testing.T) {
	resolver := NewResolver()
	for _, state := range []State{Added, Modified, Deleted, Unchanged} {
		customer := sampleCustomer(0)
		changes, err := resolver.Entry(customer, state)
		if err != nil {
			t.Fatalf("entry %s: %v", state, err)
		}
		if changes.Len() != 1 {
			t.Fatalf("entry %s: expected only the root tracked, got %d", state, changes.Len())
		}
		if got, ok := changes.State(customer); !ok || got != state {
			t.Fatalf("entry %s: expected root %s, got %s %v", state, state, got, ok)
		}
		if _, ok := changes.State(customer.Orders[0]); ok {
			t.Fatalf("entry %s: expected orders untracked", state)
		}
	}
}

func TestAttachWithStateRequiresKeyForExistingStates(t *testing.T) {
	resolver := NewResolver()
	for _, state := range []State{Modified, Deleted, Unchanged} {
		_, err := resolver.AttachWithState(&Customer{}, state)
		if !errors.Is(err, ErrInvalidOperation) {
			t.Fatalf("%s: expected ErrInvalidOperation, got %v", state, err)
		}
	}
	changes, err := resolver.AttachWithState(&Customer{Orders: []*Order{{ID: 3}}}, Added)
	if err != nil {
		t.Fatalf("attach added: %v", err)
	}
	if state, _ := changes.StateAt("Customer"); state != Added {
		t.Fatalf("expected root Added, got %s", state)
	}
	if state, _ := changes.StateAt("Customer.Orders[0]"); state != Unchanged {
		t.Fatalf("expected keyed order Unchanged, got %s", state)
	}
}

func TestAttachWithStateSetsRootAndInfersChildren(t *testing.T) {
	for _, state := range []State{Added, Modified, Deleted, Unchanged} {
		t.Run(state.String(), func(t *testing.T) {
			customer := &Customer{
				ID:      1,
				Country: &Country{ID: 1},
				Orders:  []*Order{{ID: 1}, {}},
			}
			changes, err := NewResolver().AttachWithState(customer, state)
			if err != nil {
				t.Fatalf("attach: %v", err)
			}
			want := map[string]State{
				"Customer":           state,
				"Customer.Country":   Unchanged,
				"Customer.Orders[0]": Unchanged,
				"Customer.Orders[1]": Added,
			}
			if diff := cmp.Diff(want, statesByPath(t, changes)); diff != "" {
				t.Fatalf("states mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestAttachInfersUnchangedOrAdded(t *testing.T) {
	changes, err := NewResolver().Attach(sampleCustomer(9))
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	want := map[string]State{
		"Customer":           Unchanged,
		"Customer.Country":   Unchanged,
		"Customer.Orders[0]": Unchanged,
		"Customer.Orders[1]": Added,
	}
	if diff := cmp.Diff(want, statesByPath(t, changes)); diff != "" {
		t.Fatalf("states mismatch (-want +got):\n%s", diff)
	}
}

func TestEntryTracksOnlyRoot(t *testing.T) {
	changes, err := NewResolver().Entry(sampleCustomer(2), Modified)
	if err != nil {
		t.Fatalf("entry: %v", err)
	}
	if changes.Len() != 1 {
		t.Fatalf("expected only the root tracked, got %d", changes.Len())
	}
	if state, _ := changes.StateAt("Customer"); state != Modified {
		t.Fatalf("expected Modified, got %s", state)
	}
}

func TestTrackGraphTracksOnlyVisitorChoices(t *testing.T) {
	customer := sampleCustomer(5)
	var visited []string
	visitor := VisitorFunc(func(node Node) (State, error) {
		visited = append(visited, node.Path)
		switch {
		case node.IsRoot():
			return Modified, nil
		case node.Relation.Name == "Country":
			return Unchanged, nil
		default:
			return Detached, nil
		}
	})
	changes, err := NewResolver().TrackGraph(customer, visitor)
	if err != nil {
		t.Fatalf("track graph: %v", err)
	}
	want := map[string]State{
		"Customer":         Modified,
		"Customer.Country": Unchanged,
	}
	if diff := cmp.Diff(want, statesByPath(t, changes)); diff != "" {
		t.Fatalf("states mismatch (-want +got):\n%s", diff)
	}
	wantVisited := []string{"Customer", "Customer.Country", "Customer.Orders[0]", "Customer.Orders[1]"}
	if diff := cmp.Diff(wantVisited, visited); diff != "" {
		t.Fatalf("visit order mismatch (-want +got):\n%s", diff)
	}
}

func TestTrackGraphNodeDetails(t *testing.T) {
	customer := sampleCustomer(5)
	var nodes []Node
	_, err := NewResolver().TrackGraph(customer, VisitorFunc(func(node Node) (State, error) {
		nodes = append(nodes, node)
		return Detached, nil
	}))
	if err != nil {
		t.Fatalf("track graph: %v", err)
	}
	if len(nodes) != 4 {
		t.Fatalf("expected 4 nodes, got %d", len(nodes))
	}
	root, country, second := nodes[0], nodes[1], nodes[3]
	if !root.IsRoot() || root.Depth != 0 || root.Parent != nil || !root.IsKeySet || !root.IsGenerated {
		t.Fatalf("unexpected root node: %+v", root)
	}
	if country.Parent != customer || country.Depth != 1 || country.InCollection() || country.TypeName() != "Country" {
		t.Fatalf("unexpected country node: %+v", country)
	}
	if !second.InCollection() || second.IsKeySet || second.HasUsableKey() || second.Entity != customer.Orders[1] {
		t.Fatalf("unexpected order node: %+v", second)
	}
}

func TestTrackGraphVisitorErrorAborts(t *testing.T) {
	boom := errors.New("boom")
	_, err := NewResolver().TrackGraph(sampleCustomer(1), VisitorFunc(func(node Node) (State, error) {
		if node.Depth == 1 {
			return Detached, boom
		}
		return Added, nil
	}))
	if !errors.Is(err, boom) {
		t.Fatalf("expected visitor error, got %v", err)
	}
}

func TestTrackGraphRejectsUnknownStates(t *testing.T) {
	_, err := NewResolver().TrackGraph(sampleCustomer(1), VisitorFunc(func(Node) (State, error) {
		return State(42), nil
	}))
	if !errors.Is(err, ErrInvalidIntent) {
		t.Fatalf("expected ErrInvalidIntent, got %v", err)
	}
}

func TestCyclesAreTrackedOnce(t *testing.T) {
	boss := &Employee{ID: 1}
	report := &Employee{ID: 2, Manager: boss}
	boss.Reports = []*Employee{report, report}
	boss.Manager = boss

	changes, err := NewResolver().Update(boss)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if changes.Len() != 2 {
		t.Fatalf("expected 2 distinct employees, got %d", changes.Len())
	}
	want := map[string]State{
		"Employee":            Modified,
		"Employee.Reports[0]": Modified,
	}
	if diff := cmp.Diff(want, statesByPath(t, changes)); diff != "" {
		t.Fatalf("states mismatch (-want +got):\n%s", diff)
	}
}

func TestDeepChainDoesNotRecurse(t *testing.T) {
	root := &Employee{ID: 1}
	current := root
	for i := 2; i <= 10000; i++ {
		next := &Employee{ID: i}
		current.Reports = []*Employee{next}
		current = next
	}
	changes, err := NewResolver().Attach(root)
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	if changes.Len() != 10000 {
		t.Fatalf("expected 10000 entities, got %d", changes.Len())
	}
}

func TestStructurallyEqualInstancesAreDistinct(t *testing.T) {
	customer := &Customer{ID: 1, Orders: []*Order{{ID: 7}, {ID: 7}}}
	changes, err := NewResolver().Update(customer)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if changes.Len() != 3 {
		t.Fatalf("expected equal orders tracked separately, got %d", changes.Len())
	}
}

func TestResolveIsDeterministicAcrossInstances(t *testing.T) {
	resolver := NewResolver()
	for _, intent := range []Intent{Add(), Update(), Remove(), Attach(), AttachWithState(Modified)} {
		first, err := resolver.Resolve(sampleCustomer(1), intent)
		if err != nil {
			t.Fatalf("%s first: %v", intent.Operation, err)
		}
		second, err := resolver.Resolve(sampleCustomer(1), intent)
		if err != nil {
			t.Fatalf("%s second: %v", intent.Operation, err)
		}
		if diff := cmp.Diff(first.Report(), second.Report()); diff != "" {
			t.Fatalf("%s results differ (-first +second):\n%s", intent.Operation, diff)
		}
	}
}

func TestValueSliceElementsAreTrackedByAddress(t *testing.T) {
	order := &Order{ID: 1, Lines: []OrderLine{{OrderID: 1, ProductID: 2}, {}}}
	changes, err := NewResolver().Update(order)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if state, ok := changes.State(&order.Lines[0]); !ok || state != Modified {
		t.Fatalf("expected first line Modified, got %s %v", state, ok)
	}
	// composite keys are caller-assigned, so a zero key is still usable
	if state, _ := changes.StateAt("Order.Lines[1]"); state != Modified {
		t.Fatalf("expected zero composite key Modified, got %s", state)
	}
}

func TestIgnoredAndScalarFieldsAreNotTraversed(t *testing.T) {
	customer := &Customer{ID: 1, Ignored: &Country{ID: 5}, Labels: map[string]string{"a": "b"}}
	changes, err := NewResolver().Add(customer)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if changes.Len() != 1 {
		t.Fatalf("expected only the root, got %d", changes.Len())
	}
}

func TestResolveRejectsInvalidInput(t *testing.T) {
	resolver := NewResolver()
	cases := []struct {
		name   string
		root   any
		intent Intent
		want   error
	}{
		{"nil root", nil, Add(), ErrInvalidRoot},
		{"non pointer", Customer{}, Add(), ErrInvalidRoot},
		{"nil pointer", (*Customer)(nil), Add(), ErrInvalidRoot},
		{"keyless", &Keyless{}, Add(), ErrNoKeyDescriptor},
		{"unknown operation", &Customer{}, Intent{}, ErrInvalidIntent},
		{"detached explicit state", &Customer{ID: 1}, AttachWithState(Detached), ErrInvalidIntent},
		{"missing visitor", &Customer{}, TrackGraph(nil), ErrInvalidIntent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := resolver.Resolve(tc.root, tc.intent)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestUUIDKeysAreGenerated(t *testing.T) {
	_, err := NewResolver().Remove(&Device{})
	if !errors.Is(err, ErrInvalidOperation) {
		t.Fatalf("expected uuid key to count as generated, got %v", err)
	}
}

func TestResolverLogsEveryResolution(t *testing.T) {
	var events []ResolutionLogEvent
	resolver := NewResolver(WithLogger(ResolutionLoggerFunc(func(event ResolutionLogEvent) {
		events = append(events, event)
	})))
	if _, err := resolver.Update(sampleCustomer(1)); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := resolver.Remove(&Customer{}); err == nil {
		t.Fatalf("expected remove failure")
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	ok := events[0]
	if ok.Operation != OperationUpdate || ok.RootType != "Customer" || ok.Visited != 4 || ok.Tracked != 4 || ok.Err != nil {
		t.Fatalf("unexpected success event: %+v", ok)
	}
	if ok.States[Modified] != 3 || ok.States[Added] != 1 {
		t.Fatalf("unexpected state counts: %v", ok.States)
	}
	if failed := events[1]; !errors.Is(failed.Err, ErrInvalidOperation) || failed.Tracked != 0 {
		t.Fatalf("unexpected failure event: %+v", failed)
	}
}

func ExampleResolver_Update() {
	customer := &Customer{
		ID:      1,
		Country: &Country{ID: 1},
		Orders:  []*Order{{ID: 1}, {}},
	}
	changes, err := NewResolver().Update(customer)
	if err != nil {
		panic(err)
	}
	for _, entry := range changes.Entries() {
		fmt.Println(entry.Path, entry.State)
	}
	// Output:
	// Customer Modified
	// Customer.Country Modified
	// Customer.Orders[0] Modified
	// Customer.Orders[1] Added
}
