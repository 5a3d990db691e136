package modelconfig_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	graphstate "github.com/goliatone/go-graphstate"
	"github.com/goliatone/go-graphstate/pkg/modelconfig"
	"github.com/google/go-cmp/cmp"
)

func boolPtr(v bool) *bool { return &v }

func TestParseHCL(t *testing.T) {
	src := []byte(`
entity "Product" {
  keys      = ["Id"]
  generated = false
  ignore    = ["Audit"]
}

entity "Customer" {}
`)
	got, err := modelconfig.ParseHCL(src, "inline.hcl")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := []graphstate.EntityConfig{
		{Name: "Product", Keys: []string{"Id"}, Generated: boolPtr(false), Ignore: []string{"Audit"}},
		{Name: "Customer"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("configs mismatch (-want +got):\n%s", diff)
	}
}

func TestParseHCLRejectsUnknownAttribute(t *testing.T) {
	_, err := modelconfig.ParseHCL([]byte(`entity "Product" { primary = "Id" }`), "bad.hcl")
	if err == nil {
		t.Fatalf("expected decode error for unknown attribute")
	}
}

func TestParseYAML(t *testing.T) {
	src := []byte(`
entities:
  - name: OrderLine
    keys: [OrderID, ProductID]
  - name: " Country "
    generated: true
`)
	got, err := modelconfig.ParseYAML(src, "inline.yaml")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := []graphstate.EntityConfig{
		{Name: "OrderLine", Keys: []string{"OrderID", "ProductID"}},
		{Name: "Country", Generated: boolPtr(true)},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("configs mismatch (-want +got):\n%s", diff)
	}
}

func TestParseRejectsEmptyNames(t *testing.T) {
	_, err := modelconfig.ParseYAML([]byte("entities:\n  - keys: [ID]\n"), "empty.yaml")
	if !errors.Is(err, modelconfig.ErrInvalidEntity) {
		t.Fatalf("expected ErrInvalidEntity, got %v", err)
	}
	_, err = modelconfig.ParseHCL([]byte(`entity "Product" { keys = [""] }`), "empty.hcl")
	if !errors.Is(err, modelconfig.ErrInvalidEntity) {
		t.Fatalf("expected ErrInvalidEntity for empty key, got %v", err)
	}
}

func TestLoaderWalksDirectories(t *testing.T) {
	loader := modelconfig.NewLoader(modelconfig.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	got, err := loader.Load(context.Background(), filepath.Join("testdata", "models"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := []graphstate.EntityConfig{
		{Name: "Product", Keys: []string{"Id"}, Generated: boolPtr(false)},
		{Name: "Order", Ignore: []string{"Notes"}},
		{Name: "Order", Generated: boolPtr(false)},
		{Name: "Region", Keys: []string{"Code", "Zone"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("configs mismatch (-want +got):\n%s", diff)
	}
}

type Product struct {
	Id    int
	Name  string
	Audit string
}

type Order struct {
	ID       int
	Notes    string
	Products []*Product
}

func TestLoadModelAppliesOverrides(t *testing.T) {
	loader := modelconfig.NewLoader(modelconfig.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	model, err := loader.LoadModel(context.Background(), []string{filepath.Join("testdata", "models")})
	if err != nil {
		t.Fatalf("load model: %v", err)
	}
	order, err := model.EntityType(Order{})
	if err != nil {
		t.Fatalf("order type: %v", err)
	}
	if order.Generated {
		t.Fatalf("expected yaml override to make Order keys manual")
	}
	for _, field := range order.Fields {
		if field.Name == "Notes" {
			t.Fatalf("expected Notes to be ignored")
		}
	}

	resolver := graphstate.NewResolver(graphstate.WithModel(model))
	changes, err := resolver.Update(&Order{Products: []*Product{{Name: "widget"}}})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if state, _ := changes.StateAt("Order"); state != graphstate.Modified {
		t.Fatalf("expected manual-key order Modified, got %s", state)
	}
	if state, _ := changes.StateAt("Order.Products[0]"); state != graphstate.Modified {
		t.Fatalf("expected manual-key product Modified, got %s", state)
	}
}

func TestLoadMissingPath(t *testing.T) {
	loader := modelconfig.NewLoader()
	if _, err := loader.Load(context.Background(), filepath.Join("testdata", "missing")); err == nil {
		t.Fatalf("expected error for missing path")
	}
}

func TestPathsFromEnv(t *testing.T) {
	t.Setenv(modelconfig.PathsEnv, "a"+string(filepath.ListSeparator)+" b ")
	got := modelconfig.PathsFromEnv(filepath.Join("testdata", "absent.env"))
	if diff := cmp.Diff([]string{"a", "b"}, got); diff != "" {
		t.Fatalf("paths mismatch (-want +got):\n%s", diff)
	}
}

func TestOptionsEmpty(t *testing.T) {
	if opts := modelconfig.Options(nil); opts != nil {
		t.Fatalf("expected nil options, got %d", len(opts))
	}
}
