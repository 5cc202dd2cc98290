package command

import (
	"context"
	"testing"

	"playwright-mcp/internal/entity"
)

func TestRegistryCatalog(t *testing.T) {
	r := NewRegistry()
	catalog := r.Catalog()

	if len(catalog) < 9 {
		t.Fatalf("expected at least 9 tools, got %d", len(catalog))
	}

	for _, name := range []string{entity.ToolNavigate, entity.ToolClick, entity.ToolTakeScreenshot} {
		if _, ok := r.Lookup(name); !ok {
			t.Errorf("expected tool %s in registry", name)
		}
	}

	seen := make(map[string]bool, len(catalog))
	for _, desc := range catalog {
		if seen[desc.Name] {
			t.Errorf("duplicate tool name %s", desc.Name)
		}
		seen[desc.Name] = true

		for _, req := range desc.Required {
			if _, ok := desc.Properties[req]; !ok {
				t.Errorf("tool %s: required arg %s not declared as property", desc.Name, req)
			}
			if _, ok := desc.Defaults[req]; ok {
				t.Errorf("tool %s: arg %s is both required and defaulted", desc.Name, req)
			}
		}

		for name := range desc.Defaults {
			if _, ok := desc.Properties[name]; !ok {
				t.Errorf("tool %s: default for undeclared property %s", desc.Name, name)
			}
		}
	}
}

func TestRegistryInputSchema(t *testing.T) {
	r := NewRegistry()

	desc, ok := r.Lookup(entity.ToolNavigate)
	if !ok {
		t.Fatal("navigate not registered")
	}

	schema := desc.InputSchema()

	if schema["type"] != "object" {
		t.Errorf("expected type=object, got %v", schema["type"])
	}

	props, ok := schema["properties"].(map[string]any)
	if !ok {
		t.Fatal("expected properties map")
	}
	if _, ok := props["url"]; !ok {
		t.Error("expected 'url' in properties")
	}

	required, ok := schema["required"].([]string)
	if !ok || len(required) != 1 || required[0] != "url" {
		t.Errorf("expected required=[url], got %v", schema["required"])
	}
}

// The advertised schema and the dispatcher's validation must agree: a call
// carrying exactly the declared required args passes, and dropping any one
// of them fails.
func TestCatalogMatchesValidation(t *testing.T) {
	driver := &fakeDriver{writeScreenshot: true, content: "<html></html>"}
	d := newTestDispatcher(t, driver)

	values := map[string]any{
		entity.ArgURL:      "https://example.com",
		entity.ArgSelector: "#el",
		entity.ArgText:     "hello",
		entity.ArgValue:    "v1",
	}

	for _, desc := range d.Catalog() {
		args := make(map[string]any, len(desc.Required))
		for _, req := range desc.Required {
			v, ok := values[req]
			if !ok {
				t.Fatalf("tool %s: no test value for required arg %s", desc.Name, req)
			}
			args[req] = v
		}

		result := d.Dispatch(context.Background(), entity.CommandRequest{
			Name:      desc.Name,
			Arguments: args,
		})
		if !result.Succeeded {
			t.Errorf("tool %s: required args alone should dispatch, got %q", desc.Name, result.Message)
		}

		for _, dropped := range desc.Required {
			partial := make(map[string]any, len(args)-1)
			for k, v := range args {
				if k != dropped {
					partial[k] = v
				}
			}

			result := d.Dispatch(context.Background(), entity.CommandRequest{
				Name:      desc.Name,
				Arguments: partial,
			})
			if result.Succeeded {
				t.Errorf("tool %s: dispatch without %s should fail validation", desc.Name, dropped)
			}
		}
	}
}
