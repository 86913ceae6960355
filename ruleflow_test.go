package ruleflow_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aretw0/ruleflow"
	"github.com/aretw0/ruleflow/pkg/definition"
	"github.com/aretw0/ruleflow/pkg/domain"
	"github.com/aretw0/ruleflow/pkg/registry"
)

const approveOrder = `
name: approve-order
steps:
  - {id: 1, type: start, connect: [{stepId: 2}]}
  - id: 2
    type: single
    handler: route
    ports: {out: [review]}
    props:
      routes: [{when: "ctx.price * ctx.quantity > 100", port: review}]
    connect:
      - {stepId: 3, srcOutPort: review}
      - {stepId: 4}
  - {id: 3, type: single, handler: notify, connect: [{stepId: 4}]}
  - {id: 4, type: end}
`

func notify(data domain.Context, done *domain.Done) {
	data["notified"] = true
	done.Default()
}

func TestFacade_Parse(t *testing.T) {
	p, err := ruleflow.Parse([]byte(approveOrder), definition.FormatYAML,
		ruleflow.WithHandler("notify", domain.OnContext(notify)))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if p.Name() != "approve-order" {
		t.Errorf("Expected pipeline name 'approve-order', got %q", p.Name())
	}

	tests := []struct {
		name     string
		input    domain.Context
		notified bool
	}{
		{"Big Order", domain.Context{"price": 30, "quantity": 5}, true},
		{"Small Order", domain.Context{"price": 30, "quantity": 1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := p.Execute(context.Background(), tt.input)
			if err != nil {
				t.Fatalf("Execute failed: %v", err)
			}
			if got := result["notified"] == true; got != tt.notified {
				t.Errorf("Expected notified=%v, got %v", tt.notified, result["notified"])
			}
		})
	}
}

func TestFacade_UnknownHandler(t *testing.T) {
	_, err := ruleflow.Parse([]byte(approveOrder), definition.FormatYAML)
	if !errors.Is(err, registry.ErrHandlerNotFound) {
		t.Fatalf("Expected ErrHandlerNotFound, got %v", err)
	}
}

func TestFacade_WithRegistry(t *testing.T) {
	reg := registry.NewWithBuiltins()
	_, err := ruleflow.Parse([]byte(approveOrder), definition.FormatYAML,
		ruleflow.WithRegistry(reg),
		ruleflow.WithHandler("notify", domain.OnContext(notify)))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if _, err := reg.Lookup("notify"); err != nil {
		t.Errorf("Expected notify to be registered on the given registry: %v", err)
	}
}

func TestFacade_LoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pass.json")
	doc := `{"steps": [{"id": 1, "type": "start", "connect": [{"stepId": 2}]}, {"id": 2, "type": "end"}]}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	p, err := ruleflow.LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if p.Name() != "pass" {
		t.Errorf("Expected the file stem as name, got %q", p.Name())
	}
	if _, err := p.Execute(context.Background(), nil); err != nil {
		t.Errorf("Execute failed: %v", err)
	}
}

func TestFacade_Load(t *testing.T) {
	var logs bytes.Buffer
	p, err := ruleflow.Load(strings.NewReader(approveOrder), definition.FormatYAML,
		ruleflow.WithLogger(newTextLogger(&logs)),
		ruleflow.WithHandler("notify", domain.OnContext(notify)))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if _, err := p.Execute(context.Background(), domain.Context{"price": 1, "quantity": 1}); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !strings.Contains(logs.String(), "pipeline=approve-order") {
		t.Errorf("Expected pipeline logs, got:\n%s", logs.String())
	}
}

func TestVersion(t *testing.T) {
	if strings.TrimSpace(ruleflow.Version) == "" {
		t.Error("Expected an embedded version")
	}
}

func newTextLogger(w *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
}
