package plugin

import (
	"context"
	"testing"

	"switchboard/transport"
)

type stubPlugin struct {
	name string
}

func (p *stubPlugin) Name() string                                         { return p.name }
func (p *stubPlugin) CheckRequirements(ctx context.Context) error          { return nil }
func (p *stubPlugin) Extensions() []Extension                              { return nil }
func (p *stubPlugin) Start(ctx context.Context, c *transport.Client) error { return nil }
func (p *stubPlugin) Stop(ctx context.Context) error                       { return nil }

func TestRegisterAndLookup(t *testing.T) {
	defer GetRegistry().Clear()
	GetRegistry().Clear()

	Register(&stubPlugin{name: "beta"})
	Register(&stubPlugin{name: "alpha"})

	if n := GetRegistry().Count(); n != 2 {
		t.Fatalf("count = %d, want 2", n)
	}

	p, ok := GetRegistry().Get("alpha")
	if !ok || p.Name() != "alpha" {
		t.Errorf("get alpha = %v (ok=%v)", p, ok)
	}
	if _, ok := GetRegistry().Get("missing"); ok {
		t.Error("missing plugin found")
	}

	names := GetRegistry().Names()
	if len(names) != 2 || names[0] != "alpha" || names[1] != "beta" {
		t.Errorf("names = %v, want sorted [alpha beta]", names)
	}
	all := GetRegistry().All()
	if len(all) != 2 || all[0].Name() != "alpha" {
		t.Errorf("all not sorted by name")
	}
}

func TestRegisterDuplicatePanics(t *testing.T) {
	defer GetRegistry().Clear()
	GetRegistry().Clear()

	defer func() {
		if recover() == nil {
			t.Error("duplicate registration did not panic")
		}
	}()

	Register(&stubPlugin{name: "dup"})
	Register(&stubPlugin{name: "dup"})
}

func TestRequirementChecker(t *testing.T) {
	t.Run("required failure blocks", func(t *testing.T) {
		checker := NewRequirementChecker("test")
		checker.AddRequired("mode", "needs daemon mode", RequireMode(ModeDaemon))

		ctx := context.WithValue(context.Background(), "mode", ModeInteractive)
		if err := checker.Check(ctx); err == nil {
			t.Error("failed required check passed")
		}

		ctx = context.WithValue(context.Background(), "mode", ModeDaemon)
		if err := checker.Check(ctx); err != nil {
			t.Errorf("check failed in the right mode: %v", err)
		}
	})

	t.Run("optional failure passes", func(t *testing.T) {
		checker := NewRequirementChecker("test")
		checker.AddOptional("env", "optional env var", RequireEnvVar("SWITCHBOARD_TEST_UNSET_VAR"))

		if err := checker.Check(context.Background()); err != nil {
			t.Errorf("optional failure blocked: %v", err)
		}
	})

	t.Run("require any", func(t *testing.T) {
		pass := func(ctx context.Context) error { return nil }
		fail := RequireEnvVar("SWITCHBOARD_TEST_UNSET_VAR")

		if err := RequireAny(fail, pass)(context.Background()); err != nil {
			t.Errorf("require any failed with one passing check: %v", err)
		}
		if err := RequireAny(fail, fail)(context.Background()); err == nil {
			t.Error("require any passed with all checks failing")
		}
	})
}

func TestCommandExtensionModes(t *testing.T) {
	ext := NewCommandExtension(&Command{
		Name:  "test",
		Modes: []Mode{ModeInteractive},
	})

	if ext.Type() != ExtensionTypeCommand {
		t.Errorf("type = %s", ext.Type())
	}
	if ext.SupportsMode(ModeDaemon) {
		t.Error("interactive-only command claims daemon support")
	}
	if !ext.SupportsMode(ModeInteractive) {
		t.Error("command rejects its own mode")
	}

	anyMode := NewCommandExtension(&Command{Name: "open"})
	if !anyMode.SupportsMode(ModeDaemon) || !anyMode.SupportsMode(ModeInteractive) {
		t.Error("mode-less command should support all modes")
	}
}

func TestServiceExtension(t *testing.T) {
	ext := NewServiceExtension("forms", func() []string {
		return []string{"forms:find", "forms:validate"}
	})

	if ext.Type() != ExtensionTypeService {
		t.Errorf("type = %s", ext.Type())
	}
	if ext.Name() != "forms" {
		t.Errorf("name = %s", ext.Name())
	}
	actions := ext.Actions()
	if len(actions) != 2 {
		t.Errorf("actions = %v", actions)
	}

	empty := NewServiceExtension("bare", nil)
	if empty.Actions() != nil {
		t.Error("nil actions func should yield nil")
	}
}
