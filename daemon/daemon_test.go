package daemon

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"switchboard/internal/config"
	"switchboard/plugin"
	"switchboard/transport"
)

type fakePlugin struct {
	name       string
	reqErr     error
	startErr   error
	started    bool
	stopped    bool
	seenMode   plugin.Mode
	seenClient *transport.Client
}

func (p *fakePlugin) Name() string { return p.name }

func (p *fakePlugin) CheckRequirements(ctx context.Context) error { return p.reqErr }

func (p *fakePlugin) Extensions() []plugin.Extension { return nil }

func (p *fakePlugin) Start(ctx context.Context, client *transport.Client) error {
	if p.startErr != nil {
		return p.startErr
	}
	p.started = true
	p.seenClient = client
	p.seenMode, _ = ctx.Value("mode").(plugin.Mode)
	return nil
}

func (p *fakePlugin) Stop(ctx context.Context) error {
	p.stopped = true
	return nil
}

func TestDaemonLifecycle(t *testing.T) {
	cfg := config.DefaultConfig()
	d := New(cfg)

	fp := &fakePlugin{name: "fake"}
	if err := d.AddPlugin(fp); err != nil {
		t.Fatalf("add plugin failed: %v", err)
	}

	if err := d.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if d.GetState() != StateRunning {
		t.Errorf("state = %s, want running", d.GetState())
	}

	if !fp.started {
		t.Fatal("plugin never started")
	}
	if fp.seenMode != plugin.ModeDaemon {
		t.Errorf("plugin saw mode %q, want daemon", fp.seenMode)
	}
	if fp.seenClient == nil || !fp.seenClient.Connected() {
		t.Error("plugin did not receive a connected transport client")
	}
	if client, ok := d.GetClient("fake"); !ok || client != fp.seenClient {
		t.Error("daemon does not track the plugin's client")
	}

	if err := d.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if !fp.stopped {
		t.Error("plugin never stopped")
	}
	if d.GetState() != StateStopped {
		t.Errorf("state = %s, want stopped", d.GetState())
	}
}

func TestDaemonSkipsFailingPlugins(t *testing.T) {
	cfg := config.DefaultConfig()
	d := New(cfg)

	bad := &fakePlugin{name: "bad", reqErr: fmt.Errorf("missing env")}
	broken := &fakePlugin{name: "broken", startErr: fmt.Errorf("boom")}
	good := &fakePlugin{name: "good"}

	for _, p := range []plugin.Plugin{bad, broken, good} {
		if err := d.AddPlugin(p); err != nil {
			t.Fatalf("add plugin failed: %v", err)
		}
	}

	if err := d.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer d.Stop()

	if len(d.GetPlugins()) != 1 {
		t.Errorf("%d active plugin(s), want only the good one", len(d.GetPlugins()))
	}
	if !good.started {
		t.Error("good plugin never started")
	}
	if bad.started || broken.started {
		t.Error("failing plugin reported as started")
	}
}

func TestDaemonDisabledPlugin(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Plugins["fake"] = config.PluginConfig{Enabled: false}
	d := New(cfg)

	fp := &fakePlugin{name: "fake"}
	if err := d.AddPlugin(fp); err != nil {
		t.Fatalf("add plugin failed: %v", err)
	}

	if err := d.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer d.Stop()

	if fp.started {
		t.Error("disabled plugin started")
	}
	if len(d.GetPlugins()) != 0 {
		t.Errorf("%d active plugin(s), want 0", len(d.GetPlugins()))
	}
}

func TestDaemonDuplicatePlugin(t *testing.T) {
	d := New(config.DefaultConfig())

	if err := d.AddPlugin(&fakePlugin{name: "fake"}); err != nil {
		t.Fatalf("add plugin failed: %v", err)
	}
	if err := d.AddPlugin(&fakePlugin{name: "fake"}); err == nil {
		t.Error("duplicate plugin accepted")
	}
}

func TestDaemonFabricAcrossPlugins(t *testing.T) {
	cfg := config.DefaultConfig()
	d := New(cfg)

	a := &fakePlugin{name: "alpha"}
	b := &fakePlugin{name: "beta"}
	for _, p := range []plugin.Plugin{a, b} {
		if err := d.AddPlugin(p); err != nil {
			t.Fatalf("add plugin failed: %v", err)
		}
	}
	if err := d.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer d.Stop()

	// Two plugins hold separate clients on the shared broker and can
	// reach each other by queue name.
	err := a.seenClient.ConsumeRPCQueue("alpha:ping", func(ctx context.Context, env transport.Envelope) (transport.Reply, error) {
		return transport.SuccessReply("pong")
	})
	if err != nil {
		t.Fatalf("consume failed: %v", err)
	}

	raw, err := b.seenClient.SendMessage(context.Background(), transport.SendArgs{
		ServiceName: "alpha",
		Subdomain:   "acme",
		Action:      "ping",
		IsRPC:       true,
		Timeout:     time.Second,
	})
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}

	var out string
	if err := transport.Decode(raw, &out); err != nil || out != "pong" {
		t.Errorf("reply = %s (err %v), want pong", raw, err)
	}
}

func TestDaemonStatus(t *testing.T) {
	d := New(config.DefaultConfig())
	fp := &fakePlugin{name: "fake"}
	if err := d.AddPlugin(fp); err != nil {
		t.Fatalf("add plugin failed: %v", err)
	}
	if err := d.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer d.Stop()

	status := d.GetStatus(context.Background())
	if !strings.Contains(status, "running") {
		t.Errorf("status missing state: %s", status)
	}
	if !strings.Contains(status, "Active Plugins: 1") {
		t.Errorf("status missing plugin count: %s", status)
	}
}
