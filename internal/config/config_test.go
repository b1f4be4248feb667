package config

import "testing"

func TestResolveAppliesDefaults(t *testing.T) {
	c := &Config{}
	r, err := c.Resolve()
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if r.Port != 11211 || r.Engine != "lockstriped" {
		t.Fatalf("unexpected defaults: %+v", r)
	}
}

func TestResolveOverridesFromINI(t *testing.T) {
	c, err := parseINI(`
[server]
port = 12000
rx_timeout_secs = 30

[storage]
engine = lockfree
item_memory_limit = 2MB
`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	r, err := c.Resolve()
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if r.Port != 12000 {
		t.Fatalf("expected port 12000, got %d", r.Port)
	}
	if r.Engine != "lockfree" {
		t.Fatalf("expected engine lockfree, got %s", r.Engine)
	}
	if r.ItemMemoryLimit != 2*1024*1024 {
		t.Fatalf("expected 2MB, got %d", r.ItemMemoryLimit)
	}
	if r.RxTimeoutSecs != 30 {
		t.Fatalf("expected rx_timeout_secs 30, got %d", r.RxTimeoutSecs)
	}
}

func TestResolveAcceptsAllRuntimeTypes(t *testing.T) {
	for _, typ := range []string{"current-thread", "multi-thread", "thread-per-connection"} {
		c, _ := parseINI("[runtime]\ntype = " + typ + "\n")
		r, err := c.Resolve()
		if err != nil {
			t.Fatalf("runtime type %q should resolve, got %v", typ, err)
		}
		if r.RuntimeType != typ {
			t.Fatalf("expected runtime type %q, got %q", typ, r.RuntimeType)
		}
	}

	c, _ := parseINI("[runtime]\ntype = fibers\n")
	if _, err := c.Resolve(); err == nil {
		t.Fatal("expected error for unknown runtime type")
	}
}

func TestResolveRejectsInvalidEngine(t *testing.T) {
	c, _ := parseINI("[storage]\nengine = bogus\n")
	if _, err := c.Resolve(); err == nil {
		t.Fatal("expected error for invalid engine")
	}
}
