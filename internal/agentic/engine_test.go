package agentic

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"archie/internal/config"
	archerrors "archie/internal/errors"
)

type fakeEngine struct {
	run func(ctx context.Context, query, rules string) (Reply, error)
}

func (f *fakeEngine) Run(ctx context.Context, query, rules string) (Reply, error) {
	return f.run(ctx, query, rules)
}

func TestDelegatorNotConfigured(t *testing.T) {
	var d *Delegator
	if d.Available() {
		t.Fatal("nil delegator must not be available")
	}

	d = NewDelegator(config.AgenticConfig{}, nil)
	if d.Available() {
		t.Fatal("delegator without factory must not be available")
	}
	if _, err := d.Delegate(context.Background(), "q"); err == nil {
		t.Fatal("expected error")
	}
}

func TestDelegateFreshInstancePerRequest(t *testing.T) {
	var instances atomic.Int32
	factory := func() (Engine, error) {
		instances.Add(1)
		return &fakeEngine{run: func(_ context.Context, query, _ string) (Reply, error) {
			return Reply{Text: "answer to " + query}, nil
		}}, nil
	}

	d := NewDelegator(config.AgenticConfig{MaxConcurrent: 2, Timeout: time.Second}, factory)
	for i := 0; i < 3; i++ {
		reply, err := d.Delegate(context.Background(), "q")
		if err != nil {
			t.Fatalf("delegate %d: %v", i, err)
		}
		if reply.Text != "answer to q" {
			t.Fatalf("wrong reply: %q", reply.Text)
		}
	}
	if instances.Load() != 3 {
		t.Fatalf("expected one engine instance per request, got %d", instances.Load())
	}
}

func TestDelegateInjectsBehaviorRules(t *testing.T) {
	dir := t.TempDir()
	rulesPath := filepath.Join(dir, "rules.md")
	if err := os.WriteFile(rulesPath, []byte("never enumerate on compare"), 0o644); err != nil {
		t.Fatal(err)
	}

	var seen string
	factory := func() (Engine, error) {
		return &fakeEngine{run: func(_ context.Context, _, rules string) (Reply, error) {
			seen = rules
			return Reply{Text: "ok"}, nil
		}}, nil
	}

	d := NewDelegator(config.AgenticConfig{RulesPath: rulesPath}, factory)
	if _, err := d.Delegate(context.Background(), "q"); err != nil {
		t.Fatal(err)
	}
	if seen != "never enumerate on compare" {
		t.Fatalf("rules not injected: %q", seen)
	}
}

func TestDelegateConcurrencyLimit(t *testing.T) {
	var inFlight, peak atomic.Int32
	block := make(chan struct{})
	factory := func() (Engine, error) {
		return &fakeEngine{run: func(ctx context.Context, _, _ string) (Reply, error) {
			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			defer inFlight.Add(-1)
			select {
			case <-block:
			case <-ctx.Done():
			}
			return Reply{Text: "ok"}, nil
		}}, nil
	}

	d := NewDelegator(config.AgenticConfig{MaxConcurrent: 2, Timeout: time.Second}, factory)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = d.Delegate(context.Background(), "q")
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(block)
	wg.Wait()

	if peak.Load() > 2 {
		t.Fatalf("concurrency limit exceeded: peak %d", peak.Load())
	}
}

func TestDelegateTimeout(t *testing.T) {
	factory := func() (Engine, error) {
		return &fakeEngine{run: func(ctx context.Context, _, _ string) (Reply, error) {
			<-ctx.Done()
			return Reply{}, ctx.Err()
		}}, nil
	}

	d := NewDelegator(config.AgenticConfig{Timeout: 10 * time.Millisecond}, factory)
	_, err := d.Delegate(context.Background(), "q")
	if !archerrors.IsBackendTimeout(err) {
		t.Fatalf("expected backend timeout, got %v", err)
	}
}

func TestDelegateFactoryFailure(t *testing.T) {
	factory := func() (Engine, error) { return nil, fmt.Errorf("spawn failed") }
	d := NewDelegator(config.AgenticConfig{}, factory)

	_, err := d.Delegate(context.Background(), "q")
	if !archerrors.IsBackend(err) {
		t.Fatalf("expected backend error, got %v", err)
	}
}
