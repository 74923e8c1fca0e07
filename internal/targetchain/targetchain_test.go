package targetchain

import (
	"context"
	"testing"

	"github.com/chain-assassin/coordinator/internal/store"
)

func TestInitializeFormsSingleCycle(t *testing.T) {
	st := store.NewMemoryStore()
	m := New(st)
	addrs := []string{"a", "b", "c", "d", "e"}
	if err := m.Initialize(context.Background(), 1, addrs); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if got := m.ChainSize(1); got != len(addrs) {
		t.Fatalf("ChainSize = %d, want %d", got, len(addrs))
	}

	seen := map[string]bool{}
	cur := addrs[0]
	for i := 0; i < len(addrs); i++ {
		if seen[cur] {
			t.Fatalf("cycle revisited %s before covering all addresses", cur)
		}
		seen[cur] = true
		next, ok := m.TargetOf(1, cur)
		if !ok {
			t.Fatalf("missing target for %s", cur)
		}
		cur = next
	}
	if cur != addrs[0] {
		t.Fatalf("cycle did not close: ended at %s, want %s", cur, addrs[0])
	}
}

func TestProcessKillRewires(t *testing.T) {
	st := store.NewMemoryStore()
	m := New(st)
	ctx := context.Background()
	if err := m.Initialize(ctx, 1, []string{"a", "b", "c"}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	hunter := "a"
	target, _ := m.TargetOf(1, hunter)
	beyond, _ := m.TargetOf(1, target)

	reassign, err := m.ProcessKill(ctx, 1, hunter, target)
	if err != nil {
		t.Fatalf("ProcessKill: %v", err)
	}
	if reassign == nil || reassign.Hunter != hunter || reassign.NewTarget != beyond {
		t.Fatalf("ProcessKill result = %+v, want hunter=%s newTarget=%s", reassign, hunter, beyond)
	}
	if m.ChainSize(1) != 2 {
		t.Fatalf("ChainSize after kill = %d, want 2", m.ChainSize(1))
	}
}

func TestProcessKillCollapsesLastTwo(t *testing.T) {
	st := store.NewMemoryStore()
	m := New(st)
	ctx := context.Background()
	if err := m.Initialize(ctx, 1, []string{"a", "b"}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	target, _ := m.TargetOf(1, "a")
	reassign, err := m.ProcessKill(ctx, 1, "a", target)
	if err != nil {
		t.Fatalf("ProcessKill: %v", err)
	}
	if reassign != nil {
		t.Fatalf("ProcessKill result = %+v, want nil (chain collapsed)", reassign)
	}
	if m.ChainSize(1) != 0 {
		t.Fatalf("ChainSize after collapse = %d, want 0", m.ChainSize(1))
	}
}

func TestProcessKillTargetMismatch(t *testing.T) {
	st := store.NewMemoryStore()
	m := New(st)
	ctx := context.Background()
	if err := m.Initialize(ctx, 1, []string{"a", "b", "c"}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	target, _ := m.TargetOf(1, "a")
	var wrong string
	for _, addr := range []string{"a", "b", "c"} {
		if addr != target && addr != "a" {
			wrong = addr
		}
	}
	if _, err := m.ProcessKill(ctx, 1, "a", wrong); err != ErrTargetMismatch {
		t.Fatalf("ProcessKill err = %v, want ErrTargetMismatch", err)
	}
}

func TestRemoveFromChainRewires(t *testing.T) {
	st := store.NewMemoryStore()
	m := New(st)
	ctx := context.Background()
	if err := m.Initialize(ctx, 1, []string{"a", "b", "c", "d"}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	victim := "b"
	hunter, _ := m.HunterOf(1, victim)
	exTarget, _ := m.TargetOf(1, victim)

	reassign, err := m.RemoveFromChain(ctx, 1, victim)
	if err != nil {
		t.Fatalf("RemoveFromChain: %v", err)
	}
	if reassign == nil || reassign.Hunter != hunter || reassign.NewTarget != exTarget {
		t.Fatalf("RemoveFromChain result = %+v, want hunter=%s newTarget=%s", reassign, hunter, exTarget)
	}
	if m.ChainSize(1) != 3 {
		t.Fatalf("ChainSize after removal = %d, want 3", m.ChainSize(1))
	}
}
