package actor

import (
	"testing"
	"time"

	"github.com/kabudu/groklang/internal/ir"
	"github.com/kabudu/groklang/internal/specializer"
	"github.com/kabudu/groklang/internal/value"
	"github.com/kabudu/groklang/internal/vm"
	"github.com/kabudu/groklang/internal/vmerr"
)

func buildTable(t *testing.T, fns []*ir.Function) *vm.FunctionTable {
	t.Helper()
	sp := specializer.New()
	specialized := make([]*specializer.Function, len(fns))
	for i, fn := range fns {
		specialized[i] = sp.Specialize(fn)
	}
	return vm.NewFunctionTable(specialized, 0)
}

func TestMailboxFIFO(t *testing.T) {
	mb := NewMailbox()
	if err := mb.Send(value.Int(1)); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if err := mb.Send(value.Int(2)); err != nil {
		t.Fatalf("Send: %v", err)
	}
	v1, ok := mb.tryRecv()
	if !ok {
		t.Fatal("expected a value")
	}
	v2, ok := mb.tryRecv()
	if !ok {
		t.Fatal("expected a second value")
	}
	if n, _ := v1.Int(); n != 1 {
		t.Fatalf("expected 1 first, got %v", v1)
	}
	if n, _ := v2.Int(); n != 2 {
		t.Fatalf("expected 2 second, got %v", v2)
	}
}

func TestMailboxClosedRejectsSend(t *testing.T) {
	mb := NewMailbox()
	mb.Close()
	err := mb.Send(value.Int(1))
	if !vmerr.Is(err, vmerr.MailboxClosed) {
		t.Fatalf("expected MailboxClosed, got %v", err)
	}
}

func TestRuntimePingEcho(t *testing.T) {
	// echo(): Receive; Ret
	echo := &ir.Function{
		Name: "echo",
		Blocks: []ir.Block{
			{Label: "entry", Instructions: []ir.Instruction{ir.Receive(), ir.Ret()}},
		},
	}
	// main(): Spawn("echo", 0); PushInt(7); Send; PushInt(0); Ret
	main := &ir.Function{
		Name: "main",
		Blocks: []ir.Block{
			{Label: "entry", Instructions: []ir.Instruction{
				ir.Spawn("echo", 0),
				ir.PushInt(7),
				ir.Send(),
				ir.PushInt(0),
				ir.Ret(),
			}},
		},
	}
	table := buildTable(t, []*ir.Function{echo, main})
	rt := New(table, value.NewHeap(), vm.NewGlobals(), vm.Options{})

	result, err := rt.Run("main", nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n, ok := result.Int(); !ok || n != 0 {
		t.Fatalf("expected Int(0), got %v", result)
	}

	deadline := time.Now().Add(time.Second)
	for {
		snap := rt.Registry.Snapshot()
		allStopped := len(snap) == 2
		for _, m := range snap {
			if m.Status != Stopped {
				allStopped = false
			}
		}
		if allStopped {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("actors never reached Stopped: %+v", snap)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestRuntimeDeadlock(t *testing.T) {
	// blocker(): Receive; Ret  (nobody ever sends to it)
	blocker := &ir.Function{
		Name: "blocker",
		Blocks: []ir.Block{
			{Label: "entry", Instructions: []ir.Instruction{ir.Receive(), ir.Ret()}},
		},
	}
	// main(): Spawn("blocker", 0); Receive; Ret (nobody sends to main either)
	main := &ir.Function{
		Name: "main",
		Blocks: []ir.Block{
			{Label: "entry", Instructions: []ir.Instruction{
				ir.Spawn("blocker", 0),
				ir.Receive(),
				ir.Ret(),
			}},
		},
	}
	table := buildTable(t, []*ir.Function{blocker, main})
	rt := New(table, value.NewHeap(), vm.NewGlobals(), vm.Options{})

	_, err := rt.Run("main", nil)
	if !vmerr.Is(err, vmerr.AbortedDueToDeadlock) {
		t.Fatalf("expected AbortedDueToDeadlock, got %v", err)
	}
}

func TestRuntimeSpawnUnknownEntryFails(t *testing.T) {
	main := &ir.Function{
		Name: "main",
		Blocks: []ir.Block{
			{Label: "entry", Instructions: []ir.Instruction{
				ir.Spawn("nope", 0),
				ir.Ret(),
			}},
		},
	}
	table := buildTable(t, []*ir.Function{main})
	rt := New(table, value.NewHeap(), vm.NewGlobals(), vm.Options{})

	_, err := rt.Run("main", nil)
	if !vmerr.Is(err, vmerr.UnknownFunction) {
		t.Fatalf("expected UnknownFunction, got %v", err)
	}
}
