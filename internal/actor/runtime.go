package actor

import (
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/kabudu/groklang/internal/value"
	"github.com/kabudu/groklang/internal/vm"
	"github.com/kabudu/groklang/internal/vmerr"
)

// Runtime schedules actors as goroutines under a single errgroup.Group,
// sharing one FunctionTable and Heap across every actor's own Interp. It
// implements vm.ActorHost indirectly, through the per-actor Context it
// hands each Interp.
type Runtime struct {
	table   *vm.FunctionTable
	heap    *value.Heap
	globals *vm.Globals
	opts    vm.Options

	Registry *Registry

	eg           *errgroup.Group
	shutdown     chan struct{}
	shutdownOnce sync.Once
}

// New returns a Runtime ready to run a program against table and heap.
func New(table *vm.FunctionTable, heap *value.Heap, globals *vm.Globals, opts vm.Options) *Runtime {
	return &Runtime{
		table:    table,
		heap:     heap,
		globals:  globals,
		opts:     opts,
		Registry: NewRegistry(),
		shutdown: make(chan struct{}),
	}
}

// Context is one actor's view of the Runtime: it satisfies
// vm.ActorHost, so an Interp built with a Context can dispatch
// Spawn/Send/Receive without importing this package.
type Context struct {
	id      value.ActorID
	runtime *Runtime
	mailbox *Mailbox
}

// Spawn starts entry as a new actor, a child of the spawning actor, and
// returns its ID immediately — the new actor's interpreter runs on its
// own goroutine under the shared errgroup.
func (c *Context) Spawn(entry string, args []value.Value) (value.ActorID, error) {
	return c.runtime.spawn(entry, args, c.id, true)
}

// Send enqueues msg on target's mailbox. A send to a terminal actor's
// closed mailbox is dropped, not reported as an error to the caller,
// per the Send contract (§4.7).
func (c *Context) Send(target value.ActorID, msg value.Value) error {
	box, ok := c.runtime.Registry.MailboxOf(target)
	if !ok {
		return nil
	}
	_ = box.Send(msg)
	return nil
}

// Receive blocks this actor until a message arrives, the deadlock
// sentinel fires, or the runtime shuts down.
func (c *Context) Receive() (value.Value, error) {
	c.runtime.Registry.SetStatus(c.id, BlockedOnReceive)
	for {
		if v, ok := c.mailbox.tryRecv(); ok {
			c.runtime.Registry.SetStatus(c.id, Running)
			return v, nil
		}
		select {
		case <-c.mailbox.SignalChan():
			continue
		case <-c.runtime.Registry.DeadlockChan():
			err := vmerr.New(vmerr.AbortedDueToDeadlock, "actor %d aborted: deadlock detected", c.id)
			c.runtime.Registry.MarkFailed(c.id, err)
			return value.Unit(), err
		case <-c.runtime.shutdown:
			return value.Unit(), vmerr.New(vmerr.MailboxClosed, "actor %d aborted: runtime shut down", c.id)
		}
	}
}

// spawn is the shared implementation behind both Context.Spawn (a
// running actor spawning a child) and Run (seeding the top-level
// actor that has no parent).
func (r *Runtime) spawn(entry string, args []value.Value, parent value.ActorID, hasParent bool) (value.ActorID, error) {
	if _, ok := r.table.Lookup(entry); !ok {
		return 0, vmerr.New(vmerr.UnknownFunction, "unknown actor entry %q", entry)
	}
	mailbox := NewMailbox()
	id := r.Registry.Register(entry, args, parent, hasParent, mailbox)

	r.eg.Go(func() error {
		ctx := &Context{id: id, runtime: r, mailbox: mailbox}
		interp := vm.New(r.table, r.heap, r.globals, ctx, r.opts)
		_, err := interp.Execute(entry, args)
		if err != nil {
			r.Registry.MarkFailed(id, err)
		} else {
			r.Registry.MarkStopped(id)
		}
		// A failed actor must not cancel its siblings: OneForOne only
		// marks the child Failed, it never tears down the fleet. The
		// errgroup is used purely for goroutine lifecycle (Wait),
		// never for fail-fast cancellation, so this always returns nil.
		return nil
	})
	return id, nil
}

// Run executes entry as the top-level actor with args, waits for every
// actor it (transitively) spawns to finish, and returns entry's result.
func (r *Runtime) Run(entry string, args []value.Value) (value.Value, error) {
	r.eg = &errgroup.Group{}
	r.eg.Go(func() error {
		runSentinel(r.Registry, r.shutdown)
		return nil
	})

	if _, ok := r.table.Lookup(entry); !ok {
		return value.Unit(), vmerr.New(vmerr.UnknownFunction, "unknown function %q", entry)
	}

	// The top-level actor runs on this goroutine rather than a spawned
	// one — Run itself is the "main" task — but it is still a full
	// registry entry, since scenario 7 has main itself Receive and
	// participate in deadlock detection.
	mailbox := NewMailbox()
	mainID := r.Registry.Register(entry, args, 0, false, mailbox)
	ctx := &Context{id: mainID, runtime: r, mailbox: mailbox}
	interp := vm.New(r.table, r.heap, r.globals, ctx, r.opts)
	result, execErr := interp.Execute(entry, args)
	if execErr != nil {
		r.Registry.MarkFailed(mainID, execErr)
	} else {
		r.Registry.MarkStopped(mainID)
	}

	r.shutdownOnce.Do(func() { close(r.shutdown) })
	_ = r.eg.Wait()

	return result, execErr
}
