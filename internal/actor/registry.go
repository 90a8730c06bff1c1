package actor

import (
	"sync"
	"sync/atomic"

	"github.com/kabudu/groklang/internal/value"
)

// Status is a point in the actor status state machine of §4.7:
//
//	Running ──Receive──> BlockedOnReceive ──msg──> Running
//	Running ──Ret──────> Stopped
//	Running ──error────> Failed
//	BlockedOnReceive ──deadlock──> Failed
type Status int

const (
	Running Status = iota
	BlockedOnReceive
	Stopped
	Failed
)

func (s Status) String() string {
	switch s {
	case Running:
		return "Running"
	case BlockedOnReceive:
		return "BlockedOnReceive"
	case Stopped:
		return "Stopped"
	case Failed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// SupervisionPolicy is declarative rule for how an actor reacts to a
// child's failure. OneForOne is the only policy this runtime implements:
// a failed child is marked Failed and observable by its parent; it is
// never automatically restarted (restart is an optional extension the
// spec explicitly does not require).
type SupervisionPolicy int

const (
	OneForOne SupervisionPolicy = iota
)

// Metadata is the registry's record for one actor.
type Metadata struct {
	ID        value.ActorID
	Entry     string
	SpawnArgs []value.Value
	ParentID  value.ActorID
	HasParent bool
	Children  []value.ActorID
	Policy    SupervisionPolicy
	Status    Status
	Err       error
}

// Registry owns every actor's metadata and mailbox for one running
// program. It is shared across every actor goroutine, guarded by mu.
type Registry struct {
	mu      sync.Mutex
	actors  map[value.ActorID]*Metadata
	boxes   map[value.ActorID]*Mailbox
	nextID  uint64
	once    sync.Once
	dead    chan struct{}
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		actors: make(map[value.ActorID]*Metadata),
		boxes:  make(map[value.ActorID]*Mailbox),
		dead:   make(chan struct{}),
	}
}

// Register allocates a fresh ActorID and stores its metadata and
// mailbox. If the new actor has a parent (hasParent), the new ID is
// appended to the parent's Children list.
func (r *Registry) Register(entry string, args []value.Value, parent value.ActorID, hasParent bool, mailbox *Mailbox) value.ActorID {
	id := value.ActorID(atomic.AddUint64(&r.nextID, 1) - 1)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.actors[id] = &Metadata{
		ID:        id,
		Entry:     entry,
		SpawnArgs: args,
		ParentID:  parent,
		HasParent: hasParent,
		Policy:    OneForOne,
		Status:    Running,
	}
	r.boxes[id] = mailbox
	if hasParent {
		if p, ok := r.actors[parent]; ok {
			p.Children = append(p.Children, id)
		}
	}
	return id
}

// SetStatus transitions id to status.
func (r *Registry) SetStatus(id value.ActorID, status Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.actors[id]; ok {
		m.Status = status
	}
}

// MarkFailed transitions id to Failed and records err, per OneForOne:
// the child is marked failed and observable, restart is not attempted.
func (r *Registry) MarkFailed(id value.ActorID, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.actors[id]; ok {
		m.Status = Failed
		m.Err = err
	}
	if box, ok := r.boxes[id]; ok {
		box.Close()
	}
}

// MarkStopped transitions id to Stopped and closes its mailbox.
func (r *Registry) MarkStopped(id value.ActorID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.actors[id]; ok {
		m.Status = Stopped
	}
	if box, ok := r.boxes[id]; ok {
		box.Close()
	}
}

// MailboxOf returns id's mailbox, if registered.
func (r *Registry) MailboxOf(id value.ActorID) (*Mailbox, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	box, ok := r.boxes[id]
	return box, ok
}

// Snapshot returns a copy of every actor's metadata, for tests and
// diagnostics.
func (r *Registry) Snapshot() []Metadata {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Metadata, 0, len(r.actors))
	for _, m := range r.actors {
		out = append(out, *m)
	}
	return out
}

// checkDeadlock reports whether every actor is either BlockedOnReceive
// or terminal, with at least one BlockedOnReceive — the sentinel's
// trigger condition.
func (r *Registry) checkDeadlock() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.actors) == 0 {
		return false
	}
	blocked, terminal := 0, 0
	for _, m := range r.actors {
		switch m.Status {
		case BlockedOnReceive:
			blocked++
		case Stopped, Failed:
			terminal++
		}
	}
	return blocked > 0 && blocked+terminal == len(r.actors)
}

// TriggerDeadlock closes the deadlock channel exactly once, broadcasting
// to every actor currently selecting on DeadlockChan — Go's idiomatic
// stand-in for the original's tokio::sync::broadcast.
func (r *Registry) TriggerDeadlock() {
	r.once.Do(func() {
		close(r.dead)
	})
}

// DeadlockChan is closed exactly once, when the sentinel observes every
// actor blocked-or-terminal with at least one BlockedOnReceive.
func (r *Registry) DeadlockChan() <-chan struct{} {
	return r.dead
}
