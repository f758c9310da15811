package client

import (
	"testing"
)

// recordingObserver collects membership notifications in order.
type recordingObserver struct {
	added   []*Handle
	removed []*Handle
}

func (o *recordingObserver) ClientAdded(h *Handle) { o.added = append(o.added, h) }
func (o *recordingObserver) ClientRemoved(h *Handle) { o.removed = append(o.removed, h) }

func namedHandle(name string, enable bool) *Handle {
	return NewHandle(Descriptor{Name: name, Enable: enable}, newFakeNode())
}

func groupNames(g *Group) []string {
	handles := g.Clients()
	names := make([]string, len(handles))
	for i, h := range handles {
		names[i] = h.Descriptor.Name
	}
	return names
}

func equalNames(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func TestGroup_AddClient(t *testing.T) {
	obs := &recordingObserver{}
	g := NewGroup(4, obs)

	if !g.IsEmpty() {
		t.Fatal("Expected new group to be empty")
	}

	h := g.AddClient(namedHandle("a", true))

	if g.Count() != 1 {
		t.Errorf("Expected 1 client, got %d", g.Count())
	}
	if !h.IsEnabled() {
		t.Error("Expected descriptor-enabled client to come up enabled")
	}
	if len(obs.added) != 1 || obs.added[0] != h {
		t.Error("Expected observer to see the added client")
	}

	// The group's midstate policy applies to engines built for the client.
	node := h.Node().(*fakeNode)
	node.setJob(testJob("j", node.Identity()))
	engine := h.EnsureEngine()
	a, ok := engine.Next()
	if !ok || a.MidstateCount() != 4 {
		t.Errorf("Expected 4-midstate assignments, got %d (ok=%v)", a.MidstateCount(), ok)
	}
}

func TestGroup_AddClientDisabled(t *testing.T) {
	g := NewGroup(1, nil)
	h := g.AddClient(namedHandle("a", false))

	if h.IsEnabled() {
		t.Error("Expected client without the enable flag to stay disabled")
	}
	if h.Node().(*fakeNode).startCount() != 0 {
		t.Error("Expected no start for a disabled client")
	}
}

func TestGroup_RemoveClientAt(t *testing.T) {
	obs := &recordingObserver{}
	g := NewGroup(1, obs)

	g.AddClient(namedHandle("a", true))
	b := g.AddClient(namedHandle("b", true))
	g.AddClient(namedHandle("c", true))

	removed, err := g.RemoveClientAt(1)
	if err != nil {
		t.Fatalf("RemoveClientAt failed: %v", err)
	}
	if removed != b {
		t.Error("Expected the middle client to be removed")
	}
	if removed.IsEnabled() {
		t.Error("Expected removed client to be disabled")
	}
	if !equalNames(groupNames(g), []string{"a", "c"}) {
		t.Errorf("Expected [a c], got %v", groupNames(g))
	}
	if len(obs.removed) != 1 || obs.removed[0] != b {
		t.Error("Expected observer to see the removed client")
	}

	if _, err := g.RemoveClientAt(5); err != ErrMissing {
		t.Errorf("Expected ErrMissing for an out-of-range index, got %v", err)
	}
}

func TestGroup_MoveClient(t *testing.T) {
	tests := []struct {
		name string
		from int
		to   int
		want []string
	}{
		{"forward", 0, 2, []string{"b", "c", "a", "d"}},
		{"backward", 3, 1, []string{"a", "d", "b", "c"}},
		{"same_position", 2, 2, []string{"a", "b", "c", "d"}},
		{"adjacent", 1, 2, []string{"a", "c", "b", "d"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGroup(1, nil)
			for _, name := range []string{"a", "b", "c", "d"} {
				g.AddClient(namedHandle(name, false))
			}

			if _, err := g.MoveClient(tt.from, tt.to); err != nil {
				t.Fatalf("MoveClient(%d, %d) failed: %v", tt.from, tt.to, err)
			}
			if got := groupNames(g); !equalNames(got, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestGroup_MoveClientOutOfRange(t *testing.T) {
	g := NewGroup(1, nil)
	g.AddClient(namedHandle("a", false))

	if _, err := g.MoveClient(0, 3); err != ErrMissing {
		t.Errorf("Expected ErrMissing, got %v", err)
	}
	if _, err := g.MoveClient(-1, 0); err != ErrMissing {
		t.Errorf("Expected ErrMissing, got %v", err)
	}
}

func TestGroup_Close(t *testing.T) {
	obs := &recordingObserver{}
	g := NewGroup(1, obs)

	a := g.AddClient(namedHandle("a", true))
	b := g.AddClient(namedHandle("b", false))

	g.Close()

	if g.Count() != 0 {
		t.Errorf("Expected empty group after close, got %d", g.Count())
	}
	if a.Node().(*fakeNode).stopCount() != 1 {
		t.Error("Expected enabled client to be stopped on close")
	}
	if len(obs.removed) != 2 {
		t.Errorf("Expected 2 removal notifications, got %d", len(obs.removed))
	}
	if _, open := <-b.Solutions(); open {
		t.Error("Expected closed solution sinks after group close")
	}
}
