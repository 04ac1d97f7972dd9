package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/AnshRaj112/planpal-backend/internal/identity"
	"github.com/AnshRaj112/planpal-backend/internal/profile"
	"github.com/AnshRaj112/planpal-backend/internal/relay"
)

// fakeProvider emits to every listener it ever handed out, including
// stopped ones, so tests can simulate late emissions.
type fakeProvider struct {
	mu        sync.Mutex
	current   *identity.Identity
	listeners []identity.Listener
	stops     int
	err       error
}

func (p *fakeProvider) OnAuthStateChanged(_ context.Context, _ string, fn identity.Listener) (func(), error) {
	if p.err != nil {
		return nil, p.err
	}
	p.mu.Lock()
	p.listeners = append(p.listeners, fn)
	cur := p.current
	p.mu.Unlock()

	fn(cur)
	return func() {
		p.mu.Lock()
		p.stops++
		p.mu.Unlock()
	}, nil
}

func (p *fakeProvider) emit(id *identity.Identity) {
	p.mu.Lock()
	p.current = id
	listeners := append([]identity.Listener(nil), p.listeners...)
	p.mu.Unlock()
	for _, fn := range listeners {
		fn(id)
	}
}

func (p *fakeProvider) stopCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stops
}

type savedPatch struct {
	id    string
	patch profile.Patch
}

// fakeProfiles is an in-memory profile store whose loads can be held open per identity.
type fakeProfiles struct {
	mu      sync.Mutex
	records map[string]*profile.Record
	gates   map[string]chan struct{}
	loadErr error
	loads   []string
	saves   []savedPatch
}

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{records: make(map[string]*profile.Record), gates: make(map[string]chan struct{})}
}

func (f *fakeProfiles) hold(id string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	gate := make(chan struct{})
	f.gates[id] = gate
	return gate
}

// Load reads the record before waiting on a held gate, like a query whose
// result is still on the wire.
func (f *fakeProfiles) Load(_ context.Context, id string) (*profile.Record, error) {
	f.mu.Lock()
	f.loads = append(f.loads, id)
	gate := f.gates[id]
	var snapshot *profile.Record
	if rec, ok := f.records[id]; ok {
		c := *rec
		snapshot = &c
	}
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	if snapshot == nil {
		return nil, profile.ErrNotFound
	}
	return snapshot, nil
}

func (f *fakeProfiles) Save(_ context.Context, id string, patch profile.Patch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves = append(f.saves, savedPatch{id: id, patch: patch})
	rec, ok := f.records[id]
	if !ok {
		rec = &profile.Record{}
		f.records[id] = rec
	}
	patch.Apply(rec)
	return nil
}

func (f *fakeProfiles) loadCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.loads...)
}

func (f *fakeProfiles) saveCalls() []savedPatch {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]savedPatch(nil), f.saves...)
}

type fakeUploader struct {
	gate    chan struct{}
	folders []string
	mu      sync.Mutex
}

func (u *fakeUploader) Upload(_ context.Context, data []byte, folder string) (relay.Result, error) {
	u.mu.Lock()
	u.folders = append(u.folders, folder)
	u.mu.Unlock()
	if u.gate != nil {
		<-u.gate
	}
	return relay.Result{URL: "https://cdn/" + folder + "/avatar.png"}, nil
}

type recorder struct {
	mu     sync.Mutex
	states []State
	ch     chan State
	navs   []string
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan State, 64)}
}

func (r *recorder) onState(s State) {
	r.mu.Lock()
	r.states = append(r.states, s)
	r.mu.Unlock()
	r.ch <- s
}

func (r *recorder) Navigate(route string) {
	r.mu.Lock()
	r.navs = append(r.navs, route)
	r.mu.Unlock()
}

func (r *recorder) navigations() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.navs...)
}

func (r *recorder) snapshots() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State(nil), r.states...)
}

func (r *recorder) waitFor(t *testing.T, match func(State) bool) State {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case s := <-r.ch:
			if match(s) {
				return s
			}
		case <-timeout:
			t.Fatal("timed out waiting for state")
			return State{}
		}
	}
}

func readyFor(id string) func(State) bool {
	return func(s State) bool {
		return s.Status == StatusReady && s.Identity != nil && s.Identity.ID == id
	}
}
