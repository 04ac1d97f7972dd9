// Package relay forwards images to the image host and returns the stored
// object's URL. A Relay enforces the size ceiling before anything is sent;
// the Transport does the network hop.
package relay

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// DefaultFolder is used when an upload names no destination folder.
const DefaultFolder = "planpal"

// Transport sends an encoded image to the image host, or to a server that
// forwards it there, and returns the canonical URL.
type Transport interface {
	Transmit(ctx context.Context, dataURL, folder string) (string, error)
}

// State is the lifecycle of a single upload. Succeeded and Failed are final.
type State int

const (
	StateIdle State = iota
	StateEncoding
	StateTransmitting
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateEncoding:
		return "encoding"
	case StateTransmitting:
		return "transmitting"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is a completed upload.
type Result struct {
	URL string `json:"url"`
}

type Relay struct {
	transport Transport
	maxBytes  int64
}

// New returns a relay that rejects images larger than maxBytes. A
// non-positive maxBytes disables the ceiling.
func New(t Transport, maxBytes int64) *Relay {
	return &Relay{transport: t, maxBytes: maxBytes}
}

// MaxBytes is the configured size ceiling.
func (r *Relay) MaxBytes() int64 { return r.maxBytes }

// Upload sends data to folder. Every call stores a new object; there is no
// deduplication and no retry.
func (r *Relay) Upload(ctx context.Context, data []byte, folder string) (Result, error) {
	return r.NewUpload(data, folder).Run(ctx)
}

// NewUpload prepares an upload without starting it.
func (r *Relay) NewUpload(data []byte, folder string) *Upload {
	folder = strings.TrimSpace(folder)
	if folder == "" {
		folder = DefaultFolder
	}
	return &Upload{relay: r, data: data, folder: folder}
}

// Upload is one pass through Idle, Encoding, Transmitting and a final state.
type Upload struct {
	relay  *Relay
	data   []byte
	folder string

	mu       sync.Mutex
	state    State
	observer func(State)
	result   Result
	err      error
	once     sync.Once
}

// Observe registers fn to be called on every state change. It must be set
// before Run.
func (u *Upload) Observe(fn func(State)) {
	u.mu.Lock()
	u.observer = fn
	u.mu.Unlock()
}

// State returns the current state.
func (u *Upload) State() State {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.state
}

// Run performs the upload. Calling it again returns the first outcome.
func (u *Upload) Run(ctx context.Context) (Result, error) {
	u.once.Do(func() {
		res, err := u.run(ctx)
		if err != nil {
			u.set(StateFailed)
		} else {
			u.set(StateSucceeded)
		}
		u.mu.Lock()
		u.result, u.err = res, err
		u.mu.Unlock()
		recordOutcome(err)
	})
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.result, u.err
}

func (u *Upload) run(ctx context.Context) (Result, error) {
	if len(u.data) == 0 {
		return Result{}, ErrNoImage
	}
	size := int64(len(u.data))
	if max := u.relay.maxBytes; max > 0 && size > max {
		return Result{}, tooLarge(size, max)
	}
	uploadBytes.Observe(float64(size))

	u.set(StateEncoding)
	dataURL := EncodeDataURL(u.data)
	u.data = nil

	u.set(StateTransmitting)
	url, err := u.relay.transport.Transmit(ctx, dataURL, u.folder)
	if err != nil {
		var rerr *Error
		if errors.As(err, &rerr) {
			return Result{}, err
		}
		return Result{}, &Error{Kind: KindTransport, Err: err}
	}
	if url == "" {
		return Result{}, &Error{Kind: KindRemoteRejected, Remote: "image host returned no URL"}
	}
	return Result{URL: url}, nil
}

func (u *Upload) set(s State) {
	u.mu.Lock()
	u.state = s
	fn := u.observer
	u.mu.Unlock()
	if fn != nil {
		fn(s)
	}
}
