package relay

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTransport struct {
	mu      sync.Mutex
	calls   int
	folders []string
	urls    []string
	err     error
	next    int
}

func (f *fakeTransport) Transmit(_ context.Context, dataURL, folder string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.folders = append(f.folders, folder)
	f.urls = append(f.urls, dataURL)
	if f.err != nil {
		return "", f.err
	}
	f.next++
	return "https://res.cloudinary.com/demo/image/upload/" + string(rune('a'+f.next-1)) + ".png", nil
}

const maxMB = 2

func TestUploadOverCeilingNeverTransmits(t *testing.T) {
	tr := &fakeTransport{}
	r := New(tr, maxMB<<20)

	_, err := r.Upload(context.Background(), make([]byte, (maxMB+1)<<20), "planpal")

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTooLarge)
	assert.Zero(t, tr.calls)
}

func TestUploadAtCeilingIsAccepted(t *testing.T) {
	tr := &fakeTransport{}
	r := New(tr, maxMB<<20)

	_, err := r.Upload(context.Background(), make([]byte, maxMB<<20), "planpal")

	require.NoError(t, err)
	assert.Equal(t, 1, tr.calls)
}

func TestUploadEmptyImage(t *testing.T) {
	tr := &fakeTransport{}
	_, err := New(tr, 0).Upload(context.Background(), nil, "")

	assert.ErrorIs(t, err, ErrNoImage)
	assert.Zero(t, tr.calls)
}

func TestUploadStateSequence(t *testing.T) {
	r := New(&fakeTransport{}, 1<<20)
	u := r.NewUpload([]byte("\x89PNG\r\n\x1a\nfake"), "")
	var states []State
	u.Observe(func(s State) { states = append(states, s) })

	assert.Equal(t, StateIdle, u.State())
	res, err := u.Run(context.Background())

	require.NoError(t, err)
	assert.NotEmpty(t, res.URL)
	assert.Equal(t, []State{StateEncoding, StateTransmitting, StateSucceeded}, states)
}

func TestUploadTerminalStateIsFinal(t *testing.T) {
	tr := &fakeTransport{err: errors.New("dial tcp: connection refused")}
	u := New(tr, 1<<20).NewUpload([]byte("abc"), "x")

	_, first := u.Run(context.Background())
	_, second := u.Run(context.Background())

	assert.ErrorIs(t, first, ErrTransport)
	assert.Same(t, first, second)
	assert.Equal(t, StateFailed, u.State())
	assert.Equal(t, 1, tr.calls, "no automatic retry")
}

func TestUploadRejectedByRemoteKeepsMessage(t *testing.T) {
	remote := &Error{Kind: KindRemoteRejected, Status: 500, Remote: "Invalid image file"}
	u := New(&fakeTransport{err: remote}, 0).NewUpload([]byte("abc"), "x")

	_, err := u.Run(context.Background())

	var rerr *Error
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "Invalid image file", rerr.Message())
	assert.ErrorIs(t, err, ErrRemoteRejected)
	assert.NotErrorIs(t, err, ErrTransport)
}

func TestUploadIsNotDeduplicated(t *testing.T) {
	tr := &fakeTransport{}
	r := New(tr, 0)
	img := []byte("same bytes")

	a, err := r.Upload(context.Background(), img, "trips")
	require.NoError(t, err)
	b, err := r.Upload(context.Background(), img, "trips")
	require.NoError(t, err)

	assert.NotEqual(t, a.URL, b.URL)
	assert.Equal(t, 2, tr.calls)
}

func TestUploadDefaultsFolder(t *testing.T) {
	tr := &fakeTransport{}
	_, err := New(tr, 0).Upload(context.Background(), []byte("abc"), "  ")

	require.NoError(t, err)
	assert.Equal(t, []string{DefaultFolder}, tr.folders)
}

func TestDataURLRoundTrip(t *testing.T) {
	png := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{7}, 100)...)

	url := EncodeDataURL(png)
	assert.True(t, len(url) > len("data:image/png;base64,"))
	assert.Equal(t, "data:image/png;base64,", url[:len("data:image/png;base64,")])

	mime, data, err := DecodeDataURL(url)
	require.NoError(t, err)
	assert.Equal(t, "image/png", mime)
	assert.Equal(t, png, data)

	n, err := DecodedLen(url)
	require.NoError(t, err)
	assert.Equal(t, int64(len(png)), n)
}

func TestDecodeDataURLRejectsGarbage(t *testing.T) {
	for _, s := range []string{"", "hello", "data:image/png,abc", "data:image/png;base64", "data:image/png;base64,!!!"} {
		_, _, err := DecodeDataURL(s)
		assert.Error(t, err, s)
	}
}
