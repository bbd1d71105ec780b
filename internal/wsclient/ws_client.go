// Package wsclient is the transport-level WebSocket client used by
// internal/federation to dial a federation server node. Socket is the
// testable seam: production code dials a real connection via RealDialer,
// tests drive a FakeSocket instead.
package wsclient

import (
	"context"
	"errors"
	"io"
)

// Socket is a text-message WebSocket connection.
type Socket interface {
	ReadText(ctx context.Context) (string, error)
	WriteText(ctx context.Context, text string) error
	Close() error
}

// Client reads frames off a Socket and dispatches them to OnText, and
// writes outgoing frames via Send. Framing and correlation of federation
// command/response pairs happens one layer up, in internal/federation.
type Client struct {
	sock   Socket
	onText func(string)
}

type onTextSetter interface {
	SetOnText(func(string))
}

func NewClient(sock Socket) *Client {
	return &Client{sock: sock}
}

// OnText registers the frame handler. If sock also supports direct
// delivery (as FakeSocket does), frames bypass the read loop entirely.
func (c *Client) OnText(fn func(string)) {
	c.onText = fn
	if s, ok := c.sock.(onTextSetter); ok {
		s.SetOnText(fn)
	}
}

// Run blocks reading frames until ctx is cancelled or the socket closes.
func (c *Client) Run(ctx context.Context) error {
	for {
		text, err := c.sock.ReadText(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if c.onText != nil {
			c.onText(text)
		}
	}
}

func (c *Client) Send(ctx context.Context, text string) error {
	return c.sock.WriteText(ctx, text)
}

func (c *Client) Close() error {
	return c.sock.Close()
}

// FakeSocket is an in-memory Socket for tests: EmitText delivers a frame
// either straight to the registered handler or, if none is set yet, onto
// a buffered channel consumed by ReadText.
type FakeSocket struct {
	onText func(string)
	readCh chan string
}

func NewFakeSocket() *FakeSocket {
	return &FakeSocket{readCh: make(chan string, 8)}
}

func (f *FakeSocket) SetOnText(fn func(string)) {
	f.onText = fn
}

func (f *FakeSocket) EmitText(text string) {
	if f.onText != nil {
		f.onText(text)
		return
	}
	f.readCh <- text
}

func (f *FakeSocket) ReadText(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case text, ok := <-f.readCh:
		if !ok {
			return "", io.EOF
		}
		return text, nil
	}
}

func (f *FakeSocket) WriteText(ctx context.Context, text string) error {
	return nil
}

func (f *FakeSocket) Close() error {
	close(f.readCh)
	return nil
}
