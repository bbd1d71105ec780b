package wsclient

import (
	"context"
	"net/http"

	"github.com/coder/websocket"
)

// RealDialer dials a real federation server over wss/ws, sending the
// client node's bearer token as an Authorization header.
type RealDialer struct {
	Token string
}

func (d RealDialer) Dial(ctx context.Context, url string) (Socket, error) {
	var opts *websocket.DialOptions
	if d.Token != "" {
		opts = &websocket.DialOptions{
			HTTPHeader: http.Header{
				"Authorization": []string{"Bearer " + d.Token},
			},
		}
	}
	conn, _, err := websocket.Dial(ctx, url, opts)
	if err != nil {
		return nil, err
	}
	return &realSocket{conn: conn}, nil
}

// NewSocketFromConn wraps an already-established *websocket.Conn (e.g.
// one accepted server-side by FederationHub) as a Socket.
func NewSocketFromConn(conn *websocket.Conn) Socket {
	return &realSocket{conn: conn}
}

type realSocket struct {
	conn *websocket.Conn
}

func (s *realSocket) ReadText(ctx context.Context) (string, error) {
	_, data, err := s.conn.Read(ctx)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (s *realSocket) WriteText(ctx context.Context, text string) error {
	return s.conn.Write(ctx, websocket.MessageText, []byte(text))
}

func (s *realSocket) Close() error {
	return s.conn.Close(websocket.StatusNormalClosure, "")
}
