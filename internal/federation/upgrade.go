package federation

import (
	"net/http"
	"strings"

	"github.com/coder/websocket"

	"github.com/clawgate/clawgate/internal/wsclient"
)

// ServeUpgrade handles GET /federation: checks the bearer token (if one
// is configured) before upgrading, then hands the connection to
// AttachPeer for the lifetime of the socket. The prior HTTP handler is
// fully released once websocket.Accept returns — there is no fallback
// to ordinary HTTP handling on this connection afterward.
func (h *Hub) ServeUpgrade(token string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if token != "" && !bearerMatches(r, token) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		sock := wsclient.NewSocketFromConn(conn)
		if err := h.AttachPeer(r.Context(), sock); err != nil {
			h.log.Warn("federation: peer connection ended", "error", err)
		}
	}
}

func bearerMatches(r *http.Request, token string) bool {
	got := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(got, prefix) {
		return false
	}
	return strings.TrimPrefix(got, prefix) == token
}
