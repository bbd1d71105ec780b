// Package pairing renders the federation peer's connection details as a
// scannable QR code, the provisioning story for the bearer token that
// secures the single-peer WebSocket link (spec.md's federation config
// has no token-distribution mechanism of its own).
package pairing

import (
	"fmt"
	"net/http"

	"github.com/skip2/go-qrcode"
)

// Ticket is everything a peer needs to dial in and authenticate.
type Ticket struct {
	WSURL string
	Token string
}

// URI renders the ticket as a single scannable URI. The clawgate-pair
// scheme carries no semantics beyond "paste the query values into the
// peer's federation config" — it is never parsed by this daemon itself.
func (t Ticket) URI() string {
	return fmt.Sprintf("clawgate-pair://connect?ws=%s&token=%s", t.WSURL, t.Token)
}

// TicketFunc produces the current pairing ticket at request time, so the
// token reflects whatever the live config holds rather than a value
// captured at startup.
type TicketFunc func() Ticket

// Handler serves a PNG QR code encoding the current pairing ticket.
func Handler(ticket TicketFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		png, err := qrcode.Encode(ticket().URI(), qrcode.Medium, 256)
		if err != nil {
			http.Error(w, "failed to render pairing qr code", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(png)
	}
}
