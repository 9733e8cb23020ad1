package realtime

import (
	"crypto/sha256"
	"errors"
	"io"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"golang.org/x/crypto/hkdf"
)

const ticketScope = "analytics-stream"

var ErrBadTicket = errors.New("invalid stream ticket")

// Tickets issues short lived tokens admitting a browser to the live
// analytics stream. Browsers cannot set headers on a websocket upgrade, so
// the ticket travels in the query string instead of the bearer token.
type Tickets struct {
	auth *jwtauth.JWTAuth
	ttl  time.Duration
}

// TicketKey derives the ticket signing key from the server secret, so a
// ticket key never doubles as the bearer token key.
func TicketKey(secret string) []byte {
	key := make([]byte, sha256.Size)
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte("qform "+ticketScope))
	if _, err := io.ReadFull(kdf, key); err != nil {
		panic(err) // unreachable for 32 bytes
	}
	return key
}

func NewTickets(key []byte, ttl time.Duration) *Tickets {
	return &Tickets{
		auth: jwtauth.New("HS256", key, nil),
		ttl:  ttl,
	}
}

func (t *Tickets) TTL() time.Duration {
	return t.ttl
}

func (t *Tickets) Issue(subject string, now time.Time) (string, error) {
	claims := map[string]interface{}{
		"sub":   subject,
		"scope": ticketScope,
	}
	jwtauth.SetIssuedAt(claims, now)
	jwtauth.SetExpiry(claims, now.Add(t.ttl))

	_, token, err := t.auth.Encode(claims)
	return token, err
}

// Verify returns the subject the ticket was issued to.
func (t *Tickets) Verify(ticket string) (string, error) {
	if ticket == "" {
		return "", ErrBadTicket
	}
	token, err := jwtauth.VerifyToken(t.auth, ticket)
	if err != nil {
		return "", errors.Join(ErrBadTicket, err)
	}
	if scope, _ := token.PrivateClaims()["scope"].(string); scope != ticketScope {
		return "", ErrBadTicket
	}
	return token.Subject(), nil
}
