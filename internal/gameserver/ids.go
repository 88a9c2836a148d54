package gameserver

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/lifenet/server/internal/protocol"
)

// NewCookie generates a session token of 12 random bytes. The token is held
// and sent as raw bytes; CookieString renders it as URL-safe, unpadded
// base64.
func NewCookie() (protocol.Cookie, error) {
	var raw protocol.Cookie
	if _, err := rand.Read(raw[:]); err != nil {
		return protocol.Cookie{}, err
	}
	return raw, nil
}

// CookieString renders a cookie for logging/diagnostics.
func CookieString(c protocol.Cookie) string {
	return base64.RawURLEncoding.EncodeToString(c[:])
}

// idGenerator produces 64-bit player/room IDs: the upper 32 bits are the
// low 32 bits of seconds elapsed since the generator started, the lower 32
// bits are random. Two IDs from the same process can collide only if both
// the second counter and the random half coincide.
type idGenerator struct {
	startedAt time.Time
}

func newIDGenerator(now time.Time) *idGenerator {
	return &idGenerator{startedAt: now}
}

func (g *idGenerator) next(now time.Time) (uint64, error) {
	elapsed := uint32(now.Sub(g.startedAt).Seconds())
	var randHalf [4]byte
	if _, err := rand.Read(randHalf[:]); err != nil {
		return 0, err
	}
	low := uint32(randHalf[0])<<24 | uint32(randHalf[1])<<16 | uint32(randHalf[2])<<8 | uint32(randHalf[3])
	return uint64(elapsed)<<32 | uint64(low), nil
}
