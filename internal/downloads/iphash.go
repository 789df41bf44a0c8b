package downloads

import (
	"encoding/hex"
	"net"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// IPHasher turns client addresses into stable opaque hashes. Raw addresses
// never reach storage; the keyed hash lets dedupe and rate-limit keys match
// across requests without holding personal data. The key must stay constant
// across deploys or persisted dedupe rows stop matching.
type IPHasher struct {
	key []byte
}

func NewIPHasher(salt string) *IPHasher {
	key := []byte(salt)
	if len(key) > 64 {
		key = key[:64]
	}
	return &IPHasher{key: key}
}

// Hash returns the hex hash of one client address, or empty when the address
// is missing or unparseable. Callers must treat empty as "cannot attribute"
// and skip counting rather than share a bucket.
func (h *IPHasher) Hash(remoteAddr string) string {
	ip := canonicalIP(remoteAddr)
	if ip == "" {
		return ""
	}
	mac, err := blake2b.New256(h.key)
	if err != nil {
		return ""
	}
	mac.Write([]byte(ip))
	return hex.EncodeToString(mac.Sum(nil))
}

// ClientIP extracts the client address from a request, preferring the
// leftmost X-Forwarded-For entry set by the edge proxy.
func ClientIP(remoteAddr, forwardedFor string) string {
	if forwardedFor != "" {
		first, _, _ := strings.Cut(forwardedFor, ",")
		if ip := canonicalIP(strings.TrimSpace(first)); ip != "" {
			return ip
		}
	}
	return canonicalIP(remoteAddr)
}

func canonicalIP(addr string) string {
	if addr == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	ip := net.ParseIP(addr)
	if ip == nil {
		return ""
	}
	return ip.String()
}
