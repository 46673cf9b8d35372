package mail

import (
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"
)

const digestLen = 20

// MessageID returns the deterministic Message-ID for a ticket message. The
// same inputs always produce the same id, so a retried send threads
// identically.
func MessageID(ticketID, messageID, domain string) string {
	sum := blake2b.Sum256([]byte(ticketID + "|" + messageID))
	digest := hex.EncodeToString(sum[:])[:digestLen]
	return fmt.Sprintf("<%s.%s@%s>", digest, ticketID, domain)
}

// RootMessageID is the synthetic thread root every ticket starts with.
func RootMessageID(ticketID, domain string) string {
	return MessageID(ticketID, "root", domain)
}

// ReferencesHeader renders a reference chain, oldest first.
func ReferencesHeader(chain []string) string {
	return strings.Join(chain, " ")
}

// InReplyTo returns the most recent id of the chain.
func InReplyTo(chain []string) string {
	if len(chain) == 0 {
		return ""
	}
	return chain[len(chain)-1]
}
