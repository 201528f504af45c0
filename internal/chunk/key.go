package chunk

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"

	"golang.org/x/text/unicode/norm"
)

// DomainDedup prefixes dedup hashes. The version suffix allows the field set
// to change without colliding with keys computed by older builds.
const DomainDedup = "chunkcatchup/dedup/v1"

// DedupKey computes the content fingerprint of a chunk within a channel.
//
// Fields, in order: channel, sequence id (or "na"), kind (or "na"), text,
// tool type, tool function, approval request id. Text is NFC normalised.
// Fields are joined with a 0x00 separator after the domain prefix, so no field
// value can shift into its neighbour.
//
// Two distinct events that agree on every field produce the same key and
// are collapsed; chunk producers do not supply a unique event id.
func DedupKey(ch Channel, c Chunk) string {
	seq := "na"
	if c.SequenceID != nil {
		seq = strconv.FormatInt(*c.SequenceID, 10)
	}
	kind := "na"
	if c.Kind != "" {
		kind = string(c.Kind)
	}

	h := sha256.New()
	h.Write([]byte(DomainDedup))
	for _, field := range []string{
		string(ch),
		seq,
		kind,
		norm.NFC.String(c.Text),
		c.IntegratedToolType,
		c.ToolFunction,
		c.ApprovalRequestID,
	} {
		h.Write([]byte{0x00})
		h.Write([]byte(field))
	}
	return hex.EncodeToString(h.Sum(nil))
}
