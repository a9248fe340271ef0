package batch

import (
	"crypto/md5"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
)

// Digest derives deterministic correlation ids from a submission's natural
// key. The algorithm is selected by configuration.
type Digest struct {
	algorithm string
}

func NewDigest(algorithm string) Digest {
	return Digest{algorithm: algorithm}
}

func (d Digest) Sum(message string) (string, error) {
	var h hash.Hash
	switch d.algorithm {
	case "md5":
		h = md5.New()
	case "sha256":
		h = sha256.New()
	case "sha512":
		h = sha512.New()
	default:
		return "", fmt.Errorf("unknown digest algorithm %q", d.algorithm)
	}

	h.Write([]byte(message))
	return hex.EncodeToString(h.Sum(nil)), nil
}
