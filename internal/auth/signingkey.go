package auth

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// MinSigningKeyBytes is the smallest accepted HMAC-SHA256 secret (256 bits).
const MinSigningKeyBytes = 32

// SigningKey holds the process-wide HMAC secret. The raw bytes are only
// reachable from this package.
type SigningKey struct {
	secret []byte
}

// NewSigningKey decodes a base64 secret (standard or URL alphabet, padded or
// not). Anything shorter than MinSigningKeyBytes is a configuration error.
func NewSigningKey(encoded string) (*SigningKey, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil, fmt.Errorf("%w: signing secret is empty", ErrConfiguration)
	}

	var (
		secret []byte
		err    error
	)
	for _, encoding := range []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	} {
		secret, err = encoding.DecodeString(encoded)
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: signing secret is not valid base64", ErrConfiguration)
	}

	if len(secret) < MinSigningKeyBytes {
		return nil, fmt.Errorf("%w: signing secret decodes to %d bytes, need at least %d", ErrConfiguration, len(secret), MinSigningKeyBytes)
	}

	return &SigningKey{secret: secret}, nil
}

func (k *SigningKey) bytes() []byte {
	if k == nil {
		return nil
	}
	return k.secret
}
