package jwt

import (
	"errors"
	"fmt"
	"strings"
)

// KeySet maps key ids to HMAC secrets. Current names the key used for new
// tokens; every other entry stays valid for verification until removed.
//
// KeySet values are built once at startup and treated as immutable.
type KeySet struct {
	Current string
	Keys    map[string][]byte
}

// Validate reports whether the set can sign and verify tokens.
func (k KeySet) Validate() error {
	if len(k.Keys) == 0 {
		return errors.New("key set is empty")
	}
	for kid, secret := range k.Keys {
		if strings.TrimSpace(kid) == "" {
			return errors.New("key set contains empty kid")
		}
		if len(secret) == 0 {
			return fmt.Errorf("key %q has empty secret", kid)
		}
	}
	if _, ok := k.Keys[k.Current]; !ok {
		return fmt.Errorf("%w: %q", ErrSigningKeyMissing, k.Current)
	}
	return nil
}

func (k KeySet) secret(kid string) ([]byte, bool) {
	secret, ok := k.Keys[kid]
	if !ok || len(secret) == 0 {
		return nil, false
	}
	return secret, true
}
