// Package fieldcrypt performs field-level encryption of taxpayer identifiers.
// Plaintext TINs exist only transiently: they enter through Encrypt and leave
// only inside the wire encoder via Decrypt. Nothing in this package logs
// plaintext.
package fieldcrypt

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/sherpatax/golang_services/internal/efile_service/domain"
)

var (
	// ErrKeyVersionRetired marks a ciphertext sealed under a key version the
	// keeper no longer holds. Re-encryption with a live key is the remedy.
	ErrKeyVersionRetired = errors.New("tin key version retired")

	// ErrCiphertextInvalid marks a ciphertext that fails authentication
	// under its own key version, i.e. corruption or tampering.
	ErrCiphertextInvalid = errors.New("tin ciphertext invalid")

	// ErrTINInvalid is returned for input that is not nine digits after
	// normalization.
	ErrTINInvalid = errors.New("tin must be nine digits")
)

// DecryptError wraps a failed decryption with the key version involved, so
// callers can tell a key-rotation problem from corrupted data.
type DecryptError struct {
	KeyVersion int
	Err        error
}

func (e *DecryptError) Error() string {
	return fmt.Sprintf("decrypt tin (key v%d): %v", e.KeyVersion, e.Err)
}

func (e *DecryptError) Unwrap() error { return e.Err }

// Keeper holds the TIN key ring. Keys is version -> 32-byte key; active is
// the version used for new ciphertexts. Retired versions are simply absent
// from the ring.
type Keeper struct {
	aeads  map[int]aead
	active int
}

type aead interface {
	Seal(dst, nonce, plaintext, additionalData []byte) []byte
	Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
}

// NewKeeper builds a Keeper from hex-encoded 32-byte keys keyed by version.
func NewKeeper(keys map[int][]byte, activeVersion int) (*Keeper, error) {
	if _, ok := keys[activeVersion]; !ok {
		return nil, fmt.Errorf("active tin key version %d not in ring", activeVersion)
	}
	aeads := make(map[int]aead, len(keys))
	for version, key := range keys {
		a, err := chacha20poly1305.NewX(key)
		if err != nil {
			return nil, fmt.Errorf("tin key version %d: %w", version, err)
		}
		aeads[version] = a
	}
	return &Keeper{aeads: aeads, active: activeVersion}, nil
}

// ActiveVersion returns the key version new ciphertexts are sealed under.
func (k *Keeper) ActiveVersion() int { return k.active }

// Encrypt normalizes and seals a plaintext TIN under the active key. The
// hash is a key-independent digest of the normalized plaintext, stable
// across key rotations.
func (k *Keeper) Encrypt(plaintext string) (domain.EncryptedTIN, error) {
	tin, err := Normalize(plaintext)
	if err != nil {
		return domain.EncryptedTIN{}, err
	}
	a := k.aeads[k.active]
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return domain.EncryptedTIN{}, fmt.Errorf("tin nonce: %w", err)
	}
	sealed := a.Seal(nonce, nonce, []byte(tin), nil)
	digest := sha256.Sum256([]byte(tin))
	return domain.EncryptedTIN{
		Ciphertext: base64.StdEncoding.EncodeToString(sealed),
		Last4:      tin[len(tin)-4:],
		Hash:       hex.EncodeToString(digest[:]),
		KeyVersion: k.active,
	}, nil
}

// Decrypt opens an at-rest TIN. A missing key version yields
// ErrKeyVersionRetired; an authentication failure yields
// ErrCiphertextInvalid, both wrapped in a DecryptError.
func (k *Keeper) Decrypt(enc domain.EncryptedTIN) (string, error) {
	a, ok := k.aeads[enc.KeyVersion]
	if !ok {
		return "", &DecryptError{KeyVersion: enc.KeyVersion, Err: ErrKeyVersionRetired}
	}
	sealed, err := base64.StdEncoding.DecodeString(enc.Ciphertext)
	if err != nil || len(sealed) < chacha20poly1305.NonceSizeX {
		return "", &DecryptError{KeyVersion: enc.KeyVersion, Err: ErrCiphertextInvalid}
	}
	nonce, ct := sealed[:chacha20poly1305.NonceSizeX], sealed[chacha20poly1305.NonceSizeX:]
	tin, err := a.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", &DecryptError{KeyVersion: enc.KeyVersion, Err: ErrCiphertextInvalid}
	}
	return string(tin), nil
}

// ReEncrypt reseals a ciphertext under the active key version. It is a no-op
// when the ciphertext is already current.
func (k *Keeper) ReEncrypt(enc domain.EncryptedTIN) (domain.EncryptedTIN, error) {
	if enc.KeyVersion == k.active {
		return enc, nil
	}
	tin, err := k.Decrypt(enc)
	if err != nil {
		return domain.EncryptedTIN{}, err
	}
	return k.Encrypt(tin)
}

// ParseKeyRing decodes a configuration key ring of version -> hex-encoded
// 32-byte key into the form NewKeeper takes.
func ParseKeyRing(hexKeys map[string]string) (map[int][]byte, error) {
	ring := make(map[int][]byte, len(hexKeys))
	for versionStr, hexKey := range hexKeys {
		var version int
		if _, err := fmt.Sscanf(versionStr, "%d", &version); err != nil {
			return nil, fmt.Errorf("tin key version %q: %w", versionStr, err)
		}
		key, err := hex.DecodeString(hexKey)
		if err != nil {
			return nil, fmt.Errorf("tin key version %d: %w", version, err)
		}
		if len(key) != chacha20poly1305.KeySize {
			return nil, fmt.Errorf("tin key version %d: want %d bytes, got %d", version, chacha20poly1305.KeySize, len(key))
		}
		ring[version] = key
	}
	return ring, nil
}

// Normalize strips separators from a TIN and validates its shape.
func Normalize(tin string) (string, error) {
	var b strings.Builder
	for _, r := range tin {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == ' ':
		default:
			return "", ErrTINInvalid
		}
	}
	if b.Len() != 9 {
		return "", ErrTINInvalid
	}
	return b.String(), nil
}

// Masked renders a display form showing only the last four digits, shaped
// by the TIN type: XX-XXX1234 for EINs, XXX-XX-1234 otherwise.
func Masked(last4 string, tt domain.TINType) string {
	if last4 == "" {
		return ""
	}
	if tt == domain.TINTypeEIN {
		return "XX-XXX" + last4
	}
	return "XXX-XX-" + last4
}
