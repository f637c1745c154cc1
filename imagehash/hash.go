// Package imagehash computes the pair of hashes the service records for
// every image: a cryptographic hash of the decoded pixels and a perceptual
// blockhash that survives re-encoding.
package imagehash

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"math/bits"
)

// HashSize is the size of both hash kinds in bytes.
const HashSize = 32

var (
	ErrInvalidLength       = errors.New("hash has invalid length")
	ErrUnsupportedFormat   = errors.New("unsupported image format")
	ErrInvalidHexCharacter = errors.New("hash contains invalid hex characters")
)

// CryptoHash is the SHA-256 digest of an image's decoded RGBA pixel buffer.
// Renders as lowercase hex; also convertible to URL-safe unpadded base64 for
// log submission.
type CryptoHash [HashSize]byte

// ParseCryptoHash parses a 64-character hex string.
func ParseCryptoHash(raw string) (CryptoHash, error) {
	var h CryptoHash
	if err := parseHex(raw, h[:]); err != nil {
		return CryptoHash{}, err
	}
	return h, nil
}

// CryptoHashFromB64 parses the URL-safe unpadded base64 form.
func CryptoHashFromB64(raw string) (CryptoHash, error) {
	var h CryptoHash
	if err := parseB64(raw, h[:]); err != nil {
		return CryptoHash{}, err
	}
	return h, nil
}

func (h CryptoHash) String() string {
	return hex.EncodeToString(h[:])
}

// B64 returns the URL-safe unpadded base64 form.
func (h CryptoHash) B64() string {
	return base64.RawURLEncoding.EncodeToString(h[:])
}

func (h CryptoHash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

func (h *CryptoHash) UnmarshalText(text []byte) error {
	parsed, err := ParseCryptoHash(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// PerceptualHash is a 256-bit blockhash of the decoded image. Similar images
// produce hashes at a small Hamming distance.
type PerceptualHash [HashSize]byte

// ParsePerceptualHash parses a 64-character hex string.
func ParsePerceptualHash(raw string) (PerceptualHash, error) {
	var h PerceptualHash
	if err := parseHex(raw, h[:]); err != nil {
		return PerceptualHash{}, err
	}
	return h, nil
}

// PerceptualHashFromB64 parses the URL-safe unpadded base64 form.
func PerceptualHashFromB64(raw string) (PerceptualHash, error) {
	var h PerceptualHash
	if err := parseB64(raw, h[:]); err != nil {
		return PerceptualHash{}, err
	}
	return h, nil
}

func (h PerceptualHash) String() string {
	return hex.EncodeToString(h[:])
}

// B64 returns the URL-safe unpadded base64 form.
func (h PerceptualHash) B64() string {
	return base64.RawURLEncoding.EncodeToString(h[:])
}

// Distance returns the Hamming distance to another perceptual hash, in bits.
func (h PerceptualHash) Distance(other PerceptualHash) int {
	var d int
	for i := range h {
		d += bits.OnesCount8(h[i] ^ other[i])
	}
	return d
}

func (h PerceptualHash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

func (h *PerceptualHash) UnmarshalText(text []byte) error {
	parsed, err := ParsePerceptualHash(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// VeracityHash is the hash pair recorded for an uploaded image.
type VeracityHash struct {
	Crypto     CryptoHash     `json:"crypto_hash"`
	Perceptual PerceptualHash `json:"perceptual_hash"`
}

func parseHex(raw string, out []byte) error {
	if len(raw) != hex.EncodedLen(len(out)) {
		return fmt.Errorf("%w: %d hex chars, want %d", ErrInvalidLength, len(raw), hex.EncodedLen(len(out)))
	}
	if _, err := hex.Decode(out, []byte(raw)); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidHexCharacter, err)
	}
	return nil
}

func parseB64(raw string, out []byte) error {
	decoded, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return fmt.Errorf("invalid base64 hash: %w", err)
	}
	if len(decoded) != len(out) {
		return fmt.Errorf("%w: %d bytes, want %d", ErrInvalidLength, len(decoded), len(out))
	}
	copy(out, decoded)
	return nil
}
