package ctap2nfc

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"io"
)

// Provider is the pluggable cryptographic capability surface the engine
// calls through. Embedders substitute a hardware-backed implementation
// by supplying their own Provider; DefaultProvider is the optional
// software fallback.
//
// Required for read-only client operation: SHA256, AESGCMOpen,
// Ed25519Verify, Random. AESGCMSeal and Ed25519Sign exist for
// completeness of the surface but are never called by this engine (it
// never produces a signed or sealed message of its own).
type Provider interface {
	SHA256(data []byte) [32]byte
	SHA512(data []byte) [64]byte

	// AESGCMSeal encrypts plaintext with a 12-byte nonce and associated
	// data, returning ciphertext with the 16-byte tag appended.
	AESGCMSeal(key, nonce, plaintext, aad []byte) ([]byte, error)
	// AESGCMOpen authenticates and decrypts ciphertext (tag appended at
	// the end) under key/nonce/aad. Returns an error if the tag does not
	// verify.
	AESGCMOpen(key, nonce, ciphertext, aad []byte) ([]byte, error)

	Ed25519Sign(secretKey, message []byte) ([]byte, error)
	Ed25519Verify(publicKey, message, sig []byte) bool

	// Random fills b with cryptographically secure random bytes.
	Random(b []byte) error
}

// DefaultProvider is the compile-time-optional software implementation,
// built on the Go standard library's crypto primitives. It exists so a
// host with no hardware crypto available still has a working engine; a
// host constrained enough to want to omit it simply never references
// this type, so it is safe to link conditionally.
type DefaultProvider struct{}

var _ Provider = DefaultProvider{}

func (DefaultProvider) SHA256(data []byte) [32]byte {
	return sha256.Sum256(data)
}

func (DefaultProvider) SHA512(data []byte) [64]byte {
	return sha512.Sum512(data)
}

func (DefaultProvider) AESGCMSeal(key, nonce, plaintext, aad []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != gcm.NonceSize() {
		return nil, newErr(ErrInvalidArgument, "bad nonce length")
	}
	return gcm.Seal(nil, nonce, plaintext, aad), nil
}

func (DefaultProvider) AESGCMOpen(key, nonce, ciphertext, aad []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != gcm.NonceSize() {
		return nil, newErr(ErrInvalidArgument, "bad nonce length")
	}
	pt, err := gcm.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, wrapErr(ErrInvalidSig, "AES-GCM authentication failed", err)
	}
	return pt, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, wrapErr(ErrInternal, "aes.NewCipher", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, wrapErr(ErrInternal, "cipher.NewGCM", err)
	}
	return gcm, nil
}

func (DefaultProvider) Ed25519Sign(secretKey, message []byte) ([]byte, error) {
	if len(secretKey) != ed25519.SeedSize {
		return nil, newErr(ErrInvalidArgument, "bad Ed25519 seed length")
	}
	priv := ed25519.NewKeyFromSeed(secretKey)
	return ed25519.Sign(priv, message), nil
}

func (DefaultProvider) Ed25519Verify(publicKey, message, sig []byte) bool {
	if len(publicKey) != ed25519.PublicKeySize || len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(publicKey), message, sig)
}

func (DefaultProvider) Random(b []byte) error {
	_, err := io.ReadFull(rand.Reader, b)
	if err != nil {
		return wrapErr(ErrInternal, "random source failed", err)
	}
	return nil
}

// requireProvider checks that a crypto provider is installed at all.
// Device.Open calls it and fails with an internal error when the
// provider is nil.
func requireProvider(p Provider) error {
	if p == nil {
		return newErr(ErrInternal, "no crypto provider installed")
	}
	return nil
}
