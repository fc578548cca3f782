package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"golang.org/x/term"
)

// loadLargeBlobKey returns the 32-byte large-blob AES key, either from
// the configured hex file or by prompting interactively, mirroring the
// teacher's secret-entry flow for key rotation tools.
func loadLargeBlobKey(cfg *Config) ([32]byte, error) {
	var key [32]byte
	if cfg.LargeBlobKeyFile != nil {
		raw, err := os.ReadFile(*cfg.LargeBlobKeyFile)
		if err != nil {
			return key, fmt.Errorf("read large-blob key file: %w", err)
		}
		return decodeHexKey(raw)
	}

	fmt.Fprint(os.Stderr, "large-blob key (hex): ")
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return key, fmt.Errorf("read key from terminal: %w", err)
	}
	return decodeHexKey(raw)
}

func decodeHexKey(raw []byte) ([32]byte, error) {
	var key [32]byte
	trimmed := trimNewline(raw)
	decoded, err := hex.DecodeString(string(trimmed))
	if err != nil {
		return key, fmt.Errorf("decode hex key: %w", err)
	}
	if len(decoded) != 32 {
		return key, fmt.Errorf("large-blob key must be 32 bytes, got %d", len(decoded))
	}
	copy(key[:], decoded)
	return key, nil
}

func trimNewline(b []byte) []byte {
	for len(b) > 0 && (b[len(b)-1] == '\n' || b[len(b)-1] == '\r') {
		b = b[:len(b)-1]
	}
	return b
}
