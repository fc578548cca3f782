// Command fido2nfc is a PC/SC-backed demonstration of the ctap2nfc
// engine: it opens a reader, opens a FIDO2 device over it, reports
// GetInfo, and requests an assertion. When a large-blob key is available
// it looks up the large-blob entry and verifies the assertion against
// the public key stored there.
package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/All-Your-Locks-Are-Belong-To-Us/ctap2nfc"
)

func main() {
	configPath := flag.String("config", "fido2nfc.yaml", "path to YAML config")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("fido2nfc: failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return err
	}

	io := &pcscIO{readerIndex: cfg.Reader}
	dev := ctap2nfc.NewDevice(io, ctap2nfc.DefaultProvider{})

	if err := dev.Open(); err != nil {
		return fmt.Errorf("open device: %w", err)
	}
	defer dev.Close()

	if info := dev.Info(); info != nil {
		fmt.Printf("authenticator caps=%v maxMsg=%d maxLargeBlob=%d\n",
			dev.Caps(), info.MaxMsgSize, info.MaxLargeBlob)
	} else {
		fmt.Printf("authenticator caps=%v (no GetInfo)\n", dev.Caps())
	}

	if !dev.IsFIDO() {
		return fmt.Errorf("authenticator does not advertise CBOR capability")
	}

	transport, err := deviceTransport(dev)
	if err != nil {
		return err
	}

	clientData := make([]byte, 32)
	if _, err := rand.Read(clientData); err != nil {
		return fmt.Errorf("generate client data: %w", err)
	}

	req := ctap2nfc.AssertionRequest{RPID: cfg.RelyingPartyID, UP: true, UV: cfg.requireUV()}
	req.SetClientData(ctap2nfc.DefaultProvider{}, clientData)

	reply, err := ctap2nfc.Execute(transport, req)
	if err != nil {
		return fmt.Errorf("get assertion: %w", err)
	}
	fmt.Printf("assertion: credential id=% X signCount=%d largeBlobKey=%v\n",
		reply.CredentialID, reply.SignCount, reply.HasLargeBlobKey)

	largeBlobKey, ok, err := resolveLargeBlobKey(reply, cfg)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	pubKey, err := lookupLargeBlob(transport, dev, largeBlobKey, cfg)
	if err != nil {
		slog.Warn("fido2nfc: large-blob lookup failed", "error", err)
		return nil
	}

	if err := ctap2nfc.Verify(reply, req, ctap2nfc.DefaultProvider{}, coseEdDSA, pubKey); err != nil {
		return fmt.Errorf("verify assertion: %w", err)
	}
	fmt.Println("assertion verified against large-blob-stored credential key")
	return nil
}

// coseEdDSA is the one COSE algorithm identifier the engine's Verify
// supports, mirrored here since the demo only ever recovers Ed25519
// public keys from its large-blob entries.
const coseEdDSA = -8

// resolveLargeBlobKey picks the AES key the large-blob lookup should use.
// The per-credential largeBlobKey extension on the assertion is the
// protocol-correct source; an operator-supplied key (file or interactive
// prompt, per Config.LargeBlobKeyFile) overrides it, mirroring the
// teacher's key-rotation tools where an operator-held key takes
// precedence over whatever the device itself reports.
func resolveLargeBlobKey(reply *ctap2nfc.AssertionReply, cfg *Config) ([32]byte, bool, error) {
	if cfg.LargeBlobKeyFile != nil || cfg.promptLargeBlobKey() {
		key, err := loadLargeBlobKey(cfg)
		if err != nil {
			return [32]byte{}, false, fmt.Errorf("load configured large-blob key: %w", err)
		}
		return key, true, nil
	}
	if reply.HasLargeBlobKey {
		return reply.LargeBlobKey, true, nil
	}
	return [32]byte{}, false, nil
}

// lookupLargeBlob reads and decrypts the caller's large-blob entry and
// returns its plaintext as an Ed25519 public key: this demo's entries
// store the credential's public key so a recovered assertion can be
// verified without a separate registration database.
func lookupLargeBlob(transport ctap2nfc.Transport, dev *ctap2nfc.Device, largeBlobKey [32]byte, cfg *Config) (ed25519.PublicKey, error) {
	info := dev.Info()
	maxMsg := ctap2nfc.MaxMsgSize
	if info != nil && info.MaxMsgSize > 0 {
		maxMsg = int(info.MaxMsgSize)
	}

	array, err := ctap2nfc.ReadLargeBlobArray(transport, maxMsg)
	if err != nil {
		return nil, fmt.Errorf("read large-blob array: %w", err)
	}
	array = ctap2nfc.VerifyLargeBlobArray(ctap2nfc.DefaultProvider{}, array)

	plaintext, err := ctap2nfc.LookupLargeBlobEntry(ctap2nfc.DefaultProvider{}, array, largeBlobKey)
	if err != nil {
		return nil, err
	}
	fmt.Printf("large-blob entry: %d bytes decrypted\n", len(plaintext))
	if len(plaintext) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("large-blob entry is %d bytes, want a %d-byte Ed25519 public key", len(plaintext), ed25519.PublicKeySize)
	}
	return ed25519.PublicKey(plaintext), nil
}

// deviceTransport exposes Device's private transport seam through the
// one exported operation that needs it directly: assertion/large-blob
// requests are free functions operating on a Transport, so the demo
// obtains one over the already-open handle through the public surface
// rather than reaching into Device internals.
func deviceTransport(dev *ctap2nfc.Device) (ctap2nfc.Transport, error) {
	return dev.Transport()
}
