// Package ctap2nfc implements the client side of a FIDO2/CTAP2
// conversation carried over ISO7816-4 APDUs on NFC.
//
// It drives an external authenticator to retrieve and verify assertions,
// and to fetch and decrypt per-credential large-blob payloads. It is not
// an authenticator implementation: makeCredential, PIN/UV token
// protocols, attestation parsing, and writing the large-blob array back
// to the device are all out of scope.
//
// # Opening a device
//
// A Device is constructed with a host-provided IO (the transport-open/
// close vtable) and a Provider (the cryptographic capability surface).
// Open() selects the FIDO application, exchanges the INIT nonce, and — if
// the authenticator advertises CBOR capability — issues GetInfo to
// populate Caps() and negotiate a max message size:
//
//	dev := ctap2nfc.NewDevice(hal, ctap2nfc.DefaultProvider{})
//	if err := dev.Open(); err != nil {
//		...
//	}
//	defer dev.Close()
//
// # Assertions
//
// Execute and Verify are free functions rather than Device methods: they
// only need a Transport and a Provider, which keeps them testable
// against a fake transport without standing up a whole Device.
//
//	req := ctap2nfc.AssertionRequest{RPID: "example.com", UP: true}
//	req.SetClientData(provider, clientDataJSON)
//	reply, err := ctap2nfc.Execute(transport, req)
//	err = ctap2nfc.Verify(reply, req, provider, -8, credentialPublicKey)
//
// # Large blobs
//
// ReadLargeBlobArray fetches and concatenates the paginated array,
// VerifyLargeBlobArray checks its trailing digest (falling back to the
// canonical empty-array seed on corruption), and LookupLargeBlobEntry
// scans it for the one entry that authenticates under a given
// largeBlobKey.
package ctap2nfc
