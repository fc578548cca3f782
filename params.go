package ctap2nfc

// Protocol-level constants: CTAP command identifiers, ISO7816 class/
// instruction bytes, and compile-time buffer caps.

// CTAP command identifiers (the single-byte opcode that opens a CBOR
// request, or the INS byte for MSG-style transports).
const (
	cmdMakeCredential = 0x01 // unused; makeCredential is out of scope
	cmdGetAssertion   = 0x02
	cmdGetInfo        = 0x04
	cmdLargeBlobs     = 0x0C
)

// ISO7816-4 class/instruction bytes used to address a FIDO2 authenticator
// over NFC.
const (
	claISO        = 0x00
	claChain      = 0x10 // OR'd into CLA to signal "more APDUs follow"
	claCBOR       = 0x80
	insSelect     = 0xA4
	insCBOR       = 0x10
	insGetResp    = 0xC0
	p1SelectByAID = 0x04
)

// fidoAID is the application identifier a FIDO2 authenticator registers
// for SELECT.
var fidoAID = []byte{0xa0, 0x00, 0x00, 0x06, 0x47, 0x2f, 0x00, 0x01}

// MaxMsgSize is the compile-time ceiling on any single CTAP message this
// engine will assemble or accept, regardless of what the authenticator
// advertises in GetInfo.
const MaxMsgSize = 2048

// chainChunk is the largest payload carried by one outgoing APDU; longer
// payloads are split into chained APDUs of at most this size.
const chainChunk = 240

// minMsgFloor is the smallest negotiated max-message-size the engine will
// accept; below this no CTAP2 exchange can reasonably proceed.
const minMsgFloor = 64

// attributeBlockLen is the fixed size of the INIT reply:
// nonce(8) || protocol(1) || major(1) || minor(1) || build(1) || flags(1).
const attributeBlockLen = 13

// Device capability flags, derived from the INIT attribute block and (if
// present) the GetInfo response. Represented as a wide bitset per the
// capability-flag-width design note: do not narrow this type.
type Caps uint32

const (
	CapCBOR Caps = 1 << iota
	CapNMsg
	CapPinSet
	CapCredMgmt
	CapUV
	CapTokenPerms
	CapLargeBlob
	CapLargeBlobKey
	CapCredProt
	CapPinProtocol1
	CapPinProtocol2
)

// initFlags bits inside the INIT attribute block's trailing flags byte.
const (
	initFlagCBOR = 0x01
	initFlagNMsg = 0x08
)
