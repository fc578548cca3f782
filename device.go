package ctap2nfc

import (
	"log/slog"
)

// IOHandle is the open connection a host's HAL hands back from Open. Its
// Read/Write calls are the raw transport primitives the NFC layer is
// built on; a negative count (mirroring the C HAL contract) is treated
// the same as a non-nil error.
type IOHandle interface {
	Read(buf []byte) (int, error)
	Write(buf []byte) (int, error)
}

// IO is the host-provided vtable for acquiring and releasing a transport
// handle. All methods are synchronous; there is no internal queuing or
// retry at this layer.
type IO interface {
	Open() (IOHandle, error)
	Close(IOHandle)
}

// ioTransport adapts a raw IOHandle into the Transport interface the
// ISO7816/chaining layer consumes, by pairing one Write with one Read
// per APDU.
type ioTransport struct {
	h IOHandle
}

func (t ioTransport) Transmit(apdu []byte) ([]byte, error) {
	n, err := t.h.Write(apdu)
	if err != nil || n < 0 {
		return nil, wrapErr(ErrTX, "HAL write failed", err)
	}
	buf := make([]byte, 258)
	n, err = t.h.Read(buf)
	if err != nil || n < 2 {
		return nil, wrapErr(ErrRX, "HAL read failed or too short", err)
	}
	return buf[:n], nil
}

// Device is a handle to one FIDO2 authenticator reachable over NFC. It
// is not safe for concurrent use; every operation is a blocking
// round-trip and the caller owns serializing access.
type Device struct {
	io       IO
	handle   IOHandle
	provider Provider

	nonce   [8]byte
	caps    Caps
	maxMsg  int
	aaguid  [16]byte
	info    *Info
	isFido  bool
	logger  *slog.Logger
}

// NewDevice constructs an unopened device bound to the given HAL and
// crypto provider.
func NewDevice(io IO, provider Provider) *Device {
	return &Device{io: io, provider: provider, maxMsg: MaxMsgSize, logger: slog.Default()}
}

// SetLogger overrides the logger used for lifecycle and wire-level
// messages; passing nil restores slog.Default().
func (d *Device) SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.Default()
	}
	d.logger = l
}

// IsFIDO reports whether the device advertised CBOR capability during
// open. Execute and ReadLargeBlobArray take a bare Transport and do not
// check it themselves; callers check it before issuing either.
func (d *Device) IsFIDO() bool {
	return d.isFido
}

// Caps returns the capability flags derived during open.
func (d *Device) Caps() Caps {
	return d.caps
}

// Info returns the parsed GetInfo record, or nil if the device never
// advertised CBOR capability.
func (d *Device) Info() *Info {
	return d.info
}

// Open acquires the transport handle, performs the INIT/SELECT exchange,
// and — if the device advertises CBOR capability — issues GetInfo to
// populate capability flags and the negotiated max-message-size. On any
// failure after the handle is acquired, Open calls Close before
// returning so the device is left with a null handle.
func (d *Device) Open() error {
	if d.io == nil {
		return newErr(ErrInvalidArgument, "no I/O vtable installed")
	}
	if err := requireProvider(d.provider); err != nil {
		return err
	}

	if err := d.provider.Random(d.nonce[:]); err != nil {
		return wrapErr(ErrInternal, "nonce generation failed", err)
	}

	h, err := d.io.Open()
	if err != nil || h == nil {
		return wrapErr(ErrInternal, "HAL open failed", err)
	}
	d.handle = h

	if err := d.openLocked(); err != nil {
		d.Close()
		return err
	}
	d.logger.Info("ctap2nfc: device opened", "caps", d.caps, "maxMsg", d.maxMsg)
	return nil
}

func (d *Device) openLocked() error {
	t := ioTransport{h: d.handle}

	r, err := sendSelect(t)
	if err != nil {
		return err
	}
	if !r.ok() {
		return wrapErr(ErrRX, "SELECT rejected", &StatusError{Cmd: insSelect, Status: r.sw1})
	}

	if len(r.data) == attributeBlockLen {
		var attr [attributeBlockLen]byte
		copy(attr[:], r.data)
		echoedNonce := attr[:8]
		for i := range d.nonce {
			if echoedNonce[i] != d.nonce[i] {
				return newErr(ErrRX, "INIT nonce mismatch")
			}
		}
		flags := attr[12]
		if flags&initFlagCBOR != 0 {
			d.caps |= CapCBOR
			d.isFido = true
		}
		if flags&initFlagNMsg != 0 {
			d.caps |= CapNMsg
		}
	} else {
		// No attribute block: some authenticators answer SELECT with a
		// bare version string instead. CBOR capability is inferred from
		// the string itself rather than a flags byte.
		switch string(r.data) {
		case "U2F_V2":
			d.caps |= CapCBOR
			d.isFido = true
		case "FIDO_2_0":
			d.caps |= CapCBOR | CapNMsg
			d.isFido = true
		default:
			return newErr(ErrRX, "unrecognized SELECT reply")
		}
	}

	if d.caps&CapCBOR != 0 {
		info, err := getInfo(t, d.provider)
		if err != nil {
			return err
		}
		d.info = info
		d.applyInfo(info)
	}

	return nil
}

// applyInfo folds a GetInfo response into the device's capability flags
// and negotiated limits.
func (d *Device) applyInfo(info *Info) {
	if info.Options["clientPin"] {
		d.caps |= CapPinSet
	}
	if info.Options["credMgmt"] {
		d.caps |= CapCredMgmt
	}
	if info.Options["uv"] {
		d.caps |= CapUV
	}
	if info.Options["credentialMgmtPreview"] || info.Options["authnrCfg"] {
		d.caps |= CapTokenPerms
	}
	if info.Options["largeBlobs"] {
		d.caps |= CapLargeBlob
	}
	if info.Extensions&ExtLargeBlobKey != 0 {
		d.caps |= CapLargeBlobKey
	}
	if info.Options["credProtect"] {
		d.caps |= CapCredProt
	}
	for _, p := range info.PinProtocols {
		switch p {
		case 1:
			d.caps |= CapPinProtocol1
		case 2:
			d.caps |= CapPinProtocol2
		}
	}
	d.aaguid = info.AAGUID

	negotiated := info.MaxMsgSize
	if negotiated == 0 || negotiated > MaxMsgSize {
		negotiated = MaxMsgSize
	}
	if negotiated < minMsgFloor {
		negotiated = minMsgFloor
	}
	d.maxMsg = int(negotiated)
}

// Close releases the transport handle. It is safe to call on an already
// closed or never-opened device.
func (d *Device) Close() error {
	if d.io == nil {
		return newErr(ErrInvalidArgument, "no I/O vtable installed")
	}
	if d.handle == nil {
		return nil
	}
	d.io.Close(d.handle)
	d.handle = nil
	d.logger.Info("ctap2nfc: device closed")
	return nil
}

// Transport returns the Transport the assertion and large-blob engines
// should send commands over, or an error if the device was never opened.
func (d *Device) Transport() (Transport, error) {
	if d.handle == nil {
		return nil, newErr(ErrInvalidArgument, "device not open")
	}
	return ioTransport{h: d.handle}, nil
}
