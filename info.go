package ctap2nfc

// Version, extension, transport, and algorithm identifiers are
// represented as wide bitsets, not narrow enums, per the capability-
// flag-width design note: pick a representation that doesn't silently
// truncate as the recognized set grows.

type VersionSet uint32

const (
	VersionFIDO20 VersionSet = 1 << iota
	VersionFIDO21
	VersionFIDO21Pre
	VersionU2FV2
)

type ExtensionSet uint32

const (
	ExtCredBlob ExtensionSet = 1 << iota
	ExtHMACSecret
	ExtCredProtect
	ExtLargeBlobKey
	ExtMinPinLength
)

type TransportSet uint32

const (
	TransportUSB TransportSet = 1 << iota
	TransportNFC
	TransportBLE
	TransportInternal
)

// AlgSet enumerates COSE signature algorithms GetInfo can advertise.
// Only EdDSA is ever used for verification (§4.8); the rest are tracked
// because a complete GetInfo decode reports everything the authenticator
// claims, even algorithms this client cannot itself verify.
type AlgSet uint32

const (
	AlgES256 AlgSet = 1 << iota
	AlgEdDSA
	AlgES384
	AlgES512
	AlgES256K
	AlgPS256
	AlgRS256
)

// COSE algorithm identifiers, as carried in the "alg" member of each
// GetInfo algorithms entry.
const (
	coseES256  = -7
	coseEdDSA  = -8
	coseES384  = -35
	coseES512  = -36
	coseRS256  = -257
	cosePS256  = -37
	coseES256K = -47
)

// Info is the decoded authenticatorGetInfo reply. Fields populate during
// Device.Open and are immutable afterward.
type Info struct {
	Versions     VersionSet
	Extensions   ExtensionSet
	AAGUID       [16]byte
	Options      map[string]bool
	MaxMsgSize   uint64
	PinProtocols []uint64
	MaxCredList  uint64
	MaxCredIDLen uint64
	Transports   TransportSet
	Algorithms   AlgSet
	MaxLargeBlob uint64
	FWVersion    uint64
	MaxCredBlob  uint64
}

// getInfo issues authenticatorGetInfo (CTAP command 0x04) and decodes
// the reply into an Info record.
func getInfo(t Transport, provider Provider) (*Info, error) {
	status, payload, err := sendCBOR(t, cmdGetInfo, nil)
	if err != nil {
		return nil, err
	}
	if !statusOK(status) {
		return nil, &StatusError{Cmd: cmdGetInfo, Status: status}
	}

	info := &Info{Options: make(map[string]bool)}
	cur := newCursor(payload)
	err = iterateMap(cur, func(key Elem, valCur *cursor) error {
		if key.Kind != KindUint {
			return skipElem(valCur)
		}
		switch key.Int() {
		case 1:
			return decodeVersions(valCur, info)
		case 2:
			return decodeExtensions(valCur, info)
		case 3:
			e, err := decodeElem(valCur)
			if err != nil {
				return err
			}
			if e.Kind != KindBytes || len(e.Data) != 16 {
				return newErr(ErrUnexpectedType, "AAGUID must be 16 bytes")
			}
			copy(info.AAGUID[:], e.Data)
			return nil
		case 4:
			return decodeOptions(valCur, info)
		case 5:
			e, err := decodeElem(valCur)
			if err != nil {
				return err
			}
			if e.Kind != KindUint {
				return newErr(ErrUnexpectedType, "maxMsgSize must be uint")
			}
			info.MaxMsgSize = e.UVal
			return nil
		case 6:
			return decodePinProtocols(valCur, info)
		case 7:
			e, err := decodeElem(valCur)
			if err != nil {
				return err
			}
			info.MaxCredList = e.UVal
			return nil
		case 8:
			e, err := decodeElem(valCur)
			if err != nil {
				return err
			}
			info.MaxCredIDLen = e.UVal
			return nil
		case 9:
			return decodeTransports(valCur, info)
		case 10:
			return decodeAlgorithms(valCur, info)
		case 11:
			e, err := decodeElem(valCur)
			if err != nil {
				return err
			}
			info.MaxLargeBlob = e.UVal
			return nil
		case 14:
			e, err := decodeElem(valCur)
			if err != nil {
				return err
			}
			info.FWVersion = e.UVal
			return nil
		case 15:
			e, err := decodeElem(valCur)
			if err != nil {
				return err
			}
			info.MaxCredBlob = e.UVal
			return nil
		default:
			return skipElem(valCur)
		}
	})
	if err != nil {
		return nil, err
	}
	return info, nil
}

func decodeVersions(cur *cursor, info *Info) error {
	return iterateArray(cur, func(_ int, itemCur *cursor) error {
		e, err := decodeElem(itemCur)
		if err != nil {
			return err
		}
		if e.Kind != KindText {
			return newErr(ErrUnexpectedType, "version entry must be text")
		}
		switch string(e.Data) {
		case "FIDO_2_0":
			info.Versions |= VersionFIDO20
		case "FIDO_2_1":
			info.Versions |= VersionFIDO21
		case "FIDO_2_1_PRE":
			info.Versions |= VersionFIDO21Pre
		case "U2F_V2":
			info.Versions |= VersionU2FV2
		}
		return nil
	})
}

func decodeExtensions(cur *cursor, info *Info) error {
	return iterateArray(cur, func(_ int, itemCur *cursor) error {
		e, err := decodeElem(itemCur)
		if err != nil {
			return err
		}
		if e.Kind != KindText {
			return newErr(ErrUnexpectedType, "extension entry must be text")
		}
		switch string(e.Data) {
		case "credBlob":
			info.Extensions |= ExtCredBlob
		case "hmac-secret":
			info.Extensions |= ExtHMACSecret
		case "credProtect":
			info.Extensions |= ExtCredProtect
		case "largeBlobKey":
			info.Extensions |= ExtLargeBlobKey
		case "minPinLength":
			info.Extensions |= ExtMinPinLength
		}
		return nil
	})
}

func decodeOptions(cur *cursor, info *Info) error {
	e, err := decodeElem(cur)
	if err != nil {
		return err
	}
	if e.Kind != KindMap {
		return newErr(ErrUnexpectedType, "options must be a map")
	}
	for i := uint64(0); i < e.UVal; i++ {
		k, err := decodeElem(cur)
		if err != nil {
			return err
		}
		if k.Kind != KindText {
			return newErr(ErrUnexpectedType, "option name must be text")
		}
		v, err := decodeElem(cur)
		if err != nil {
			return err
		}
		if v.Kind == KindTrue {
			info.Options[string(k.Data)] = true
		}
		// false or any other value: option bit is left unset.
	}
	return nil
}

func decodePinProtocols(cur *cursor, info *Info) error {
	return iterateArray(cur, func(_ int, itemCur *cursor) error {
		e, err := decodeElem(itemCur)
		if err != nil {
			return err
		}
		if e.Kind != KindUint {
			return newErr(ErrUnexpectedType, "pinProtocol entry must be uint")
		}
		if e.UVal == 1 || e.UVal == 2 {
			info.PinProtocols = append(info.PinProtocols, e.UVal)
		}
		return nil
	})
}

func decodeTransports(cur *cursor, info *Info) error {
	return iterateArray(cur, func(_ int, itemCur *cursor) error {
		e, err := decodeElem(itemCur)
		if err != nil {
			return err
		}
		if e.Kind != KindText {
			return newErr(ErrUnexpectedType, "transport entry must be text")
		}
		switch string(e.Data) {
		case "usb":
			info.Transports |= TransportUSB
		case "nfc":
			info.Transports |= TransportNFC
		case "ble":
			info.Transports |= TransportBLE
		case "internal":
			info.Transports |= TransportInternal
		}
		return nil
	})
}

func decodeAlgorithms(cur *cursor, info *Info) error {
	return iterateArray(cur, func(_ int, itemCur *cursor) error {
		e, err := decodeElem(itemCur)
		if err != nil {
			return err
		}
		if e.Kind != KindMap {
			return newErr(ErrUnexpectedType, "algorithm entry must be a map")
		}
		for i := uint64(0); i < e.UVal; i++ {
			k, err := decodeElem(itemCur)
			if err != nil {
				return err
			}
			if k.Kind != KindText {
				return skipElem(itemCur)
			}
			if string(k.Data) != "alg" {
				if err := skipElem(itemCur); err != nil {
					return err
				}
				continue
			}
			v, err := decodeElem(itemCur)
			if err != nil {
				return err
			}
			switch v.Int() {
			case coseES256:
				info.Algorithms |= AlgES256
			case coseEdDSA:
				info.Algorithms |= AlgEdDSA
			case coseES384:
				info.Algorithms |= AlgES384
			case coseES512:
				info.Algorithms |= AlgES512
			case coseES256K:
				info.Algorithms |= AlgES256K
			case cosePS256:
				info.Algorithms |= AlgPS256
			case coseRS256:
				info.Algorithms |= AlgRS256
			}
		}
		return nil
	})
}
