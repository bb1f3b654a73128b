// Package signatures decodes and encodes packed multi-signature blobs.
//
// A blob is a run of fixed 65-byte slots r(32) ‖ s(32) ‖ v(1) followed by an optional suffix
// region. A slot with v == 0 is a contract signature: r carries the contract owner address
// left-padded to 32 bytes and s the byte offset, from the start of the blob, of a 32-byte
// length word followed by the contract's signature bytes.
package signatures

import (
	"math/big"

	"github.com/Layr-Labs/eigenx-account-validators/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

const (
	// SlotLength is the size of one fixed signature slot.
	SlotLength = 65

	wordLength = 32

	// EthSignVOffset shifts an eth_sign slot's v out of the plain ECDSA range.
	EthSignVOffset = 4
)

// Kind classifies a slot by its v byte.
type Kind int

const (
	KindUnknown Kind = iota
	KindECDSA
	KindEthSign
	KindContract
)

func (k Kind) String() string {
	switch k {
	case KindECDSA:
		return "ecdsa"
	case KindEthSign:
		return "eth_sign"
	case KindContract:
		return "contract"
	default:
		return "unknown"
	}
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "ecdsa":
		return KindECDSA, nil
	case "eth_sign":
		return KindEthSign, nil
	case "contract":
		return KindContract, nil
	default:
		return KindUnknown, errors.Errorf("unknown signature kind %q", s)
	}
}

// Slot is one decoded signature.
type Slot struct {
	Index int
	Kind  Kind
	V     byte
	R     [32]byte
	S     [32]byte

	// Signer is the contract owner for KindContract slots.
	Signer common.Address
	// Signature is the 65-byte r ‖ s ‖ v for ECDSA kinds (v normalized to 27/28) or the
	// referenced suffix bytes for KindContract.
	Signature []byte
}

// KindOf maps a v byte to its slot kind.
func KindOf(v byte) Kind {
	switch {
	case v == 0:
		return KindContract
	case v == 27 || v == 28:
		return KindECDSA
	case v == 27+EthSignVOffset || v == 28+EthSignVOffset:
		return KindEthSign
	default:
		return KindUnknown
	}
}

// Split reads slot index out of blob.
func Split(blob []byte, index int) (v byte, r, s [32]byte, err error) {
	if index < 0 {
		return 0, r, s, errors.Wrapf(types.ErrInvalidSignatureLength, "negative slot index %d", index)
	}
	start := index * SlotLength
	if start+SlotLength > len(blob) || start+SlotLength < start {
		return 0, r, s, errors.Wrapf(types.ErrInvalidSignatureLength, "slot %d needs %d bytes, blob has %d", index, start+SlotLength, len(blob))
	}
	copy(r[:], blob[start:start+wordLength])
	copy(s[:], blob[start+wordLength:start+2*wordLength])
	v = blob[start+2*wordLength]
	return v, r, s, nil
}

// Decode walks every fixed slot of blob. The fixed region ends at the end of the blob or at the
// lowest contract-signature offset, whichever comes first.
func Decode(blob []byte) ([]Slot, error) {
	slots := make([]Slot, 0, len(blob)/SlotLength)
	end := len(blob)
	sawContract := false

	for i := 0; SlotLength*(i+1) <= end; i++ {
		v, r, s, err := Split(blob, i)
		if err != nil {
			return nil, err
		}
		slot := Slot{Index: i, Kind: KindOf(v), V: v, R: r, S: s}

		switch slot.Kind {
		case KindContract:
			offset, sig, err := readContractSignature(blob, s, SlotLength*(i+1))
			if err != nil {
				return nil, errors.Wrapf(err, "slot %d", i)
			}
			slot.Signer = common.BytesToAddress(r[:])
			slot.Signature = sig
			sawContract = true
			if offset < end {
				end = offset
			}
		case KindECDSA, KindEthSign:
			sig := make([]byte, SlotLength)
			copy(sig[:wordLength], r[:])
			copy(sig[wordLength:2*wordLength], s[:])
			sig[2*wordLength] = v
			if slot.Kind == KindEthSign {
				sig[2*wordLength] = v - EthSignVOffset
			}
			slot.Signature = sig
		}
		slots = append(slots, slot)
	}

	if !sawContract && len(blob)%SlotLength != 0 {
		return nil, errors.Wrapf(types.ErrInvalidSignatureLength, "%d trailing bytes do not form a slot", len(blob)%SlotLength)
	}
	return slots, nil
}

func readContractSignature(blob []byte, offsetWord [32]byte, scanned int) (int, []byte, error) {
	offsetBig := new(big.Int).SetBytes(offsetWord[:])
	if !offsetBig.IsUint64() || offsetBig.Uint64() > uint64(len(blob)) {
		return 0, nil, errors.Wrapf(types.ErrInvalidSignatureOffset, "offset %s beyond blob of %d bytes", offsetBig, len(blob))
	}
	offset := int(offsetBig.Uint64())
	if offset < scanned {
		return 0, nil, errors.Wrapf(types.ErrInvalidSignatureOffset, "offset %d points into the fixed region ending at %d", offset, scanned)
	}
	if offset+wordLength > len(blob) {
		return 0, nil, errors.Wrapf(types.ErrInvalidSignatureOffset, "length word at %d exceeds blob of %d bytes", offset, len(blob))
	}
	lengthBig := new(big.Int).SetBytes(blob[offset : offset+wordLength])
	remaining := uint64(len(blob) - offset - wordLength)
	if !lengthBig.IsUint64() || lengthBig.Uint64() > remaining {
		return 0, nil, errors.Wrapf(types.ErrInvalidSignatureOffset, "contract signature of %s bytes exceeds blob", lengthBig)
	}
	start := offset + wordLength
	sig := make([]byte, int(lengthBig.Uint64()))
	copy(sig, blob[start:start+len(sig)])
	return offset, sig, nil
}
