package signatures

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// SlotInput describes one signature to pack. For ECDSA kinds Signature is r ‖ s ‖ v with v in
// 27/28 (or 0/1); for KindContract Signer is the contract owner and Signature its raw bytes.
type SlotInput struct {
	Kind      Kind
	Signer    common.Address
	Signature []byte
}

// Encode packs inputs into a blob: all fixed slots first, then the length-prefixed contract
// signatures in input order.
func Encode(inputs []SlotInput) []byte {
	fixed := make([]byte, 0, SlotLength*len(inputs))
	suffix := make([]byte, 0)
	suffixStart := SlotLength * len(inputs)

	for _, in := range inputs {
		switch in.Kind {
		case KindContract:
			offset := big.NewInt(int64(suffixStart + len(suffix)))
			fixed = append(fixed, common.LeftPadBytes(in.Signer.Bytes(), wordLength)...)
			fixed = append(fixed, common.LeftPadBytes(offset.Bytes(), wordLength)...)
			fixed = append(fixed, 0)

			length := big.NewInt(int64(len(in.Signature)))
			suffix = append(suffix, common.LeftPadBytes(length.Bytes(), wordLength)...)
			suffix = append(suffix, in.Signature...)
		default:
			slot := make([]byte, SlotLength)
			copy(slot, in.Signature)
			v := slot[SlotLength-1]
			if v < 27 {
				v += 27
			}
			if in.Kind == KindEthSign {
				v += EthSignVOffset
			}
			slot[SlotLength-1] = v
			fixed = append(fixed, slot...)
		}
	}
	return append(fixed, suffix...)
}
