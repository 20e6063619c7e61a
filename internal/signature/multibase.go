package signature

import (
	"errors"

	"github.com/multiformats/go-multibase"
)

// rawSignatureSize is the fixed r‖s / Ed25519 signature length.
const rawSignatureSize = 64

var errEmptyProofValue = errors.New("signature: empty proof value")

// DecodeProofValue decodes a multibase proofValue ("z" ⇒ base58btc) and
// left-pads short results to 64 bytes, since base58 drops leading zero bytes
// of the big-endian value.
func DecodeProofValue(value string) ([]byte, error) {
	if value == "" {
		return nil, errEmptyProofValue
	}
	_, data, err := multibase.Decode(value)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errEmptyProofValue
	}
	if len(data) < rawSignatureSize {
		padded := make([]byte, rawSignatureSize)
		copy(padded[rawSignatureSize-len(data):], data)
		return padded, nil
	}
	return data, nil
}

// EncodeProofValue renders a signature as base58btc multibase.
func EncodeProofValue(sig []byte) (string, error) {
	return multibase.Encode(multibase.Base58BTC, sig)
}
