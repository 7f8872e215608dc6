// Package reconstruct turns a DER-encoded ECDSA signature — the format
// returned by KMS/HSM custodians, which carry no recovery bit — into a
// canonical, recoverable (r, s, v) Signature by brute-forcing the
// recovery id against an expected address (or accepting the first id
// that recovers at all) and enforcing low-s canonical form.
//
// The approach parses the KMS ASN.1 signature with encoding/asn1 and
// recovers the sender by trying each parity bit against go-ethereum's
// crypto package, the same shape go-ethkms-gcp.go uses.
package reconstruct

import (
	"encoding/asn1"
	"math/big"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/yourusername/mevcore/internal/coreerr"
)

// Signature holds (r, s, v) with r, s in [1, N-1] and v encoding recovery
// parity. Canonical() is guaranteed true for every Signature this package
// returns.
type Signature struct {
	R *big.Int
	S *big.Int
	V byte // 27 or 28
}

// curveOrder and halfOrder are derived from the secp256k1 parameters
// rather than hard-coded as hex literals.
var (
	curveOrder = secp256k1.S256().N
	halfOrder  = new(big.Int).Rsh(curveOrder, 1)
)

// Canonical reports whether s <= N/2, the low-s form Ethereum requires.
func (s Signature) Canonical() bool {
	return s.S.Cmp(halfOrder) <= 0
}

// Bytes65 packs the signature into the compact r||s||v wire form expected
// by go-ethereum's tx.WithSignature, normalizing v to the parity bit
// go-ethereum expects (0/1) rather than the Ethereum-wire 27/28.
func (s Signature) Bytes65() [65]byte {
	var out [65]byte
	rBytes := s.R.Bytes()
	sBytes := s.S.Bytes()
	copy(out[32-len(rBytes):32], rBytes)
	copy(out[64-len(sBytes):64], sBytes)
	out[64] = s.V - 27
	return out
}

// Canonicalize enforces low-s form on a raw (r, s, v): if
// s > N/2, replace s with N-s and flip v's parity (27<->28). v is assumed
// to already be in the 27/28 Ethereum-wire encoding.
func Canonicalize(r, s *big.Int, v byte) Signature {
	r = new(big.Int).Set(r)
	s = new(big.Int).Set(s)
	if s.Cmp(halfOrder) > 0 {
		s = new(big.Int).Sub(curveOrder, s)
		if v == 27 {
			v = 28
		} else {
			v = 27
		}
	}
	return Signature{R: r, S: s, V: v}
}

// asn1Signature is the ASN.1 SEQUENCE { r INTEGER, s INTEGER } shape DER
// ECDSA signatures use.
type asn1Signature struct {
	R, S *big.Int
}

// Reconstruct parses a DER-encoded ECDSA signature over digest and
// recovers the (r, s, v) Signature, canonicalized to low-s form.
//
// If expectedAddr is non-nil, only the recovery id whose recovered
// address matches it is accepted; otherwise the first recovery id that
// yields ANY public key is accepted.
func Reconstruct(der []byte, digest []byte, expectedAddr *common.Address) (Signature, error) {
	if len(digest) != 32 {
		return Signature{}, coreerr.NewNonRetryable(coreerr.CodeInvalidDigestLength,
			"digest must be 32 bytes", nil)
	}

	var parsed asn1Signature
	rest, err := asn1.Unmarshal(der, &parsed)
	if err != nil || len(rest) > 0 || parsed.R == nil || parsed.S == nil {
		return Signature{}, coreerr.NewNonRetryable(coreerr.CodeInvalidDER,
			"signature is not a valid ASN.1 SEQUENCE of two INTEGERs", err)
	}

	compact := make([]byte, 64)
	rBytes := parsed.R.Bytes()
	sBytes := parsed.S.Bytes()
	if len(rBytes) > 32 || len(sBytes) > 32 {
		return Signature{}, coreerr.NewNonRetryable(coreerr.CodeInvalidDER,
			"r or s exceeds 32 bytes", nil)
	}
	copy(compact[32-len(rBytes):32], rBytes)
	copy(compact[64-len(sBytes):64], sBytes)

	for rid := byte(0); rid < 4; rid++ {
		candidate := append(append([]byte{}, compact...), rid)
		pubKey, err := crypto.SigToPub(digest, candidate)
		if err != nil {
			continue
		}
		addr := crypto.PubkeyToAddress(*pubKey)
		if expectedAddr != nil && addr != *expectedAddr {
			continue
		}

		return Canonicalize(parsed.R, parsed.S, rid+27), nil
	}

	return Signature{}, coreerr.NewNonRetryable(coreerr.CodeUnrecoverableSignature,
		"no recovery id produced the expected signer", nil)
}

// FromCompact64 builds a Signature from a bare 64-byte r||s signature by
// running the same recovery search Reconstruct does on a DER input.
func FromCompact64(compact []byte, digest []byte, expectedAddr *common.Address) (Signature, error) {
	if len(compact) != 64 {
		return Signature{}, coreerr.NewNonRetryable(coreerr.CodeUnsupportedSignatureFmt,
			"compact signature must be 64 bytes", nil)
	}
	der, err := compactToDER(compact)
	if err != nil {
		return Signature{}, coreerr.NewNonRetryable(coreerr.CodeUnsupportedSignatureFmt,
			"failed to re-encode compact signature as DER", err)
	}
	return Reconstruct(der, digest, expectedAddr)
}

// compactToDER re-encodes a raw r||s pair as an ASN.1 DER SEQUENCE so it
// can be routed through the same Reconstruct path as a native DER
// signature.
func compactToDER(compact []byte) ([]byte, error) {
	r := new(big.Int).SetBytes(compact[:32])
	s := new(big.Int).SetBytes(compact[32:64])
	return asn1.Marshal(asn1Signature{R: r, S: s})
}
