// Package txtypes models a tagged variant over Legacy and EIP-1559
// transaction shapes, each able to produce the 32-byte sighash a Signer
// must sign and to RLP-sign itself given a Signature. The package is a
// thin, generalized form of ethereum.TransactionBuilder
// (src/chainadapter/ethereum/builder.go), carrying both transaction
// variants instead of hard-coding EIP-1559.
package txtypes

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Variant identifies which wire shape a Transaction carries.
type Variant int

const (
	Legacy Variant = iota
	DynamicFee
)

// Transaction is the builder-facing, chain-agnostic-in-name-only
// representation of a typed transaction. It is constructed by an external
// transaction builder and is immutable to the core: Clone() must be used
// before mutating fields for gas re-bidding.
type Transaction struct {
	Variant Variant
	ChainID *big.Int
	Nonce   uint64
	To      *common.Address
	Value   *big.Int
	Data    []byte
	Gas     uint64

	// Legacy-only.
	GasPrice *big.Int

	// EIP-1559-only.
	GasTipCap *big.Int // max_priority_fee
	GasFeeCap *big.Int // max_fee
}

// Clone returns a deep-enough copy safe to mutate independently (nonce
// overwrite in the nonce sweep, gas-bump in the autosubmitter re-bid path).
func (t *Transaction) Clone() *Transaction {
	clone := *t
	if t.Value != nil {
		clone.Value = new(big.Int).Set(t.Value)
	}
	if t.GasPrice != nil {
		clone.GasPrice = new(big.Int).Set(t.GasPrice)
	}
	if t.GasTipCap != nil {
		clone.GasTipCap = new(big.Int).Set(t.GasTipCap)
	}
	if t.GasFeeCap != nil {
		clone.GasFeeCap = new(big.Int).Set(t.GasFeeCap)
	}
	if t.Data != nil {
		clone.Data = append([]byte(nil), t.Data...)
	}
	return &clone
}

// toGethTx converts to the equivalent *types.Transaction so the signing
// machinery can reuse go-ethereum's RLP encoding and signer hashing, the
// same approach TransactionBuilder.Build takes.
func (t *Transaction) toGethTx() *types.Transaction {
	switch t.Variant {
	case Legacy:
		return types.NewTx(&types.LegacyTx{
			Nonce:    t.Nonce,
			GasPrice: t.GasPrice,
			Gas:      t.Gas,
			To:       t.To,
			Value:    t.Value,
			Data:     t.Data,
		})
	default:
		return types.NewTx(&types.DynamicFeeTx{
			ChainID:   t.ChainID,
			Nonce:     t.Nonce,
			GasTipCap: t.GasTipCap,
			GasFeeCap: t.GasFeeCap,
			Gas:       t.Gas,
			To:        t.To,
			Value:     t.Value,
			Data:      t.Data,
		})
	}
}

// gethSigner returns the types.Signer matching this transaction's variant
// and chain ID: EIP-155 for legacy, the latest signer (which falls back
// correctly for DynamicFeeTx) for EIP-1559.
func (t *Transaction) gethSigner() types.Signer {
	if t.Variant == Legacy {
		return types.NewEIP155Signer(t.ChainID)
	}
	return types.LatestSignerForChainID(t.ChainID)
}

// Sighash returns the 32-byte digest a Signer must produce an ECDSA
// signature over.
func (t *Transaction) Sighash() [32]byte {
	return t.gethSigner().Hash(t.toGethTx())
}

// RLPSign takes a completed (r, s, v) Signature and returns the raw
// signed transaction bytes.
func (t *Transaction) RLPSign(sig [65]byte) ([]byte, error) {
	signer := t.gethSigner()
	signed, err := t.toGethTx().WithSignature(signer, sig[:])
	if err != nil {
		return nil, err
	}
	return signed.MarshalBinary()
}
