// Package signer provides a uniform capability for turning a Typed
// Transaction into wire-format signed transaction bytes, backed either by
// a local private key or by a remote digest-signing device (KMS/HSM) that
// returns DER, 65-byte, or 64-byte signatures.
//
// This generalizes ethereum.EthereumSigner
// (src/chainadapter/ethereum/signer.go), which only ever holds a local
// key, into a two-variant capability, with the remote path modeled on a
// KmsClient-style abstraction: sign a digest, get bytes back.
package signer

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/yourusername/mevcore/internal/coreerr"
	"github.com/yourusername/mevcore/internal/reconstruct"
	"github.com/yourusername/mevcore/internal/txtypes"
)

// Signer is the capability set every variant implements.
type Signer interface {
	// SignBytes message-prefix-signs arbitrary diagnostic payloads.
	SignBytes(payload []byte) ([]byte, error)

	// SignTyped produces the Raw Signed Transaction for tx.
	SignTyped(ctx context.Context, tx *txtypes.Transaction) ([]byte, error)

	// Address returns the public address this signer verifies under.
	Address() common.Address
}

// DigestSigner is the contract for a remote key custodian: sign a 32-byte
// digest, get signature bytes back in one of three shapes. Implementations
// also report the signer's address: NewRemoteSigner fails without it and
// uses it as the expected address during recovery.
type DigestSigner interface {
	SignDigest(ctx context.Context, digest [32]byte) ([]byte, error)
	Address(ctx context.Context) (*common.Address, error)
}

// LocalSigner holds a private scalar directly.
type LocalSigner struct {
	key  *ecdsa.PrivateKey
	addr common.Address
}

// NewLocalSigner builds a LocalSigner from an ECDSA private key.
func NewLocalSigner(key *ecdsa.PrivateKey) *LocalSigner {
	return &LocalSigner{key: key, addr: crypto.PubkeyToAddress(key.PublicKey)}
}

func (l *LocalSigner) Address() common.Address { return l.addr }

// SignBytes Keccak256-hashes payload behind the Ethereum signed-message
// prefix ("\x19Ethereum Signed Message:\n" + decimal length) and produces
// a recoverable signature over it.
func (l *LocalSigner) SignBytes(payload []byte) ([]byte, error) {
	hash := crypto.Keccak256([]byte(fmt.Sprintf("\x19Ethereum Signed Message:\n%d", len(payload))), payload)
	sig, err := crypto.Sign(hash, l.key)
	if err != nil {
		return nil, coreerr.NewNonRetryable(coreerr.CodeSigningBackendUnavailable, "local signing failed", err)
	}
	return sig, nil
}

// SignTyped computes tx's sighash, signs it natively (recoverable,
// low-s by construction via go-ethereum), and RLP-signs the transaction.
func (l *LocalSigner) SignTyped(_ context.Context, tx *txtypes.Transaction) ([]byte, error) {
	sighash := tx.Sighash()
	sig, err := crypto.Sign(sighash[:], l.key)
	if err != nil {
		return nil, coreerr.NewNonRetryable(coreerr.CodeSigningBackendUnavailable, "local signing failed", err)
	}
	var compact [65]byte
	copy(compact[:], sig) // go-ethereum's crypto.Sign already returns low-s, v in {0,1}

	raw, err := tx.RLPSign(compact)
	if err != nil {
		return nil, coreerr.NewNonRetryable(coreerr.CodeSigningBackendUnavailable, "RLP-sign failed", err)
	}
	return raw, nil
}

// RemoteSigner delegates digest signing to a DigestSigner and reconstructs
// a usable (r, s, v) Signature from whatever shape it returns.
type RemoteSigner struct {
	backend DigestSigner
	addr    common.Address
	log     *zap.SugaredLogger
}

// NewRemoteSigner resolves the backend's declared address once at
// construction time (used as expectedAddr during recovery) and wraps it
// for transaction signing.
func NewRemoteSigner(ctx context.Context, backend DigestSigner, log *zap.SugaredLogger) (*RemoteSigner, error) {
	addr, err := backend.Address(ctx)
	if err != nil || addr == nil {
		return nil, coreerr.NewRetryable(coreerr.CodeSigningBackendUnavailable,
			"remote signer did not return an address", nil, err)
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &RemoteSigner{backend: backend, addr: *addr, log: log}, nil
}

func (r *RemoteSigner) Address() common.Address { return r.addr }

func (r *RemoteSigner) SignBytes(payload []byte) ([]byte, error) {
	digest := crypto.Keccak256([]byte(fmt.Sprintf("\x19Ethereum Signed Message:\n%d", len(payload))), payload)
	var d [32]byte
	copy(d[:], digest)
	raw, err := r.backend.SignDigest(context.Background(), d)
	if err != nil {
		return nil, coreerr.NewRetryable(coreerr.CodeSigningBackendUnavailable, "remote digest signing failed", nil, err)
	}
	sig, err := r.resolve(raw, digest)
	if err != nil {
		return nil, err
	}
	b := sig.Bytes65()
	return b[:], nil
}

// SignTyped recovers the remote signature against tx's sighash and
// RLP-signs the transaction. The (r, s, v) is handed to go-ethereum's
// tx.WithSignature as a parity bit (Bytes65 always emits v-27); the
// per-variant v encoding (27|28 legacy, 0|1 EIP-1559) is go-ethereum's
// responsibility inside WithSignature/SignatureValues, not this package's.
func (r *RemoteSigner) SignTyped(ctx context.Context, tx *txtypes.Transaction) ([]byte, error) {
	sighash := tx.Sighash()
	raw, err := r.backend.SignDigest(ctx, sighash)
	if err != nil {
		return nil, coreerr.NewRetryable(coreerr.CodeSigningBackendUnavailable, "remote digest signing failed", nil, err)
	}

	sig, err := r.resolve(raw, sighash[:])
	if err != nil {
		return nil, err
	}

	compact := sig.Bytes65()
	signedRaw, err := tx.RLPSign(compact)
	if err != nil {
		return nil, coreerr.NewNonRetryable(coreerr.CodeSigningBackendUnavailable, "RLP-sign failed", err)
	}
	return signedRaw, nil
}

// resolve applies a fixed format resolution order: DER first (via the
// Reconstructor, passing the signer's known address), else 65-byte
// compact (take v as-is), else 64-byte compact (run the Reconstructor
// against the digest).
func (r *RemoteSigner) resolve(raw []byte, digest []byte) (reconstruct.Signature, error) {
	expected := r.addr

	if looksLikeDER(raw) {
		sig, err := reconstruct.Reconstruct(raw, digest, &expected)
		if err == nil {
			return sig, nil
		}
		r.log.Debugw("DER recovery failed, falling back to length-based resolution", "error", err, "len", len(raw))
	}

	switch len(raw) {
	case 65:
		return fromCompact65(raw), nil
	case 64:
		return reconstruct.FromCompact64(raw, digest, &expected)
	default:
		return reconstruct.Signature{}, coreerr.NewNonRetryable(coreerr.CodeUnsupportedSignatureFmt,
			fmt.Sprintf("unsupported remote signature length %d", len(raw)), nil)
	}
}

// looksLikeDER performs a cheap ASN.1-SEQUENCE probe: formats are
// discriminated by length plus this probe rather than trying each in turn,
// but DER is always tried first regardless of length.
func looksLikeDER(raw []byte) bool {
	return len(raw) > 2 && raw[0] == 0x30
}

// fromCompact65 builds a Signature from a 65-byte r||s||v blob and
// enforces the same low-s canonical form Reconstruct guarantees, so every
// path through resolve returns a canonical Signature.
func fromCompact65(raw []byte) reconstruct.Signature {
	v := raw[64]
	if v < 27 {
		v += 27
	}
	r := new(big.Int).SetBytes(raw[0:32])
	s := new(big.Int).SetBytes(raw[32:64])
	return reconstruct.Canonicalize(r, s, v)
}
