package oracle

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// EnclaveSigner is the oracle runtime's attested signing identity. Every
// finalization command it produces is signed over the keccak256 digest of
// the instruction bytes with a recoverable secp256k1 signature, so the
// ledger can verify the source without a shared secret.
type EnclaveSigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewEnclaveSigner creates a signer from a hex-encoded secp256k1 private
// key (with or without 0x prefix).
func NewEnclaveSigner(privateKeyHex string) (*EnclaveSigner, error) {
	key, err := ethcrypto.HexToECDSA(strip0x(privateKeyHex))
	if err != nil {
		return nil, fmt.Errorf("oracle: invalid enclave key: %w", err)
	}
	return &EnclaveSigner{
		key:     key,
		address: ethcrypto.PubkeyToAddress(key.PublicKey),
	}, nil
}

// Address returns the signer's attested identity.
func (s *EnclaveSigner) Address() common.Address {
	return s.address
}

// SignInstruction signs the instruction digest, returning a 65-byte
// signature with recovery id.
func (s *EnclaveSigner) SignInstruction(instruction []byte) ([]byte, error) {
	digest := ethcrypto.Keccak256(instruction)
	sig, err := ethcrypto.Sign(digest, s.key)
	if err != nil {
		return nil, fmt.Errorf("oracle: sign instruction: %w", err)
	}
	return sig, nil
}

// RecoverSigner recovers the address that signed the instruction.
func RecoverSigner(instruction, signature []byte) (common.Address, error) {
	digest := ethcrypto.Keccak256(instruction)
	pub, err := ethcrypto.SigToPub(digest, signature)
	if err != nil {
		return common.Address{}, fmt.Errorf("oracle: recover signer: %w", err)
	}
	return ethcrypto.PubkeyToAddress(*pub), nil
}

func strip0x(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}
