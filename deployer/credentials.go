package deployer

import (
	"crypto/ecdsa"
	"math/big"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

var (
	ErrInvalidKey  = errors.New("Invalid key string")
	ErrNoSignerKey = errors.New("no signer key provided and no default signer configured")
)

var keyRx = regexp.MustCompile(`^0x[0-9a-fA-F]+$`)

// NormalizeKey prepends the 0x prefix when absent and checks the result is hex.
func NormalizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if !strings.HasPrefix(key, "0x") {
		key = "0x" + key
	}

	if !keyRx.MatchString(key) {
		return "", ErrInvalidKey
	}

	return key, nil
}

// ParsePrivateKey normalizes a raw hex key and decodes it into an ECDSA key.
func ParsePrivateKey(key string) (*ecdsa.PrivateKey, error) {
	normalized, err := NormalizeKey(key)
	if err != nil {
		return nil, err
	}

	pk, err := crypto.HexToECDSA(strings.TrimPrefix(normalized, "0x"))
	if err != nil {
		err = errors.Wrap(ErrInvalidKey, err.Error())
		return nil, err
	}

	return pk, nil
}

type SignerType string

const (
	SignerEIP155    SignerType = "eip155"
	SignerHomestead SignerType = "homestead"
)

func getSignerFn(
	signerType SignerType,
	chainId *big.Int,
	from common.Address,
	pk *ecdsa.PrivateKey,
) (bind.SignerFn, error) {
	switch signerType {
	case SignerEIP155:
		opts, err := bind.NewKeyedTransactorWithChainID(pk, chainId)
		if err != nil {
			err = errors.Wrap(err, "failed to init NewKeyedTransactorWithChainID")
			return nil, err
		}

		return opts.Signer, nil

	case SignerHomestead:
		signerFn := func(address common.Address, tx *types.Transaction) (*types.Transaction, error) {
			if address != from {
				err := errors.Errorf("not authorized to sign with %s", address.Hex())
				return nil, err
			}

			signer := &types.HomesteadSigner{}
			txHash := signer.Hash(tx)
			signature, err := crypto.Sign(txHash.Bytes(), pk)
			if err != nil {
				return nil, err
			}

			return tx.WithSignature(signer, signature)
		}

		return signerFn, nil

	default:
		err := errors.Errorf("unsupported signer type: %s", signerType)
		return nil, err
	}
}
