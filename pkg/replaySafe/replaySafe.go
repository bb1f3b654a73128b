package replaySafe

import (
	"github.com/Layr-Labs/eigenx-account-validators/pkg/util"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/pkg/errors"
)

// ReplaySafeHashTypehash is keccak256("ReplaySafeHash(bytes32 hash)").
var ReplaySafeHashTypehash = crypto.Keccak256Hash([]byte("ReplaySafeHash(bytes32 hash)"))

var (
	structArgs  = util.Arguments("bytes32", "bytes32")
	accountArgs = util.Arguments("bytes32", "address")
)

// Builder wraps raw hashes in a module-scoped EIP-712 envelope and binds them to an account,
// so a signature produced for one account or module version cannot be replayed on another.
type Builder struct {
	name            string
	version         string
	domainSeparator common.Hash
}

// NewBuilder computes the EIP712Domain(string name,string version) separator once.
func NewBuilder(name, version string) (*Builder, error) {
	if name == "" || version == "" {
		return nil, errors.New("module name and version are required for the replay-safe domain")
	}
	td := apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": []apitypes.Type{
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
			},
		},
		Domain: apitypes.TypedDataDomain{
			Name:    name,
			Version: version,
		},
	}
	sep, err := td.HashStruct("EIP712Domain", td.Domain.Map())
	if err != nil {
		return nil, errors.Wrap(err, "failed to hash EIP-712 domain")
	}
	return &Builder{
		name:            name,
		version:         version,
		domainSeparator: common.BytesToHash(sep),
	}, nil
}

// DomainSeparator returns the EIP-712 domain separator of the module.
func (b *Builder) DomainSeparator() common.Hash {
	return b.domainSeparator
}

// TypedHash returns the EIP-712 digest of ReplaySafeHash{hash: raw} under the module domain.
func (b *Builder) TypedHash(raw common.Hash) common.Hash {
	packed, err := structArgs.Pack(ReplaySafeHashTypehash, raw)
	if err != nil {
		// both arguments are fixed-size words
		panic(err)
	}
	structHash := crypto.Keccak256(packed)
	return crypto.Keccak256Hash([]byte{0x19, 0x01}, b.domainSeparator.Bytes(), structHash)
}

// Build returns the replay-safe form of raw for account.
func (b *Builder) Build(account common.Address, raw common.Hash) common.Hash {
	packed, err := accountArgs.Pack(b.TypedHash(raw), account)
	if err != nil {
		panic(err)
	}
	return crypto.Keccak256Hash(packed)
}
