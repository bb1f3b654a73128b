package multisig

import (
	"math/big"

	"github.com/Layr-Labs/eigenx-account-validators/pkg/types"
	"github.com/Layr-Labs/eigenx-account-validators/pkg/util"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

var installArgs = util.Arguments("uint32", "address[]", "uint256[]", "uint256")

// InstallData is the decoded onInstall payload.
type InstallData struct {
	EntityId  types.EntityId
	Owners    []types.Owner
	Threshold uint64
}

// EncodeInstallData returns abi.encode(uint32 entityId, address[] owners, uint256[] weights, uint256 threshold).
func EncodeInstallData(d *InstallData) ([]byte, error) {
	addrs := make([]common.Address, len(d.Owners))
	weights := make([]*big.Int, len(d.Owners))
	for i, o := range d.Owners {
		addrs[i] = o.Address
		weights[i] = new(big.Int).SetUint64(o.Weight)
	}
	return installArgs.Pack(uint32(d.EntityId), addrs, weights, new(big.Int).SetUint64(d.Threshold))
}

// DecodeInstallData parses the onInstall payload. Weights and threshold must fit in uint64.
func DecodeInstallData(data []byte) (*InstallData, error) {
	values, err := installArgs.Unpack(data)
	if err != nil {
		return nil, errors.Wrapf(types.ErrInvalidInstallData, "%v", err)
	}
	entityId, ok := values[0].(uint32)
	if !ok {
		return nil, errors.Wrap(types.ErrInvalidInstallData, "entity id is not uint32")
	}
	addrs, ok := values[1].([]common.Address)
	if !ok {
		return nil, errors.Wrap(types.ErrInvalidInstallData, "owners are not addresses")
	}
	weights, ok := values[2].([]*big.Int)
	if !ok {
		return nil, errors.Wrap(types.ErrInvalidInstallData, "weights are not uint256")
	}
	threshold, ok := values[3].(*big.Int)
	if !ok {
		return nil, errors.Wrap(types.ErrInvalidInstallData, "threshold is not uint256")
	}
	if len(addrs) != len(weights) {
		return nil, errors.Wrapf(types.ErrInvalidInstallData, "%d owners but %d weights", len(addrs), len(weights))
	}
	if !threshold.IsUint64() {
		return nil, errors.Wrapf(types.ErrInvalidThreshold, "threshold %s overflows uint64", threshold)
	}

	owners := make([]types.Owner, len(addrs))
	for i := range addrs {
		if !weights[i].IsUint64() {
			return nil, errors.Wrapf(types.ErrInvalidOwner, "weight %s of %s overflows uint64", weights[i], addrs[i].Hex())
		}
		owners[i] = types.Owner{Address: addrs[i], Weight: weights[i].Uint64()}
	}
	return &InstallData{
		EntityId:  types.EntityId(entityId),
		Owners:    owners,
		Threshold: threshold.Uint64(),
	}, nil
}
