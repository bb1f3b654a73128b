package validators

import (
	"github.com/Layr-Labs/eigenx-account-validators/pkg/types"
	"github.com/Layr-Labs/eigenx-account-validators/pkg/util"
	"github.com/pkg/errors"
)

var uninstallArgs = util.Arguments("uint32")

// EncodeUninstallData returns abi.encode(uint32 entityId).
func EncodeUninstallData(entityId types.EntityId) ([]byte, error) {
	return uninstallArgs.Pack(uint32(entityId))
}

// DecodeUninstallData parses abi.encode(uint32 entityId).
func DecodeUninstallData(data []byte) (types.EntityId, error) {
	values, err := uninstallArgs.Unpack(data)
	if err != nil {
		return 0, errors.Wrapf(types.ErrInvalidInstallData, "uninstall data: %v", err)
	}
	entityId, ok := values[0].(uint32)
	if !ok {
		return 0, errors.Wrap(types.ErrInvalidInstallData, "uninstall data: entity id is not uint32")
	}
	return types.EntityId(entityId), nil
}

// EntityIdOf reads the entity id that every install and uninstall payload starts with.
func EntityIdOf(data []byte) (types.EntityId, error) {
	if len(data) < 32 {
		return 0, errors.Wrapf(types.ErrInvalidInstallData, "payload of %d bytes has no entity id", len(data))
	}
	return DecodeUninstallData(data[:32])
}
