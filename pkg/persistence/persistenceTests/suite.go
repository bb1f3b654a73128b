// Package persistenceTests holds the behaviour every IValidatorPersistence backend must share.
package persistenceTests

import (
	"fmt"
	"sync"
	"testing"

	"github.com/Layr-Labs/eigenx-account-validators/pkg/persistence"
	"github.com/Layr-Labs/eigenx-account-validators/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	AccountA = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	AccountB = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	SignerX  = common.HexToAddress("0x0000000000000000000000000000000000000011")
	SignerY  = common.HexToAddress("0x0000000000000000000000000000000000000022")
)

// Factory opens a fresh, empty backend. The suite closes it.
type Factory func(t *testing.T) persistence.IValidatorPersistence

// RunConformance runs the shared backend behaviour against factory.
func RunConformance(t *testing.T, factory Factory) {
	t.Run("Should save and load a signer", func(t *testing.T) {
		p := factory(t)
		defer func() { _ = p.Close() }()

		record := &persistence.SignerRecord{Account: AccountA, EntityId: 1, Signer: SignerX, UpdatedAt: 100}
		require.NoError(t, p.SaveSigner(record))

		loaded, err := p.LoadSigner(AccountA, 1)
		require.NoError(t, err)
		require.NotNil(t, loaded)
		assert.Equal(t, record, loaded)
	})

	t.Run("Should return nil for a missing signer", func(t *testing.T) {
		p := factory(t)
		defer func() { _ = p.Close() }()

		loaded, err := p.LoadSigner(AccountA, 99)
		require.NoError(t, err)
		assert.Nil(t, loaded)
	})

	t.Run("Should replace a signer on save", func(t *testing.T) {
		p := factory(t)
		defer func() { _ = p.Close() }()

		require.NoError(t, p.SaveSigner(&persistence.SignerRecord{Account: AccountA, EntityId: 1, Signer: SignerX}))
		require.NoError(t, p.SaveSigner(&persistence.SignerRecord{Account: AccountA, EntityId: 1, Signer: SignerY}))

		loaded, err := p.LoadSigner(AccountA, 1)
		require.NoError(t, err)
		assert.Equal(t, SignerY, loaded.Signer)
	})

	t.Run("Should isolate accounts and entities", func(t *testing.T) {
		p := factory(t)
		defer func() { _ = p.Close() }()

		require.NoError(t, p.SaveSigner(&persistence.SignerRecord{Account: AccountA, EntityId: 1, Signer: SignerX}))
		require.NoError(t, p.SaveSigner(&persistence.SignerRecord{Account: AccountB, EntityId: 1, Signer: SignerY}))

		a, err := p.LoadSigner(AccountA, 1)
		require.NoError(t, err)
		b, err := p.LoadSigner(AccountB, 1)
		require.NoError(t, err)
		other, err := p.LoadSigner(AccountA, 2)
		require.NoError(t, err)

		assert.Equal(t, SignerX, a.Signer)
		assert.Equal(t, SignerY, b.Signer)
		assert.Nil(t, other)
	})

	t.Run("Should list signers of one account by entity", func(t *testing.T) {
		p := factory(t)
		defer func() { _ = p.Close() }()

		for _, id := range []types.EntityId{30, 2, 100} {
			require.NoError(t, p.SaveSigner(&persistence.SignerRecord{Account: AccountA, EntityId: id, Signer: SignerX}))
		}
		require.NoError(t, p.SaveSigner(&persistence.SignerRecord{Account: AccountB, EntityId: 1, Signer: SignerY}))

		list, err := p.ListSigners(AccountA)
		require.NoError(t, err)
		require.Len(t, list, 3)
		assert.Equal(t, types.EntityId(2), list[0].EntityId)
		assert.Equal(t, types.EntityId(30), list[1].EntityId)
		assert.Equal(t, types.EntityId(100), list[2].EntityId)

		empty, err := p.ListSigners(common.HexToAddress("0x01"))
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("Should delete signers idempotently", func(t *testing.T) {
		p := factory(t)
		defer func() { _ = p.Close() }()

		require.NoError(t, p.SaveSigner(&persistence.SignerRecord{Account: AccountA, EntityId: 1, Signer: SignerX}))
		require.NoError(t, p.DeleteSigner(AccountA, 1))
		require.NoError(t, p.DeleteSigner(AccountA, 1))

		loaded, err := p.LoadSigner(AccountA, 1)
		require.NoError(t, err)
		assert.Nil(t, loaded)

		list, err := p.ListSigners(AccountA)
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("Should save, load and delete ownership", func(t *testing.T) {
		p := factory(t)
		defer func() { _ = p.Close() }()

		record := &persistence.OwnershipRecord{
			Account:  AccountA,
			EntityId: 3,
			Owners: []types.Owner{
				{Address: SignerY, Weight: 2},
				{Address: SignerX, Weight: 1},
			},
			Threshold: 2,
			UpdatedAt: 200,
		}
		require.NoError(t, p.SaveOwnership(record))

		loaded, err := p.LoadOwnership(AccountA, 3)
		require.NoError(t, err)
		assert.Equal(t, record, loaded)

		list, err := p.ListOwnerships(AccountA)
		require.NoError(t, err)
		require.Len(t, list, 1)

		require.NoError(t, p.DeleteOwnership(AccountA, 3))
		require.NoError(t, p.DeleteOwnership(AccountA, 3))
		loaded, err = p.LoadOwnership(AccountA, 3)
		require.NoError(t, err)
		assert.Nil(t, loaded)
	})

	t.Run("Should keep signer and ownership namespaces apart", func(t *testing.T) {
		p := factory(t)
		defer func() { _ = p.Close() }()

		require.NoError(t, p.SaveSigner(&persistence.SignerRecord{Account: AccountA, EntityId: 1, Signer: SignerX}))

		owners, err := p.LoadOwnership(AccountA, 1)
		require.NoError(t, err)
		assert.Nil(t, owners)
	})

	t.Run("Should not share memory with callers", func(t *testing.T) {
		p := factory(t)
		defer func() { _ = p.Close() }()

		record := &persistence.OwnershipRecord{Account: AccountA, EntityId: 1, Owners: []types.Owner{{Address: SignerX, Weight: 1}}, Threshold: 1}
		require.NoError(t, p.SaveOwnership(record))
		record.Owners[0].Weight = 50

		loaded, err := p.LoadOwnership(AccountA, 1)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), loaded.Owners[0].Weight)
	})

	t.Run("Should handle concurrent writers", func(t *testing.T) {
		p := factory(t)
		defer func() { _ = p.Close() }()

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(id int) {
				defer wg.Done()
				err := p.SaveSigner(&persistence.SignerRecord{Account: AccountA, EntityId: types.EntityId(id), Signer: SignerX})
				assert.NoError(t, err, fmt.Sprintf("entity %d", id))
			}(i)
		}
		wg.Wait()

		list, err := p.ListSigners(AccountA)
		require.NoError(t, err)
		assert.Len(t, list, 20)
	})

	t.Run("Should fail every operation after close", func(t *testing.T) {
		p := factory(t)
		require.NoError(t, p.HealthCheck())
		require.NoError(t, p.Close())
		require.NoError(t, p.Close())

		assert.Error(t, p.HealthCheck())
		assert.Error(t, p.SaveSigner(&persistence.SignerRecord{Account: AccountA, EntityId: 1}))
		_, err := p.LoadSigner(AccountA, 1)
		assert.Error(t, err)
		_, err = p.ListOwnerships(AccountA)
		assert.Error(t, err)
	})
}
