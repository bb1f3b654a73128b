package badger

import (
	"testing"

	"github.com/Layr-Labs/eigenx-account-validators/pkg/logger"
	"github.com/Layr-Labs/eigenx-account-validators/pkg/persistence"
	"github.com/Layr-Labs/eigenx-account-validators/pkg/persistence/persistenceTests"
	"github.com/Layr-Labs/eigenx-account-validators/pkg/types"
	badgerdb "github.com/dgraph-io/badger/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBadgerPersistence_Conformance(t *testing.T) {
	persistenceTests.RunConformance(t, func(t *testing.T) persistence.IValidatorPersistence {
		testLogger, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})
		bp, err := NewBadgerPersistence(t.TempDir(), testLogger)
		require.NoError(t, err)
		return bp
	})
}

func TestBadgerPersistence_SurvivesRestart(t *testing.T) {
	tmpDir := t.TempDir()
	testLogger, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})

	bp, err := NewBadgerPersistence(tmpDir, testLogger)
	require.NoError(t, err)

	require.NoError(t, bp.SaveSigner(&persistence.SignerRecord{
		Account:  persistenceTests.AccountA,
		EntityId: 4,
		Signer:   persistenceTests.SignerX,
	}))
	require.NoError(t, bp.SaveOwnership(&persistence.OwnershipRecord{
		Account:   persistenceTests.AccountA,
		EntityId:  5,
		Owners:    []types.Owner{{Address: persistenceTests.SignerY, Weight: 1}},
		Threshold: 1,
	}))
	require.NoError(t, bp.Close())

	reopened, err := NewBadgerPersistence(tmpDir, testLogger)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	signer, err := reopened.LoadSigner(persistenceTests.AccountA, 4)
	require.NoError(t, err)
	require.NotNil(t, signer)
	assert.Equal(t, persistenceTests.SignerX, signer.Signer)

	ownership, err := reopened.LoadOwnership(persistenceTests.AccountA, 5)
	require.NoError(t, err)
	require.NotNil(t, ownership)
	assert.Equal(t, uint64(1), ownership.Threshold)
}

func TestBadgerPersistence_RejectsUnknownSchema(t *testing.T) {
	tmpDir := t.TempDir()
	testLogger, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})

	bp, err := NewBadgerPersistence(tmpDir, testLogger)
	require.NoError(t, err)
	require.NoError(t, bp.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set([]byte(keySchemaVersion), []byte("v0"))
	}))
	require.NoError(t, bp.Close())

	_, err = NewBadgerPersistence(tmpDir, testLogger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported schema version")
}

func TestBadgerPersistence_SkipsCorruptRecordsWhenListing(t *testing.T) {
	testLogger, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	bp, err := NewBadgerPersistence(t.TempDir(), testLogger)
	require.NoError(t, err)
	defer func() { _ = bp.Close() }()

	require.NoError(t, bp.SaveSigner(&persistence.SignerRecord{Account: persistenceTests.AccountA, EntityId: 1, Signer: persistenceTests.SignerX}))
	require.NoError(t, bp.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(entityKey(keyPrefixSigner, persistenceTests.AccountA, 2), []byte("{not json"))
	}))

	list, err := bp.ListSigners(persistenceTests.AccountA)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, types.EntityId(1), list[0].EntityId)
}
