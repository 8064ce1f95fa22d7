package recovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestRunAtomicRepanicsAfterRollback(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	svc := NewService(db)

	assert.PanicsWithValue(t, "boom", func() {
		_ = svc.runAtomic(func(tx *gorm.DB) error {
			panic("boom")
		})
	})

	// the transaction rolled back and the connection stays usable
	require.NoError(t, svc.runAtomic(func(tx *gorm.DB) error {
		return tx.Exec("SELECT 1").Error
	}))
}
