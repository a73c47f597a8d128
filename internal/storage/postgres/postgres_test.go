package postgres

import (
	"context"
	"testing"

	"github.com/auvmap/analyzer/internal/database"
	"github.com/auvmap/analyzer/pkg/core"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DSNFromConfig(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("db.host", "pg.internal")
	viper.Set("db.port", "5432")

	b := New("", nil, zerolog.Nop())
	assert.Contains(t, b.dsn, "host=pg.internal")
	assert.Contains(t, b.dsn, "port=5432")
}

func TestStoreReport_BeforeInit(t *testing.T) {
	b := New("host=127.0.0.1", nil, zerolog.Nop())
	err := b.StoreReport(context.Background(), &core.ReportPayload{RunID: "r"})
	assert.ErrorIs(t, err, database.ErrNotConnected)
	assert.NoError(t, b.Close())
}

func TestInit_Unreachable(t *testing.T) {
	b := New("host=127.0.0.1 port=1 user=x password=x dbname=x sslmode=disable connect_timeout=1", nil, zerolog.Nop())
	require.Error(t, b.Init())
	assert.Nil(t, b.store)
}
