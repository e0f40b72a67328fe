package firestore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byceps/byceps-sub001/internal/platform/config"
)

func TestProviderRequiresProjectID(t *testing.T) {
	provider := NewProvider(config.FirestoreConfig{ProjectID: "  "})

	_, err := provider.Client(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHOP_FIRESTORE_PROJECT_ID")
}

func TestProviderClosedRejectsClients(t *testing.T) {
	provider := NewProvider(config.FirestoreConfig{ProjectID: "shop-test"})

	require.NoError(t, provider.Close(context.Background()))
	require.NoError(t, provider.Close(context.Background()))

	_, err := provider.Client(context.Background())
	assert.ErrorIs(t, err, ErrProviderClosed)
	assert.ErrorIs(t, provider.Ping(context.Background()), ErrProviderClosed)
}
