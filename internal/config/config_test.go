package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
protocol:
  tx.verifyReference: true
  rx.verifyOriginator: true
blockchains:
  - name: ethereum-main
    module: ethadapter
    active: true
    rpc:
      protocol: https
      host: rpc.example.org
      port: 443
datastores:
  - name: primary-store
    module: filestore
    active: true
    primary: true
    rxStoreEvent: ["messageProcessed"]
confirmation:
  enabled: true
  maxBlockDepth: 8
`

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "wfrelay.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadParsesValidConfig(t *testing.T) {
	path := writeTempConfig(t, sampleYAML)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.Protocol.TxVerifyReference)
	require.Len(t, cfg.Blockchains, 1)
	assert.Equal(t, "ethereum-main", cfg.Blockchains[0].Name)

	primary := cfg.PrimaryDatastore()
	require.NotNil(t, primary)
	assert.Equal(t, "primary-store", primary.Name)
}

func TestValidateRejectsMultiplePrimaryDatastores(t *testing.T) {
	cfg := &Config{
		Datastores: []DatastoreConfig{
			{Name: "a", Primary: true},
			{Name: "b", Primary: true},
		},
	}
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsDuplicateBlockchainNames(t *testing.T) {
	cfg := &Config{
		Blockchains: []BlockchainConfig{{Name: "eth"}, {Name: "eth"}},
	}
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsUnknownStoreEvent(t *testing.T) {
	cfg := &Config{
		Datastores: []DatastoreConfig{
			{Name: "a", RxStoreEvent: []string{"somethingMadeUp"}},
		},
	}
	assert.Error(t, cfg.Validate())
}

func TestLoadReturnsErrorForMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/to/config.yaml")
	assert.Error(t, err)
}
