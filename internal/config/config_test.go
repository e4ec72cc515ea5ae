package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testContract = "0x5FbDB2315678afecb367f032d93F642f64180aa3"

func validConfig() Config {
	cfg := Defaults()
	cfg.Wallet.PrivateKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	cfg.Chain.ChainID = 31337
	cfg.Chain.ContractAddress = testContract
	return cfg
}

func TestValidate_OK(t *testing.T) {
	cfg := validConfig()
	assert.NoError(t, cfg.Validate())

	cfg.Ledger.Backend = BackendMemory
	cfg.Redis.Addr = ""
	assert.NoError(t, cfg.Validate(), "memory backend does not need redis")
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	cfg := Defaults()
	cfg.LogLevel = "loud"
	cfg.Disclosure.DurationDays = 0
	cfg.Ledger.Backend = "etcd"
	cfg.S3.Enabled = true
	cfg.S3.Bucket = ""
	cfg.Notify.TelegramToken = "t"

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{
		"log_level", "wallet:", "contract_address", "chain_id",
		"duration_days", "unknown backend", "s3: bucket", "telegram_chat_id",
	} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestValidate_EncryptedKeyNeedsPassword(t *testing.T) {
	cfg := validConfig()
	cfg.Wallet.PrivateKey = ""
	cfg.Wallet.EncryptedKeyPath = "/keys/wallet.json"
	assert.ErrorContains(t, cfg.Validate(), "key_password")

	cfg.Wallet.KeyPassword = "pw"
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "options.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level = "debug"

[chain]
chain_id = 11155111
contract_address = "`+testContract+`"


[ledger]
backend = "memory"
index_cas = true

[server]
port = 9000
shutdown_timeout = "15s"
cors_origins = ["https://app.example"]
`), 0o600))

	t.Setenv("OPTIONS_SERVER_PORT", "9100")
	t.Setenv("OPTIONS_NOTIFY_EVENTS", "position_created, error ,")
	t.Setenv("OPTIONS_REDIS_MAX_RETRIES", "not-a-number")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, int64(11155111), cfg.Chain.ChainID)
	assert.Equal(t, 15*time.Second, cfg.Server.ShutdownTimeout.Duration)
	assert.Equal(t, BackendMemory, cfg.Ledger.Backend)
	assert.True(t, cfg.Ledger.IndexCAS)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, []string{"https://app.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, []string{"position_created", "error"}, cfg.Notify.Events)
	assert.Equal(t, 0, cfg.Redis.MaxRetries, "unparseable override is ignored")
	assert.Equal(t, 30, cfg.Disclosure.DurationDays, "default kept")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestLoad_NoPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Defaults().Server.Port, cfg.Server.Port)
}

func TestRedactedConfig(t *testing.T) {
	cfg := validConfig()
	cfg.Server.APIKey = "k"
	cfg.Postgres.DSN = "postgres://u:p@h/db"

	out := RedactedConfig(&cfg)
	assert.Equal(t, "***", out.Wallet.PrivateKey)
	assert.Equal(t, "***", out.Server.APIKey)
	assert.Equal(t, "***", out.Postgres.DSN)
	assert.Empty(t, out.Redis.Password, "empty secrets stay empty")
	assert.Equal(t, testContract, out.Chain.ContractAddress)

	out.Server.CORSOrigins[0] = "mutated"
	assert.NotEqual(t, "mutated", cfg.Server.CORSOrigins[0])
	assert.NotEqual(t, "***", cfg.Wallet.PrivateKey)
}
