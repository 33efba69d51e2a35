package seekdb

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testConfig() Config {
	return Config{
		Host:     "127.0.0.1",
		Port:     2881,
		User:     "root",
		Password: "",
		Database: "bub",
		Table:    "bub_tape_entries",
	}
}

// TestConfig_Validate checks that database and table identifiers are
// restricted to safe characters.
func TestConfig_Validate(t *testing.T) {
	cfg := testConfig()
	assert.NoError(t, cfg.Validate())

	bad := testConfig()
	bad.Database = "bub;DROP TABLE"
	assert.Error(t, bad.Validate())

	bad = testConfig()
	bad.Table = "entries`--"
	assert.Error(t, bad.Validate())

	bad = testConfig()
	bad.Database = ""
	assert.Error(t, bad.Validate())

	underscored := testConfig()
	underscored.Table = "_tape_entries_v2"
	assert.NoError(t, underscored.Validate())
}

// TestConfigFromEnv checks the env > config file > default resolution
// order for the connection settings.
func TestConfigFromEnv(t *testing.T) {
	t.Setenv("OCEANBASE_HOST", "")
	t.Setenv("OCEANBASE_PORT", "")
	t.Setenv("OCEANBASE_USER", "")
	t.Setenv("OCEANBASE_PASSWORD", "")
	t.Setenv("OCEANBASE_DATABASE", "")
	t.Setenv("BUB_TAPE_TABLE", "")

	cfg := ConfigFromEnv()

	assert.Equal(t, "127.0.0.1", cfg.Host)
	assert.Equal(t, 2881, cfg.Port)
	assert.Equal(t, "root", cfg.User)
	assert.Equal(t, "", cfg.Password)
	assert.Equal(t, "republic", cfg.Database)
	assert.Equal(t, "bub_tape", cfg.Table)

	t.Setenv("OCEANBASE_HOST", "db.internal")
	t.Setenv("OCEANBASE_PORT", "13306")
	t.Setenv("OCEANBASE_DATABASE", "bub")

	cfg = ConfigFromEnv()

	assert.Equal(t, "db.internal", cfg.Host)
	assert.Equal(t, 13306, cfg.Port)
	assert.Equal(t, "bub", cfg.Database)

	t.Setenv("OCEANBASE_PORT", "not-a-port")

	assert.Equal(t, 2881, ConfigFromEnv().Port)
}

// TestConfig_DSN checks the MySQL DSN layout, including the admin form
// without a database segment.
func TestConfig_DSN(t *testing.T) {
	cfg := testConfig()

	assert.Equal(
		t,
		"root:@tcp(127.0.0.1:2881)/bub?charset=utf8mb4&parseTime=true",
		cfg.dsn(cfg.Database),
	)

	assert.Equal(
		t,
		"root:@tcp(127.0.0.1:2881)/?charset=utf8mb4&parseTime=true",
		cfg.dsn(""),
	)

	withPassword := testConfig()
	withPassword.Password = "secret"

	assert.Equal(
		t,
		"root:secret@tcp(127.0.0.1:2881)/bub?charset=utf8mb4&parseTime=true",
		withPassword.dsn(withPassword.Database),
	)
}

// TestSafeLoadJSON checks that corrupt or non-object documents collapse to
// an empty map instead of failing the read.
func TestSafeLoadJSON(t *testing.T) {
	assert.Equal(t, map[string]any{}, safeLoadJSON(""))
	assert.Equal(t, map[string]any{}, safeLoadJSON("not json"))
	assert.Equal(t, map[string]any{}, safeLoadJSON(`[1, 2, 3]`))
	assert.Equal(t, map[string]any{}, safeLoadJSON(`"plain string"`))
	assert.Equal(t, map[string]any{}, safeLoadJSON(`null`))

	loaded := safeLoadJSON(`{"role": "user", "content": "hi"}`)
	assert.Equal(t, "user", loaded["role"])
	assert.Equal(t, "hi", loaded["content"])
}

// TestEncodeJSON checks that values the encoder cannot represent are
// stringified rather than dropped.
func TestEncodeJSON(t *testing.T) {
	encoded := encodeJSON(map[string]any{"role": "user", "content": "hi"})
	assert.Contains(t, encoded, `"role":"user"`)
	assert.Contains(t, encoded, `"content":"hi"`)

	stamp := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	encoded = encodeJSON(map[string]any{"at": stamp})
	assert.Contains(t, encoded, "2025-03-01")

	encoded = encodeJSON(map[string]any{"ch": make(chan int)})
	assert.Contains(t, encoded, `"ch":`)
}

func TestToJSONSafe(t *testing.T) {
	nested := map[string]any{
		"list":  []any{1, "two", map[string]any{"deep": true}},
		"names": []string{"a", "b"},
	}

	safe := toJSONSafe(nested).(map[string]any)

	list := safe["list"].([]any)
	assert.Equal(t, 1, list[0])
	assert.Equal(t, "two", list[1])

	names := safe["names"].([]any)
	assert.Equal(t, "a", names[0])
	assert.Equal(t, "b", names[1])
}

func TestWithCreatedAt(t *testing.T) {
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	meta := withCreatedAt(map[string]any{"source": "test"}, at)
	assert.Equal(t, "test", meta["source"])
	assert.Equal(t, "2025-03-01T12:00:00Z", meta["created_at"])

	existing := withCreatedAt(map[string]any{"created_at": "then"}, at)
	assert.Equal(t, "then", existing["created_at"])
}
