package texts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = Vars{"price_rub": "269", "currency": "₽", "price_usdt": "3", "asset": "USDT", "support": "@help", "access_url": "https://example.org"}

func TestEveryMessageHasKeyAndDefault(t *testing.T) {
	seen := map[string]bool{}
	for id := MessageID(0); id < messageCount; id++ {
		key := id.String()
		assert.NotEmpty(t, key, "id %d has no key", id)
		assert.False(t, seen[key], "duplicate key %s", key)
		seen[key] = true
		assert.NotEmpty(t, defaults[id], "message %s has no default", key)
	}
}

func TestDefaultSubstitutesBaseVars(t *testing.T) {
	c := Default(base)

	assert.Contains(t, c.Text(Welcome), "269 ₽")
	assert.Contains(t, c.Text(PayUSDT), "3 USDT")
	assert.Contains(t, c.Text(Support), "@help")
	assert.NotContains(t, c.Text(ButtonPay), "{")
}

func TestFormatFillsCallVars(t *testing.T) {
	c := Default(base)
	assert.Equal(t, "Использование: /approve <user_id>", c.Format(CommandUsage, Vars{"command": "approve"}))
	assert.Equal(t, "Доступ выдан пользователю 42.", c.Format(ApproveSuccess, Vars{"id": "42"}))
}

func TestLoadOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "texts.yaml")
	require.NoError(t, os.WriteFile(path, []byte("welcome: \"Hi, pay {price_rub}\"\nbutton_support: Help\n"), 0o600))

	c, err := Load(path, base)
	require.NoError(t, err)
	assert.Equal(t, "Hi, pay 269", c.Text(Welcome))
	assert.Equal(t, "Help", c.Text(ButtonSupport))
	assert.Equal(t, Default(base).Text(Help), c.Text(Help))
}

func TestLoadRejectsUnknownKey(t *testing.T) {
	_, err := Parse([]byte("no_such_message: x\n"), base)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no_such_message")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), base)
	assert.Error(t, err)
}
