package catalog

import (
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_Loads(t *testing.T) {
	c := Default()
	require.Greater(t, c.Len(), 100)

	names := make([]string, 0, c.Len())
	for _, m := range c.Methods() {
		names = append(names, m.Name)
		assert.NotEmpty(t, m.Summary, m.Name)
	}
	assert.True(t, sort.StringsAreSorted(names))
}

func TestDefault_NoPrivateKeyMethods(t *testing.T) {
	for _, name := range []string{"dumpprivkey", "importprivkey", "dumpwallet", "signrawtransactionwithkey", "signmessagewithprivkey"} {
		_, ok := Default().Lookup(name)
		assert.False(t, ok, name)
	}
}

func TestDefault_Categories(t *testing.T) {
	c := Default()

	for _, name := range []string{"createwallet", "loadwallet", "unloadwallet", "listwallets", "listwalletdir", "restorewallet", "getblockchaininfo"} {
		m, ok := c.Lookup(name)
		require.True(t, ok, name)
		assert.Equal(t, General, m.Category, name)
	}
	for _, name := range []string{"getbalances", "getwalletinfo", "listunspent", "sendtoaddress"} {
		m, ok := c.Lookup(name)
		require.True(t, ok, name)
		assert.Equal(t, Wallet, m.Category, name)
	}

	general := c.ByCategory(General)
	wallet := c.ByCategory(Wallet)
	assert.Equal(t, c.Len(), len(general)+len(wallet))
}

func TestMethodDescriptor(t *testing.T) {
	m, ok := Default().Lookup("getblock")
	require.True(t, ok)

	assert.Equal(t, 1, m.RequiredCount())
	assert.True(t, m.HasParams())
	assert.Equal(t, "getblock <blockhash> [verbosity=1]", m.Usage())

	help := m.Help()
	assert.True(t, strings.HasPrefix(help, "getblock (general, blockchain)"))
	assert.Contains(t, help, "1. blockhash (string, required)")
	assert.Contains(t, help, "2. verbosity (number, optional, default=1)")
}

func TestLoad_Rejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"duplicate", "- {name: a, summary: x}\n- {name: a, summary: y}\n", "duplicate method"},
		{"bad default", "- name: a\n  params:\n    - {name: p, default: \"nope\"}\n", "not a JSON literal"},
		{"required default", "- name: a\n  params:\n    - {name: p, required: true, default: \"1\"}\n", "cannot have a default"},
		{"bad category", "- {name: a, category: other}\n", "unknown category"},
		{"no name", "- {summary: x}\n", "has no name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLookup_Missing(t *testing.T) {
	_, ok := Default().Lookup("nosuchmethod")
	assert.False(t, ok)
}
