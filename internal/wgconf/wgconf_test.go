package wgconf

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"

	"piawg/internal/pia"
	"piawg/internal/wgkey"
)

func testKeyPair(t *testing.T) wgkey.KeyPair {
	t.Helper()
	priv, err := wgtypes.ParseKey("dwdtCnMYpX08FsFyUbJmRd9ML4frwJkqsXf7pR25LCo=")
	require.NoError(t, err)
	return wgkey.KeyPair{Private: priv, Public: priv.PublicKey()}
}

func testRegistration() pia.Registration {
	return pia.Registration{
		PeerIP:     "10.0.0.2",
		ServerKey:  "hSDwCYkwp1R0i33ctD73Wg2/Og0mOBr066SpjqqbTmo=",
		ServerIP:   "10.0.0.1",
		ServerPort: 1337,
	}
}

func TestBuildExactDocument(t *testing.T) {
	doc := Build(testKeyPair(t), testRegistration(), "10.0.0.243")

	want := "[Interface]\n" +
		"Address = 10.0.0.2/32\n" +
		"PrivateKey = dwdtCnMYpX08FsFyUbJmRd9ML4frwJkqsXf7pR25LCo=\n" +
		"DNS = 10.0.0.243\n" +
		"\n" +
		"[Peer]\n" +
		"PublicKey = hSDwCYkwp1R0i33ctD73Wg2/Og0mOBr066SpjqqbTmo=\n" +
		"Endpoint = 10.0.0.1:1337\n" +
		"AllowedIPs = 0.0.0.0/0\n" +
		"PersistentKeepalive = 25"
	assert.Equal(t, want, doc)
}

func TestBuildShape(t *testing.T) {
	doc := Build(testKeyPair(t), testRegistration(), "1.1.1.1")

	assert.Equal(t, 1, strings.Count(doc, "[Interface]"))
	assert.Equal(t, 1, strings.Count(doc, "[Peer]"))

	sections, err := Sections(doc)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.2/32", sections["Interface"]["Address"])
	assert.Equal(t, "1.1.1.1", sections["Interface"]["DNS"])
	assert.Equal(t, "0.0.0.0/0", sections["Peer"]["AllowedIPs"])
	assert.Equal(t, "25", sections["Peer"]["PersistentKeepalive"])
	require.NoError(t, Check(doc))
}

func TestCheckRejectsMalformed(t *testing.T) {
	good := Build(testKeyPair(t), testRegistration(), "1.1.1.1")
	cases := map[string]string{
		"empty":           "",
		"no peer":         good[:strings.Index(good, "[Peer]")],
		"duplicate peer":  good + "\n[Peer]\nPublicKey = x",
		"stray line":      "hello\n" + good,
		"bad private key": strings.Replace(good, "dwdtCnMYpX08FsFyUbJmRd9ML4frwJkqsXf7pR25LCo=", "short", 1),
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			err := Check(doc)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformed))
		})
	}
}

func TestDefaultFilename(t *testing.T) {
	assert.Equal(t, "PIA-nl_amsterdam.conf", DefaultFilename("nl_amsterdam"))
}

func TestSaveWritesDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", DefaultFilename("no"))
	doc := Build(testKeyPair(t), testRegistration(), "9.9.9.9")

	require.NoError(t, Save(path, doc))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, doc, string(data))

	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	}

	require.NoError(t, Save(path, "replaced"))
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "replaced", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}
