package dnspreset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	cases := []struct {
		preset, custom, want string
	}{
		{"pia", "", "10.0.0.243"},
		{"", "", "10.0.0.243"},
		{"Cloudflare", "", "1.1.1.1"},
		{"google", "", "8.8.8.8"},
		{"quad9", "ignored", "9.9.9.9"},
		{"custom", "  ", "1.1.1.1"},
		{"custom", " 192.168.1.53 ", "192.168.1.53"},
		{"custom", "1.1.1.1, 2606:4700:4700::1111", "1.1.1.1, 2606:4700:4700::1111"},
		{"208.67.222.222", "", "208.67.222.222"},
	}
	for _, tc := range cases {
		t.Run(tc.preset+"/"+tc.custom, func(t *testing.T) {
			got, err := Resolve(tc.preset, tc.custom)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestResolveRejects(t *testing.T) {
	_, err := Resolve("opendns", "")
	assert.Error(t, err)

	_, err = Resolve("custom", "dns.example.com")
	assert.Error(t, err)
}

func TestNames(t *testing.T) {
	assert.Equal(t, []string{"cloudflare", "google", "pia", "quad9", "custom"}, Names())
}
