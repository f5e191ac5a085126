package veracode_test

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"testing"

	"github.com/CZERTAINLY/verascan/internal/veracode"

	"github.com/stretchr/testify/require"
)

var creds = veracode.Credentials{
	ID:     "vera01ei-ABCDEF0123",
	Secret: "vera01ei-00112233445566778899aabbccddeeff",
}

func TestSignature(t *testing.T) {
	t.Parallel()
	nonce, err := hex.DecodeString("0f0e0d0c0b0a09080706050403020100")
	require.NoError(t, err)

	sig, err := veracode.Signature(creds, "API.veracode.eu", "/appsec/v1/applications?name=x", "get", 1700000000000, nonce)
	require.NoError(t, err)

	// manual derivation of the key chain
	m := func(key, data []byte) []byte {
		h := hmac.New(sha256.New, key)
		h.Write(data)
		return h.Sum(nil)
	}
	secret, _ := hex.DecodeString("00112233445566778899aabbccddeeff")
	k := m(m(m(secret, nonce), []byte("1700000000000")), []byte("vcode_request_version_1"))
	want := hex.EncodeToString(m(k, []byte("id=abcdef0123&host=api.veracode.eu&url=/appsec/v1/applications?name=x&method=GET")))
	require.Equal(t, want, sig)

	other, err := veracode.Signature(creds, "api.veracode.eu", "/appsec/v1/applications?name=x", "GET", 1700000000001, nonce)
	require.NoError(t, err)
	require.NotEqual(t, sig, other)
}

func TestSignature_BadSecret(t *testing.T) {
	t.Parallel()
	_, err := veracode.Signature(veracode.Credentials{ID: "id", Secret: "not-hex"}, "h", "/", "GET", 1, []byte{1})
	require.Error(t, err)
}

func TestAuthorization(t *testing.T) {
	t.Parallel()
	auth, err := veracode.Authorization(creds, "api.veracode.com", "/", "GET", 42, []byte{0xab, 0xcd})
	require.NoError(t, err)
	require.Regexp(t, regexp.MustCompile(`^VERACODE-HMAC-SHA-256 id=ABCDEF0123,ts=42,nonce=abcd,sig=[0-9a-f]{64}$`), auth)
}

func TestRegionOf(t *testing.T) {
	t.Parallel()
	var testCases = []struct {
		given string
		then  veracode.Region
		api   string
		sca   string
	}{
		{"vera01ei-123", veracode.RegionEU, "https://api.veracode.eu", "https://sca-api.veracode.eu"},
		{"vera01es-123", veracode.RegionFedRAMP, "https://api.veracode.us", "https://sca-api.veracode.us"},
		{"vera01xx-123", veracode.RegionGlobal, "https://api.veracode.com", "https://sca-api.veracode.com"},
		{"0123456789", veracode.RegionGlobal, "https://api.veracode.com", "https://sca-api.veracode.com"},
	}
	for _, tc := range testCases {
		t.Run(tc.given, func(t *testing.T) {
			t.Parallel()
			r := veracode.RegionOf(tc.given)
			require.Equal(t, tc.then, r)
			require.Equal(t, tc.api, r.APIURL())
			require.Equal(t, tc.sca, r.SCAURL())
		})
	}
}

func TestStripPrefix(t *testing.T) {
	t.Parallel()
	require.Equal(t, "abc", veracode.StripPrefix("vera01ei-abc"))
	require.Equal(t, "abc", veracode.StripPrefix("abc"))
}
