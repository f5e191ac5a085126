package veracode

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	AuthScheme     = "VERACODE-HMAC-SHA-256"
	requestVersion = "vcode_request_version_1"
)

// Credentials of the REST API. The region prefix of the key ID and the
// secret (like vera01ei-) is kept, StripPrefix removes it for signing.
type Credentials struct {
	ID     string
	Secret string
}

// StripPrefix returns the credential without its region prefix.
func StripPrefix(credential string) string {
	if i := strings.LastIndex(credential, "-"); i >= 0 {
		return credential[i+1:]
	}
	return credential
}

// Signature computes the HMAC signature of a single request.
//
// The key is derived from the secret in a chain nonce -> timestamp -> request
// version and it signs the string id=<id>&host=<host>&url=<path>&method=<method>.
func Signature(creds Credentials, host, pathAndQuery, method string, ts int64, nonce []byte) (string, error) {
	secret, err := hex.DecodeString(StripPrefix(creds.Secret))
	if err != nil {
		return "", fmt.Errorf("api key secret is not a hex string: %w", err)
	}
	data := fmt.Sprintf("id=%s&host=%s&url=%s&method=%s",
		strings.ToLower(StripPrefix(creds.ID)),
		strings.ToLower(host),
		pathAndQuery,
		strings.ToUpper(method),
	)

	kNonce := mac(secret, nonce)
	kDate := mac(kNonce, []byte(strconv.FormatInt(ts, 10)))
	kSig := mac(kDate, []byte(requestVersion))
	return hex.EncodeToString(mac(kSig, []byte(data))), nil
}

// Authorization returns the value of the Authorization header.
func Authorization(creds Credentials, host, pathAndQuery, method string, ts int64, nonce []byte) (string, error) {
	sig, err := Signature(creds, host, pathAndQuery, method, ts, nonce)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s id=%s,ts=%d,nonce=%s,sig=%s",
		AuthScheme, StripPrefix(creds.ID), ts, hex.EncodeToString(nonce), sig), nil
}

func mac(key, data []byte) []byte {
	h := hmac.New(sha256.New, key)
	_, _ = h.Write(data)
	return h.Sum(nil)
}

// signer is a http.RoundTripper adding the Authorization header
type signer struct {
	base  http.RoundTripper
	creds Credentials
	now   func() time.Time
}

func (s signer) RoundTrip(req *http.Request) (*http.Response, error) {
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	auth, err := Authorization(s.creds, req.URL.Host, req.URL.RequestURI(), req.Method, s.now().UnixMilli(), nonce)
	if err != nil {
		return nil, err
	}
	// RoundTrippers must not modify the original request
	r := req.Clone(req.Context())
	r.Header.Set("Authorization", auth)
	return s.base.RoundTrip(r)
}
