package docstore

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// signer produces master-key Authorization headers for control-plane requests.
//
// The signature covers the verb, resource type, resource link and request
// date, keyed by the base64-decoded master key. The store recomputes the same
// HMAC to authenticate the caller.
type signer struct {
	key []byte
}

func newSigner(masterKey string) (*signer, error) {
	key, err := base64.StdEncoding.DecodeString(masterKey)
	if err != nil {
		return nil, fmt.Errorf("master key is not valid base64: %w", err)
	}
	return &signer{key: key}, nil
}

// sign returns the Authorization header value for a request.
// The date must be the exact value sent in the x-ms-date header.
func (s *signer) sign(verb, resourceType, resourceLink, date string) string {
	payload := strings.ToLower(verb) + "\n" +
		strings.ToLower(resourceType) + "\n" +
		resourceLink + "\n" +
		strings.ToLower(date) + "\n" +
		"\n"

	mac := hmac.New(sha256.New, s.key)
	mac.Write([]byte(payload))
	sig := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return url.QueryEscape("type=master&ver=1.0&sig=" + sig)
}

// httpDate formats t the way the control plane expects in x-ms-date
// ("Mon, 02 Jan 2006 15:04:05 GMT").
func httpDate(t time.Time) string {
	return t.UTC().Format(http.TimeFormat)
}
