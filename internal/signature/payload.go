package signature

import (
	"net/http"
	"regexp"
	"strings"
)

// schemeAndHostRE matches the leading "scheme://host" part of a URL.
var schemeAndHostRE = regexp.MustCompile(`^\w+://[^/]+`)

// Payload is the canonical structure that gets signed for a request.
type Payload struct {
	Action string `json:"action"`
	JSON   any    `json:"json"`
}

// PayloadFromRequest reduces a request to the fields that matter for authenticity.
// The scheme and host are stripped so that proxies cannot invalidate the signature;
// the rest of the URL is used verbatim. Headers are not part of the payload.
func PayloadFromRequest(method, url string, _ http.Header, body any) Payload {
	return Payload{
		Action: strings.ToUpper(method) + " " + schemeAndHostRE.ReplaceAllString(url, ""),
		JSON:   body,
	}
}
