package caller

import (
	"fmt"
	"regexp"
)

var endpointPattern = regexp.MustCompile(`^https://[^/]+/v\d+/(.+)$`)

// EndpointFromURL extracts the API endpoint ("chat/completions",
// "embeddings", ...) from a request URL.
func EndpointFromURL(requestURL string) (string, error) {
	match := endpointPattern.FindStringSubmatch(requestURL)
	if match == nil {
		return "", fmt.Errorf("invalid request URL: %s", requestURL)
	}
	return match[1], nil
}
