package caller

import "testing"

func TestEndpointFromURL(t *testing.T) {
	cases := []struct {
		url  string
		want string
	}{
		{"https://api.openai.com/v1/embeddings", "embeddings"},
		{"https://api.openai.com/v1/chat/completions", "chat/completions"},
		{"https://api.openai.com/v1/completions", "completions"},
		{"https://example.com/v2/embeddings", "embeddings"},
	}
	for _, tc := range cases {
		got, err := EndpointFromURL(tc.url)
		if err != nil {
			t.Fatalf("%s: unexpected error %v", tc.url, err)
		}
		if got != tc.want {
			t.Fatalf("%s: expected %q, got %q", tc.url, tc.want, got)
		}
	}
}

func TestEndpointFromURLRejectsMalformed(t *testing.T) {
	for _, url := range []string{
		"",
		"http://api.openai.com/v1/embeddings",
		"https://api.openai.com/embeddings",
		"api.openai.com/v1/embeddings",
	} {
		if _, err := EndpointFromURL(url); err == nil {
			t.Fatalf("expected error for %q", url)
		}
	}
}
