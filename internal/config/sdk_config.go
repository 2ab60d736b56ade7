// Package config loads the gateway configuration from YAML, applies environment
// overrides and fills defaults.
package config

// SDKConfig holds settings shared by the gateway and the terminal client.
type SDKConfig struct {
	// ProxyURL routes outbound HTTP through an http, https or socks5 proxy.
	ProxyURL string `yaml:"proxy-url" json:"proxy-url"`

	// RequestLog logs every proxied request at info level instead of debug.
	RequestLog bool `yaml:"request-log" json:"request-log"`
}

// ClientConfig configures the session client used by the terminal client.
type ClientConfig struct {
	// BaseURL is the gateway origin the client talks to (NEXT_PUBLIC_API_BASE_URL).
	BaseURL string `yaml:"base-url" json:"base-url"`

	// MinLoadingTimeMS is the minimum time the loading indicator stays visible.
	MinLoadingTimeMS int `yaml:"min-loading-time-ms" json:"min-loading-time-ms"`

	// RequestTimeoutSeconds bounds every client request. Default is 30.
	RequestTimeoutSeconds int `yaml:"request-timeout-seconds" json:"request-timeout-seconds"`

	// TokenFile stores the session tokens between runs. Empty selects the user config dir.
	TokenFile string `yaml:"token-file" json:"token-file"`

	// CSRFPageURL, when set, is fetched once to read the csrf-token meta tag.
	CSRFPageURL string `yaml:"csrf-page-url" json:"csrf-page-url"`
}
