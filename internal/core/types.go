package core

// ClientConfig holds the upstream credentials registered for one client.
type ClientConfig struct {
	Key     string `json:"key"`
	Version string `json:"version"`
	Token   string `json:"token"`
}
