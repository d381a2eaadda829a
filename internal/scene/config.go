package scene

import (
	"errors"
	"sync"
)

// ErrTokenAlreadySet is returned when the render access token is set twice.
var ErrTokenAlreadySet = errors.New("scene: access token already configured")

// Config carries process-wide render surface settings. The access token
// authenticates against the terrain/imagery provider and is set exactly
// once at startup, before any surface is created, never per load.
type Config struct {
	mu    sync.Mutex
	token string
	set   bool
}

// SetAccessToken installs the provider token. A second call is an error
// even with the same value.
func (c *Config) SetAccessToken(token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.set {
		return ErrTokenAlreadySet
	}
	c.token = token
	c.set = true
	return nil
}

// AccessToken returns the configured token, or empty when unset.
func (c *Config) AccessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}
