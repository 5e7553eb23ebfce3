package main

import (
	"testing"

	"creator-coach/config"

	"github.com/stretchr/testify/assert"
)

func TestBodyLimitCoversMaxFileBytes(t *testing.T) {
	saved := config.Cfg
	t.Cleanup(func() { config.Cfg = saved })

	config.Cfg.Server.BodyLimit = 1 << 20
	config.Cfg.Ingest.MaxFileBytes = 10 << 20
	assert.Equal(t, 10<<20+multipartOverhead, bodyLimit())

	config.Cfg.Server.BodyLimit = 32 << 20
	assert.Equal(t, 32<<20, bodyLimit())
}
