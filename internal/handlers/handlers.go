package handlers

import (
	"media-streamer/internal/audio"
	"media-streamer/internal/database"
	"media-streamer/internal/hls"
	"media-streamer/internal/startup"
)

type Handlers struct {
	registry           *hls.Registry
	proxy              *audio.Proxy
	db                 *database.Database
	mediaDir           string
	transcodingEnabled bool
}

func New(registry *hls.Registry, proxy *audio.Proxy, db *database.Database, config *startup.Config) *Handlers {
	return &Handlers{
		registry:           registry,
		proxy:              proxy,
		db:                 db,
		mediaDir:           config.MediaDir,
		transcodingEnabled: config.TranscodingEnabled,
	}
}
