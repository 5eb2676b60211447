package version

import (
	"time"

	"logdrain-agent/internal/config"
)

const unknownRelease = "unknown"

func Get(cfg config.Config, destinations int) *Info {
	release := cfg.Release
	if release == "" {
		release = unknownRelease
	}
	store := "memory"
	if cfg.RedisURL != "" {
		store = "redis"
	}
	return &Info{
		Release:         release,
		Port:            cfg.Port,
		ProbeListenAddr: cfg.ProbeListenAddr,
		Destinations:    destinations,
		SnapshotStore:   store,
		CheckedAtUnix:   time.Now().UTC().Unix(),
	}
}
