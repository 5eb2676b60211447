package version

type Info struct {
	Release         string `json:"release"`
	Port            int    `json:"port"`
	ProbeListenAddr string `json:"probe_listen_addr"`
	Destinations    int    `json:"destinations"`
	SnapshotStore   string `json:"snapshot_store"`
	CheckedAtUnix   int64  `json:"checked_at_unix"`
}
