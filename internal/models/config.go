package models

// BuildProperties describes the running binary.
type BuildProperties struct {
	Version      string `json:"build.version"`
	BuildTime    string `json:"build.time"`
	Branch       string `json:"git.branch"`
	CommitID     string `json:"git.commit.id"`
	CommitAbbrev string `json:"git.commit.id.abbrev"`
	Dirty        string `json:"git.dirty"`
}

// ConfigModel is the entry returned by /api/config.json.
type ConfigModel struct {
	BuildProperties BuildProperties `json:"buildProperties"`
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Environment     string          `json:"environment"`
	GatewayEnabled  bool            `json:"gatewayEnabled"`
	AdminProtected  bool            `json:"adminProtected"`
}
