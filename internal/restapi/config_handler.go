package restapi

import (
	"net/http"

	"stopboard.app/internal/buildinfo"
	"stopboard.app/internal/models"
)

func (api *RestAPI) configHandler(w http.ResponseWriter, r *http.Request) {
	buildinfo.Resolve()

	entry := models.ConfigModel{
		BuildProperties: models.BuildProperties{
			Version:      buildinfo.Version,
			BuildTime:    buildinfo.BuildTime,
			Branch:       buildinfo.Branch,
			CommitID:     buildinfo.CommitHash,
			CommitAbbrev: buildinfo.ShortCommit(),
			Dirty:        buildinfo.Dirty,
		},
		ID:             "stopboard",
		Name:           "Stop Monitoring Board",
		Environment:    api.Config.Env.String(),
		GatewayEnabled: api.Gateway != nil,
		AdminProtected: api.AdminKeysRequired(),
	}
	api.sendEntry(w, r, entry)
}
