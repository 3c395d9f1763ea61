package restapi

import (
	"net/http"

	"stopboard.app/internal/models"
)

// currentTimeHandler reports the board's clock, which is the clock arrival
// minutes are computed against.
func (api *RestAPI) currentTimeHandler(w http.ResponseWriter, r *http.Request) {
	timeData := models.NewCurrentTimeData(api.Clock.Now())
	api.sendResponse(w, r, models.NewOKResponse(timeData, api.Clock))
}
