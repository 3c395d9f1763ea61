package board

import (
	"log/slog"
	"strings"

	"stopboard.app/internal/rotation"
)

// LogRenderer writes each view to a logger at debug level. It stands in for
// a physical display during development.
type LogRenderer struct {
	Logger *slog.Logger
}

func (r LogRenderer) Render(view rotation.ViewModel) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	rows := make([]string, len(view.ArrivalMinutes))
	for i, a := range view.ArrivalMinutes {
		rows[i] = a.String()
	}
	logger.Debug("board_rendered",
		slog.String("route", view.RouteLabel),
		slog.String("arrivals", strings.Join(rows, " ")))
}
