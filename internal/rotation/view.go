package rotation

import (
	"encoding/json"
	"strconv"
)

// DefaultRouteLabel is shown before any route has ever been displayed.
const DefaultRouteLabel = "BUS"

const placeholderRows = 3

// Arrival is one row of the view: minutes until arrival, or a placeholder.
type Arrival struct {
	Minutes     int
	Placeholder bool
}

// Due reports whether the vehicle is arriving now.
func (a Arrival) Due() bool {
	return !a.Placeholder && a.Minutes == 0
}

// String renders the row the way a display shows it.
func (a Arrival) String() string {
	switch {
	case a.Placeholder:
		return "-"
	case a.Minutes == 0:
		return "due"
	default:
		return strconv.Itoa(a.Minutes)
	}
}

// MarshalJSON encodes minutes as a number, "due" for zero and "-" for a
// placeholder.
func (a Arrival) MarshalJSON() ([]byte, error) {
	if a.Placeholder || a.Minutes == 0 {
		return json.Marshal(a.String())
	}
	return []byte(strconv.Itoa(a.Minutes)), nil
}

func (a *Arrival) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*a = Arrival{Placeholder: s != "due"}
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*a = Arrival{Minutes: n}
	return nil
}

// ViewModel is what a renderer needs to paint the board.
type ViewModel struct {
	RouteLabel     string    `json:"routeLabel"`
	ArrivalMinutes []Arrival `json:"arrivalMinutes"`
}

// IsPlaceholder reports whether the view carries no real arrivals.
func (v ViewModel) IsPlaceholder() bool {
	for _, a := range v.ArrivalMinutes {
		if !a.Placeholder {
			return false
		}
	}
	return true
}

// placeholders is the fixed three-row list shown when there is nothing to
// display, whatever the display count.
func placeholders() []Arrival {
	out := make([]Arrival, placeholderRows)
	for i := range out {
		out[i] = Arrival{Placeholder: true}
	}
	return out
}
