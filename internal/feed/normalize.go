// Package feed fetches SIRI stop monitoring replies and normalizes them into
// per-route arrival countdowns.
package feed

import (
	"math"
	"strings"
	"time"

	"github.com/valyala/fastjson"
)

// Result is the outcome of normalizing one feed reply.
type Result struct {
	Arrivals RouteArrivals
	// Visits is the number of MonitoredStopVisit records seen.
	Visits    int
	Discarded Discards
}

// Discards counts visits dropped during normalization, by reason.
type Discards struct {
	NoRoute      int `json:"noRoute"`
	NoTimestamp  int `json:"noTimestamp"`
	BadTimestamp int `json:"badTimestamp"`
	OutOfWindow  int `json:"outOfWindow"`
}

// Total is the number of discarded visits.
func (d Discards) Total() int {
	return d.NoRoute + d.NoTimestamp + d.BadTimestamp + d.OutOfWindow
}

var timestampFields = []string{"ExpectedArrivalTime", "ExpectedDepartureTime", "AimedArrivalTime"}

// Normalize turns a raw stop monitoring reply into route arrivals relative
// to now, keeping at most fetchLimit arrivals per route. It never panics:
// a reply that cannot be used yields a *PollError of kind
// MalformedFeedPayload or EmptyPoll.
func Normalize(body []byte, now time.Time, fetchLimit int) (Result, error) {
	var p fastjson.Parser
	doc, err := p.ParseBytes(body)
	if err != nil {
		return Result{}, newPollError(MalformedFeedPayload, err, "feed reply is not JSON")
	}

	deliveries := doc.Get("Siri", "ServiceDelivery", "StopMonitoringDelivery")
	if deliveries == nil || deliveries.Type() != fastjson.TypeArray {
		return Result{}, newPollError(MalformedFeedPayload, nil, "missing Siri.ServiceDelivery.StopMonitoringDelivery")
	}

	var delivery *fastjson.Value
	if items := deliveries.GetArray(); len(items) > 0 {
		delivery = items[0]
	}

	res := Result{Arrivals: NewRouteArrivals()}
	var visits []*fastjson.Value
	if delivery != nil {
		visits = delivery.GetArray("MonitoredStopVisit")
	}

	for _, visit := range visits {
		res.Visits++
		journey := visit.Get("MonitoredVehicleJourney")

		route := routeLabel(journey)
		if route == "" {
			res.Discarded.NoRoute++
			continue
		}

		raw := arrivalTimestamp(journey.Get("MonitoredCall"))
		if raw == "" {
			res.Discarded.NoTimestamp++
			continue
		}
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			res.Discarded.BadTimestamp++
			continue
		}

		minutes := minutesUntil(ts, now)
		if minutes < 0 || minutes > MaxMinutesAhead {
			res.Discarded.OutOfWindow++
			continue
		}
		res.Arrivals.Add(route, minutes)
	}

	res.Arrivals.finalize(fetchLimit)

	if res.Arrivals.Empty() {
		// An error condition only fails the poll when nothing usable came with it.
		if delivery != nil {
			if cond := delivery.Get("ErrorCondition"); cond != nil {
				return res, newPollError(MalformedFeedPayload, nil, "feed reported an error: %s", errorConditionText(cond))
			}
		}
		return res, newPollError(EmptyPoll, nil, "%d visits, none usable", res.Visits)
	}
	return res, nil
}

// routeLabel resolves the rider-facing route name: the first published line
// name, then a bare published line name, then the LineRef suffix after its
// last underscore ("MTA NYCT_B6" is "B6"). A blank array element falls back
// to LineRef; a blank bare string does not.
func routeLabel(journey *fastjson.Value) string {
	if journey == nil {
		return ""
	}

	if published := journey.Get("PublishedLineName"); published != nil {
		switch published.Type() {
		case fastjson.TypeArray:
			if items := published.GetArray(); len(items) > 0 {
				if label := scalarString(items[0]); label != "" {
					return label
				}
			}
		case fastjson.TypeString:
			// A bare name is taken as given; an empty one leaves the visit unrouted.
			return string(published.GetStringBytes())
		}
	}

	lineRef := journey.Get("LineRef")
	if lineRef == nil || lineRef.Type() != fastjson.TypeString {
		return ""
	}
	ref := string(lineRef.GetStringBytes())
	return ref[strings.LastIndex(ref, "_")+1:]
}

// scalarString renders a string or number element as text.
func scalarString(v *fastjson.Value) string {
	switch v.Type() {
	case fastjson.TypeString:
		return string(v.GetStringBytes())
	case fastjson.TypeNumber:
		if f := v.GetFloat64(); f != 0 {
			return v.String()
		}
	}
	return ""
}

// arrivalTimestamp returns the first non-empty prediction field.
func arrivalTimestamp(call *fastjson.Value) string {
	if call == nil {
		return ""
	}
	for _, field := range timestampFields {
		if s := call.GetStringBytes(field); len(s) > 0 {
			return string(s)
		}
	}
	return ""
}

// minutesUntil rounds half up, so 2m30s is 3 and -2m30s is -2.
func minutesUntil(ts, now time.Time) int {
	diff := float64(ts.Sub(now)) / float64(time.Minute)
	return int(math.Floor(diff + 0.5))
}

func errorConditionText(cond *fastjson.Value) string {
	for _, path := range [][]string{
		{"Description"},
		{"OtherError", "ErrorText"},
		{"ServiceNotAvailableError", "ErrorText"},
		{"NoInfoForTopicError", "ErrorText"},
	} {
		if s := cond.GetStringBytes(path...); len(s) > 0 {
			return string(s)
		}
	}
	return cond.String()
}
