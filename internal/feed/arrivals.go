package feed

import "sort"

// MaxMinutesAhead is the end of the display window. Arrivals further out
// are dropped, never clamped.
const MaxMinutesAhead = 100

// RouteArrivals maps route labels to ascending minutes-until-arrival.
// Routes records the order in which routes first appeared in the payload;
// rotation ordering keeps that order for ties.
type RouteArrivals struct {
	Routes  []string         `json:"routes"`
	Minutes map[string][]int `json:"minutes"`
}

// NewRouteArrivals returns an empty mapping ready for Add.
func NewRouteArrivals() RouteArrivals {
	return RouteArrivals{Minutes: make(map[string][]int)}
}

// Add appends one arrival to route, registering the route on first sight.
func (a *RouteArrivals) Add(route string, minutes int) {
	if a.Minutes == nil {
		a.Minutes = make(map[string][]int)
	}
	if _, ok := a.Minutes[route]; !ok {
		a.Routes = append(a.Routes, route)
	}
	a.Minutes[route] = append(a.Minutes[route], minutes)
}

// Len is the number of routes.
func (a RouteArrivals) Len() int {
	return len(a.Routes)
}

func (a RouteArrivals) Empty() bool {
	return len(a.Routes) == 0
}

// Clone returns a deep copy.
func (a RouteArrivals) Clone() RouteArrivals {
	out := RouteArrivals{
		Routes:  append([]string(nil), a.Routes...),
		Minutes: make(map[string][]int, len(a.Minutes)),
	}
	for route, minutes := range a.Minutes {
		out.Minutes[route] = append([]int(nil), minutes...)
	}
	return out
}

// finalize sorts each route's minutes and truncates them to limit.
func (a *RouteArrivals) finalize(limit int) {
	for route, minutes := range a.Minutes {
		sort.Ints(minutes)
		if limit > 0 && len(minutes) > limit {
			minutes = minutes[:limit]
		}
		a.Minutes[route] = minutes
	}
}
