// Package settings holds the operator-tunable board settings and persists
// them as a single JSON blob in a key-value store.
package settings

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"stopboard.app/internal/appconf"
)

const (
	// MinRefreshSeconds is the floor applied to RefreshSeconds before use.
	MinRefreshSeconds = 5
	// MinFetchPerRoute is the least number of arrivals kept per route.
	MinFetchPerRoute = 5
	// MaxFetchVisits caps the visit count requested from the gateway.
	MaxFetchVisits = 15

	minVisits    = 15
	routesBudget = 5
)

// Settings is the persisted board configuration.
type Settings struct {
	FeedEndpoint         string  `json:"feedEndpoint" validate:"required,http_url"`
	StopID               string  `json:"stopId" validate:"required"`
	RefreshSeconds       int     `json:"refreshSeconds" validate:"min=0"`
	MaxDisplayedArrivals int     `json:"maxDisplayedArrivals" validate:"min=0"`
	LastRouteLabel       *string `json:"lastRouteLabel"`
}

// FromBoardDefaults converts the operator's configured defaults.
func FromBoardDefaults(d appconf.BoardDefaults) Settings {
	return Settings{
		FeedEndpoint:         d.FeedEndpoint,
		StopID:               d.StopID,
		RefreshSeconds:       d.RefreshSeconds,
		MaxDisplayedArrivals: d.MaxDisplayedArrivals,
	}
}

// RefreshInterval is the refresh cadence with the 5 second floor applied.
func (s Settings) RefreshInterval() time.Duration {
	return time.Duration(max(MinRefreshSeconds, s.RefreshSeconds)) * time.Second
}

// DisplayCount is the number of arrivals shown for the current route.
func (s Settings) DisplayCount() int {
	n := s.MaxDisplayedArrivals
	if n == 0 {
		n = appconf.DefaultMaxArrivals
	}
	return max(1, n)
}

// FetchLimit is the number of arrivals kept per route after normalization.
func (s Settings) FetchLimit() int {
	return max(s.DisplayCount(), MinFetchPerRoute)
}

// MaxVisits is the visit count requested from the gateway.
func (s Settings) MaxVisits() int {
	return min(max(s.FetchLimit()*routesBudget, minVisits), MaxFetchVisits)
}

// Complete reports whether the settings name both an endpoint and a stop.
func (s Settings) Complete() bool {
	return strings.TrimSpace(s.FeedEndpoint) != "" && strings.TrimSpace(s.StopID) != ""
}

// Label returns the remembered route label or "".
func (s Settings) Label() string {
	if s.LastRouteLabel == nil {
		return ""
	}
	return *s.LastRouteLabel
}

// Clone returns a copy that shares no memory with s.
func (s Settings) Clone() Settings {
	if s.LastRouteLabel != nil {
		label := *s.LastRouteLabel
		s.LastRouteLabel = &label
	}
	return s
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		return strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
	})
	return v
}

// Validate checks a submitted settings object.
func (s Settings) Validate() error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
	}
	return errors.New(strings.Join(msgs, "; "))
}

// normalizeSubmitted trims text fields and replaces zero numbers with defaults,
// the way the settings form treats blank inputs.
func normalizeSubmitted(s, defaults Settings) Settings {
	s.FeedEndpoint = strings.TrimSpace(s.FeedEndpoint)
	s.StopID = strings.TrimSpace(s.StopID)
	if s.RefreshSeconds == 0 {
		s.RefreshSeconds = defaults.RefreshSeconds
	}
	if s.MaxDisplayedArrivals == 0 {
		s.MaxDisplayedArrivals = defaults.MaxDisplayedArrivals
	}
	return s
}
