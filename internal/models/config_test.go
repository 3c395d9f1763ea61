package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"stopboard.app/internal/clock"
)

func TestBuildPropertiesJSONTags(t *testing.T) {
	props := BuildProperties{
		Branch:   "main",
		CommitID: "abc12345",
		Version:  "1.0.0",
		Dirty:    "false",
	}

	data, err := json.Marshal(props)
	require.NoError(t, err)
	jsonString := string(data)

	assert.Contains(t, jsonString, `"git.branch":"main"`)
	assert.Contains(t, jsonString, `"git.commit.id":"abc12345"`)
	assert.Contains(t, jsonString, `"build.version":"1.0.0"`)
	assert.NotContains(t, jsonString, "Branch")
}

func TestEntryResponseEnvelope(t *testing.T) {
	at := time.Date(2025, 3, 4, 12, 15, 0, 0, time.UTC)
	c := clock.NewMockClock(at)

	data, err := json.Marshal(NewEntryResponse(map[string]string{"routeLabel": "B6"}, c))
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"code": 200,
		"currentTime": 1741090500000,
		"text": "OK",
		"version": 2,
		"data": {"entry": {"routeLabel": "B6"}}
	}`, string(data))

	data, err = json.Marshal(NewErrorResponse(404, "resource not found", c))
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"data"`)
}

func TestCurrentTimeData(t *testing.T) {
	at := time.Date(2024, 6, 15, 14, 30, 0, 0, time.UTC)
	entry := NewCurrentTimeData(at).Entry.(CurrentTimeData)
	assert.Equal(t, at.UnixMilli(), entry.Time)
	assert.Equal(t, "2024-06-15T14:30:00Z", entry.ReadableTime)
}
