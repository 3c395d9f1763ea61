package models

import (
	"net/http"
	"time"

	"stopboard.app/internal/clock"
)

// ResponseVersion is the envelope version reported by every JSON endpoint.
const ResponseVersion = 2

// ResponseModel is the envelope shared by the board API endpoints.
type ResponseModel struct {
	Code        int    `json:"code"`
	CurrentTime int64  `json:"currentTime"`
	Text        string `json:"text"`
	Version     int    `json:"version"`
	Data        any    `json:"data,omitempty"`
}

// EntryData wraps a single object.
type EntryData struct {
	Entry any `json:"entry"`
}

func ResponseCurrentTime(c clock.Clock) int64 {
	return c.NowUnixMilli()
}

// NewOKResponse wraps data in a 200 envelope.
func NewOKResponse(data any, c clock.Clock) ResponseModel {
	return ResponseModel{
		Code:        http.StatusOK,
		CurrentTime: ResponseCurrentTime(c),
		Text:        "OK",
		Version:     ResponseVersion,
		Data:        data,
	}
}

// NewEntryResponse wraps a single object as data.entry.
func NewEntryResponse(entry any, c clock.Clock) ResponseModel {
	return NewOKResponse(EntryData{Entry: entry}, c)
}

// NewErrorResponse builds an envelope without data.
func NewErrorResponse(code int, text string, c clock.Clock) ResponseModel {
	return ResponseModel{
		Code:        code,
		CurrentTime: ResponseCurrentTime(c),
		Text:        text,
		Version:     ResponseVersion,
	}
}

type CurrentTimeData struct {
	Time         int64  `json:"time"`
	ReadableTime string `json:"readableTime"`
}

func NewCurrentTimeData(t time.Time) EntryData {
	return EntryData{Entry: CurrentTimeData{
		Time:         t.UnixMilli(),
		ReadableTime: t.Format(time.RFC3339),
	}}
}
