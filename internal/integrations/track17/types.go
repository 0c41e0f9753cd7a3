package track17

import "encoding/json"

// envelope wraps every proxy response. Code 0 means success.
type envelope struct {
	Code int             `json:"code"`
	Data json.RawMessage `json:"data"`
	Msg  string          `json:"msg,omitempty"`
}

type RegisterRequest struct {
	Number  string `json:"number"`
	Carrier int    `json:"carrier"`
	Tag     string `json:"tag,omitempty"`
}

type ChangeInfoItems struct {
	Tag *string `json:"tag,omitempty"`
}

type ChangeInfoRequest struct {
	Number  string          `json:"number"`
	Carrier int             `json:"carrier"`
	Items   ChangeInfoItems `json:"items"`
}

type Accepted struct {
	Number  string `json:"number"`
	Carrier int    `json:"carrier"`
}

type RejectionError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type Rejected struct {
	Number string         `json:"number"`
	Error  RejectionError `json:"error"`
}

// BatchResult is the accepted/rejected payload of register, changeinfo and delete.
type BatchResult struct {
	Accepted []Accepted `json:"accepted"`
	Rejected []Rejected `json:"rejected"`
}

// TrackListItem is one row of the list endpoint.
type TrackListItem struct {
	Number          string  `json:"number"`
	Carrier         int     `json:"carrier"`
	PackageStatus   string  `json:"package_status"`
	LatestEventTime string  `json:"latest_event_time,omitempty"`
	LatestEventInfo string  `json:"latest_event_info,omitempty"`
	RegisterTime    string  `json:"register_time,omitempty"`
	TrackTime       string  `json:"track_time,omitempty"`
	Tag             *string `json:"tag,omitempty"`
}

type TrackListResult struct {
	Accepted []TrackListItem `json:"accepted"`
}

type ProviderEvent struct {
	TimeISO     string `json:"time_iso,omitempty"`
	TimeUTC     string `json:"time_utc,omitempty"`
	Description string `json:"description,omitempty"`
	Location    string `json:"location,omitempty"`
}

type Provider struct {
	Events []ProviderEvent `json:"events,omitempty"`
}

type Tracking struct {
	Providers []Provider `json:"providers,omitempty"`
}

type TrackInfoBody struct {
	Tracking *Tracking `json:"tracking,omitempty"`
}

// TrackInfo is one accepted entry of the details endpoint.
type TrackInfo struct {
	Number          string         `json:"number"`
	Carrier         int            `json:"carrier"`
	PackageStatus   string         `json:"package_status,omitempty"`
	TrackInfo       *TrackInfoBody `json:"track_info,omitempty"`
	LatestEventTime string         `json:"latest_event_time,omitempty"`
	LatestEventInfo string         `json:"latest_event_info,omitempty"`
	RegisterTime    string         `json:"register_time,omitempty"`
	TrackTime       string         `json:"track_time,omitempty"`
	Tag             *string        `json:"tag,omitempty"`
}

type TrackInfoResult struct {
	Accepted []TrackInfo `json:"accepted"`
	Rejected []Rejected  `json:"rejected"`
}

// rejection turns the first rejected entry into an API error.
func rejection(rs []Rejected) error {
	if len(rs) == 0 {
		return nil
	}
	r := rs[0]
	details, _ := json.Marshal(r)
	return NewAPIError(r.Error.Code, r.Error.Message, details)
}
