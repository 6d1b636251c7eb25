package dashboard

import (
	"errors"
	"net/http"

	"taxi-dashboard/internal/engine"
	"taxi-dashboard/internal/taxi"
)

// Response statuses.
const (
	StatusOK      = "ok"
	StatusEmpty   = "empty"
	StatusInvalid = "invalid"
	StatusError   = "error"
)

// EmptyMessage is shown when a filter matches no trips.
const EmptyMessage = "No data for the selected filters."

// Response is the envelope every transport returns for a dashboard query.
type Response struct {
	Status    string         `json:"status"`
	Message   string         `json:"message,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
	Dataset   string         `json:"dataset,omitempty"`
	Result    *engine.Result `json:"result,omitempty"`
}

// NewResponse wraps a query outcome. An invalid filter takes precedence over
// an empty result, so an empty payment set reports as invalid.
func NewResponse(res *engine.Result, err error) Response {
	switch {
	case err == nil:
		return Response{Status: StatusOK, Result: res}
	case errors.Is(err, taxi.ErrInvalidFilter):
		return Response{Status: StatusInvalid, Message: err.Error()}
	case errors.Is(err, taxi.ErrEmptyResult):
		return Response{Status: StatusEmpty, Message: EmptyMessage}
	}
	return Response{Status: StatusError, Message: err.Error()}
}

// HTTPStatus maps the response status onto an HTTP code. Empty results are
// a normal answer.
func (r Response) HTTPStatus() int {
	switch r.Status {
	case StatusOK, StatusEmpty:
		return http.StatusOK
	case StatusInvalid:
		return http.StatusBadRequest
	}
	return http.StatusServiceUnavailable
}

// WithBins returns res with its distance histogram merged into buckets
// buckets. res itself may be shared through the cache and is not modified.
func WithBins(res *engine.Result, buckets int) (*engine.Result, error) {
	if res == nil || buckets == 0 || buckets == len(res.Distance) {
		return res, nil
	}
	bins, err := engine.Rebin(res.Distance, buckets)
	if err != nil {
		return nil, err
	}
	out := *res
	out.Distance = bins
	return &out, nil
}
