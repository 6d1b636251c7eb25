package dashboard

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taxi-dashboard/internal/engine"
	"taxi-dashboard/internal/summary"
	"taxi-dashboard/internal/taxi"
)

func TestNewResponse(t *testing.T) {
	res := &engine.Result{}
	ok := NewResponse(res, nil)
	assert.Equal(t, StatusOK, ok.Status)
	assert.Same(t, res, ok.Result)
	assert.Equal(t, http.StatusOK, ok.HTTPStatus())

	empty := NewResponse(nil, fmt.Errorf("q: %w", taxi.ErrEmptyResult))
	assert.Equal(t, Response{Status: StatusEmpty, Message: EmptyMessage}, empty)
	assert.Equal(t, http.StatusOK, empty.HTTPStatus())

	invalid := NewResponse(nil, fmt.Errorf("%w: %w: no payment types selected", taxi.ErrInvalidFilter, taxi.ErrEmptyResult))
	assert.Equal(t, StatusInvalid, invalid.Status)
	assert.Contains(t, invalid.Message, "no payment types")
	assert.Equal(t, http.StatusBadRequest, invalid.HTTPStatus())

	failed := NewResponse(nil, errors.New("boom"))
	assert.Equal(t, StatusError, failed.Status)
	assert.Equal(t, http.StatusServiceUnavailable, failed.HTTPStatus())
}

func TestWithBinsDoesNotModifyShared(t *testing.T) {
	bins := make([]engine.DistanceBin, summary.NumBins)
	for i := range bins {
		bins[i] = engine.DistanceBin{Bin: i, Low: float64(i) * summary.BinWidth, High: float64(i+1) * summary.BinWidth, Trips: 1}
	}
	res := &engine.Result{Distance: bins}

	out, err := WithBins(res, 8)
	require.NoError(t, err)
	assert.Len(t, out.Distance, 8)
	assert.Equal(t, int64(5), out.Distance[0].Trips)
	assert.Len(t, res.Distance, summary.NumBins)

	same, err := WithBins(res, 0)
	require.NoError(t, err)
	assert.Same(t, res, same)

	_, err = WithBins(res, 7)
	assert.ErrorIs(t, err, taxi.ErrInvalidFilter)
}
