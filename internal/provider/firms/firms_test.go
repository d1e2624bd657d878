package firms

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohammed-shakir/sitrep-cache/internal/core/model"
	"github.com/mohammed-shakir/sitrep-cache/internal/provider"
)

const viirsCSV = `latitude,longitude,bright_ti4,scan,track,acq_date,acq_time,satellite,instrument,confidence,version,bright_ti5,frp,daynight
12.5012,4.2011,331.2,0.39,0.36,2025-02-10,1312,N,VIIRS,n,2.0NRT,297.1,5.4,D
11.4302,5.2254,367.0,0.41,0.37,2025-02-10,48,N,VIIRS,h,2.0NRT,299.2,12.9,N
bogus,4.1,300,0.4,0.4,2025-02-10,1312,N,VIIRS,n,2.0NRT,290,1,D
13.9000,4.5000,320.0,0.4,0.4,2025-02-10,1312,N,VIIRS,l,2.0NRT,290,1,D
`

var kebbi = model.BBox{X1: 3.5, Y1: 10.8, X2: 5.9, Y2: 13.3}

func TestParse_VIIRS(t *testing.T) {
	hs, err := Parse([]byte(viirsCSV), "VIIRS_SNPP_NRT")
	require.NoError(t, err)
	require.Len(t, hs, 3, "bad latitude row skipped")

	h := hs[0]
	assert.InDelta(t, 12.5012, h.Latitude, 1e-9)
	assert.InDelta(t, 331.2, h.BrightnessKelvin, 1e-9)
	assert.Equal(t, model.ConfidenceNominal, h.Confidence)
	assert.Equal(t, time.Date(2025, 2, 10, 13, 12, 0, 0, time.UTC), h.AcquiredAt)
	assert.Equal(t, "N", h.SensorID)
	assert.InDelta(t, 5.4, h.FRP, 1e-9)

	assert.Equal(t, model.ConfidenceHigh, hs[1].Confidence)
	assert.Equal(t, time.Date(2025, 2, 10, 0, 48, 0, 0, time.UTC), hs[1].AcquiredAt)
}

func TestParse_MODISNumericConfidence(t *testing.T) {
	doc := "latitude,longitude,brightness,acq_date,acq_time,confidence\n" +
		"12.0,4.0,310.5,2025-02-10,0930,15\n" +
		"12.0,4.0,310.5,2025-02-10,0930,55\n" +
		"12.0,4.0,310.5,2025-02-10,0930,91\n"
	hs, err := Parse([]byte(doc), "MODIS_NRT")
	require.NoError(t, err)
	require.Len(t, hs, 3)
	assert.Equal(t, model.ConfidenceLow, hs[0].Confidence)
	assert.Equal(t, model.ConfidenceNominal, hs[1].Confidence)
	assert.Equal(t, model.ConfidenceHigh, hs[2].Confidence)
	assert.Equal(t, "MODIS_NRT", hs[0].SensorID)
	assert.InDelta(t, 310.5, hs[0].BrightnessKelvin, 1e-9)
}

func TestParse_EmptyAndMalformed(t *testing.T) {
	hs, err := Parse(nil, "x")
	require.NoError(t, err)
	assert.Empty(t, hs)

	_, err = Parse([]byte("Invalid MAP_KEY.\n"), "x")
	assert.ErrorIs(t, err, provider.ErrMalformed)
}

func TestFetchHotspots_BuildsAreaURLAndFiltersBounds(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(viirsCSV))
	}))
	defer srv.Close()

	c := New(srv.Client(), srv.URL+"/api/area/csv/", "KEY", "VIIRS_SNPP_NRT")
	hs, err := c.FetchHotspots(context.Background(), kebbi, 2)
	require.NoError(t, err)

	assert.Equal(t, "/api/area/csv/KEY/VIIRS_SNPP_NRT/3.5000,10.8000,5.9000,13.3000/2", gotPath)
	assert.Len(t, hs, 2, "row at lat 13.9 lies outside the box")
	assert.Equal(t, "firms:VIIRS_SNPP_NRT", c.Name())
}

func TestFetchHotspots_UpstreamErrorAndMissingKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := New(srv.Client(), srv.URL, "KEY", "MODIS_NRT").FetchHotspots(context.Background(), kebbi, 1)
	require.Error(t, err)

	_, err = New(srv.Client(), srv.URL, "", "MODIS_NRT").FetchHotspots(context.Background(), kebbi, 1)
	assert.True(t, errors.Is(err, provider.ErrNotConfigured))
}
