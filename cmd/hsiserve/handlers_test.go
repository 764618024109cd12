package main

import (
	"encoding/json"
	"image/png"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hsibiopsy/pkg/config"
	"hsibiopsy/pkg/dataset"
	"hsibiopsy/pkg/hsi"
	"hsibiopsy/pkg/metadata"
	"hsibiopsy/pkg/patients"
)

const testMetadata = `id,age,type_of_tumor
S1.2,54,glioma
S2.1,70,meningioma
`

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	log.SetOutput(io.Discard)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })

	index, err := dataset.NewIndex([]dataset.Entry{
		{PatientID: "S1.2", FOV: 1, CombinedID: "1.2_1", FilePath: "a.mat"},
		{PatientID: "S1.2", FOV: 3, CombinedID: "1.2_3", FilePath: "b.mat"},
		{PatientID: "S2.1", FOV: 1, CombinedID: "2.1_1", FilePath: "missing.mat"},
		{PatientID: "S9.9", FOV: 2, CombinedID: "9.9_2", FilePath: "c.mat"},
	})
	require.NoError(t, err)

	table, err := metadata.Parse(strings.NewReader(testMetadata))
	require.NoError(t, err)

	loader := hsi.LoaderFunc(func(path string) (*hsi.Cube, error) {
		if path == "missing.mat" {
			return nil, os.ErrNotExist
		}
		return hsi.NewCube([]uint64{3, 2, 2}, []float64{
			0, 1, 2, 3,
			4, 5, 6, 7,
			8, 9, 10, 11,
		})
	})

	registry, err := patients.NewRegistry(table, "")
	require.NoError(t, err)

	cfg := config.DefaultConfig()
	cfg.Spectral.Wavelengths = []float64{450, 550, 650}

	return router(&Global{
		Config:   cfg,
		Dataset:  dataset.New(index, table, dataset.WithLoader(loader), dataset.WithLogger(log.New(io.Discard, "", 0))),
		Registry: registry,
	})
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestListSamples(t *testing.T) {
	h := newTestServer(t)

	rec := get(t, h, "/samples")
	require.Equal(t, http.StatusOK, rec.Code)
	var entries []dataset.Entry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 4)
	assert.Equal(t, "1.2_1", entries[0].CombinedID)

	rec = get(t, h, "/samples?patient=S1_2")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	assert.Len(t, entries, 2)
}

func TestSample(t *testing.T) {
	h := newTestServer(t)

	rec := get(t, h, "/samples/1.2_3")
	require.Equal(t, http.StatusOK, rec.Code)

	var view struct {
		CombinedID   string            `json:"combinedId"`
		PatientID    string            `json:"patientId"`
		FOV          int               `json:"fov"`
		Shape        [3]int            `json:"shape"`
		MeanSpectrum []float64         `json:"meanSpectrum"`
		Metadata     map[string]string `json:"metadata"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, "S1.2", view.PatientID)
	assert.Equal(t, 3, view.FOV)
	assert.Equal(t, [3]int{3, 2, 2}, view.Shape)
	assert.Equal(t, []float64{1.5, 5.5, 9.5}, view.MeanSpectrum)
	assert.Equal(t, "glioma", view.Metadata["type_of_tumor"])

	rec = get(t, h, "/samples/9.9_2")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"metadata":null`)
}

func TestSampleErrors(t *testing.T) {
	h := newTestServer(t)

	assert.Equal(t, http.StatusNotFound, get(t, h, "/samples/99_1").Code)
	assert.Equal(t, http.StatusServiceUnavailable, get(t, h, "/samples/2.1_1").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, h, "/patients/S1.2/fov/x").Code)
	assert.Equal(t, http.StatusNotFound, get(t, h, "/patients/S1.2/fov/2").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, h, "/samples/1.2_1/spectrum.png?px=1").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, h, "/samples/1.2_1/spectrum.png?px=5,5").Code)
}

func TestSampleImages(t *testing.T) {
	h := newTestServer(t)

	for _, path := range []string{"/samples/1.2_1/rgb.png", "/samples/1.2_1/spectrum.png", "/samples/1.2_1/spectrum.png?px=0,0&px=1,1"} {
		rec := get(t, h, path)
		require.Equal(t, http.StatusOK, rec.Code, path)
		assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
		_, err := png.Decode(rec.Body)
		assert.NoError(t, err, path)
	}
}

func TestPatients(t *testing.T) {
	h := newTestServer(t)

	var ids []string
	rec := get(t, h, "/patients")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ids))
	assert.Equal(t, []string{"S1.2", "S2.1", "S9.9"}, ids)

	rec = get(t, h, "/patients?type=meningioma")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ids))
	assert.Equal(t, []string{"S2.1"}, ids)

	rec = get(t, h, "/patients/types")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ids))
	assert.Equal(t, []string{"glioma", "meningioma"}, ids)

	var samples []map[string]interface{}
	rec = get(t, h, "/patients/S1_2")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &samples))
	assert.Len(t, samples, 2)

	rec = get(t, h, "/patients/S5.5")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())

	rec = get(t, h, "/patients/S.1.2/fov/FOV3")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"combinedId":"1.2_3"`)
}
