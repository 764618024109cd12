package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gorilla/mux"

	"hsibiopsy/pkg/dataset"
	"hsibiopsy/pkg/metadata"
	"hsibiopsy/pkg/visualization"
)

type handler struct {
	*Global
}

// sampleView is the JSON form of a loaded sample.
type sampleView struct {
	CombinedID   string            `json:"combinedId"`
	PatientID    string            `json:"patientId"`
	FOV          int               `json:"fov"`
	Shape        [3]int            `json:"shape"`
	MeanSpectrum []float64         `json:"meanSpectrum"`
	Metadata     metadata.Metadata `json:"metadata"`
}

func newSampleView(s *dataset.Sample) sampleView {
	spectrum := s.Cube.MeanSpectrum()
	// NaN has no JSON encoding.
	for i, v := range spectrum {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			spectrum[i] = 0
		}
	}
	return sampleView{
		CombinedID:   s.CombinedID,
		PatientID:    s.PatientID,
		FOV:          s.FOV,
		Shape:        s.Cube.Shape(),
		MeanSpectrum: spectrum,
		Metadata:     s.Metadata,
	}
}

func (h *handler) ListSamples(w http.ResponseWriter, r *http.Request) {
	entries := h.Dataset.Entries()
	if patient := r.URL.Query().Get("patient"); patient != "" {
		entries = h.Dataset.Index().Patient(h.resolvePatient(patient))
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *handler) Sample(w http.ResponseWriter, r *http.Request) {
	sample, err := h.Dataset.ByCombinedID(mux.Vars(r)["combined_id"])
	if err != nil {
		HTTPError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newSampleView(sample))
}

func (h *handler) SampleRGB(w http.ResponseWriter, r *http.Request) {
	sample, err := h.Dataset.ByCombinedID(mux.Vars(r)["combined_id"])
	if err != nil {
		HTTPError(w, err)
		return
	}

	viewer, err := visualization.NewViewer(sample.Cube, h.Config.Spectral.Wavelengths)
	if err != nil {
		HTTPError(w, err)
		return
	}

	rgb := h.Config.Spectral.RGB
	img, err := viewer.RGB(rgb[0], rgb[1], rgb[2])
	if err != nil {
		HTTPError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	if err := imaging.Encode(w, img, imaging.PNG); err != nil {
		log.Println(err)
	}
}

// SampleSpectrum plots the pixels given as repeated px=y,x query parameters,
// defaulting to the image centre.
func (h *handler) SampleSpectrum(w http.ResponseWriter, r *http.Request) {
	sample, err := h.Dataset.ByCombinedID(mux.Vars(r)["combined_id"])
	if err != nil {
		HTTPError(w, err)
		return
	}

	pixels, err := parsePixels(r.URL.Query()["px"])
	if err != nil {
		HTTPError(w, err)
		return
	}
	if len(pixels) == 0 {
		pixels = []visualization.Pixel{{Y: sample.Cube.Height / 2, X: sample.Cube.Width / 2}}
	}

	viewer, err := visualization.NewViewer(sample.Cube, h.Config.Spectral.Wavelengths)
	if err != nil {
		HTTPError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := viewer.PlotSpectra(&buf, pixels); err != nil {
		HTTPError(w, errBadRequest{err})
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if _, err := buf.WriteTo(w); err != nil {
		log.Println(err)
	}
}

func (h *handler) ListPatients(w http.ResponseWriter, r *http.Request) {
	if t := r.URL.Query().Get("type"); t != "" {
		writeJSON(w, http.StatusOK, h.Registry.ByType(t))
		return
	}
	writeJSON(w, http.StatusOK, h.Dataset.Index().Patients())
}

func (h *handler) ListTypes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Registry.Types())
}

func (h *handler) Patient(w http.ResponseWriter, r *http.Request) {
	samples, err := h.Dataset.ByPatient(h.resolvePatient(mux.Vars(r)["patient_id"]))
	if err != nil {
		HTTPError(w, err)
		return
	}

	out := make([]sampleView, 0, len(samples))
	for _, s := range samples {
		out = append(out, newSampleView(s))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) PatientFOV(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	fov, err := dataset.ParseFOV(vars["fov"])
	if err != nil {
		HTTPError(w, errBadRequest{err})
		return
	}

	sample, err := h.Dataset.ByPatientAndFOV(h.resolvePatient(vars["patient_id"]), fov)
	if err != nil {
		HTTPError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newSampleView(sample))
}

// resolvePatient accepts the underscore form (S1_2) for patients that have a
// metadata row and falls back to plain normalization otherwise.
func (h *handler) resolvePatient(name string) string {
	if id, err := h.Registry.Resolve(name); err == nil {
		return id
	}
	return metadata.NormalizeID(name)
}

func parsePixels(values []string) ([]visualization.Pixel, error) {
	var out []visualization.Pixel
	for _, v := range values {
		parts := strings.Split(v, ",")
		if len(parts) != 2 {
			return nil, errBadRequest{fmt.Errorf("pixel %q is not y,x", v)}
		}
		y, err := strconv.Atoi(strings.TrimSpace(parts[0]))
		if err != nil {
			return nil, errBadRequest{err}
		}
		x, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil {
			return nil, errBadRequest{err}
		}
		out = append(out, visualization.Pixel{Y: y, X: x})
	}
	return out, nil
}

type errBadRequest struct{ error }

func (e errBadRequest) Unwrap() error { return e.error }

func statusFor(err error) int {
	var bad errBadRequest
	switch {
	case errors.As(err, &bad):
		return http.StatusBadRequest
	case errors.Is(err, dataset.ErrSampleNotFound), errors.Is(err, dataset.ErrIndexOutOfRange):
		return http.StatusNotFound
	case errors.Is(err, dataset.ErrDataUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// HTTPError logs err and reports it to the client as JSON.
func HTTPError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	log.Printf("HTTP %d: %v\n", status, err)
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Println(err)
	}
}
