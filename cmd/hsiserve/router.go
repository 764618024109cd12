package main

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/interpose/middleware"
	"github.com/justinas/alice"
)

func router(global *Global) http.Handler {
	router := mux.NewRouter()
	GET := router.Methods("GET", "HEAD").Subrouter()

	h := handler{Global: global}

	GET.HandleFunc("/samples", h.ListSamples).Name("samples")
	GET.HandleFunc("/samples/{combined_id}", h.Sample).Name("sample")
	GET.HandleFunc("/samples/{combined_id}/rgb.png", h.SampleRGB).Name("sample-rgb")
	GET.HandleFunc("/samples/{combined_id}/spectrum.png", h.SampleSpectrum).Name("sample-spectrum")
	GET.HandleFunc("/patients", h.ListPatients).Name("patients")
	GET.HandleFunc("/patients/types", h.ListTypes).Name("patient-types")
	GET.HandleFunc("/patients/{patient_id}", h.Patient).Name("patient")
	GET.HandleFunc("/patients/{patient_id}/fov/{fov}", h.PatientFOV).Name("patient-fov")

	standard := alice.New(
		// Log all requests to STDOUT
		middleware.GorillaLog(),
	)

	return standard.Then(router)
}
