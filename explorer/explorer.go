package explorer

import (
	"encoding/json"
	"errors"
	"fmt"
	"github.com/gorilla/mux"
	"github.com/kpaschen/crosswell/lib/svd"
	"github.com/prometheus/client_golang/prometheus"
	"log"
	"net/http"
	"path/filepath"
	"strings"
	"time"
)

var (
	figuresGenerated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tsvd_figures_generated_total",
			Help: "Heatmap figures written for /generate-heatmap requests.",
		},
	)
	requestFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tsvd_request_failures_total",
			Help: "Failed api requests by status code.",
		},
		[]string{"code"},
	)
)

func init() {
	prometheus.MustRegister(figuresGenerated)
	prometheus.MustRegister(requestFailures)
}

// Routes adds the api endpoints to router.
func (h *HeatmapExplorer) Routes(router *mux.Router) {
	router.HandleFunc("/generate-heatmap", h.GenerateHeatmap).Methods("POST")
	router.HandleFunc("/heatmaps/{name}", h.ServeHeatmap).Methods("GET")
	router.HandleFunc("/operator", h.GetOperator).Methods("GET")
	router.HandleFunc("/lcurve", h.GetLcurve).Methods("GET")
	router.HandleFunc("/results/{k}", h.GetResults).Methods("GET")
}

func httpError(w http.ResponseWriter, message string, code int) {
	requestFailures.WithLabelValues(fmt.Sprintf("%d", code)).Inc()
	http.Error(w, message, code)
}

// statusFor maps inversion errors to client errors, anything else is ours.
func statusFor(err error) int {
	if svd.IsInputError(err) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeJson(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(v)
}

func (h *HeatmapExplorer) GenerateHeatmap(w http.ResponseWriter, r *http.Request) {
	req := generateHeatmapRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, fmt.Sprintf("bad request body: %v", err), http.StatusBadRequest)
		return
	}
	ranks := filterRanks(req.Ks)
	if len(ranks) == 0 {
		httpError(w, "Provide at least one integer K", http.StatusBadRequest)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	results, err := h.pipeline.Run(r.Context(), ranks)
	if err != nil {
		log.Printf("failed to invert ranks %v: %v\n", ranks, err)
		httpError(w, err.Error(), statusFor(err))
		return
	}
	if len(results) == 0 {
		httpError(w, fmt.Sprintf("none of the ranks %v could be inverted", ranks), http.StatusBadRequest)
		return
	}
	name := figureName(ranks)
	if _, err = h.pipeline.Publish(results, name); err != nil {
		log.Printf("failed to publish ranks %v: %v\n", ranks, err)
		httpError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.setLatest(results)
	figuresGenerated.Inc()

	writeJson(w, generateHeatmapResponse{
		ImageURL: fmt.Sprintf("/heatmaps/%s?t=%d", name, time.Now().UnixMilli()),
	})
}

func (h *HeatmapExplorer) ServeHeatmap(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		httpError(w, "no such file", http.StatusNotFound)
		return
	}
	http.ServeFile(w, r, filepath.Join(h.FilenameBase, name))
}

func (h *HeatmapExplorer) GetOperator(w http.ResponseWriter, r *http.Request) {
	problem := h.pipeline.Problem()
	config := h.pipeline.Settings()
	floor := h.pipeline.Inverter().Floor()
	rows, columns := problem.Decomposition.Dims()
	writeJson(w, operatorResponse{
		Rows:               rows,
		Columns:            columns,
		GridRows:           config.GridRows,
		GridColumns:        config.GridColumns,
		SingularValueCount: problem.Decomposition.Rank(),
		NumericalRank:      problem.Decomposition.NumericalRank(floor),
		Floor:              floor,
		SingularValues:     problem.Decomposition.S,
	})
}

func (h *HeatmapExplorer) GetLcurve(w http.ResponseWriter, r *http.Request) {
	ranks, err := h.getRanks(r.URL.Query())
	if err != nil {
		httpError(w, err.Error(), http.StatusBadRequest)
		return
	}
	results, err := h.pipeline.Run(r.Context(), ranks)
	if err != nil {
		httpError(w, err.Error(), statusFor(err))
		return
	}
	resp := lcurveResponse{Points: make([]lcurvePoint, 0, len(results))}
	for _, result := range results {
		resp.Points = append(resp.Points, lcurvePoint{
			K:            result.K,
			ResidualNorm: result.ResidualNorm,
			SolutionNorm: result.SolutionNorm,
		})
	}
	writeJson(w, resp)
}

func (h *HeatmapExplorer) GetResults(w http.ResponseWriter, r *http.Request) {
	k, err := parseRank(mux.Vars(r)["k"])
	if err != nil {
		httpError(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.mu.Lock()
	result, err := h.readResult(k)
	h.mu.Unlock()
	if err != nil {
		if errors.Is(err, errNoResults) {
			httpError(w, fmt.Sprintf("no results for rank %d", k), http.StatusNotFound)
		} else {
			httpError(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}
	writeJson(w, result)
}
