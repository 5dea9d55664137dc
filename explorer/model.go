package explorer

// Types for the REST API

type generateHeatmapRequest struct {
	// Entries that are not integers are dropped.
	Ks []interface{} `json:"ks"`
}

type generateHeatmapResponse struct {
	ImageURL string `json:"imageUrl"`
}

type operatorResponse struct {
	Rows               int       `json:"rows"`
	Columns            int       `json:"columns"`
	GridRows           int       `json:"gridRows"`
	GridColumns        int       `json:"gridColumns"`
	SingularValueCount int       `json:"singularValueCount"`
	NumericalRank      int       `json:"numericalRank"`
	Floor              float64   `json:"floor"`
	SingularValues     []float64 `json:"singularValues"`
}

type lcurvePoint struct {
	K            int     `json:"k"`
	ResidualNorm float64 `json:"residualNorm"`
	SolutionNorm float64 `json:"solutionNorm"`
}

type lcurveResponse struct {
	Points []lcurvePoint `json:"points"`
}
