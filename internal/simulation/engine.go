package simulation

import "context"

// Request is the payload handed to the dosing engine. The measurement slices
// carry the most recent observation pair as one-element lists, dates in
// yyyyMMdd form. Cycles is the planning horizon as the engine expects it:
// the number of treatment cycles to project plus one for the baseline cycle.
type Request struct {
	Cycles       float64   `json:"cycles"`
	BSA          float64   `json:"bsa"`
	ANCValues    []float64 `json:"anc_values"`
	ANCDates     []string  `json:"anc_dates"`
	DosageValues []float64 `json:"dosage_values"`
	DosageDates  []string  `json:"dosage_dates"`
}

// Output carries the seven series the engine produces over a shared time
// axis: the model trajectories plus the reactive and anticipatory
// recommendation pairs.
type Output struct {
	Time               []float64 `json:"time"`
	Nominal            []float64 `json:"nominal_trajectory"`
	Linearized         []float64 `json:"linearized_trajectory"`
	ReactiveANC        []float64 `json:"reactive_anc"`
	AnticipatoryANC    []float64 `json:"anticipatory_anc"`
	ReactiveDosage     []float64 `json:"reactive_dosage"`
	AnticipatoryDosage []float64 `json:"anticipatory_dosage"`
}

// Engine is the black-box PK/PD computation boundary. Implementations must
// honor ctx cancellation.
type Engine interface {
	Run(ctx context.Context, req *Request) (*Output, error)
}
