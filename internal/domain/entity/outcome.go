package entity

// HeaderOutcome reports what a batch operation did to one header
type HeaderOutcome struct {
	HeaderID     int64           `json:"header_id"`
	Transitioned int             `json:"transitioned"`
	Status       AggregateStatus `json:"status,omitempty"`
	Skipped      bool            `json:"skipped"`
	Reason       string          `json:"reason,omitempty"`
	Error        string          `json:"error,omitempty"`
}

// BatchOutcome is the per-id summary returned by every batch operation
type BatchOutcome struct {
	Transitioned int             `json:"transitioned"`
	Results      []HeaderOutcome `json:"results"`
}

// Add appends a header outcome and accumulates its transition count
func (o *BatchOutcome) Add(r HeaderOutcome) {
	o.Transitioned += r.Transitioned
	o.Results = append(o.Results, r)
}

// SkippedIDs returns the ids of headers that were left untouched
func (o *BatchOutcome) SkippedIDs() []int64 {
	ids := make([]int64, 0)
	for _, r := range o.Results {
		if r.Skipped {
			ids = append(ids, r.HeaderID)
		}
	}
	return ids
}

// Failed returns the outcomes that carry an error
func (o *BatchOutcome) Failed() []HeaderOutcome {
	failed := make([]HeaderOutcome, 0)
	for _, r := range o.Results {
		if r.Error != "" {
			failed = append(failed, r)
		}
	}
	return failed
}

// Skip reasons reported in HeaderOutcome.Reason
const (
	ReasonNotAuthorized    = "actor has no matching active assignment"
	ReasonAlreadyFinal     = "header already decided"
	ReasonPriorRejection   = "header has a prior rejection"
	ReasonNoPendingSteps   = "no pending steps"
	ReasonAlreadySubmitted = "header already has approval steps"
	ReasonCascadeCap       = "cascade iteration cap reached"
	ReasonNoInfoRequests   = "no open information requests"
)
