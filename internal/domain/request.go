package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// RequestKind selects which computation a request message asks for.
type RequestKind string

const (
	KindDemand           RequestKind = "demand"
	KindDepletion        RequestKind = "depletion"
	KindReservoirSummary RequestKind = "reservoir_summary"
)

// ErrUnknownKind is returned for request messages with an unsupported kind.
var ErrUnknownKind = errors.New("unknown request kind")

// ForecastRequest is the JSON envelope read from the source topic. Exactly
// the payload matching Kind is used; a missing payload is treated as empty.
type ForecastRequest struct {
	ID        string            `json:"id"`
	Kind      RequestKind       `json:"kind"`
	Demand    *DemandRequest    `json:"demand,omitempty"`
	Depletion *DepletionRequest `json:"depletion,omitempty"`
	Reservoir *ReservoirRequest `json:"reservoir,omitempty"`
}

// ForecastResponse is the JSON envelope written to the sink topic. Error is
// set on a degraded response, whose result sets are empty.
type ForecastResponse struct {
	ID          string            `json:"id"`
	Kind        RequestKind       `json:"kind"`
	Demand      *ForecastResult   `json:"demand,omitempty"`
	Depletion   *DepletionResult  `json:"depletion,omitempty"`
	Reservoir   *ReservoirSummary `json:"reservoir,omitempty"`
	Error       string            `json:"error,omitempty"`
	ProcessedAt time.Time         `json:"processed_at"`
}

// ParseRequest deserializes a RawEvent's value into a ForecastRequest. The
// message key stands in for a missing id.
func ParseRequest(raw RawEvent) (ForecastRequest, error) {
	var req ForecastRequest
	if err := json.Unmarshal(raw.Value, &req); err != nil {
		return ForecastRequest{}, fmt.Errorf("parse request: %w", err)
	}
	switch req.Kind {
	case KindDemand, KindDepletion, KindReservoirSummary:
	default:
		return ForecastRequest{}, fmt.Errorf("parse request: %w: %q", ErrUnknownKind, req.Kind)
	}
	if req.ID == "" {
		req.ID = string(raw.Key)
	}
	return req, nil
}

// Execute runs the computation for req. Failures are downgraded to a response
// carrying the error message and empty results.
func Execute(req ForecastRequest) ForecastResponse {
	resp := ForecastResponse{ID: req.ID, Kind: req.Kind}

	switch req.Kind {
	case KindDemand:
		var dr DemandRequest
		if req.Demand != nil {
			dr = *req.Demand
		}
		result, err := ForecastDemand(dr)
		if err != nil {
			resp.Error = err.Error()
			result = emptyForecast()
		}
		resp.Demand = &result
	case KindDepletion:
		var dr DepletionRequest
		if req.Depletion != nil {
			dr = *req.Depletion
		}
		result := ProjectDepletion(dr)
		resp.Depletion = &result
	case KindReservoirSummary:
		var rr ReservoirRequest
		if req.Reservoir != nil {
			rr = *req.Reservoir
		}
		summary := SummarizeReservoirs(rr)
		resp.Reservoir = &summary
	default:
		resp.Error = fmt.Sprintf("%s: %q", ErrUnknownKind, req.Kind)
	}

	resp.ProcessedAt = clock.Now()
	return resp
}

// SerializeResponse marshals a ForecastResponse into an OutputEvent keyed by
// the request id.
func SerializeResponse(resp ForecastResponse) (OutputEvent, error) {
	data, err := json.Marshal(resp)
	if err != nil {
		return OutputEvent{}, fmt.Errorf("serialize response: %w", err)
	}
	return OutputEvent{
		Key:   []byte(resp.ID),
		Value: data,
		Headers: map[string]string{
			"kind":         string(resp.Kind),
			"processed_at": resp.ProcessedAt.Format(time.RFC3339),
		},
	}, nil
}

func emptyForecast() ForecastResult {
	return ForecastResult{
		Unit:      demandUnit,
		Frequency: demandFrequency,
		History:   []TimeSeriesPoint{},
		Forecast:  []ForecastPoint{},
	}
}
