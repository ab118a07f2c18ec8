package dto

import (
	"strconv"
	"time"

	"github.com/Mastero4ek/bull-diary-sub002/internal/domain/model"
)

// SyncRequestDTO is the body of POST /sync. Timestamps accept ISO-8601
// (RFC3339) or epoch milliseconds.
type SyncRequestDTO struct {
	Exchange  string `json:"exchange"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// Window validates the request and resolves both timestamps to an
// absolute range. All failures are ValidationErrors raised before any
// network call.
func (d *SyncRequestDTO) Window() (model.TimeRange, error) {
	if d.Exchange == "" {
		return model.TimeRange{}, &model.ValidationError{Field: "exchange", Reason: "required"}
	}

	start, err := parseTimestamp(d.StartTime)
	if err != nil {
		return model.TimeRange{}, &model.ValidationError{Field: "start_time", Reason: err.Error()}
	}
	end, err := parseTimestamp(d.EndTime)
	if err != nil {
		return model.TimeRange{}, &model.ValidationError{Field: "end_time", Reason: err.Error()}
	}
	if start.After(end) {
		return model.TimeRange{}, &model.ValidationError{Field: "start_time", Reason: "must not be after end_time"}
	}

	return model.TimeRange{Start: start, End: end}, nil
}

// parseTimestamp accepts RFC3339 or epoch milliseconds.
func parseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, &timestampError{"required"}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	return time.Time{}, &timestampError{"must be RFC3339 or epoch milliseconds"}
}

type timestampError struct{ reason string }

func (e *timestampError) Error() string { return e.reason }

// StreamResultDTO mirrors one stream of the sync summary.
type StreamResultDTO struct {
	Success          bool `json:"success"`
	DataCount        int  `json:"dataCount"`
	TotalDataFromAPI int  `json:"totalDataFromApi"`
}

// SyncSummaryDTO carries the run totals.
type SyncSummaryDTO struct {
	TotalOrders       int `json:"totalOrders"`
	TotalTransactions int `json:"totalTransactions"`
	TotalSynced       int `json:"totalSynced"`
}

// SyncResponseDTO is the body of a successful POST /sync.
type SyncResponseDTO struct {
	Success      bool            `json:"success"`
	Orders       StreamResultDTO `json:"orders"`
	Transactions StreamResultDTO `json:"transactions"`
	Summary      SyncSummaryDTO  `json:"summary"`
}

// SyncResponseFromModel creates a SyncResponseDTO from a finished run.
func SyncResponseFromModel(sum *model.SyncSummary) *SyncResponseDTO {
	return &SyncResponseDTO{
		Success: sum.Success(),
		Orders: StreamResultDTO{
			Success:          sum.Orders.Synced,
			DataCount:        sum.Orders.DataCount,
			TotalDataFromAPI: sum.Orders.TotalFromAPI,
		},
		Transactions: StreamResultDTO{
			Success:          sum.Transactions.Synced,
			DataCount:        sum.Transactions.DataCount,
			TotalDataFromAPI: sum.Transactions.TotalFromAPI,
		},
		Summary: SyncSummaryDTO{
			TotalOrders:       sum.Orders.DataCount,
			TotalTransactions: sum.Transactions.DataCount,
			TotalSynced:       sum.TotalSynced(),
		},
	}
}

// ProgressDTO is the body of GET /sync/progress.
type ProgressDTO struct {
	Progress int    `json:"progress"`
	Status   string `json:"status"`
	Message  string `json:"message"`
}

// ProgressFromModel creates a ProgressDTO from the tracker's state.
func ProgressFromModel(p model.SyncProgress) *ProgressDTO {
	return &ProgressDTO{
		Progress: p.Progress,
		Status:   string(p.Status),
		Message:  p.Message,
	}
}
