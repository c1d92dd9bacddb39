package hub

import (
	"context"
	"log/slog"

	"github.com/mcoot/chathub/internal/model"
	"github.com/mcoot/chathub/internal/scheduler"
	"github.com/mcoot/chathub/internal/storage"
)

// FaultLog writes scheduler faults to the error log sink
type FaultLog struct {
	sink   storage.LogSink
	logger *slog.Logger
}

var _ scheduler.FaultReporter = (*FaultLog)(nil)

// NewFaultLog creates a FaultLog
func NewFaultLog(sink storage.LogSink, logger *slog.Logger) *FaultLog {
	return &FaultLog{
		sink:   sink,
		logger: logger.With(slog.String("component", "fault-log")),
	}
}

// ReportFault appends the fault to the error log
func (f *FaultLog) ReportFault(ctx context.Context, fault scheduler.Fault) {
	err := f.sink.AppendErrorLog(ctx, model.ErrorLog{
		ServerID: fault.ServerID,
		PlayerNo: fault.PlayerNo,
		Command:  fault.Command,
		Message:  fault.Message,
		Stack:    fault.Stack,
		At:       fault.At,
	})
	if err != nil {
		f.logger.Error("failed to append error log",
			slog.String("command", fault.Command),
			slog.Any("error", err))
	}
}
