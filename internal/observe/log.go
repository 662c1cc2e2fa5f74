package observe

import "log/slog"

// LogObserver writes run and bundle events to a structured logger.
// Step records are logged at debug level; everything else at info or error.
type LogObserver struct {
	logger *slog.Logger
}

// NewLogObserver returns an observer logging to l. A nil l uses slog.Default().
func NewLogObserver(l *slog.Logger) *LogObserver {
	if l == nil {
		l = slog.Default()
	}
	return &LogObserver{logger: l}
}

func (o *LogObserver) OnRunStarted(e RunStarted) {
	o.logger.Info("run started", "h0", e.H0, "version", e.Version)
}

func (o *LogObserver) OnStepRecorded(e StepRecorded) {
	o.logger.Debug("step recorded",
		"i", e.Record.Index,
		"fn", e.Record.Fn,
		"fingerprint", e.Record.Fingerprint,
	)
}

func (o *LogObserver) OnRunFinalized(e RunFinalized) {
	o.logger.Info("run finalized", "master", e.Master, "steps", e.Steps)
}

func (o *LogObserver) OnRunAborted(e RunAborted) {
	o.logger.Error("run aborted", "step", e.Step, "error", e.Err)
}

func (o *LogObserver) OnBundleBuilt(e BundleBuilt) {
	o.logger.Info("bundle built",
		"h_rich", e.HRich,
		"h_master", e.HMaster,
		"subproofs", len(e.Subproofs),
	)
}
