package port

// Metrics 行情流的观测指标，默认为 noop
type Metrics interface {
	SetStatus(status Status)
	IncMessages(provider string)
	IncDropped(provider, reason string)
	IncOrphaned(provider string)
	IncReconnects(provider string)
	IncStalls(provider string)
	IncSimulatedTicks()
}

type NoopMetrics struct{}

func (NoopMetrics) SetStatus(Status)          {}
func (NoopMetrics) IncMessages(string)        {}
func (NoopMetrics) IncDropped(string, string) {}
func (NoopMetrics) IncOrphaned(string)        {}
func (NoopMetrics) IncReconnects(string)      {}
func (NoopMetrics) IncStalls(string)          {}
func (NoopMetrics) IncSimulatedTicks()        {}
