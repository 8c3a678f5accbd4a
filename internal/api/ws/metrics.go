package ws

// Metrics receives hub instrumentation. *metrics.Collector implements it.
type Metrics interface {
	ConnectionOpened()
	ConnectionClosed()
	SetBoards(n int)
	MessageHandled(kind string)
	HandlerError(kind string)
	MessageMalformed()
	Delivered(sent, dropped int)
	RelayPublished()
	RelayReceived()
	RelayError()
}

type nopMetrics struct{}

func (nopMetrics) ConnectionOpened()     {}
func (nopMetrics) ConnectionClosed()     {}
func (nopMetrics) SetBoards(int)         {}
func (nopMetrics) MessageHandled(string) {}
func (nopMetrics) HandlerError(string)   {}
func (nopMetrics) MessageMalformed()     {}
func (nopMetrics) Delivered(int, int)    {}
func (nopMetrics) RelayPublished()       {}
func (nopMetrics) RelayReceived()        {}
func (nopMetrics) RelayError()           {}
