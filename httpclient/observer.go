package httpclient

// Event is delivered to observers at each lifecycle transition.
//
// Config and State are copies taken at the moment of the transition;
// observers may keep or modify them without affecting the call.
type Event struct {
	// Config is the request configuration. For OnRequest this is the
	// physical configuration of the attempt (after proxy rewriting).
	Config *RequestConfig

	// State is the attempt state.
	State *AttemptState

	// Body is the decoded response body of the failed attempt (OnRetry only).
	Body any
}

// Observer receives lifecycle signals for every call made by a Client.
//
// Signals are delivered synchronously on the calling goroutine, in
// transition order. An observer that blocks, blocks the call.
type Observer interface {
	// OnRequest fires before each physical attempt is sent.
	OnRequest(Event)

	// OnResponse fires when response headers are received.
	OnResponse(Event)

	// OnRedirect fires after a redirect target has been resolved.
	OnRedirect(Event)

	// OnRetry fires before a 5xx response is retried.
	OnRetry(Event)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
//
// Example:
//
//	client := httpclient.New(
//	    httpclient.WithObserver(httpclient.ObserverFuncs{
//	        Request: func(e httpclient.Event) {
//	            log.Printf("attempt %d to %s", e.State.Tries, e.Config.Hostname)
//	        },
//	    }),
//	)
type ObserverFuncs struct {
	Request  func(Event)
	Response func(Event)
	Redirect func(Event)
	Retry    func(Event)
}

var _ Observer = ObserverFuncs{}

func (f ObserverFuncs) OnRequest(e Event) {
	if f.Request != nil {
		f.Request(e)
	}
}

func (f ObserverFuncs) OnResponse(e Event) {
	if f.Response != nil {
		f.Response(e)
	}
}

func (f ObserverFuncs) OnRedirect(e Event) {
	if f.Redirect != nil {
		f.Redirect(e)
	}
}

func (f ObserverFuncs) OnRetry(e Event) {
	if f.Retry != nil {
		f.Retry(e)
	}
}

// observers fans a signal out to every registered Observer.
type observers []Observer

func (o observers) request(cfg *RequestConfig, state *AttemptState) {
	if len(o) == 0 {
		return
	}
	for _, obs := range o {
		obs.OnRequest(Event{Config: cfg.Clone(), State: state.snapshot()})
	}
}

func (o observers) response(cfg *RequestConfig, state *AttemptState) {
	if len(o) == 0 {
		return
	}
	for _, obs := range o {
		obs.OnResponse(Event{Config: cfg.Clone(), State: state.snapshot()})
	}
}

func (o observers) redirect(cfg *RequestConfig, state *AttemptState) {
	if len(o) == 0 {
		return
	}
	for _, obs := range o {
		obs.OnRedirect(Event{Config: cfg.Clone(), State: state.snapshot()})
	}
}

func (o observers) retry(cfg *RequestConfig, state *AttemptState, body any) {
	if len(o) == 0 {
		return
	}
	for _, obs := range o {
		obs.OnRetry(Event{Config: cfg.Clone(), State: state.snapshot(), Body: body})
	}
}
