// Package sink provides destinations for the structured event records the
// engine emits during dispatch.
//
// Every implementation satisfies engine.Sink. Sinks compose: Fanout sends a
// record to several sinks, and Async moves a slow sink (a database, a
// network exporter) off the dispatching goroutine.
//
//	mem := sink.NewMemory()
//	log := sink.NewSlog(nil)
//	e := engine.New(engine.WithSink(sink.Fanout(mem, log)))
package sink
