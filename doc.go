// Package tracing is a client-side distributed-tracing SDK: applications
// create and finish spans, propagate trace context across process
// boundaries, and report finished spans plus derived RED (rate, error,
// duration) metrics to a telemetry backend.
//
// A minimal setup wires a sender, a reporter, and a tracer:
//
//	wf, _ := sender.NewHTTPSender(sender.HTTPConfig{URL: url, Token: token})
//	rep, _ := reporter.NewBufferedSender(wf)
//	tags, _ := application.New("ordering", "checkout")
//	tracer, _ := tracing.New(tracing.Config{Tags: tags, Reporter: rep})
//	defer tracer.Close()
//
//	span := tracer.StartSpan("charge-card")
//	span.SetTag("payment.provider", "acme")
//	span.Finish()
//
// Instrumentation calls never fail because of backend trouble: transport
// errors and backpressure are counted, logged at a sampled rate, and the
// span is dropped. The only surfaced errors are configuration mistakes.
package tracing
