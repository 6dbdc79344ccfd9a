// Package provider holds the generic plumbing shared by swappable backends:
// the base Provider interface, factories, and an ordered registry that
// builds instances lazily and caches them.
//
// Registration order is significant: Keys returns factories in the order they
// were first registered, which callers use as a stable tie-break when ranking.
//
//	reg := provider.NewRegistry[string, MyProvider]()
//	reg.RegisterFactory("local", localFactory)
//	reg.RegisterFactory("remote", remoteFactory)
//	p, err := reg.GetOrCreate("local", nil)
//
// A single operation of a provider can be exposed with Bind and wrapped with
// middleware; Chain applies the first middleware outermost:
//
//	rr := provider.Chain(
//		provider.WithTracing[In, Out]("my.call"),
//		provider.WithMetrics[In, Out](recorder),
//		provider.WithLogging[In, Out](log, "call"),
//	)(provider.Bind(p, callFn))
package provider
