package web

// Options extends the engine built by Component.
type Options struct {
	// Routes register handlers during Configure, before the server starts.
	Routes []func(r Router)
	// Middlewares run after the built-in request id, recovery and access log.
	Middlewares []Handler
}

type Option func(*Options)

// WithRoutes adds a route registrar.
func WithRoutes(f func(r Router)) Option {
	return func(o *Options) { o.Routes = append(o.Routes, f) }
}

// WithMiddlewares appends middlewares to the engine.
func WithMiddlewares(m ...Handler) Option {
	return func(o *Options) { o.Middlewares = append(o.Middlewares, m...) }
}
