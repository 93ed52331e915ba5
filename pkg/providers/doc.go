// Package providers contains the built-in providers for the convergence
// engine: file, directory, log and composite.
//
// Default returns a registry holding all of them:
//
//	registry := providers.Default(logger)
//	eng := engine.New(registry, bus)
package providers
