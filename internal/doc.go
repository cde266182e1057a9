// Package internal holds code generation shared by the engine. Nothing here
// is part of the public API surface.
package internal
