// Package notify provides delivery channel implementations for verification
// codes issued by the engine.
//
// The engine itself knows nothing about SMTP, template rendering or provider
// credentials. It hands a [otpengine.Message] to whatever Notifier it was
// built with and inspects only the returned error. This package supplies the
// production SMTP implementation; tests and examples are free to substitute
// their own.
package notify
