package console

import (
	"github.com/rs/zerolog"
)

// AlertKind classifies a user-visible alert.
type AlertKind string

const (
	AlertSuccess AlertKind = "success"
	AlertError   AlertKind = "error"
	AlertWarning AlertKind = "warning"
	AlertInfo    AlertKind = "info"
)

// Alerter presents alerts to the user.
type Alerter interface {
	ShowAlert(kind AlertKind, title, message string)
}

// AlerterFunc is a function adapter for Alerter.
type AlerterFunc func(kind AlertKind, title, message string)

func (f AlerterFunc) ShowAlert(kind AlertKind, title, message string) {
	f(kind, title, message)
}

// LogAlerter writes alerts to the structured log only.
func LogAlerter(logger zerolog.Logger) Alerter {
	return AlerterFunc(func(kind AlertKind, title, message string) {
		evt := logger.Info()
		switch kind {
		case AlertError:
			evt = logger.Error()
		case AlertWarning:
			evt = logger.Warn()
		}
		evt.Str("kind", string(kind)).Str("title", title).Msg(message)
	})
}

// MultiAlerter fans an alert out to several alerters.
func MultiAlerter(alerters ...Alerter) Alerter {
	return AlerterFunc(func(kind AlertKind, title, message string) {
		for _, a := range alerters {
			if a != nil {
				a.ShowAlert(kind, title, message)
			}
		}
	})
}
