package logger

import "log/slog"

// Error returns the conventional attribute for an error value.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String("error", err.Error())
}

// Component tags a record with the emitting component's name.
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// UserID tags a record with the subject user.
func UserID(id string) slog.Attr {
	return slog.String("user_id", id)
}
