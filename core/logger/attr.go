package logger

import (
	"log/slog"
	"strconv"
	"time"
)

// Helpers return an empty Attr for nil or empty values, which slog drops.

func Group(name string, attrs ...slog.Attr) slog.Attr {
	return slog.Attr{Key: name, Value: slog.GroupValue(attrs...)}
}

// Error logs err under "error".
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// Errors groups the non-nil errors under "errors", keyed by position.
func Errors(errs ...error) slog.Attr {
	as := make([]slog.Attr, 0, len(errs))
	for i, err := range errs {
		if err != nil {
			as = append(as, slog.Any(strconv.Itoa(i), err))
		}
	}
	if len(as) == 0 {
		return slog.Attr{}
	}
	return slog.Attr{Key: "errors", Value: slog.GroupValue(as...)}
}

func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}

func Latency(d time.Duration) slog.Attr {
	return slog.Duration("latency", d)
}

func RequestID(id string) slog.Attr {
	return nonEmpty("request_id", id)
}

func Method(method string) slog.Attr {
	return slog.String("method", method)
}

func Path(path string) slog.Attr {
	return slog.String("path", path)
}

func StatusCode(code int) slog.Attr {
	return slog.Int("status_code", code)
}

func ClientIP(ip string) slog.Attr {
	return nonEmpty("client_ip", ip)
}

func UserAgent(ua string) slog.Attr {
	return nonEmpty("user_agent", ua)
}

func Component(name string) slog.Attr {
	return slog.String("component", name)
}

func Event(name string) slog.Attr {
	return slog.String("event", name)
}

func Action(action string) slog.Attr {
	return slog.String("action", action)
}

// Result records an outcome such as "success" or "rejected".
func Result(result string) slog.Attr {
	return slog.String("result", result)
}

func Count(key string, n int) slog.Attr {
	return slog.Int(key, n)
}

func RetryCount(count int) slog.Attr {
	return slog.Int("retry_count", count)
}

// Domain identifiers.

func SessionID(id string) slog.Attr {
	return nonEmpty("session_id", id)
}

func TokenID(id string) slog.Attr {
	return nonEmpty("token_id", id)
}

// Channel is the realtime namespace, "mobile" or "kiosk".
func Channel(name string) slog.Attr {
	return nonEmpty("channel", name)
}

// Identity is the logical user or kiosk id bound to a connection.
func Identity(id string) slog.Attr {
	return nonEmpty("identity", id)
}

// ConnHandle is the opaque id of a live connection.
func ConnHandle(handle string) slog.Attr {
	return nonEmpty("conn", handle)
}

func ProductID(id string) slog.Attr {
	return nonEmpty("product_id", id)
}

func nonEmpty(key, value string) slog.Attr {
	if value == "" {
		return slog.Attr{}
	}
	return slog.String(key, value)
}
