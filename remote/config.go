// Package remote runs the dissector on a capture sensor over SSH.
//
// Captures often live on the sensor that recorded them; shipping
// multi-gigabyte pcapng files to the converter is slower than shipping
// tshark's CSV back.  A [Client] implements the dissect.Runner interface
// with one SSH session per process, so the worker pool drives remote
// dissectors exactly like local ones.  Artifacts are always written on
// the local side.
package remote

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"capconv/internal/retry"
)

// DefaultMaxSessions matches OpenSSH's default MaxSessions.  Sessions
// beyond the limit would be refused by the server, so Start waits for a
// free slot instead.
const DefaultMaxSessions = 10

// Config holds everything needed to reach a capture host.
type Config struct {
	User          string
	Host          string
	Port          int
	KeyPath       string
	PromptPass    bool
	UseAgent      bool
	StrictHostKey bool
	KnownHosts    string
	ConnTimeout   time.Duration

	// MaxSessions caps concurrent sessions on the connection.
	MaxSessions int
	// Retry governs connection attempts.  A nil Retry tries four times
	// with exponential backoff starting at one second.
	Retry *retry.Backoff
}

// ParseTarget splits "user@host[:port]" into its parts.  A missing user
// defaults to $USER and a missing port to 22.
func ParseTarget(s string) (user, host string, port int, err error) {
	if s == "" {
		return "", "", 0, fmt.Errorf("empty remote target")
	}
	rest := s
	if i := strings.LastIndex(rest, "@"); i >= 0 {
		user, rest = rest[:i], rest[i+1:]
		if user == "" {
			return "", "", 0, fmt.Errorf("remote %q: empty user", s)
		}
	} else {
		user = os.Getenv("USER")
	}

	port = 22
	host = rest
	if strings.HasPrefix(rest, "[") {
		end := strings.Index(rest, "]")
		if end < 0 {
			return "", "", 0, fmt.Errorf("remote %q: unterminated [", s)
		}
		host = rest[1:end]
		rest = rest[end+1:]
		if rest != "" && !strings.HasPrefix(rest, ":") {
			return "", "", 0, fmt.Errorf("remote %q: junk after ]", s)
		}
		if rest != "" {
			if port, err = parsePort(rest[1:]); err != nil {
				return "", "", 0, fmt.Errorf("remote %q: %w", s, err)
			}
		}
	} else if i := strings.LastIndex(rest, ":"); i >= 0 && strings.Count(rest, ":") == 1 {
		host = rest[:i]
		if port, err = parsePort(rest[i+1:]); err != nil {
			return "", "", 0, fmt.Errorf("remote %q: %w", s, err)
		}
	}
	if host == "" {
		return "", "", 0, fmt.Errorf("remote %q: empty host", s)
	}
	return user, host, port, nil
}

func parsePort(s string) (int, error) {
	p, err := strconv.Atoi(s)
	if err != nil || p < 1 || p > 65535 {
		return 0, fmt.Errorf("invalid port %q", s)
	}
	return p, nil
}

func (c *Config) backoff() *retry.Backoff {
	if c.Retry != nil {
		return c.Retry
	}
	return &retry.Backoff{
		InitialDelay: time.Second,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
		MaxAttempts:  4,
		Jitter:       true,
	}
}
