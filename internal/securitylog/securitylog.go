// Package securitylog records security-relevant events to an append-only,
// line-oriented file. Every entry starts with a timestamp and the SECURITY tag
// so the file can be tailed or grepped without a parser.
package securitylog

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	Tag        = "SECURITY"
	timeLayout = "01/02/2006 03:04:05 PM"

	// maxFieldLength bounds caller-supplied values such as a login email.
	maxFieldLength = 254
	// maxLineLength bounds a line returned by Tail; longer lines are cut.
	maxLineLength = 4 << 10
)

// Actor identifies the authenticated user an event is about.
type Actor struct {
	ID        uint
	FirstName string
	LastName  string
	Role      string
}

type Log struct {
	logger *zap.Logger
	path   string
	file   *os.File
	mu     sync.Mutex
}

// Open appends to the log file at path, creating it if needed.
func Open(path string) (*Log, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
	if err != nil {
		return nil, fmt.Errorf("open security log: %w", err)
	}

	core := zapcore.NewCore(newEncoder(), zapcore.AddSync(f), zapcore.InfoLevel)
	return &Log{
		logger: zap.New(core),
		path:   path,
		file:   f,
	}, nil
}

// New wraps an existing core. Tail is unavailable on a Log built this way.
func New(core zapcore.Core) *Log {
	return &Log{logger: zap.New(core)}
}

func newEncoder() zapcore.Encoder {
	return zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		TimeKey:          "time",
		MessageKey:       "msg",
		EncodeTime:       zapcore.TimeEncoderOfLayout(timeLayout),
		ConsoleSeparator: " : ",
		LineEnding:       zapcore.DefaultLineEnding,
	})
}

func (l *Log) write(event string, fields ...zap.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logger.Warn(Tag+" - "+event, fields...)
}

func actorFields(a Actor) []zap.Field {
	return []zap.Field{
		zap.Uint("user_id", a.ID),
		zap.String("firstname", a.FirstName),
		zap.String("lastname", a.LastName),
	}
}

func (l *Log) Registration(firstName, lastName, ip string) {
	l.write("User registration",
		zap.String("firstname", firstName),
		zap.String("lastname", lastName),
		zap.String("ip", ip))
}

func (l *Log) Login(a Actor, ip string) {
	l.write("Log in", append(actorFields(a), zap.String("ip", ip))...)
}

// InvalidLogin records a failed credential check. The supplied password and
// code are deliberately not part of the signature.
func (l *Log) InvalidLogin(email, ip string, attemptsRemaining int) {
	l.write("Invalid login attempt",
		zap.String("email", clip(email)),
		zap.String("ip", ip),
		zap.Int("attempts_remaining", attemptsRemaining))
}

func (l *Log) Lockout(email, ip string) {
	l.write("Login lockout",
		zap.String("email", clip(email)),
		zap.String("ip", ip))
}

func (l *Log) Logout(a Actor, ip string) {
	l.write("Log out", append(actorFields(a), zap.String("ip", ip))...)
}

func (l *Log) UnauthorizedAccess(a Actor, ip string) {
	l.write("Unauthorised access attempt",
		append(actorFields(a), zap.String("role", a.Role), zap.String("ip", ip))...)
}

func (l *Log) AnonymousAccess(ip string) {
	l.write("Anonymous invalid access", zap.String("ip", ip))
}

// HTTPError records transport-level failures such as unknown routes.
func (l *Log) HTTPError(event, ip string) {
	l.write(event, zap.String("ip", ip))
}

// Tail returns the last n lines of the log file, newest first.
func (l *Log) Tail(n int) ([]string, error) {
	if l.path == "" {
		return nil, fmt.Errorf("security log has no backing file")
	}
	if n <= 0 {
		return []string{}, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.logger.Sync(); err != nil {
		return nil, fmt.Errorf("sync security log: %w", err)
	}

	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open security log: %w", err)
	}
	defer f.Close()

	ring, err := lastLines(f, n)
	if err != nil {
		return nil, fmt.Errorf("read security log: %w", err)
	}

	out := make([]string, len(ring))
	for i, line := range ring {
		out[len(ring)-1-i] = line
	}
	return out, nil
}

func clip(s string) string {
	if len(s) > maxFieldLength {
		return s[:maxFieldLength]
	}
	return s
}

// lastLines keeps the final n lines of r, each cut to maxLineLength bytes.
func lastLines(r io.Reader, n int) ([]string, error) {
	ring := make([]string, 0, n)
	br := bufio.NewReader(r)
	var line []byte
	for {
		chunk, more, err := br.ReadLine()
		if errors.Is(err, io.EOF) {
			return ring, nil
		}
		if err != nil {
			return nil, err
		}

		if room := maxLineLength - len(line); room > 0 {
			if len(chunk) > room {
				chunk = chunk[:room]
			}
			line = append(line, chunk...)
		}
		if more {
			continue
		}

		if len(ring) == n {
			ring = ring[1:]
		}
		ring = append(ring, string(line))
		line = line[:0]
	}
}

// Close flushes buffered entries and releases the file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	_ = l.logger.Sync()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}
