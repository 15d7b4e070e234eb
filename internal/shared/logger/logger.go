package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strings"
	"sync"
	"time"
)

// Level — уровень логирования: DEBUG, INFO, WARN, ERROR
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug
	case "WARN":
		return LevelWarn
	case "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "INFO"
	}
}

// ErrObj — описание ошибки в ERROR логах
type ErrObj struct {
	Msg   string `json:"msg"`
	Stack string `json:"stack,omitempty"`
}

// Entry — одна строка JSON лога
type Entry struct {
	Timestamp  string         `json:"timestamp"`            // ISO 8601 (UTC)
	Level      string         `json:"level"`                // DEBUG | INFO | WARN | ERROR
	Service    string         `json:"service"`              // map-service, admin-service
	Action     string         `json:"action"`               // route_recomputed, location_saved ...
	Message    string         `json:"message"`              // человекочитаемое описание
	Hostname   string         `json:"hostname"`             // хост/контейнер
	RequestID  string         `json:"request_id,omitempty"` // correlation id
	UserID     string         `json:"user_id,omitempty"`    // владелец map-сессии
	Error      *ErrObj        `json:"error,omitempty"`      // только для ERROR
	Additional map[string]any `json:"additional,omitempty"` // произвольные поля
}

// reserved — ключи, которые нельзя перезаписать через Additional
var reserved = map[string]struct{}{
	"timestamp": {}, "level": {}, "service": {}, "action": {},
	"message": {}, "hostname": {}, "request_id": {}, "user_id": {},
}

type Logger struct {
	service  string
	minLevel Level
	hostname string
	pretty   bool

	mu        sync.Mutex
	outWriter io.Writer
	errWriter io.Writer
	closers   []io.Closer
}

// NewLogger пишет в stdout/stderr (рекомендуется для prod)
func NewLogger(service string) *Logger {
	return NewLoggerWithWriters(service, LevelInfo, os.Stdout, os.Stderr)
}

// NewLoggerWithWriters — логгер с произвольными writer'ами (используется в тестах)
func NewLoggerWithWriters(service string, minLevel Level, out, errOut io.Writer) *Logger {
	h, _ := os.Hostname()
	return &Logger{
		service:   service,
		minLevel:  minLevel,
		hostname:  h,
		pretty:    strings.EqualFold(os.Getenv("LOG_PRETTY"), "true"),
		outWriter: out,
		errWriter: errOut,
	}
}

// Discard возвращает логгер, который ничего не пишет
func Discard() *Logger {
	return NewLoggerWithWriters("discard", LevelError+1, io.Discard, io.Discard)
}

// NewLoggerWithOptions поддерживает minLevel и fileDir (dev).
// Если fileDir != "", логи дублируются в info.log и error.log.
func NewLoggerWithOptions(service, minLevelStr, fileDir string) (*Logger, error) {
	min := ParseLevel(minLevelStr)
	if fileDir == "" {
		return NewLoggerWithWriters(service, min, os.Stdout, os.Stderr), nil
	}

	if err := os.MkdirAll(fileDir, 0o755); err != nil {
		return nil, fmt.Errorf("create logs dir: %w", err)
	}
	infoF, err := os.OpenFile(filepath.Join(fileDir, "info.log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o666)
	if err != nil {
		return nil, fmt.Errorf("open info log: %w", err)
	}
	errF, err := os.OpenFile(filepath.Join(fileDir, "error.log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o666)
	if err != nil {
		_ = infoF.Close()
		return nil, fmt.Errorf("open error log: %w", err)
	}

	l := NewLoggerWithWriters(service, min, io.MultiWriter(os.Stdout, infoF), io.MultiWriter(os.Stderr, errF))
	l.closers = []io.Closer{infoF, errF}
	return l, nil
}

func (l *Logger) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, c := range l.closers {
		_ = c.Close()
	}
	l.closers = nil
}

func (l *Logger) Debug(e Entry) { l.log(LevelDebug, e, nil) }
func (l *Logger) Info(e Entry)  { l.log(LevelInfo, e, nil) }
func (l *Logger) Warn(e Entry)  { l.log(LevelWarn, e, nil) }
func (l *Logger) Error(e Entry) { l.log(LevelError, e, nil) }

// Fatal пишет ERROR со стеком и завершает процесс
func (l *Logger) Fatal(e Entry) {
	l.log(LevelError, withStack(e), nil)
	os.Exit(1)
}

// WithFields возвращает логгер, который подмешивает base в каждую запись
func (l *Logger) WithFields(base map[string]any) *ContextLogger {
	return &ContextLogger{parent: l, base: base}
}

// WithContext привязывает request_id и user_id
func (l *Logger) WithContext(requestID, userID string) *ContextLogger {
	base := map[string]any{}
	if requestID != "" {
		base["request_id"] = requestID
	}
	if userID != "" {
		base["user_id"] = userID
	}
	return &ContextLogger{parent: l, base: base}
}

type ContextLogger struct {
	parent *Logger
	base   map[string]any
}

func (c *ContextLogger) Debug(e Entry) { c.parent.log(LevelDebug, e, c.base) }
func (c *ContextLogger) Info(e Entry)  { c.parent.log(LevelInfo, e, c.base) }
func (c *ContextLogger) Warn(e Entry)  { c.parent.log(LevelWarn, e, c.base) }
func (c *ContextLogger) Error(e Entry) { c.parent.log(LevelError, e, c.base) }
func (c *ContextLogger) Fatal(e Entry) { c.parent.Fatal(merge(e, c.base)) }

func (l *Logger) log(level Level, e Entry, base map[string]any) {
	if level < l.minLevel {
		return
	}

	e = merge(e, base)
	if e.Timestamp == "" {
		e.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	}
	if e.Level == "" {
		e.Level = level.String()
	}
	if e.Service == "" {
		e.Service = l.service
	}
	if e.Hostname == "" {
		e.Hostname = l.hostname
	}

	if e.Additional == nil {
		e.Additional = make(map[string]any)
	}
	if _, ok := e.Additional["caller"]; !ok {
		if pc, file, line, ok := runtime.Caller(2); ok {
			e.Additional["caller"] = fmt.Sprintf("%s:%d (%s)", file, line, funcName(runtime.FuncForPC(pc)))
		}
	}

	var (
		b   []byte
		err error
	)
	if l.pretty {
		b, err = json.MarshalIndent(e, "", "  ")
	} else {
		b, err = json.Marshal(e)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err != nil {
		fmt.Fprintf(l.errWriter, `{"timestamp":"%s","level":"ERROR","service":"%s","message":"failed to marshal log: %v"}`+"\n",
			time.Now().UTC().Format(time.RFC3339Nano), l.service, err)
		return
	}

	w := l.outWriter
	if level == LevelError {
		w = l.errWriter
	}
	_, _ = w.Write(append(b, '\n'))
}

func withStack(e Entry) Entry {
	if e.Error == nil {
		e.Error = &ErrObj{Msg: e.Message}
	}
	if e.Error.Stack == "" {
		e.Error.Stack = string(debug.Stack())
	}
	return e
}

func merge(e Entry, base map[string]any) Entry {
	if len(base) == 0 {
		return e
	}
	if e.RequestID == "" {
		e.RequestID, _ = base["request_id"].(string)
	}
	if e.UserID == "" {
		e.UserID, _ = base["user_id"].(string)
	}
	for k, v := range base {
		if _, skip := reserved[k]; skip {
			continue
		}
		if e.Additional == nil {
			e.Additional = map[string]any{}
		}
		if _, exists := e.Additional[k]; !exists {
			e.Additional[k] = v
		}
	}
	return e
}

func funcName(fn *runtime.Func) string {
	if fn == nil {
		return "unknown"
	}
	return fn.Name()
}
