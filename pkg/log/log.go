// Copyright The NRI Plugins Authors. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package log

import (
	"fmt"
	stdlog "log"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"k8s.io/klog/v2"
)

// Level describes the severity of a log message.
type Level int

const (
	// LevelDebug is the severity for debug messages.
	LevelDebug Level = iota
	// LevelInfo is the severity for informational messages.
	LevelInfo
	// LevelWarn is the severity for warnings.
	LevelWarn
	// LevelError is the severity for errors.
	LevelError
)

// Logger is the interface for producing log messages for/from a particular source.
type Logger interface {
	// Debug formats and emits a debug message.
	Debug(format string, args ...interface{})
	// Info formats and emits an informational message.
	Info(format string, args ...interface{})
	// Warn formats and emits a warning message.
	Warn(format string, args ...interface{})
	// Error formats and emits an error message.
	Error(format string, args ...interface{})
	// Fatal formats and emits an error message and os.Exit()'s with status 1.
	Fatal(format string, args ...interface{})
	// Panic formats and emits an error message then panics with the same.
	Panic(format string, args ...interface{})

	// Debugf is an alias for Debug.
	Debugf(format string, args ...interface{})
	// Infof is an alias for Info.
	Infof(format string, args ...interface{})
	// Warnf is an alias for Warn.
	Warnf(format string, args ...interface{})
	// Errorf is an alias for Error.
	Errorf(format string, args ...interface{})

	// DebugBlock formats and emits a multiline debug message.
	DebugBlock(prefix string, format string, args ...interface{})
	// InfoBlock formats and emits a multiline information message.
	InfoBlock(prefix string, format string, args ...interface{})
	// WarnBlock formats and emits a multiline warning message.
	WarnBlock(prefix string, format string, args ...interface{})
	// ErrorBlock formats and emits a multiline error message.
	ErrorBlock(prefix string, format string, args ...interface{})

	// EnableDebug enables debug messages for this Logger.
	EnableDebug(bool) bool
	// DebugEnabled checks if debug messages are enabled for this Logger.
	DebugEnabled() bool

	// Source returns the source name of this Logger.
	Source() string
}

// logging encapsulates the full runtime state of logging.
type logging struct {
	sync.RWMutex
	level   Level             // logging threshold
	dbgmap  srcmap            // debug configuration
	debug   map[string]bool   // debug state of sources
	loggers map[string]logger // source to logger mapping
	prefix  bool              // whether to prefix messages with source
	maxlen  int               // longest source name seen
}

// logger is our implementation of Logger.
type logger struct {
	source string
}

var (
	// logging state
	log = &logging{
		level:   DefaultLevel,
		dbgmap:  make(srcmap),
		debug:   make(map[string]bool),
		loggers: make(map[string]logger),
	}
	// default logger
	deflog = log.get("default")
)

// Get returns the named Logger.
func Get(source string) Logger {
	return log.get(source)
}

// NewLogger is an alias for Get.
func NewLogger(source string) Logger {
	return log.get(source)
}

// Default returns the default Logger.
func Default() Logger {
	return deflog
}

// EnableDebug enables debug logging for the given source.
func EnableDebug(source string) bool {
	return log.get(source).EnableDebug(true)
}

// DebugEnabled checks if debug logging is enabled for the given source.
func DebugEnabled(source string) bool {
	return log.get(source).DebugEnabled()
}

// Flush flushes any pending log messages.
func Flush() {
	klog.Flush()
}

// SetLevel sets the logging severity threshold.
func SetLevel(level Level) {
	log.Lock()
	defer log.Unlock()
	log.level = level
}

// SetStdLogger sets up the standard log package to log through the given source.
func SetStdLogger(source string) {
	var l Logger
	if source == "" {
		l = Default()
	} else {
		l = log.get(source)
	}
	stdlog.SetFlags(0)
	stdlog.SetOutput(&stdWriter{l: l})
}

type stdWriter struct {
	l Logger
}

func (w *stdWriter) Write(p []byte) (int, error) {
	w.l.Info("%s", strings.TrimSuffix(string(p), "\n"))
	return len(p), nil
}

// SetupDebugToggleSignal sets up a signal handler to toggle full debugging on/off.
func SetupDebugToggleSignal(sig os.Signal) {
	if sig == nil {
		sig = syscall.SIGUSR1
	}
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, sig)
	go func() {
		state := false
		for range ch {
			state = !state
			log.Lock()
			log.forceDebug(state)
			log.Unlock()
			deflog.Warn("forced full debugging is now %v...", state)
		}
	}()
}

func (log *logging) get(source string) logger {
	log.Lock()
	defer log.Unlock()

	if l, ok := log.loggers[source]; ok {
		return l
	}

	l := logger{source: source}
	log.loggers[source] = l
	log.debug[source] = log.dbgmap.enabled(source)
	if len(source) > log.maxlen {
		log.maxlen = len(source)
	}

	return l
}

func (log *logging) setDbgMap(m srcmap) {
	log.dbgmap = m
	for source := range log.loggers {
		log.debug[source] = m.enabled(source)
	}
}

func (log *logging) forceDebug(state bool) {
	for source := range log.loggers {
		if state {
			log.debug[source] = true
		} else {
			log.debug[source] = log.dbgmap.enabled(source)
		}
	}
}

func (log *logging) setPrefix(prefix bool) {
	log.prefix = prefix
}

func (log *logging) debugEnabled(source string) bool {
	log.RLock()
	defer log.RUnlock()
	return log.debug[source]
}

func (log *logging) format(source, format string, args ...interface{}) string {
	msg := fmt.Sprintf(format, args...)

	log.RLock()
	prefix, maxlen := log.prefix, log.maxlen
	log.RUnlock()

	if !prefix {
		return msg
	}

	pad := ""
	if n := maxlen - len(source); n > 0 {
		pad = strings.Repeat(" ", n)
	}
	return "[" + source + "] " + pad + msg
}

func (log *logging) enabled(level Level) bool {
	log.RLock()
	defer log.RUnlock()
	return log.level <= level
}

// enabled returns the debug state of the given source in the map.
func (m srcmap) enabled(source string) bool {
	if state, ok := m[source]; ok {
		return state
	}
	return m["*"]
}

func (l logger) Debug(format string, args ...interface{}) {
	if !l.DebugEnabled() {
		return
	}
	klog.InfoDepth(1, log.format(l.source, "D: "+format, args...))
}

func (l logger) Info(format string, args ...interface{}) {
	if !log.enabled(LevelInfo) {
		return
	}
	klog.InfoDepth(1, log.format(l.source, format, args...))
}

func (l logger) Warn(format string, args ...interface{}) {
	if !log.enabled(LevelWarn) {
		return
	}
	klog.WarningDepth(1, log.format(l.source, format, args...))
}

func (l logger) Error(format string, args ...interface{}) {
	klog.ErrorDepth(1, log.format(l.source, format, args...))
}

func (l logger) Fatal(format string, args ...interface{}) {
	klog.ErrorDepth(1, log.format(l.source, format, args...))
	klog.Flush()
	os.Exit(1)
}

func (l logger) Panic(format string, args ...interface{}) {
	msg := log.format(l.source, format, args...)
	klog.ErrorDepth(1, msg)
	klog.Flush()
	panic(msg)
}

func (l logger) Debugf(format string, args ...interface{}) {
	if !l.DebugEnabled() {
		return
	}
	klog.InfoDepth(1, log.format(l.source, "D: "+format, args...))
}

func (l logger) Infof(format string, args ...interface{}) {
	if !log.enabled(LevelInfo) {
		return
	}
	klog.InfoDepth(1, log.format(l.source, format, args...))
}

func (l logger) Warnf(format string, args ...interface{}) {
	if !log.enabled(LevelWarn) {
		return
	}
	klog.WarningDepth(1, log.format(l.source, format, args...))
}

func (l logger) Errorf(format string, args ...interface{}) {
	klog.ErrorDepth(1, log.format(l.source, format, args...))
}

func (l logger) DebugBlock(prefix string, format string, args ...interface{}) {
	if !l.DebugEnabled() {
		return
	}
	for _, line := range strings.Split(fmt.Sprintf(format, args...), "\n") {
		klog.InfoDepth(1, log.format(l.source, "D: %s%s", prefix, line))
	}
}

func (l logger) InfoBlock(prefix string, format string, args ...interface{}) {
	if !log.enabled(LevelInfo) {
		return
	}
	for _, line := range strings.Split(fmt.Sprintf(format, args...), "\n") {
		klog.InfoDepth(1, log.format(l.source, "%s%s", prefix, line))
	}
}

func (l logger) WarnBlock(prefix string, format string, args ...interface{}) {
	if !log.enabled(LevelWarn) {
		return
	}
	for _, line := range strings.Split(fmt.Sprintf(format, args...), "\n") {
		klog.WarningDepth(1, log.format(l.source, "%s%s", prefix, line))
	}
}

func (l logger) ErrorBlock(prefix string, format string, args ...interface{}) {
	for _, line := range strings.Split(fmt.Sprintf(format, args...), "\n") {
		klog.ErrorDepth(1, log.format(l.source, "%s%s", prefix, line))
	}
}

func (l logger) EnableDebug(enable bool) bool {
	log.Lock()
	defer log.Unlock()
	prev := log.debug[l.source]
	log.debug[l.source] = enable
	return prev
}

func (l logger) DebugEnabled() bool {
	return log.debugEnabled(l.source)
}

func (l logger) Source() string {
	return l.source
}

// loggerError returns a formatted logger-specific error.
func loggerError(format string, args ...interface{}) error {
	return fmt.Errorf("logger: "+format, args...)
}
