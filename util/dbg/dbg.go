package dbg

import "go.uber.org/zap"

// DebugLogger is an interface that defines our debug logging functions.
// This allows us to have different implementations based on build tags.
type DebugLogger interface {
	Printf(format string, a ...interface{})
	Println(a ...interface{})
}

// Global variable for our debug logger instance.
// This will be initialized by either debug-log.go or nodebug-log.go depending on build tags.
var debugLog DebugLogger

// sugar is the structured logger the debug build tag's Printf/Println
// route through when one has been injected, instead of the bare stderr
// logger. Unset, those fall back to stderr.
var sugar *zap.SugaredLogger

// SetLogger injects the logger the debug build tag routes Printf/Println
// through.
func SetLogger(l *zap.SugaredLogger) { sugar = l }

func Printf(format string, a ...interface{}) {
	debugLog.Printf(format, a...)
}

func Println(a ...interface{}) {
	debugLog.Println(a...)
}
