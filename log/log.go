package log

import (
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	easy "github.com/t-tomalak/logrus-easy-formatter"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Fields = logrus.Fields

var logger = &logrus.Logger{
	Out:   os.Stdout,
	Level: logrus.InfoLevel,
	Formatter: &easy.Formatter{
		TimestampFormat: "2006-01-02 15:04:05",
		LogFormat:       "[%time%][%lvl%]: %msg% \n",
	},
}

func SetOutput(o io.Writer) {
	logger.SetOutput(o)
}

func SetLogFormatter(f logrus.Formatter) {
	logger.Formatter = f
}

// SetLevel accepts the usual logrus level names (debug, info, warn...).
func SetLevel(level string) error {
	l, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	logger.SetLevel(l)
	return nil
}

// FileWriter returns a rotating writer for the main log file under dir.
// Files rotate at 100 MB and rotated copies are kept for seven days.
func FileWriter(dir string) io.Writer {
	return &lumberjack.Logger{
		Filename: filepath.Join(dir, "loadtest.log"),
		MaxSize:  100,
		MaxAge:   7,
		Compress: true,
	}
}

// TeeToFile keeps console output and mirrors it into a rotating log
// file under dir.
func TeeToFile(dir string) {
	logger.SetOutput(io.MultiWriter(os.Stdout, FileWriter(dir)))
}

// Debug logs a message at level Debug on the standard logger.
func Debug(args ...interface{}) {
	logger.Debug(args...)
}

// Info logs a message at level Info on the standard logger.
func Info(args ...interface{}) {
	logger.Info(args...)
}

// Warn logs a message at level Warn on the standard logger.
func Warn(args ...interface{}) {
	logger.Warn(args...)
}

// Error logs a message at level Error on the standard logger.
func Error(args ...interface{}) {
	logger.Error(args...)
}

// Fatal logs a message at level Fatal on the standard logger.
func Fatal(args ...interface{}) {
	logger.Fatal(args...)
}

// Panic logs a message at level Panic on the standard logger.
func Panic(args ...interface{}) {
	logger.Panic(args...)
}

func DebugWithFields(msg string, fields Fields) {
	logger.WithFields(fields).Debug(msg)
}

func InfoWithFields(msg string, fields Fields) {
	logger.WithFields(fields).Info(msg)
}

func WarnWithFields(msg string, fields Fields) {
	logger.WithFields(fields).Warn(msg)
}

func ErrorWithFields(msg string, fields Fields) {
	logger.WithFields(fields).Error(msg)
}
