package lib

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

const (
	LevelInfo = "INFO"
	LevelWarn = "WARNING"

	colorReset  = "\033[0m"
	colorYellow = "\033[33m"
	colorGreen  = "\033[32m"
)

type LoggerStruct struct {
	Print    func(args ...interface{})
	Flush    func()
	disabled bool

	lock    sync.Mutex
	console io.Writer
	file    io.Writer
	closer  io.Closer
	color   bool
	now     func() time.Time
}

var Logger = &LoggerStruct{
	Print: func(args ...interface{}) {
		fmt.Fprint(os.Stderr, args...)
	},
	Flush:    func() {},
	disabled: strings.ToLower(os.Getenv("LOGGING") + " ")[:1] == "n",
	console:  os.Stderr,
	color:    isatty.IsTerminal(os.Stderr.Fd()),
	now:      time.Now,
}

// NewTeeLogger writes level lines to console and, when file is non-nil, to file.
// Level tags are colored on the console only when color is set.
func NewTeeLogger(console, file io.Writer, color bool) *LoggerStruct {
	l := &LoggerStruct{
		console: console,
		file:    file,
		color:   color,
		now:     time.Now,
	}
	l.Print = func(args ...interface{}) {
		line := fmt.Sprint(args...)
		l.lock.Lock()
		defer l.lock.Unlock()
		_, _ = io.WriteString(l.console, line)
		if l.file != nil {
			_, _ = io.WriteString(l.file, line)
		}
	}
	l.Flush = func() {
		if f, ok := l.file.(interface{ Sync() error }); ok {
			_ = f.Sync()
		}
	}
	return l
}

// NewFileLogger tees to stderr and appends to the file at pth.
func NewFileLogger(pth string) (*LoggerStruct, error) {
	f, err := os.OpenFile(pth, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		Logger.Println("error:", err)
		return nil, err
	}
	l := NewTeeLogger(os.Stderr, f, isatty.IsTerminal(os.Stderr.Fd()))
	l.closer = f
	return l, nil
}

func (l *LoggerStruct) Close() error {
	if l.closer == nil {
		return nil
	}
	l.Flush()
	return l.closer.Close()
}

func caller() string {
	_, file, line, _ := runtime.Caller(2)
	parts := strings.Split(file, "/")
	if len(parts) < 2 {
		return fmt.Sprintf("%s:%d: ", file, line)
	}
	keep := []string{
		parts[len(parts)-2],
		parts[len(parts)-1],
	}
	file = strings.Join(keep, "/")
	return fmt.Sprintf("%s:%d: ", file, line)
}

func (l *LoggerStruct) Println(v ...interface{}) {
	if !l.disabled {
		var r []interface{}
		r = append(r, caller())
		var xs []string
		for _, x := range v {
			xs = append(xs, fmt.Sprint(x))
		}
		r = append(r, strings.Join(xs, " "))
		r = append(r, "\n")
		l.Print(r...)
	}
}

func (l *LoggerStruct) Printf(format string, v ...interface{}) {
	if !l.disabled {
		l.Print(fmt.Sprintf(caller()+format, v...))
	}
}

func (l *LoggerStruct) Infof(format string, v ...interface{}) {
	l.level(LevelInfo, fmt.Sprintf(format, v...))
}

func (l *LoggerStruct) Warnf(format string, v ...interface{}) {
	l.level(LevelWarn, fmt.Sprintf(format, v...))
}

// level lines look like: 2024-01-02T03:04:05.678Z INFO message
func (l *LoggerStruct) level(level, msg string) {
	if l.disabled {
		return
	}
	ts := l.now().UTC().Format("2006-01-02T15:04:05.000Z")
	plain := fmt.Sprintf("%s %s %s\n", ts, level, msg)
	console := plain
	if l.color {
		color := colorGreen
		if level == LevelWarn {
			color = colorYellow
		}
		console = fmt.Sprintf("%s %s%s%s %s\n", ts, color, level, colorReset, msg)
	}
	l.lock.Lock()
	defer l.lock.Unlock()
	_, _ = io.WriteString(l.console, console)
	if l.file != nil {
		_, _ = io.WriteString(l.file, plain)
	}
}

func (l *LoggerStruct) Fatal(v ...interface{}) {
	var r []interface{}
	r = append(r, caller())
	var xs []string
	for _, x := range v {
		xs = append(xs, fmt.Sprint(x))
	}
	r = append(r, strings.Join(xs, " "))
	r = append(r, "\n")
	l.Print(r...)
	l.Flush()
	os.Exit(1)
}

func (l *LoggerStruct) Fatalf(format string, v ...interface{}) {
	l.Print(fmt.Sprintf(caller()+format, v...))
	l.Flush()
	os.Exit(1)
}
