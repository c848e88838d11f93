package logger

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	LOG_ENABLE           = "SUPERRES_HPC_LOGLEVEL"
	LOG_PATH             = "SUPERRES_HPC_LOGPATH"
	LOG_TIMEOUT          = "SUPERRES_HPC_TIMEOUT"
	LOG_DEFAULT_TIMEOUT  = 24
	LOG_FILENAME         = "superres-hpc.log"
	HPC_DEBUG_LOGGING    = 10
	HPC_INFO_LOGGING     = 20
	HPC_WARNING_LOGGING  = 30
	HPC_ERROR_LOGGING    = 40
	HPC_CRITICAL_LOGGING = 50
)

var (
	Log *log.Logger

	// RunID tags every line written by this process
	RunID = uuid.New().String()[:8]
)

var (
	once sync.Once
	mu   sync.Mutex
)

// open the shared log file, truncating it once it is older than the
// timeout; the first line of the file is its creation time
func setup() {
	mu.Lock()
	defer mu.Unlock()
	if Log != nil {
		return
	}
	logPath := "/tmp/"
	if env := os.Getenv(LOG_PATH); len(env) > 0 {
		logPath = env
	}
	timeout := LOG_DEFAULT_TIMEOUT
	if env := os.Getenv(LOG_TIMEOUT); len(env) > 0 {
		if t, err := strconv.Atoi(env); err == nil {
			timeout = t
		}
	}
	logfile := logPath + LOG_FILENAME
	if f, err := os.Open(logfile); err == nil {
		scanner := bufio.NewScanner(f)
		scanner.Scan()
		f.Close()
		if tag, terr := time.Parse(time.RFC3339, scanner.Text()); terr == nil {
			if int(time.Since(tag).Hours()) > timeout {
				os.Remove(logfile)
			}
		} else {
			os.Remove(logfile)
		}
	}
	var wrt io.Writer = os.Stderr
	f, err := os.OpenFile(logfile,
		os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		log.Printf("logger cannot open file: %v",
			fmt.Errorf("LogWriter: OpenFile: %w", err))
	} else {
		if stat, serr := f.Stat(); serr == nil && stat.Size() == 0 {
			f.WriteString(time.Now().Format(time.RFC3339) + "\n")
			f.Sync()
		}
		wrt = io.MultiWriter(os.Stderr, f)
	}
	Log = log.New(wrt, "["+RunID+"] ", log.LstdFlags)
}

// SetOutput replaces the log destination, skipping the log file
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	Log = log.New(w, "["+RunID+"] ", log.LstdFlags)
}

func logger() *log.Logger {
	once.Do(setup)
	return Log
}

func LogLevel() int {
	if env, err := strconv.Atoi(os.Getenv(LOG_ENABLE)); err == nil {
		return env
	} else {
		return HPC_CRITICAL_LOGGING
	}
}

func getLogLevel(level int) string {
	switch level := level; level {
	case HPC_DEBUG_LOGGING:
		return "DEBUG"
	case HPC_INFO_LOGGING:
		return "INFO"
	case HPC_WARNING_LOGGING:
		return "WARNING"
	case HPC_ERROR_LOGGING:
		return "ERROR"
	default:
		return "CRITICAL"
	}
}

func logObj(level int, name string, v interface{}) {
	if LogLevel() <= level {
		data, _ := json.MarshalIndent(v, "", " ")
		logger().Printf("%s %s:\n%s\n", getLogLevel(level), name, data)
	}
}

func logPrintf(level int, format string, a ...interface{}) {
	if LogLevel() <= level {
		prefix := getLogLevel(level) + " "
		logger().Printf(prefix+format, a...)
	}
}

func DebugObj(name string, v interface{}) {
	logObj(HPC_DEBUG_LOGGING, name, v)
}

func DebugPrintf(format string, a ...interface{}) {
	logPrintf(HPC_DEBUG_LOGGING, format, a...)
}

func InfoObj(name string, v interface{}) {
	logObj(HPC_INFO_LOGGING, name, v)
}

func InfoPrintf(format string, a ...interface{}) {
	logPrintf(HPC_INFO_LOGGING, format, a...)
}

func WarningObj(name string, v interface{}) {
	logObj(HPC_WARNING_LOGGING, name, v)
}

func WarningPrintf(format string, a ...interface{}) {
	logPrintf(HPC_WARNING_LOGGING, format, a...)
}

func ErrorObj(name string, v interface{}) {
	logObj(HPC_ERROR_LOGGING, name, v)
}

func ErrorPrintf(format string, a ...interface{}) {
	logPrintf(HPC_ERROR_LOGGING, format, a...)
}

func CriticalObj(name string, v interface{}) {
	logObj(HPC_CRITICAL_LOGGING, name, v)
}

func CriticalPrintf(format string, a ...interface{}) {
	logPrintf(HPC_CRITICAL_LOGGING, format, a...)
}
