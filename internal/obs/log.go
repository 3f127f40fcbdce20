package obs

import (
	"encoding/json"
	"log"
	"os"
	"sync"
	"time"
)

var (
	loggerOnce sync.Once
	logger     *log.Logger
)

// Logger returns the shared line logger the client writes events through.
func Logger() *log.Logger {
	loggerOnce.Do(func() {
		logger = log.New(os.Stdout, "", 0)
	})
	return logger
}

// LogEvent emits one structured JSON log line. Every event is stamped
// with a ts field so client events interleave cleanly with the portal
// backend's logs when correlated by request id.
func LogEvent(entry map[string]any) {
	Logger().Println(eventLine(entry))
}

func eventLine(entry map[string]any) string {
	if entry == nil {
		entry = map[string]any{}
	}
	if _, ok := entry["ts"]; !ok {
		entry["ts"] = time.Now().UTC().Format(time.RFC3339Nano)
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return `{"level":"error","msg":"log marshal failed"}`
	}
	return string(data)
}
