package instance

import "os"

// ID names the running process for log context: the Heroku dyno, then
// WORKER_ID, else "local".
func ID() string {
	for _, key := range []string{"DYNO", "WORKER_ID"} {
		if id := os.Getenv(key); id != "" {
			return id
		}
	}
	return "local"
}
