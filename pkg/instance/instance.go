// Package instance names the running process for log correlation.
package instance

import "os"

// ID returns the dyno name when running on Heroku, else the hostname, else "local".
func ID() string {
	for _, key := range []string{"DYNO", "HOSTNAME"} {
		if id := os.Getenv(key); id != "" {
			return id
		}
	}
	return "local"
}
