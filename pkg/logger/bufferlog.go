// Package logger implements a per-job in-memory log buffer.
//
// Dataset loads produce a lot of detail that only matters when the load
// fails. Details buffer while a job runs; on failure the buffer replays
// followed by the final error, on success the buffer is dropped and one
// short line is printed.
//
// Thread safety comes from a dedicated logger goroutine fed over a
// command channel; no mutexes anywhere.
package logger

import (
	"bytes"
	"log"
	"strings"
	"time"
)

type action int

const (
	actBegin action = iota
	actAppend
	actSuccess
	actFlushErr
)

type cmd struct {
	act     action
	jobID   string
	message string    // for Append
	summary string    // for Success
	err     error     // for FlushError
	when    time.Time // kept for future ordering needs
}

var ch = make(chan cmd, 128) // buffered for event bursts

// Begin starts buffering for jobID.
func Begin(jobID string) { ch <- cmd{act: actBegin, jobID: jobID, when: time.Now()} }

// Append adds one detail line to the job buffer. Without a preceding
// Begin the line prints immediately.
func Append(jobID, msg string) {
	ch <- cmd{act: actAppend, jobID: jobID, message: msg, when: time.Now()}
}

// Success drops the buffer and prints a single short line.
func Success(jobID, summary string) {
	ch <- cmd{act: actSuccess, jobID: jobID, summary: summary, when: time.Now()}
}

// FlushError replays the buffered detail followed by the final error.
func FlushError(jobID string, err error) {
	ch <- cmd{act: actFlushErr, jobID: jobID, err: err, when: time.Now()}
}

func init() { go runloop() }

func runloop() {
	buffers := make(map[string]*bytes.Buffer)

	for c := range ch {
		switch c.act {
		case actBegin:
			buffers[c.jobID] = &bytes.Buffer{}

		case actAppend:
			if b := buffers[c.jobID]; b != nil {
				_, _ = b.WriteString(c.message + "\n")
			} else {
				log.Print(c.message)
			}

		case actSuccess:
			log.Printf("[%-8s] ✔ %s", c.jobID, c.summary)
			delete(buffers, c.jobID)

		case actFlushErr:
			if b := buffers[c.jobID]; b != nil {
				for _, ln := range strings.Split(strings.TrimRight(b.String(), "\n"), "\n") {
					log.Print(ln)
				}
				delete(buffers, c.jobID)
			}
			log.Printf("[%-8s][ERROR] %v", c.jobID, c.err)
		}
	}
}
