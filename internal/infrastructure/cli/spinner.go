package cli

import (
	"fmt"
	"io"
	"time"
)

var spinnerFrames = [...]string{"|", "/", "-", "\\"}

// Spinner renders a single-line activity indicator while a chat call is in
// flight. One Spinner serves one call; create a fresh one per message.
type Spinner struct {
	w     io.Writer
	label string
	done  chan struct{}
	idle  chan struct{}
}

// NewSpinner creates a spinner writing to w with a short status label.
func NewSpinner(w io.Writer, label string) *Spinner {
	return &Spinner{
		w:     w,
		label: label,
		done:  make(chan struct{}),
		idle:  make(chan struct{}),
	}
}

// Start begins the animation. Call Stop exactly once afterwards.
func (s *Spinner) Start() {
	go func() {
		defer close(s.idle)
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		frame := 0
		for {
			select {
			case <-s.done:
				// erase the line
				fmt.Fprint(s.w, "\r\033[K")
				return
			case <-ticker.C:
				fmt.Fprintf(s.w, "\r%s %s", spinnerFrames[frame%len(spinnerFrames)], s.label)
				frame++
			}
		}
	}()
}

// Stop ends the animation and clears the line.
func (s *Spinner) Stop() {
	close(s.done)
	<-s.idle
}
