package sim

import (
	"sync"

	log "github.com/sirupsen/logrus"
)

// LED is the status indicator. Changes are logged at debug level.
type LED struct {
	mu      sync.Mutex
	on      bool
	toggles int
}

func (l *LED) Init() {
	l.set(false, "init")
}

func (l *LED) On() {
	l.set(true, "on")
}

func (l *LED) Off() {
	l.set(false, "off")
}

func (l *LED) Toggle() {
	l.mu.Lock()
	l.toggles++
	on := !l.on
	l.mu.Unlock()
	l.set(on, "toggle")
}

func (l *LED) set(on bool, op string) {
	l.mu.Lock()
	l.on = on
	l.mu.Unlock()
	log.WithFields(log.Fields{"led": op, "lit": on}).Debug("LED")
}

func (l *LED) Lit() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.on
}

// Toggles counts Toggle calls, one per committed chunk.
func (l *LED) Toggles() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.toggles
}
