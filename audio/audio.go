// Package audio - Best-effort audible alarm playback.
//
// Playback degrades gracefully: a platform player is used when one exists,
// otherwise the terminal bell is emitted. A missing audio backend never
// fails an alert.
package audio

import (
	"fmt"
	"os/exec"
	"runtime"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// darwinDefaultSound ships with every macOS install.
const darwinDefaultSound = "/System/Library/Sounds/Glass.aiff"

// linuxPlayers are tried in order when a sound file is configured.
var linuxPlayers = []string{"paplay", "aplay"}

// Player plays the alarm sound.
type Player struct {
	soundFile string
	log       zerolog.Logger
}

// NewPlayer returns a player for the given sound file. An empty soundFile
// selects the platform default (macOS) or the terminal bell.
func NewPlayer(soundFile string, log zerolog.Logger) *Player {
	return &Player{
		soundFile: soundFile,
		log:       log.With().Str("component", "audio").Logger(),
	}
}

// Play blocks until playback finishes. It is intended to run on a detached
// goroutine; the caller never waits on it.
func (p *Player) Play() error {
	switch runtime.GOOS {
	case "darwin":
		file := p.soundFile
		if file == "" {
			file = darwinDefaultSound
		}
		return p.run("afplay", file)
	default:
		if p.soundFile != "" {
			for _, player := range linuxPlayers {
				if _, err := exec.LookPath(player); err == nil {
					return p.run(player, p.soundFile)
				}
			}
		}
		p.bell()
		return nil
	}
}

func (p *Player) run(name string, args ...string) error {
	if _, err := exec.LookPath(name); err != nil {
		p.bell()
		return nil
	}
	if err := exec.Command(name, args...).Run(); err != nil {
		return errors.Wrapf(err, "%s", name)
	}
	return nil
}

// bell is the universal fallback.
func (p *Player) bell() {
	fmt.Print("\a")
	p.log.Debug().Msg("no audio backend, emitted terminal bell")
}
