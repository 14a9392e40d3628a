package sink

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"
)

// ErrNoDevice reports that no audio output could be acquired.
var ErrNoDevice = errors.New("no audio output device")

// Device is an output that mixes and pulls the streamers handed to it.
// The beep speaker is the production implementation.
type Device interface {
	SampleRate() beep.SampleRate
	Play(s beep.Streamer)
	Clear()
	Lock()
	Unlock()
}

type speakerDevice struct {
	rate beep.SampleRate
}

func (d speakerDevice) SampleRate() beep.SampleRate { return d.rate }
func (speakerDevice) Play(s beep.Streamer)          { speaker.Play(s) }
func (speakerDevice) Clear()                        { speaker.Clear() }
func (speakerDevice) Lock()                         { speaker.Lock() }
func (speakerDevice) Unlock()                       { speaker.Unlock() }

var (
	speakerOnce sync.Once
	speakerDev  Device
	speakerErr  error
)

// OpenSpeaker initializes the system speaker at rate with a buffer of the
// given length. The speaker is acquired once per process and never released;
// later calls return the first result whatever their arguments.
func OpenSpeaker(rate beep.SampleRate, buffer time.Duration) (Device, error) {
	speakerOnce.Do(func() {
		if err := speaker.Init(rate, rate.N(buffer)); err != nil {
			speakerErr = fmt.Errorf("%w: %w", ErrNoDevice, err)
			return
		}
		speakerDev = speakerDevice{rate: rate}
	})
	return speakerDev, speakerErr
}
