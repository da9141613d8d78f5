package main

import (
	"context"
	"encoding/binary"
	"log/slog"
	"math"
	"time"

	"voxmix/internal/config"
	"voxmix/internal/source"
)

// RunToneInjector generates a continuous synthesized PCM sine tone and
// feeds it through the same event queue a real WebTransport injector
// session would use, at the nominal frame cadence. Unlike the
// teacher's embedded-Opus test bot, nothing here is ever encoded or
// decoded — spec.md's Non-goal on codec support means this path only
// ever produces raw linear PCM, matching what a real injector sends.
func RunToneInjector(ctx context.Context, events chan<- sessionEvent, cfg config.Config, streamID string, frequencyHz, amplitude float64) {
	identity := "tone-injector-" + streamID

	events <- sessionEvent{
		kind:             evJoin,
		identity:         identity,
		srcKind:          source.Injector,
		streamID:         streamID,
		randomAccess:     true,
		attenuationRatio: 1,
	}
	defer func() {
		events <- sessionEvent{kind: evLeave, identity: identity}
	}()

	slog.Info("tone injector started", "identity", identity, "stream_id", streamID, "frequency_hz", frequencyHz)
	defer slog.Info("tone injector stopped", "identity", identity, "stream_id", streamID)

	frameDuration := time.Duration(cfg.SamplesPerFrame) * time.Second / time.Duration(cfg.SampleRate)
	ticker := time.NewTicker(frameDuration)
	defer ticker.Stop()

	var phase float64
	phaseStep := 2 * math.Pi * frequencyHz / float64(cfg.SampleRate)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		pcm := synthesizeTone(cfg.SamplesPerFrame, amplitude, &phase, phaseStep)

		events <- sessionEvent{
			kind:             evPCM,
			identity:         identity,
			srcKind:          source.Injector,
			streamID:         streamID,
			attenuationRatio: 1,
			pcm:              pcm,
			arrivedAt:        time.Now(),
		}
	}
}

// synthesizeTone fills one frame of little-endian signed 16-bit PCM
// with a sine wave, advancing phase in place across calls.
func synthesizeTone(samplesPerFrame int, amplitude float64, phase *float64, phaseStep float64) []byte {
	if amplitude > 32767 {
		amplitude = 32767
	}
	pcm := make([]byte, samplesPerFrame*2)
	p := *phase
	for i := 0; i < samplesPerFrame; i++ {
		sample := int16(amplitude * math.Sin(p))
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(sample))
		p += phaseStep
		if p > 2*math.Pi {
			p -= 2 * math.Pi
		}
	}
	*phase = p
	return pcm
}
