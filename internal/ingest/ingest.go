// Package ingest dispatches inbound packets to the correct source
// state (C5): resolving or creating the source, notifying its gap
// tracker, and writing the PCM payload into its ring buffer.
package ingest

import (
	"encoding/binary"
	"fmt"
	"time"

	"voxmix/internal/source"
)

// Packet is the inbound shape the external transport collaborator
// supplies after stripping its own framing/header.
type Packet struct {
	Kind     source.Kind
	Identity string // network address or assigned id (avatars)
	StreamID string // fixed-length tag for injector streams

	PCM []byte // little-endian signed 16-bit, at the nominal sample rate

	Pose             source.Pose
	AttenuationRatio float64 // injector packets only; <=0 means "unset"
}

// Ingest holds the shared sizing parameters new sources are created
// with and decides injector ring-buffer mode.
type Ingest struct {
	params source.Params
}

// New constructs an Ingest bound to the given source sizing params.
func New(params source.Params) *Ingest {
	return &Ingest{params: params}
}

// Dispatch resolves or creates the packet's source in reg, updates its
// pose/gap/attenuation, and writes its PCM payload. A trailing odd
// byte in PCM is discarded (malformed-length payloads are accepted).
func (ig *Ingest) Dispatch(reg *source.Registry, now time.Time, pkt Packet) (*source.Source, error) {
	if pkt.Identity == "" {
		return nil, fmt.Errorf("ingest: packet identity is required")
	}

	identity := pkt.Identity
	randomAccess := pkt.Kind == source.Injector

	s, ok := reg.ByIdentity(identity)
	if pkt.Kind == source.Injector && pkt.StreamID != "" {
		if ok && s.StreamID != "" && s.StreamID != pkt.StreamID {
			// Stream-id mismatch: this is a distinct injector stream
			// under the same caller-supplied identity; register it
			// under a synthesized identity instead of overwriting.
			identity = pkt.Identity + "#" + pkt.StreamID
			s, ok = reg.ByIdentity(identity)
		}
	}
	if !ok {
		s = reg.GetOrCreate(identity, pkt.Kind, ig.params, randomAccess)
	}
	if pkt.Kind == source.Injector && pkt.StreamID != "" && s.StreamID == "" {
		reg.AttachStreamID(pkt.StreamID, s)
	}

	s.Gap.OnFrameReceived(now)

	s.Pose = pkt.Pose
	if pkt.Kind == source.Injector && pkt.AttenuationRatio > 0 {
		s.AttenuationRatio = pkt.AttenuationRatio
	}

	s.Buffer.Write(bytesToSamplesLE(pkt.PCM))
	return s, nil
}

// bytesToSamplesLE converts little-endian 16-bit PCM bytes to samples,
// silently truncating a trailing odd byte.
func bytesToSamplesLE(pcm []byte) []int16 {
	n := len(pcm) / 2
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		out[i] = int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
	}
	return out
}
