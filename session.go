package main

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"
	"sync/atomic"
	"time"

	"github.com/golang/geo/r3"
	"github.com/google/uuid"
	"github.com/quic-go/webtransport-go"

	"voxmix/internal/ingest"
	"voxmix/internal/protocol"
	"voxmix/internal/source"
)

// sendHealth tracks per-peer outbound datagram send success and
// implements a lightweight circuit breaker so the mixer loop stops
// wasting effort fanning frames out to an unreachable peer.
type sendHealth struct {
	failures atomic.Uint32 // consecutive SendDatagram failures
	skips    atomic.Uint32 // skips since the breaker opened; used for probe cadence
}

// shouldSkip returns true when the breaker is open and it is not yet
// time for a probe attempt.
func (h *sendHealth) shouldSkip() bool {
	if h.failures.Load() < circuitBreakerThreshold {
		return false
	}
	s := h.skips.Add(1)
	return s%circuitBreakerProbeInterval != 0
}

func (h *sendHealth) recordFailure() uint32 { return h.failures.Add(1) }

func (h *sendHealth) recordSuccess() bool {
	wasTripped := h.failures.Swap(0) >= circuitBreakerThreshold
	if wasTripped {
		h.skips.Store(0)
	}
	return wasTripped
}

// peer is a connected WebTransport session identified with a
// registered source. It is owned by peerRegistry, which is itself
// only ever touched by the mixer goroutine.
type peer struct {
	identity string
	wt       *webtransport.Session
	health   sendHealth
}

// peerRegistry maps a source identity to the live WebTransport session
// that should receive its mixed frames. Like source.Registry, it is
// exclusively mutated by the mixer goroutine; handleSession only ever
// reaches it indirectly, through sessionEvents on the shared queue.
type peerRegistry struct {
	peers map[string]*peer
}

func newPeerRegistry() *peerRegistry {
	return &peerRegistry{peers: make(map[string]*peer)}
}

func (r *peerRegistry) put(p *peer) { r.peers[p.identity] = p }

func (r *peerRegistry) remove(identity string) { delete(r.peers, identity) }

// Emit implements mixer.Sink: it fans a finished per-listener stereo
// frame out as a WebTransport datagram, skipping peers whose circuit
// breaker is open.
func (r *peerRegistry) Emit(listenerIdentity string, stereo []int16) {
	p, ok := r.peers[listenerIdentity]
	if !ok {
		return
	}
	if p.health.shouldSkip() {
		return
	}

	buf := make([]byte, len(stereo)*2)
	for i, s := range stereo {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}

	if err := p.wt.SendDatagram(buf); err != nil {
		p.health.recordFailure()
		return
	}
	p.health.recordSuccess()
}

// eventKind distinguishes the control-plane and data-plane operations
// a session goroutine hands, as owned records, to the mixer goroutine.
type eventKind int

const (
	evJoin eventKind = iota
	evLeave
	evPCM
	evPoseUpdate
	evAttenuationUpdate
)

// sessionEvent is one owned packet record crossing the
// multi-producer/single-consumer queue into the mixer goroutine. No
// field is aliased with session-goroutine-owned memory after the
// record is sent.
type sessionEvent struct {
	kind eventKind

	identity     string
	srcKind      source.Kind
	streamID     string
	randomAccess bool

	pose             source.Pose
	attenuationRatio float64
	loopback         bool

	pcm       []byte
	arrivedAt time.Time

	peer *peer // evJoin only
}

// applyEvent performs the single piece of registry/ring-buffer
// mutation an event calls for. It must only ever run on the mixer
// goroutine.
func applyEvent(ev sessionEvent, reg *source.Registry, ing *ingest.Ingest, peers *peerRegistry, params source.Params) {
	switch ev.kind {
	case evJoin:
		src := reg.GetOrCreate(ev.identity, ev.srcKind, params, ev.randomAccess)
		if ev.srcKind == source.Injector && ev.streamID != "" {
			reg.AttachStreamID(ev.streamID, src)
		}
		src.Pose = ev.pose
		src.Loopback = ev.loopback
		src.AttenuationRatio = 1
		if ev.attenuationRatio > 0 {
			src.AttenuationRatio = ev.attenuationRatio
		}
		if ev.peer != nil {
			peers.put(ev.peer)
		}
		slog.Info("source joined", "identity", ev.identity, "kind", ev.srcKind.String())

	case evLeave:
		peers.remove(ev.identity)
		reg.Remove(ev.identity)
		slog.Info("source left", "identity", ev.identity)

	case evPCM:
		pkt := ingest.Packet{
			Kind:             ev.srcKind,
			Identity:         ev.identity,
			StreamID:         ev.streamID,
			PCM:              ev.pcm,
			Pose:             ev.pose,
			AttenuationRatio: ev.attenuationRatio,
		}
		if _, err := ing.Dispatch(reg, ev.arrivedAt, pkt); err != nil {
			slog.Warn("ingest dispatch failed", "identity", ev.identity, "error", err)
		}

	case evPoseUpdate:
		if src, ok := reg.ByIdentity(ev.identity); ok {
			src.Pose = ev.pose
		}

	case evAttenuationUpdate:
		if src, ok := reg.ByIdentity(ev.identity); ok && ev.attenuationRatio > 0 {
			src.AttenuationRatio = ev.attenuationRatio
		}
	}
}

// drainEvents applies every event currently queued without blocking,
// the "ingest is drained first" ordering step of each mix tick.
func drainEvents(ch <-chan sessionEvent, reg *source.Registry, ing *ingest.Ingest, peers *peerRegistry, params source.Params) {
	for {
		select {
		case ev := <-ch:
			applyEvent(ev, reg, ing, peers, params)
		default:
			return
		}
	}
}

// datagramHeaderBytes is the fixed binary prefix on every voice
// datagram: position (x,y,z), bearing, and attenuation ratio as
// little-endian float32, ahead of the raw PCM payload. Carrying pose
// with each packet (rather than only on the reliable control stream)
// matches the external interface's inbound-packet shape, which
// supplies a sender's current pose on every packet.
const datagramHeaderBytes = 20

func encodeDatagramHeader(pose source.Pose, attenuationRatio float64) []byte {
	buf := make([]byte, datagramHeaderBytes)
	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(float32(pose.Position.X)))
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(float32(pose.Position.Y)))
	binary.LittleEndian.PutUint32(buf[8:12], math.Float32bits(float32(pose.Position.Z)))
	binary.LittleEndian.PutUint32(buf[12:16], math.Float32bits(float32(pose.BearingDeg)))
	binary.LittleEndian.PutUint32(buf[16:20], math.Float32bits(float32(attenuationRatio)))
	return buf
}

func decodeDatagramHeader(data []byte) (source.Pose, float64) {
	x := math.Float32frombits(binary.LittleEndian.Uint32(data[0:4]))
	y := math.Float32frombits(binary.LittleEndian.Uint32(data[4:8]))
	z := math.Float32frombits(binary.LittleEndian.Uint32(data[8:12]))
	bearing := math.Float32frombits(binary.LittleEndian.Uint32(data[12:16]))
	atten := math.Float32frombits(binary.LittleEndian.Uint32(data[16:20]))
	return source.Pose{Position: r3.Vector{X: float64(x), Y: float64(y), Z: float64(z)}, BearingDeg: float64(bearing)}, float64(atten)
}

// handleSession drives one accepted WebTransport peer end to end: it
// reads the join_voice handshake off the control stream, hands a join
// event to the mixer goroutine, starts the datagram reader, and
// applies further control-stream updates until the session ends.
func handleSession(ctx context.Context, wt *webtransport.Session, remoteIP string, events chan<- sessionEvent, limiter *connLimiter) {
	defer func() {
		limiter.Release(remoteIP)
		_ = wt.CloseWithError(0, "bye")
	}()

	ctrl, err := wt.AcceptStream(ctx)
	if err != nil {
		slog.Warn("session control stream not opened", "remote_ip", remoteIP, "error", err)
		return
	}
	defer ctrl.Close()

	reader := bufio.NewReaderSize(ctrl, maxJoinMessageBytes)
	line, err := reader.ReadSlice('\n')
	if err == bufio.ErrBufferFull {
		slog.Warn("session join message too large", "remote_ip", remoteIP, "bytes", len(line))
		return
	}
	if err != nil {
		slog.Warn("session join read failed", "remote_ip", remoteIP, "error", err)
		return
	}

	var join protocol.Message
	if err := json.Unmarshal(line, &join); err != nil || join.Type != protocol.TypeJoinVoice {
		slog.Warn("session sent invalid join message", "remote_ip", remoteIP, "error", err)
		return
	}

	srcKind := source.Avatar
	randomAccess := false
	if join.Kind == protocol.KindInjector {
		srcKind = source.Injector
		randomAccess = true
	}

	identity := strings.TrimSpace(join.Identity)
	if identity == "" {
		identity = uuid.NewString()
	}
	username, err := validateIdentity(join.Username, maxIdentityLength)
	if err != nil && srcKind == source.Avatar {
		username = identity
	}

	loopback := false
	if join.Loopback != nil {
		loopback = *join.Loopback
	}
	pose := source.Pose{}
	if join.Pose != nil {
		pose = poseFromWire(*join.Pose)
	}

	p := &peer{identity: identity, wt: wt}
	events <- sessionEvent{
		kind:             evJoin,
		identity:         identity,
		srcKind:          srcKind,
		streamID:         join.StreamID,
		randomAccess:     randomAccess,
		pose:             pose,
		attenuationRatio: join.AttenuationRatio,
		loopback:         loopback,
		peer:             p,
	}
	slog.Info("session accepted", "identity", identity, "username", username, "kind", srcKind.String(), "remote_ip", remoteIP)

	ack, _ := json.Marshal(protocol.Message{Type: protocol.TypeJoined, Identity: identity})
	ack = append(ack, '\n')
	_, _ = ctrl.Write(ack)

	done := make(chan struct{})
	go func() {
		defer close(done)
		readDatagrams(ctx, wt, events, identity, srcKind, join.StreamID)
	}()

	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			if err != io.EOF {
				slog.Debug("session control read ended", "identity", identity, "error", err)
			}
			break
		}
		var msg protocol.Message
		if err := json.Unmarshal(line, &msg); err != nil {
			continue
		}
		applyControlMessage(msg, identity, events)
	}

	<-done
	events <- sessionEvent{kind: evLeave, identity: identity}
}

func applyControlMessage(msg protocol.Message, identity string, events chan<- sessionEvent) {
	switch msg.Type {
	case protocol.TypePoseUpdate:
		if msg.Pose == nil {
			return
		}
		events <- sessionEvent{kind: evPoseUpdate, identity: identity, pose: poseFromWire(*msg.Pose)}
	case protocol.TypeSetAttenuation:
		events <- sessionEvent{kind: evAttenuationUpdate, identity: identity, attenuationRatio: msg.AttenuationRatio}
	}
}

// readDatagrams relays raw voice datagrams from one WebTransport
// session into the shared event queue as owned PCM records, until the
// session ends. It never touches the registry directly.
func readDatagrams(ctx context.Context, wt *webtransport.Session, events chan<- sessionEvent, identity string, kind source.Kind, streamID string) {
	for {
		data, err := wt.ReceiveDatagram(ctx)
		if err != nil {
			if ctx.Err() == nil {
				slog.Debug("session datagram read ended", "identity", identity, "error", err)
			}
			return
		}
		if len(data) < datagramHeaderBytes {
			continue // malformed: missing the fixed pose/attenuation header
		}

		arrivedAt := time.Now()
		pose, atten := decodeDatagramHeader(data)
		pcm := make([]byte, len(data)-datagramHeaderBytes)
		copy(pcm, data[datagramHeaderBytes:])

		events <- sessionEvent{
			kind:             evPCM,
			identity:         identity,
			srcKind:          kind,
			streamID:         streamID,
			pose:             pose,
			attenuationRatio: atten,
			pcm:              pcm,
			arrivedAt:        arrivedAt,
		}
	}
}

// poseFromWire converts the JSON control-message pose into the
// internal representation used by the spatialization pipeline.
func poseFromWire(p protocol.Pose) source.Pose {
	return source.Pose{
		Position:   r3.Vector{X: p.X, Y: p.Y, Z: p.Z},
		BearingDeg: p.BearingDeg,
	}
}

// validateIdentity trims and bounds an operator-supplied name/tag,
// rejecting empty or over-length values.
func validateIdentity(raw string, maxLen int) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("identity must not be empty")
	}
	if len(trimmed) > maxLen {
		return "", fmt.Errorf("identity exceeds %d characters", maxLen)
	}
	return trimmed, nil
}
