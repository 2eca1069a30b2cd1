// Package voice implements the Voice session manager (§4.F–§4.I): a
// bounded pool of media workers, per-channel routers, per-peer credential
// issuance, and the transport/producer/consumer lifecycle anchored on
// pion/webrtc, the concrete stand-in for the spec's "opaque" SFU primitives
// (Router, WebRtcServer, Transport, Producer, Consumer). Grounded on the
// WebRTC usage idiom in `other_examples/.../JohnPitter-concord` (SettingEngine,
// OnTrack, offer/answer exchange) adapted from a one-peer client engine to a
// many-peer, many-channel server-side SFU-shaped pool.
package voice

import (
	"fmt"
	"sync"

	"github.com/pion/interceptor"
	"github.com/pion/interceptor/pkg/cc"
	"github.com/pion/interceptor/pkg/gcc"
	"github.com/pion/webrtc/v4"

	"github.com/emberhall/ember/internal/config"
	"github.com/emberhall/ember/internal/logger"
)

// WebRTCServer is one worker's shared pion API instance, bound to exactly
// one UDP/TCP port from the configured range (§3 "one WebRTC server bound
// to one port"). Every Router allocated from the same worker shares this
// API instance; only the Router itself is fresh per channel.
type WebRTCServer struct {
	api  *webrtc.API
	port uint16

	estMu      sync.Mutex
	estimators map[string]cc.BandwidthEstimator
}

// BandwidthEstimator returns the congestion controller's most recent
// estimator for the given peer connection id, or nil until that
// connection's OnNewPeerConnection callback has fired. It exposes the
// SFU-side send-bitrate estimate (§6 INITIAL_AVAILABLE_OUTGOING_BITRATE);
// nothing in this package reads it, and forwardRTP relays packets as they
// arrive regardless of the estimate.
func (s *WebRTCServer) BandwidthEstimator(peerConnectionID string) cc.BandwidthEstimator {
	s.estMu.Lock()
	defer s.estMu.Unlock()
	return s.estimators[peerConnectionID]
}

func (s *WebRTCServer) setBandwidthEstimator(peerConnectionID string, estimator cc.BandwidthEstimator) {
	s.estMu.Lock()
	defer s.estMu.Unlock()
	s.estimators[peerConnectionID] = estimator
}

// Router is a fresh per-channel handle onto a worker's shared WebRTCServer
// (§3 Voice Channel: "router"). pion/webrtc has no first-class router
// concept the way mediasoup does, so Router here is a thin grouping object:
// its only job is to hand out PeerConnections from the worker's API and to
// remember which worker it came from for logging/metrics.
type Router struct {
	workerID int
	server   *WebRTCServer
}

// NewPeerConnection creates a fresh PeerConnection from the router's
// worker-shared API, the primitive every Transport is built from.
func (r *Router) NewPeerConnection(cfg webrtc.Configuration) (*webrtc.PeerConnection, error) {
	return r.server.api.NewPeerConnection(cfg)
}

type worker struct {
	id     int
	server *WebRTCServer
}

// WorkerPool is the round-robin allocator of media workers (§4.F). It grows
// lazily up to len(ports) workers, then round-robins allocation; capacity is
// fixed at startup, so once every port is in use, new channels share
// existing workers rather than failing.
type WorkerPool struct {
	mu      sync.Mutex
	cfg     config.VoiceConfig
	ports   []uint16
	workers []*worker
	next    int
}

// NewWorkerPool derives the port list from the full [PortMin, PortMax) range
// (§3 "ports: list<u16>", §4.F, §6) and returns an empty pool; workers are
// created lazily one port at a time on first allocation (AllocateRouter), so
// spelling out the whole range just sets the cap on how many workers the
// pool can ever grow to, with no eager binding cost.
func NewWorkerPool(cfg config.VoiceConfig) (*WorkerPool, error) {
	if cfg.PortMin <= 0 || cfg.PortMax <= cfg.PortMin {
		return nil, fmt.Errorf("voice: invalid RTC port range [%d,%d]", cfg.PortMin, cfg.PortMax)
	}

	ports := make([]uint16, 0, cfg.PortMax-cfg.PortMin)
	for port := cfg.PortMin; port < cfg.PortMax; port++ {
		ports = append(ports, uint16(port))
	}

	return &WorkerPool{cfg: cfg, ports: ports}, nil
}

// AllocateRouter lazily grows the pool up to len(ports) workers, then
// round-robins an existing worker's shared server to a fresh Router (§4.F).
func (p *WorkerPool) AllocateRouter() (*Router, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.workers) < len(p.ports) {
		w, err := p.spawnWorker(len(p.workers))
		if err != nil {
			return nil, err
		}
		p.workers = append(p.workers, w)
	}

	w := p.workers[p.next%len(p.workers)]
	p.next++

	return &Router{workerID: w.id, server: w.server}, nil
}

func (p *WorkerPool) spawnWorker(index int) (*worker, error) {
	port := p.ports[index]

	settingEngine := webrtc.SettingEngine{}
	if err := settingEngine.SetEphemeralUDPPortRange(port, port); err != nil {
		return nil, fmt.Errorf("voice: bind worker %d to port %d: %w", index, port, err)
	}
	if p.cfg.AnnounceIP != "" {
		settingEngine.SetNAT1To1IPs([]string{p.cfg.AnnounceIP}, webrtc.ICECandidateTypeHost)
	}
	networkTypes := networkTypesFor(p.cfg)
	if len(networkTypes) > 0 {
		settingEngine.SetNetworkTypes(networkTypes)
	}

	mediaEngine := &webrtc.MediaEngine{}
	if err := mediaEngine.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("voice: register codecs for worker %d: %w", index, err)
	}

	server := &WebRTCServer{port: port, estimators: map[string]cc.BandwidthEstimator{}}

	initialBitrate := int(p.cfg.InitialAvailableOutgoingBitrate)
	congestionController, err := cc.NewInterceptor(func() (cc.BandwidthEstimator, error) {
		return gcc.NewSendSideBWE(gcc.SendSideBWEInitialBitrate(initialBitrate))
	})
	if err != nil {
		return nil, fmt.Errorf("voice: build congestion controller for worker %d: %w", index, err)
	}
	congestionController.OnNewPeerConnection(func(id string, estimator cc.BandwidthEstimator) {
		server.setBandwidthEstimator(id, estimator)
	})

	interceptorRegistry := &interceptor.Registry{}
	interceptorRegistry.Add(congestionController)
	if err := webrtc.ConfigureTWCCHeaderExtensionSender(mediaEngine, interceptorRegistry); err != nil {
		return nil, fmt.Errorf("voice: configure TWCC extension for worker %d: %w", index, err)
	}
	if err := webrtc.RegisterDefaultInterceptors(mediaEngine, interceptorRegistry); err != nil {
		return nil, fmt.Errorf("voice: register default interceptors for worker %d: %w", index, err)
	}

	server.api = webrtc.NewAPI(
		webrtc.WithSettingEngine(settingEngine),
		webrtc.WithMediaEngine(mediaEngine),
		webrtc.WithInterceptorRegistry(interceptorRegistry),
	)

	logger.Voice().Info().Int("worker", index).Uint16("port", port).
		Int("initial_outgoing_bitrate", initialBitrate).Msg("voice worker started")

	return &worker{id: index, server: server}, nil
}

// networkTypesFor translates the ENABLE_UDP/ENABLE_TCP env pair (§6) into
// pion's NetworkType list. PREFER_UDP/PREFER_TCP ordering is enforced by
// config.Load's mutual-exclusion check; here we only gate which transports
// exist at all.
func networkTypesFor(cfg config.VoiceConfig) []webrtc.NetworkType {
	var types []webrtc.NetworkType
	if cfg.EnableUDP {
		types = append(types, webrtc.NetworkTypeUDP4, webrtc.NetworkTypeUDP6)
	}
	if cfg.EnableTCP {
		types = append(types, webrtc.NetworkTypeTCP4, webrtc.NetworkTypeTCP6)
	}
	return types
}
