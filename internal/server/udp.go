package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/rezkam/SpeakFlow-sub002/internal/config"
	"github.com/rezkam/SpeakFlow-sub002/internal/metrics"
	"github.com/rezkam/SpeakFlow-sub002/internal/protocol"
	"github.com/rezkam/SpeakFlow-sub002/internal/session"
)

// CaptureServer receives capture feed packets over UDP and drives the
// recording controller: audio packets feed the session buffer, control
// packets trigger session transitions.
type CaptureServer struct {
	conn       *net.UDPConn
	config     *config.CaptureConfig
	logger     *slog.Logger
	controller *session.Controller
	metrics    *metrics.Metrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	packetChan chan *incomingPacket

	packetsReceived  uint64
	packetsProcessed uint64
	parseErrors      uint64
	mu               sync.RWMutex
}

// incomingPacket represents a received UDP packet with metadata
type incomingPacket struct {
	data       []byte
	remoteAddr *net.UDPAddr
	timestamp  time.Time
}

// NewCaptureServer creates a new capture feed server instance
func NewCaptureServer(cfg *config.CaptureConfig, controller *session.Controller, m *metrics.Metrics, logger *slog.Logger) *CaptureServer {
	ctx, cancel := context.WithCancel(context.Background())

	return &CaptureServer{
		config:     cfg,
		logger:     logger,
		controller: controller,
		metrics:    m,
		ctx:        ctx,
		cancel:     cancel,
		packetChan: make(chan *incomingPacket, 1000), // Buffer for 1000 packets
	}
}

// Start begins listening for capture packets
func (s *CaptureServer) Start() error {
	addr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", s.config.BindAddress, s.config.UDPPort))
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address: %w", err)
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on UDP: %w", err)
	}

	s.conn = conn

	if err := s.conn.SetReadBuffer(s.config.BufferSize); err != nil {
		s.logger.Warn("Failed to set UDP read buffer size",
			slog.Int("buffer_size", s.config.BufferSize),
			slog.String("error", err.Error()),
		)
	}

	s.logger.Info("Capture server started",
		slog.String("address", addr.String()),
		slog.Int("buffer_size", s.config.BufferSize),
	)

	// A single processor keeps audio frames in arrival order; the
	// controller's buffer appends must not be reordered.
	s.wg.Add(1)
	go s.packetProcessor()

	s.wg.Add(1)
	go s.receiveLoop()

	return nil
}

// Stop gracefully stops the capture server
func (s *CaptureServer) Stop() error {
	s.logger.Info("Stopping capture server...")

	s.cancel()

	if s.conn != nil {
		if err := s.conn.Close(); err != nil {
			s.logger.Warn("Error closing UDP connection", slog.String("error", err.Error()))
		}
	}

	// receiveLoop closes the packet channel on exit, which in turn
	// stops the processor once the queue drains.
	s.wg.Wait()

	s.mu.RLock()
	packetsReceived := s.packetsReceived
	packetsProcessed := s.packetsProcessed
	parseErrors := s.parseErrors
	s.mu.RUnlock()

	s.logger.Info("Capture server stopped",
		slog.Uint64("packets_received", packetsReceived),
		slog.Uint64("packets_processed", packetsProcessed),
		slog.Uint64("parse_errors", parseErrors),
	)

	return nil
}

// receiveLoop is the main packet receiving loop. It owns the packet
// channel: only the receiver sends on it, so closing it here cannot
// race a send.
func (s *CaptureServer) receiveLoop() {
	defer s.wg.Done()
	defer close(s.packetChan)

	buffer := make([]byte, s.config.BufferSize)

	for {
		select {
		case <-s.ctx.Done():
			s.logger.Info("Receive loop stopping due to context cancellation")
			return
		default:
			// Continue to receive packets
		}

		// Set read deadline to check for context cancellation periodically
		if err := s.conn.SetReadDeadline(time.Now().Add(1 * time.Second)); err != nil {
			s.logger.Error("Failed to set read deadline", slog.String("error", err.Error()))
			continue
		}

		n, remoteAddr, err := s.conn.ReadFromUDP(buffer)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}

			select {
			case <-s.ctx.Done():
				return
			default:
				s.logger.Error("Failed to read UDP packet", slog.String("error", err.Error()))
				continue
			}
		}

		s.mu.Lock()
		s.packetsReceived++
		s.mu.Unlock()
		s.metrics.RecordFrameReceived()

		// Buffer is reused, the packet needs its own copy
		packetData := make([]byte, n)
		copy(packetData, buffer[:n])

		packet := &incomingPacket{
			data:       packetData,
			remoteAddr: remoteAddr,
			timestamp:  time.Now(),
		}

		select {
		case s.packetChan <- packet:
			// Packet queued successfully
		default:
			s.metrics.RecordFrameDropped()
			s.logger.Warn("Packet processing queue full, dropping packet",
				slog.String("remote_addr", remoteAddr.String()),
				slog.Int("packet_size", n),
			)
		}
	}
}

// packetProcessor processes packets from the packet channel
func (s *CaptureServer) packetProcessor() {
	defer s.wg.Done()

	s.logger.Debug("Packet processor started")

	for packet := range s.packetChan {
		s.handlePacket(packet)
	}

	s.logger.Debug("Packet processor stopped")
}

// handlePacket processes a single incoming packet
func (s *CaptureServer) handlePacket(packet *incomingPacket) {
	parsedPacket, err := protocol.ParsePacket(packet.data)
	if err != nil {
		s.mu.Lock()
		s.parseErrors++
		s.mu.Unlock()
		s.metrics.RecordParseError()

		s.logger.Error("Failed to parse packet",
			slog.String("remote_addr", packet.remoteAddr.String()),
			slog.Int("packet_size", len(packet.data)),
			slog.String("error", err.Error()),
		)
		return
	}

	s.mu.Lock()
	s.packetsProcessed++
	s.mu.Unlock()

	switch parsedPacket.Header.PacketType {
	case protocol.PacketTypeControl:
		s.processControlPacket(parsedPacket.Header, parsedPacket.Control)
	case protocol.PacketTypeAudio:
		s.processAudioPacket(parsedPacket.Header, parsedPacket.Audio)
	default:
		s.logger.Error("Unknown packet type",
			slog.Uint64("source_id", uint64(parsedPacket.Header.SourceID)),
			slog.Int("packet_type", int(parsedPacket.Header.PacketType)),
		)
	}
}

// processControlPacket maps control operations onto session transitions
func (s *CaptureServer) processControlPacket(header *protocol.Header, payload *protocol.ControlPayload) {
	s.logger.Debug("Processing control packet",
		slog.Uint64("source_id", uint64(header.SourceID)),
		slog.String("op", protocol.OpString(payload.Op)),
	)

	var err error
	switch payload.Op {
	case protocol.OpStart:
		err = s.controller.StartRecording()
	case protocol.OpStop:
		err = s.controller.StopRecording("control packet")
	case protocol.OpCancel:
		err = s.controller.CancelRecording()
	case protocol.OpEscape:
		s.controller.OnEscape()
	}

	if err != nil {
		s.logger.Warn("Control operation rejected",
			slog.Uint64("source_id", uint64(header.SourceID)),
			slog.String("op", protocol.OpString(payload.Op)),
			slog.String("error", err.Error()),
		)
	}
}

// processAudioPacket feeds audio frames into the controller
func (s *CaptureServer) processAudioPacket(header *protocol.Header, payload *protocol.AudioPayload) {
	samples := payload.Samples()
	if len(samples) == 0 {
		return
	}

	s.controller.OnFrames(samples)

	s.logger.Debug("Audio packet processed",
		slog.Uint64("source_id", uint64(header.SourceID)),
		slog.Uint64("sequence", uint64(payload.Sequence)),
		slog.Int("samples", len(samples)),
	)
}

// GetStatistics returns current server statistics
func (s *CaptureServer) GetStatistics() ServerStatistics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return ServerStatistics{
		PacketsReceived:  s.packetsReceived,
		PacketsProcessed: s.packetsProcessed,
		ParseErrors:      s.parseErrors,
		QueueSize:        uint64(len(s.packetChan)),
		QueueCapacity:    uint64(cap(s.packetChan)),
	}
}

// ServerStatistics represents server performance metrics
type ServerStatistics struct {
	PacketsReceived  uint64 `json:"packets_received"`
	PacketsProcessed uint64 `json:"packets_processed"`
	ParseErrors      uint64 `json:"parse_errors"`
	QueueSize        uint64 `json:"queue_size"`
	QueueCapacity    uint64 `json:"queue_capacity"`
}
