package server

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"kinect-track-go/internal/config"
	"kinect-track-go/internal/pipeline"
	"kinect-track-go/internal/surface"
	"kinect-track-go/internal/types"
)

//go:embed web/*
var webFS embed.FS

// Hooks connect the server to the rest of the application. Nil hooks are
// skipped.
type Hooks struct {
	Status   func() map[string]any
	Config   func() map[string]any
	Key      func(action string) error
	Viewport func(width, height float64) error
}

type Server struct {
	upgrader websocket.Upgrader
	clients  map[*websocket.Conn]*sync.Mutex
	mu       sync.Mutex
	cfg      config.AppConfig
	surface  *surface.Surface
	hooks    Hooks
	logger   *zap.SugaredLogger
}

const (
	writeWait = 10 * time.Second
	pongWait  = 60 * time.Second
	pingEvery = (pongWait * 9) / 10
)

func New(cfg config.AppConfig, surf *surface.Surface, hooks Hooks, logger *zap.SugaredLogger) *Server {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Server{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]*sync.Mutex),
		cfg:     cfg,
		surface: surf,
		hooks:   hooks,
		logger:  logger,
	}
}

func (s *Server) Handler() (http.Handler, error) {
	sub, err := fs.Sub(webFS, "web")
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/", http.FileServer(http.FS(sub)))
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/config", s.handleConfig)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/frame.png", s.handleFrame)
	return mux, nil
}

// Run serves HTTP until ctx is done. Texture and crosshair changes are pushed
// to websocket clients every UIRate; messages are broadcast as they arrive.
func (s *Server) Run(ctx context.Context, messages <-chan any) error {
	handler, err := s.Handler()
	if err != nil {
		return err
	}
	httpServer := &http.Server{
		Addr:              ":" + strconv.Itoa(s.cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	go s.broadcast(ctx, messages)

	err = httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) configPayload() map[string]any {
	if s.hooks.Config != nil {
		if cfg := s.hooks.Config(); cfg != nil {
			return cfg
		}
	}
	return map[string]any{
		"type":      "config",
		"width":     s.cfg.Width,
		"height":    s.cfg.Height,
		"threshold": s.cfg.Threshold,
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	conn.SetReadLimit(1 << 16)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	s.mu.Lock()
	writeMu := &sync.Mutex{}
	s.clients[conn] = writeMu
	s.mu.Unlock()

	_ = s.writeJSON(conn, writeMu, s.configPayload())

	go func() {
		done := make(chan struct{})
		go func() {
			ticker := time.NewTicker(pingEvery)
			defer ticker.Stop()
			for {
				select {
				case <-done:
					return
				case <-ticker.C:
					if err := s.writeMessage(conn, writeMu, websocket.PingMessage, nil); err != nil {
						_ = conn.Close()
						return
					}
				}
			}
		}()
		defer close(done)
		defer s.removeClient(conn)
		for {
			messageType, payload, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if messageType != websocket.TextMessage {
				continue
			}
			reply, snapshot := s.handleClientMessage(payload)
			if reply != nil {
				_ = s.writeJSON(conn, writeMu, reply)
			}
			if snapshot {
				s.sendSnapshot(conn, writeMu)
			}
		}
	}()
}

type clientMessage struct {
	Type   string  `json:"type"`
	Action string  `json:"action"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// handleClientMessage applies one client request. It returns an optional
// reply for that client and whether the client asked for a snapshot.
func (s *Server) handleClientMessage(payload []byte) (any, bool) {
	var msg clientMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, false
	}
	var err error
	switch msg.Type {
	case "snapshot_request":
		return nil, true
	case "key":
		if s.hooks.Key != nil {
			err = s.hooks.Key(msg.Action)
		}
	case "viewport":
		if s.hooks.Viewport != nil {
			err = s.hooks.Viewport(msg.Width, msg.Height)
		}
	}
	if err != nil {
		return map[string]any{"type": "error", "request": msg.Type, "error": err.Error()}, false
	}
	return nil, false
}

func (s *Server) sendSnapshot(conn *websocket.Conn, writeMu *sync.Mutex) {
	if s.surface == nil {
		return
	}
	if tex, _, ok := s.surface.TextureSince(0, nil); ok {
		_ = s.writeMessage(conn, writeMu, websocket.BinaryMessage, tex)
	}
	if d, _, ok := s.surface.CrosshairSince(0); ok {
		_ = s.writeJSON(conn, writeMu, crosshairMessage(d))
	}
}

func crosshairMessage(d pipeline.Detection) types.Crosshair {
	return types.Crosshair{
		Type:     "crosshair",
		FrameID:  d.FrameID,
		Screen:   d.Screen,
		World:    d.World,
		Detected: true,
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleConfig(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	payload := map[string]any{
		"width":     s.cfg.Width,
		"height":    s.cfg.Height,
		"threshold": s.cfg.Threshold,
		"port":      s.cfg.Port,
		"debug":     s.cfg.Debug,
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	payload := map[string]any{}
	if s.hooks.Status != nil {
		payload = s.hooks.Status()
	}
	if metrics, ok := payload["metrics"].(map[string]any); ok {
		metrics["ws_clients"] = s.clientCount()
	} else {
		payload["ws_clients"] = s.clientCount()
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) handleFrame(w http.ResponseWriter, _ *http.Request) {
	if s.surface == nil {
		http.Error(w, "no surface", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := s.surface.WritePNG(w); err != nil {
		s.logger.Warnf("encode frame png: %v", err)
	}
}

func (s *Server) broadcast(ctx context.Context, messages <-chan any) {
	rate := s.cfg.UIRate
	if rate <= 0 {
		rate = 100 * time.Millisecond
	}
	ticker := time.NewTicker(rate)
	defer ticker.Stop()

	var (
		texture          []byte
		textureVersion   uint64
		crosshairVersion uint64
	)
	for {
		select {
		case <-ctx.Done():
			return
		case message, ok := <-messages:
			if !ok {
				messages = nil
				continue
			}
			payload, err := json.Marshal(message)
			if err != nil {
				continue
			}
			s.broadcastMessage(websocket.TextMessage, payload)
		case <-ticker.C:
			if s.surface == nil {
				continue
			}
			var changed bool
			texture, textureVersion, changed = s.surface.TextureSince(textureVersion, texture)
			if changed {
				s.broadcastMessage(websocket.BinaryMessage, texture)
			}
			if det, v, ok := s.surface.CrosshairSince(crosshairVersion); ok {
				crosshairVersion = v
				payload, err := json.Marshal(crosshairMessage(det))
				if err == nil {
					s.broadcastMessage(websocket.TextMessage, payload)
				}
			}
		}
	}
}

func (s *Server) broadcastMessage(messageType int, payload []byte) {
	var stale []*websocket.Conn
	s.mu.Lock()
	for conn, writeMu := range s.clients {
		if err := s.writeMessage(conn, writeMu, messageType, payload); err != nil {
			stale = append(stale, conn)
		}
	}
	s.mu.Unlock()
	for _, conn := range stale {
		s.removeClient(conn)
	}
}

func (s *Server) removeClient(conn *websocket.Conn) {
	s.mu.Lock()
	delete(s.clients, conn)
	s.mu.Unlock()
	conn.Close()
}

func (s *Server) clientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Server) writeJSON(conn *websocket.Conn, writeMu *sync.Mutex, payload any) error {
	writeMu.Lock()
	defer writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(payload)
}

func (s *Server) writeMessage(conn *websocket.Conn, writeMu *sync.Mutex, messageType int, payload []byte) error {
	writeMu.Lock()
	defer writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(messageType, payload)
}
