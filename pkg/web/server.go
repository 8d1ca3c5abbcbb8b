// Package web provides a real-time dashboard for the rover pilot.
//
// The server exposes a small JSON API (status, command history, recent
// device lines, command and utterance submission) plus two websocket
// streams: /ws/lines carries every line the rover prints, /ws/status
// carries state snapshots. Both streams fan out through pkg/hub.
package web

import (
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/roverbyte/go-rover/pkg/hub"
)

// RoverState is the dashboard's view of the pilot.
type RoverState struct {
	ConnState     string `json:"conn_state"`
	Port          string `json:"port"`
	Connected     bool   `json:"connected"`
	CommandsSent  int    `json:"commands_sent"`
	LinesReceived int    `json:"lines_received"`
	Reconnects    uint64 `json:"reconnects"`
	LastUtterance string `json:"last_utterance"`
	LastCommand   string `json:"last_command"`
	LastReply     string `json:"last_reply"`
	LastSpoken    string `json:"last_spoken"`
}

// LineEntry is one timestamped line from the rover.
type LineEntry struct {
	Time string `json:"time"`
	Text string `json:"text"`
}

// lineBufferSize bounds the replay buffer served to new clients.
const lineBufferSize = 500

// Server is the web dashboard server.
type Server struct {
	app  *fiber.App
	port string

	// State
	state   RoverState
	stateMu sync.RWMutex

	// Recent device lines (replayed to new /ws/lines clients)
	lines   []LineEntry
	linesMu sync.RWMutex

	// Hubs for websocket broadcast
	lineHub   *hub.Hub
	statusHub *hub.Hub

	// OnCommand submits console-grammar text ("forward 2", "raw ...").
	// It returns the command record for the response body.
	OnCommand func(text string) (interface{}, error)

	// OnUtterance queues natural-language text for interpretation.
	OnUtterance func(text string) error

	// OnHistory returns the recent command records.
	OnHistory func() interface{}
}

// NewServer creates a new web dashboard server.
func NewServer(port string) *Server {
	s := &Server{
		port:      port,
		lines:     make([]LineEntry, 0, lineBufferSize),
		lineHub:   hub.New("lines"),
		statusHub: hub.New("status"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "Rover Dashboard",
		DisableStartupMessage: true,
	})

	// CORS for local development
	app.Use(cors.New())

	// API routes
	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/history", s.handleHistory)
	api.Get("/lines", s.handleLines)
	api.Post("/command", s.handleCommand)
	api.Post("/utterance", s.handleUtterance)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	// WebSocket routes
	app.Get("/ws/lines", websocket.New(s.handleLinesWS))
	app.Get("/ws/status", websocket.New(s.handleStatusWS))

	s.app = app
	return s
}

// Start starts the web server and blocks.
func (s *Server) Start() error {
	fmt.Printf("🌐 Rover dashboard: http://localhost:%s\n", s.port)

	go s.lineHub.Run()
	go s.statusHub.Run()

	return s.app.Listen(":" + s.port)
}

// StartAsync starts the web server in a goroutine.
func (s *Server) StartAsync() {
	go func() {
		if err := s.Start(); err != nil {
			fmt.Printf("⚠️  Web server error: %v\n", err)
		}
	}()
}

// UpdateState mutates the rover state and broadcasts the new snapshot.
func (s *Server) UpdateState(update func(*RoverState)) {
	s.stateMu.Lock()
	update(&s.state)
	state := s.state
	s.stateMu.Unlock()

	s.statusHub.BroadcastJSON(state)
}

// State returns a copy of the current rover state.
func (s *Server) State() RoverState {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state
}

// AddLine records a device line and broadcasts it to /ws/lines clients.
func (s *Server) AddLine(text string) {
	entry := LineEntry{
		Time: time.Now().Format("15:04:05.000"),
		Text: text,
	}

	s.linesMu.Lock()
	s.lines = append(s.lines, entry)
	if len(s.lines) > lineBufferSize {
		s.lines = s.lines[1:]
	}
	s.linesMu.Unlock()

	s.lineHub.BroadcastJSON(entry)
}

// LineHub returns the line stream hub.
func (s *Server) LineHub() *hub.Hub {
	return s.lineHub
}

// StatusHub returns the status stream hub.
func (s *Server) StatusHub() *hub.Hub {
	return s.statusHub
}

// Shutdown gracefully stops the web server and its hubs.
func (s *Server) Shutdown() error {
	err := s.app.Shutdown()
	s.lineHub.Stop()
	s.statusHub.Stop()
	return err
}
