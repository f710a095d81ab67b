// Package ipc implements the desktop control envelope: newline-delimited
// JSON requests on stdin answered with newline-delimited JSON responses on
// stdout. Methods map 1:1 to the engine's control API.
package ipc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"mcveil/pkg/link"
)

// Engine is the control surface the IPC server drives.
type Engine interface {
	Start(localPort, server, password, proxyType string) error
	Stop()
	IsActive() bool
	Ping(server string) int64
	ServerStatus(server string) (string, error)
	UpdateSplitRules(paths string)
	TxBytes() int64
	RxBytes() int64
}

// Request is one command line received on stdin.
type Request struct {
	ID     int64  `json:"id"`
	Method string `json:"method"`
	Args   Args   `json:"args"`
}

// Args carries the union of all method arguments.
type Args struct {
	LocalPort     string `json:"localPort"`
	ServerAddress string `json:"serverAddress"`
	Password      string `json:"password"`
	ProxyType     string `json:"proxyType"`
	Link          string `json:"link"`
	Paths         string `json:"paths"`
}

// Response answers one Request, echoing its id.
type Response struct {
	ID      int64  `json:"id"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// Server reads requests from in and writes responses to out.
type Server struct {
	engine Engine
	in     io.Reader

	mu  sync.Mutex // serializes response lines
	out io.Writer
}

// NewServer creates an IPC server for the given engine.
func NewServer(engine Engine, in io.Reader, out io.Writer) *Server {
	return &Server{
		engine: engine,
		in:     in,
		out:    out,
	}
}

// Serve processes requests until in is exhausted or fails. A cancelable
// stdin reader makes it return on shutdown. Unparseable lines are answered
// with an error response and skipped.
func (s *Server) Serve() error {
	scanner := bufio.NewScanner(s.in)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			s.respond(Response{Success: false, Error: "parse error: " + err.Error()})
			continue
		}

		s.respond(s.handle(req))
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading requests: %w", err)
	}
	return nil
}

// handle dispatches one request to the engine.
func (s *Server) handle(req Request) Response {
	resp := Response{ID: req.ID, Success: true}

	switch req.Method {
	case "start":
		if err := s.engine.Start(req.Args.LocalPort, req.Args.ServerAddress, req.Args.Password, req.Args.ProxyType); err != nil {
			return Response{ID: req.ID, Success: false, Error: err.Error()}
		}

	case "stop":
		s.engine.Stop()

	case "isActive":
		resp.Data = s.engine.IsActive()

	case "ping":
		resp.Data = s.engine.Ping(req.Args.ServerAddress)

	case "serverStatus":
		status, err := s.engine.ServerStatus(req.Args.ServerAddress)
		if err != nil {
			return Response{ID: req.ID, Success: false, Error: err.Error()}
		}
		if json.Valid([]byte(status)) {
			resp.Data = json.RawMessage(status)
		} else {
			resp.Data = status
		}

	case "parseLink":
		conn, err := link.Parse(req.Args.Link)
		if err != nil {
			return Response{ID: req.ID, Success: false, Error: err.Error()}
		}
		resp.Data = conn

	case "updateSplitRules":
		s.engine.UpdateSplitRules(req.Args.Paths)

	case "getTxBytes":
		resp.Data = s.engine.TxBytes()

	case "getRxBytes":
		resp.Data = s.engine.RxBytes()

	default:
		return Response{ID: req.ID, Success: false, Error: "unknown method"}
	}

	return resp
}

// respond writes one response line.
func (s *Server) respond(resp Response) {
	b, err := json.Marshal(resp)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.out.Write(append(b, '\n'))
}
