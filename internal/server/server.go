// Package server exposes a game over HTTP: a JSON API for moves and a
// websocket stream of search progress.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/hailam/gomokuplay/internal/board"
	"github.com/hailam/gomokuplay/internal/engine"
	"github.com/hailam/gomokuplay/internal/game"
	"github.com/hailam/gomokuplay/internal/storage"
)

// Options configures the server.
type Options struct {
	// EngineMoves makes the engine answer every human move.
	EngineMoves bool
}

// Server serves one shared game.
type Server struct {
	ctrl   *game.Controller
	hub    *Hub
	opts   Options
	router chi.Router

	mu          sync.Mutex
	initialized bool
	moveLock    bool
}

type moveDTO struct {
	Color    int    `json:"color"`
	Position [2]int `json:"position"`
}

type initResponse struct {
	Move  *moveDTO `json:"move"`
	Board [][]int  `json:"board"`
}

type makeMoveRequest struct {
	Color    int    `json:"color"`
	Position [2]int `json:"position"`
}

type makeMoveResponse struct {
	Move           *moveDTO       `json:"move"`
	Board          [][]int        `json:"board"`
	TimeMove       *float64       `json:"time_move"`
	Suggestion     *moveDTO       `json:"suggestion"`
	TimeSuggestion *float64       `json:"time_suggestion"`
	Captures       board.Captures `json:"captures"`
	Winner         int            `json:"winner"`
}

type boardResponse struct {
	Board    [][]int        `json:"board"`
	ToMove   int            `json:"to_move"`
	Captures board.Captures `json:"captures"`
	Winner   int            `json:"winner"`
	LastMove *moveDTO       `json:"last_move"`
	Score    int64          `json:"score"`
}

type statsResponse struct {
	*storage.GameStats
	WinRate float64 `json:"win_rate"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// New creates a server for ctrl. It installs the websocket hub as the
// engine's info callback.
func New(ctrl *game.Controller, eng *engine.Engine, opts Options) *Server {
	s := &Server{ctrl: ctrl, hub: NewHub(), opts: opts}
	eng.OnInfo = func(info engine.SearchInfo) {
		s.hub.Publish("info", info)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Post("/init", s.handleInit)
	r.Post("/make-move", s.handleMakeMove)
	r.Get("/board", s.handleBoard)
	r.Get("/stats", s.handleStats)
	r.Get("/ws", s.serveWS)
	s.router = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Hub returns the websocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.hub.Run(ctx.Done())

	srv := &http.Server{Addr: addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	log.Info().Str("addr", addr).Msg("server-listening")

	var runErr error
	select {
	case <-ctx.Done():
	case err, ok := <-errCh:
		if ok {
			runErr = errors.Wrap(err, "serve")
		}
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Warn().Err(err).Msg("graceful-shutdown-failed")
		_ = srv.Close()
	}
	return runErr
}

func (s *Server) handleInit(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.ctrl.NewGame()
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.initialized = true
	s.moveLock = false

	resp := initResponse{Board: boardMatrix(s.ctrl.Position().Snapshot())}
	if !m.IsNone() {
		resp.Move = toMoveDTO(m)
	}
	s.hub.Publish("board", s.boardState())
	writeJSON(w, http.StatusCreated, resp)
}

// handleMakeMove plays the human move, then the engine reply and a
// suggestion for the human when enabled.
func (s *Server) handleMakeMove(w http.ResponseWriter, r *http.Request) {
	if !s.acquireMove(w) {
		return
	}
	defer s.releaseMove()

	var req makeMoveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid payload")
		return
	}
	cell, err := board.NewCellChecked(req.Position[0], req.Position[1])
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Out of bounds")
		return
	}
	if _, err := s.ctrl.PlayColor(board.Stone(req.Color), cell); err != nil {
		writeMessage(w, http.StatusBadRequest, moveErrorMessage(err))
		return
	}

	var resp makeMoveResponse
	ctx := r.Context()
	over, _ := s.ctrl.Over()
	if s.opts.EngineMoves && !over {
		m, res, err := s.ctrl.EngineMove(ctx)
		if err != nil {
			writeMessage(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp.Move = toMoveDTO(m)
		resp.TimeMove = seconds(res.Elapsed)
		over, _ = s.ctrl.Over()
	}
	if s.ctrl.Config().Suggestions && !over {
		m, res, err := s.ctrl.Suggest(ctx)
		if err == nil && m.Cell.IsValid() {
			resp.Suggestion = toMoveDTO(m)
			resp.TimeSuggestion = seconds(res.Elapsed)
		}
	}

	pos := s.ctrl.Position()
	resp.Board = boardMatrix(pos.Snapshot())
	resp.Captures = pos.CaptureCounts()
	resp.Winner = int(pos.Winner())

	s.hub.Publish("board", s.boardState())
	writeJSON(w, http.StatusCreated, resp)

	if !over {
		s.ctrl.StartPonder()
	}
}

func (s *Server) acquireMove(w http.ResponseWriter) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		writeMessage(w, http.StatusNotFound, "Session not found")
		return false
	}
	if s.moveLock {
		writeMessage(w, http.StatusBadRequest, "Not your turn")
		return false
	}
	s.moveLock = true
	return true
}

func (s *Server) releaseMove() {
	s.mu.Lock()
	s.moveLock = false
	s.mu.Unlock()
}

func (s *Server) handleBoard(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	ok := s.initialized
	s.mu.Unlock()
	if !ok {
		writeMessage(w, http.StatusNotFound, "Session not found")
		return
	}
	writeJSON(w, http.StatusOK, s.boardState())
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.ctrl.Stats()
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{GameStats: st, WinRate: st.GetWinRate()})
}

func (s *Server) boardState() boardResponse {
	pos := s.ctrl.Position()
	resp := boardResponse{
		Board:    boardMatrix(pos.Snapshot()),
		ToMove:   int(pos.SideToMove()),
		Captures: pos.CaptureCounts(),
		Winner:   int(pos.Winner()),
		Score:    pos.Score(),
	}
	if last := pos.LastMove(); !last.IsNone() {
		resp.LastMove = toMoveDTO(last)
	}
	return resp
}

func moveErrorMessage(err error) string {
	switch {
	case errors.Is(err, board.ErrDoubleThree):
		return "Forbidden move"
	case errors.Is(err, board.ErrCellOccupied):
		return "Cell occupied"
	case errors.Is(err, game.ErrNotYourTurn), errors.Is(err, board.ErrNotAColor):
		return "Not your turn"
	case errors.Is(err, game.ErrGameOver):
		return "Game over"
	}
	return err.Error()
}

func toMoveDTO(m board.Move) *moveDTO {
	return &moveDTO{Color: int(m.Color), Position: [2]int{m.Cell.Row(), m.Cell.Col()}}
}

func boardMatrix(s board.Snapshot) [][]int {
	out := make([][]int, board.Size)
	for row := range out {
		out[row] = make([]int, board.Size)
		for col := range out[row] {
			out[row][col] = int(s[row][col])
		}
	}
	return out
}

func seconds(d time.Duration) *float64 {
	v := d.Seconds()
	return &v
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, messageResponse{Message: msg})
}

// requestLogger logs each request through zerolog.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("http")
	})
}
