// Package protocol implements a line-based text protocol for playing and
// analysing games from a terminal or a driver program.
//
//	new                                  start a new game
//	play <row> <col>                     play for the side to move
//	go [depth N] [movetime MS] [time MS inc MS] [infinite]
//	                                     engine plays; prints info lines and bestmove
//	stop                                 end the running search
//	suggest                              best move for the side to move, not played
//	undo                                 take back the last move
//	d                                    print the board
//	score                                print the evaluation
//	png <file>                           write the board as a PNG image
//	setoption name <Name> value <V>      change a setting
//	quit
package protocol

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/hailam/gomokuplay/internal/board"
	"github.com/hailam/gomokuplay/internal/engine"
	"github.com/hailam/gomokuplay/internal/game"
	"github.com/hailam/gomokuplay/internal/render"
)

// Protocol reads commands and writes responses.
type Protocol struct {
	ctrl *game.Controller

	outMu sync.Mutex
	out   io.Writer

	// Search state
	searching  bool
	searchDone chan struct{}
	cancel     context.CancelFunc
}

// New creates a protocol handler writing to out. It installs itself as the
// engine's info callback.
func New(ctrl *game.Controller, eng *engine.Engine, out io.Writer) *Protocol {
	p := &Protocol{ctrl: ctrl, out: out}
	eng.OnInfo = p.sendInfo
	return p
}

// Run processes commands from in until quit or end of input. A running
// search is stopped before Run returns.
func (p *Protocol) Run(in io.Reader) error {
	defer p.handleStop()

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !p.Execute(line) {
			return nil
		}
	}
	return errors.Wrap(scanner.Err(), "read commands")
}

// Execute runs one command line. It returns false on quit.
func (p *Protocol) Execute(line string) bool {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return true
	}
	cmd, args := parts[0], parts[1:]
	log.Debug().Str("cmd", cmd).Strs("args", args).Msg("command")

	switch cmd {
	case "new":
		p.handleNew()
	case "play":
		p.handlePlay(args)
	case "go":
		p.handleGo(args)
	case "stop":
		p.handleStop()
	case "suggest":
		p.handleSuggest()
	case "undo":
		p.handleUndo()
	case "d":
		p.handleDisplay()
	case "score":
		p.handleScore()
	case "png":
		p.handlePNG(args)
	case "setoption":
		p.handleSetOption(args)
	case "stats":
		p.handleStats()
	case "isready":
		p.waitSearch()
		p.println("readyok")
	case "quit":
		return false
	default:
		p.printf("error unknown command %q\n", cmd)
	}
	return true
}

func (p *Protocol) printf(format string, args ...any) {
	p.outMu.Lock()
	defer p.outMu.Unlock()
	fmt.Fprintf(p.out, format, args...)
}

func (p *Protocol) println(s string) {
	p.printf("%s\n", s)
}

func (p *Protocol) fail(err error) {
	p.printf("error %v\n", err)
}

func (p *Protocol) handleNew() {
	p.handleStop()
	m, err := p.ctrl.NewGame()
	if err != nil {
		p.fail(err)
		return
	}
	if !m.IsNone() {
		p.printf("move %s\n", m)
	}
	p.println("ok")
}

// handlePlay accepts "play 9 9" or "play 9,9".
func (p *Protocol) handlePlay(args []string) {
	p.handleStop()
	cell, err := parseCellArgs(args)
	if err != nil {
		p.fail(err)
		return
	}
	m, err := p.ctrl.Play(cell)
	if err != nil {
		p.fail(err)
		return
	}
	p.printf("played %s\n", m)
	p.reportEnd()
}

func parseCellArgs(args []string) (board.Cell, error) {
	if len(args) == 0 {
		return board.NoCell, errors.New("missing cell")
	}
	cell, err := board.ParseCell(strings.Join(args, " "))
	if err != nil {
		return board.NoCell, err
	}
	return cell, nil
}

// GoOptions holds parsed "go" command options.
type GoOptions struct {
	Depth     int
	MoveTime  time.Duration
	Remaining time.Duration
	Increment time.Duration
	Infinite  bool
}

func parseGoOptions(args []string) GoOptions {
	opts := GoOptions{}
	ms := func(i int) time.Duration {
		v, _ := strconv.Atoi(args[i])
		return time.Duration(v) * time.Millisecond
	}
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "depth":
			if i+1 < len(args) {
				opts.Depth, _ = strconv.Atoi(args[i+1])
				i++
			}
		case "movetime":
			if i+1 < len(args) {
				opts.MoveTime = ms(i + 1)
				i++
			}
		case "time":
			if i+1 < len(args) {
				opts.Remaining = ms(i + 1)
				i++
			}
		case "inc":
			if i+1 < len(args) {
				opts.Increment = ms(i + 1)
				i++
			}
		case "infinite":
			opts.Infinite = true
		}
	}
	return opts
}

// limits converts the options. Without any option the configured
// difficulty applies.
func (p *Protocol) limits(opts GoOptions) engine.SearchLimits {
	if opts == (GoOptions{}) {
		return p.ctrl.Config().Limits()
	}
	return engine.SearchLimits{
		Depth:     opts.Depth,
		MoveTime:  opts.MoveTime,
		Remaining: opts.Remaining,
		Increment: opts.Increment,
		Infinite:  opts.Infinite,
	}
}

// handleGo starts the engine move in the background.
func (p *Protocol) handleGo(args []string) {
	p.handleStop()
	limits := p.limits(parseGoOptions(args))

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.searching = true
	p.searchDone = make(chan struct{})

	go func() {
		defer close(p.searchDone)
		m, r, err := p.ctrl.EngineMoveWithLimits(ctx, limits)
		if err != nil {
			p.fail(err)
			return
		}
		p.printf("bestmove %s\n", m.Cell)
		if r.Cancelled {
			p.println("info string search cancelled")
		}
		p.reportEnd()
		if over, _ := p.ctrl.Over(); !over {
			p.ctrl.StartPonder()
		}
	}()
}

// handleStop cancels the running search and waits for it.
func (p *Protocol) handleStop() {
	if !p.searching {
		return
	}
	p.cancel()
	<-p.searchDone
	p.searching = false
}

// waitSearch blocks until a running search finishes on its own.
func (p *Protocol) waitSearch() {
	if !p.searching {
		return
	}
	<-p.searchDone
	p.cancel()
	p.searching = false
}

func (p *Protocol) handleSuggest() {
	p.handleStop()
	m, r, err := p.ctrl.Suggest(context.Background())
	if err != nil {
		p.fail(err)
		return
	}
	p.printf("suggest %s score %s time %d\n", m.Cell, engine.FormatScore(r.Score), r.Elapsed.Milliseconds())
}

func (p *Protocol) handleUndo() {
	p.handleStop()
	if err := p.ctrl.Undo(); err != nil {
		p.fail(err)
		return
	}
	p.println("ok")
}

func (p *Protocol) handleDisplay() {
	pos := p.ctrl.Position()
	c := pos.CaptureCounts()
	p.printf("%s", pos.String())
	p.printf("to move %s  captures black %d white %d  last %s\n", pos.SideToMove(), c.Black, c.White, pos.LastMove())
	p.printf("hash %016x\n", pos.Hash())
}

func (p *Protocol) handleScore() {
	pos := p.ctrl.Position()
	p.printf("score %s static %d\n", engine.FormatScore(pos.Score()), pos.Score())
}

func (p *Protocol) handlePNG(args []string) {
	if len(args) != 1 {
		p.fail(errors.New("usage: png <file>"))
		return
	}
	pos := p.ctrl.Position()
	opts := render.DefaultOptions()
	opts.Highlight = pos.LastMove().Cell
	if err := render.WriteFile(args[0], pos.Snapshot(), opts); err != nil {
		p.fail(err)
		return
	}
	p.printf("wrote %s\n", args[0])
}

// reportEnd prints the result once the game is over.
func (p *Protocol) reportEnd() {
	if over, winner := p.ctrl.Over(); over {
		p.printf("result %s wins\n", winner)
	}
}

// sendInfo prints one iteration of the search.
func (p *Protocol) sendInfo(info engine.SearchInfo) {
	var parts []string
	parts = append(parts, fmt.Sprintf("depth %d", info.Depth))
	parts = append(parts, "score "+engine.FormatScore(info.Score))
	parts = append(parts, fmt.Sprintf("nodes %d", info.Nodes))
	parts = append(parts, fmt.Sprintf("time %d", info.Time.Milliseconds()))
	if info.Time > 0 {
		nps := uint64(float64(info.Nodes) / info.Time.Seconds())
		parts = append(parts, fmt.Sprintf("nps %d", nps))
	}
	parts = append(parts, fmt.Sprintf("hashhit %.1f", info.HashHit))
	parts = append(parts, "move "+info.Move.String())
	p.printf("info %s\n", strings.Join(parts, " "))
}

// handleSetOption processes "setoption name <name> value <value>".
func (p *Protocol) handleSetOption(args []string) {
	var name, value string
	readingName := false
	readingValue := false

	for _, arg := range args {
		switch arg {
		case "name":
			readingName = true
			readingValue = false
		case "value":
			readingName = false
			readingValue = true
		default:
			if readingName {
				if name != "" {
					name += " "
				}
				name += arg
			} else if readingValue {
				if value != "" {
					value += " "
				}
				value += arg
			}
		}
	}

	p.handleStop()
	cfg := p.ctrl.Config()
	var err error
	switch strings.ToLower(name) {
	case "difficulty":
		cfg.Difficulty = strings.ToLower(value)
	case "depth":
		cfg.Depth, err = strconv.Atoi(value)
	case "movetime":
		cfg.MoveTimeMs, err = strconv.Atoi(value)
	case "ponder":
		cfg.Ponder, err = strconv.ParseBool(value)
	case "randomize":
		cfg.Randomize, err = strconv.ParseBool(value)
	case "capturethreshold":
		cfg.Rules.CaptureThreshold, err = strconv.Atoi(value)
	case "forbiddoublethree":
		cfg.Rules.ForbidDoubleThree, err = strconv.ParseBool(value)
	case "fiverule":
		cfg.Rules.FiveRule = strings.ToLower(value)
	case "humanwhite":
		cfg.HumanWhite, err = strconv.ParseBool(value)
	case "suggestions":
		cfg.Suggestions, err = strconv.ParseBool(value)
	case "twoplayer":
		cfg.TwoPlayer, err = strconv.ParseBool(value)
	default:
		p.fail(errors.Errorf("unknown option %q", name))
		return
	}
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		p.fail(errors.Wrapf(err, "option %s", name))
		return
	}
	if err := p.ctrl.SetConfig(cfg); err != nil {
		log.Warn().Err(err).Msg("preferences-not-saved")
	}
	p.println("ok")
}

// handleStats prints the recorded results on one line.
func (p *Protocol) handleStats() {
	st, err := p.ctrl.Stats()
	if err != nil {
		p.fail(err)
		return
	}
	p.printf("stats games %d wins %d losses %d draws %d captures %d streak %d best %d winrate %.1f\n",
		st.GamesPlayed, st.Wins, st.Losses, st.Draws, st.WinsByCapture,
		st.CurrentStreak, st.LongestWinStrk, st.GetWinRate())
}
