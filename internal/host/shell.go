package host

import (
	"context"
	"fmt"

	"github.com/gdamore/tcell/v2"
)

// KeyEvent is a host-neutral key press forwarded to the application.
type KeyEvent struct {
	// Rune is the printable rune, zero for special keys.
	Rune rune

	// Name is the tcell key name (e.g. "Enter", "Rune[+]").
	Name string
}

// DrawFunc fills the frame for one redraw.
type DrawFunc func(f *Frame)

// KeyFunc handles one key press. Returning false ends the event loop.
type KeyFunc func(ev KeyEvent) bool

// Shell owns the terminal screen and runs the redraw/input loop.
type Shell struct {
	screen tcell.Screen
	style  tcell.Style
}

// NewShell initializes the terminal screen.
func NewShell() (*Shell, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, fmt.Errorf("create screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return nil, fmt.Errorf("init screen: %w", err)
	}

	return &Shell{
		screen: screen,
		style:  tcell.StyleDefault,
	}, nil
}

// Run drives the event loop until the context is cancelled, onKey
// returns false, or the user presses Escape or Ctrl-C. The frame is
// redrawn after every input event.
func (s *Shell) Run(ctx context.Context, draw DrawFunc, onKey KeyFunc) error {
	defer s.screen.Fini()

	frame := NewFrame()
	s.redraw(frame, draw)

	events := make(chan tcell.Event, 16)
	go s.screen.ChannelEvents(events, ctx.Done())

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			switch tev := ev.(type) {
			case *tcell.EventResize:
				s.screen.Sync()
			case *tcell.EventKey:
				if tev.Key() == tcell.KeyEscape || tev.Key() == tcell.KeyCtrlC {
					return nil
				}
				ke := KeyEvent{Name: tev.Name()}
				if tev.Key() == tcell.KeyRune {
					ke.Rune = tev.Rune()
				}
				if onKey != nil && !onKey(ke) {
					return nil
				}
			}
			s.redraw(frame, draw)
		}
	}
}

// redraw rebuilds the frame and blits it to the screen.
func (s *Shell) redraw(frame *Frame, draw DrawFunc) {
	frame.Reset()
	if draw != nil {
		draw(frame)
	}

	s.screen.Clear()
	width, height := s.screen.Size()
	for y, line := range frame.Lines() {
		if y >= height {
			break
		}
		x := 0
		for _, r := range line {
			if x >= width {
				break
			}
			s.screen.SetContent(x, y, r, nil, s.style)
			x++
		}
	}
	s.screen.Show()
}
