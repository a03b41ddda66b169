// Package host provides the terminal shell the demo binary runs modules
// in: a frame-based immediate-mode drawing surface and an event loop
// that forwards key presses to the embedding application.
//
// The shell stands in for whatever render loop a real host embeds the
// framework into. Modules never see tcell; they draw onto a Frame, and
// the shell blits the frame to the terminal once per redraw.
package host
