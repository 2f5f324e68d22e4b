package display

import (
	"gocv.io/x/gocv"
)

// Window shows frames in a desktop window and collects key presses. Show
// must be called from the goroutine that created the window.
type Window struct {
	win    *gocv.Window
	keys   chan int
	closed bool
}

// NewWindow opens a window with the given title.
func NewWindow(title string) *Window {
	return &Window{
		win:  gocv.NewWindow(title),
		keys: make(chan int, 16),
	}
}

// Show draws frame and polls the keyboard for one millisecond. Keys that
// arrive while the channel is full are dropped. Once the user has closed
// the window, Show draws nothing; IMShow would open it again.
func (w *Window) Show(frame *gocv.Mat) error {
	if w.closed {
		return nil
	}
	w.win.IMShow(*frame)
	if key := w.win.WaitKey(1); key >= 0 {
		select {
		case w.keys <- key:
		default:
		}
	}
	if w.win.GetWindowProperty(gocv.WindowPropertyVisible) < 1 {
		w.closed = true
	}
	return nil
}

// Keys returns pressed key codes.
func (w *Window) Keys() <-chan int {
	return w.keys
}

// Closed reports whether the user closed the window.
func (w *Window) Closed() bool {
	return w.closed
}

func (w *Window) Close() error {
	return w.win.Close()
}
