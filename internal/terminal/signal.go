package terminal

import (
	"fmt"
	"io"
	"os"
	"os/signal"
)

// NotifyFunc routes interrupts to c until stop is called.
type NotifyFunc func(c chan<- os.Signal) (stop func())

func notifyInterrupt(c chan<- os.Signal) func() {
	signal.Notify(c, os.Interrupt)
	return func() { signal.Stop(c) }
}

// interruptNavigator turns Ctrl+C into a back-navigation while a quiz is running. Released, Ctrl+C
// terminates the program as usual.
type interruptNavigator struct {
	notify NotifyFunc
	c      chan os.Signal
	out    io.Writer
	stop   func()
}

func (n *interruptNavigator) Block() {
	n.stop = n.notify(n.c)
}

func (n *interruptNavigator) Restore() {
	fmt.Fprintln(n.out, "Staying on the quiz.")
}

func (n *interruptNavigator) Release() {
	if n.stop != nil {
		n.stop()
		n.stop = nil
	}
}

// chrome is the terminal's menu banner, replaced by a quiz banner while an attempt runs.
type chrome struct {
	out io.Writer
}

func (c chrome) Hide() {
	fmt.Fprintln(c.out, "=== quiz mode: Ctrl+C or 'back' to leave ===")
}

func (c chrome) Restore() {
	fmt.Fprintln(c.out, "=== quiz closed ===")
}
