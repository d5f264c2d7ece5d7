// Command notifybridge watches a real host directory with fsnotify and
// forwards each observed event into a notifybus.Bus, translating
// fsnotify's Op bitmask into the Create|Modify|Delete|Access bitmask the
// bus uses. It is the concrete producer side of the bus's polling
// consumer contract: a real inotify implementation feeding karcfs's bus
// instead of the kernel's own VFS hook layer.
package main

import (
	"fmt"
	"os"

	"github.com/fsnotify/fsnotify"

	"karcfs/notifybus"
)

func translate(op fsnotify.Op) notifybus.EventKind {
	var kind notifybus.EventKind
	if op&fsnotify.Create != 0 {
		kind |= notifybus.Create
	}
	if op&(fsnotify.Write|fsnotify.Chmod) != 0 {
		kind |= notifybus.Modify
	}
	if op&(fsnotify.Remove|fsnotify.Rename) != 0 {
		kind |= notifybus.Delete
	}
	return kind
}

func main() {
	if len(os.Args) < 2 {
		fmt.Printf("Usage: notifybridge <watch-dir>\n")
		os.Exit(1)
	}
	dir := os.Args[1]

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		fmt.Printf("fsnotify: %v\n", err)
		os.Exit(1)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		fmt.Printf("watch %s: %v\n", dir, err)
		os.Exit(1)
	}

	bus := notifybus.New(1024)
	bus.AddWatch(dir, notifybus.Create|notifybus.Modify|notifybus.Delete|notifybus.Access)

	fmt.Printf("bridging host events from %s into the notification bus\n", dir)
	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			kind := translate(ev.Op)
			if kind == 0 {
				continue
			}
			if bus.Trigger(kind, ev.Name) {
				fmt.Printf("forwarded kind=%d path=%s\n", kind, ev.Name)
			}
		case werr, ok := <-watcher.Errors:
			if !ok {
				return
			}
			fmt.Printf("fsnotify error: %v\n", werr)
		}
	}
}
