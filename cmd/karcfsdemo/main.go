// Command karcfsdemo wires the page allocator, ARC cache, notification
// bus, and VFS hook layer together against a real host directory and a
// real mmap'd memory region, exercising the whole stack the way
// biscuit/src/mkfs/mkfs.go exercises its filesystem package against a
// real disk image instead of a test double.
package main

import (
	"fmt"
	"math/rand"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"

	"karcfs/internal/randname"
	"karcfs/notifybus"
	"karcfs/pagealloc"
	"karcfs/vfs"
	"karcfs/vfshook"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Printf("Usage: karcfsdemo <root-dir>\n")
		os.Exit(1)
	}
	root := os.Args[1]

	region, err := unix.Mmap(-1, 0, 16*pagealloc.PageSize,
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		fmt.Printf("mmap region: %v\n", err)
		os.Exit(1)
	}
	defer unix.Munmap(region)

	alloc := pagealloc.New(pagealloc.Hybrid)
	base := uintptr(unsafe.Pointer(&region[0]))
	if kerr := alloc.Init(base, len(region)); kerr != 0 {
		fmt.Printf("pagealloc init: %s\n", kerr)
		os.Exit(1)
	}
	extent, kerr := alloc.AllocPages(4, pagealloc.PageSize)
	if kerr != 0 {
		fmt.Printf("pagealloc alloc: %s\n", kerr)
		os.Exit(1)
	}
	fmt.Printf("reserved demo extent at 0x%x via %s allocator\n", extent, alloc.Name())

	osfs, err := vfs.NewOSFile(root)
	if err != nil {
		fmt.Printf("vfs root: %v\n", err)
		os.Exit(1)
	}
	bus := notifybus.New(1024)
	bus.AddWatch("/", notifybus.Create|notifybus.Modify|notifybus.Delete|notifybus.Access)
	hook := vfshook.New(osfs, 128, bus)

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 20; i++ {
		path := randname.Path(rng, "/demo")
		if err := hook.WriteFile(path, []byte(fmt.Sprintf("payload-%d", i))); err != nil {
			fmt.Printf("write %s: %v\n", path, err)
			continue
		}
		if _, err := hook.ReadFile(path); err != nil {
			fmt.Printf("read %s: %v\n", path, err)
		}
	}

	st := hook.Stats()
	fmt.Printf("cache: t1=%d t2=%d b1=%d b2=%d p=%d hits=%d misses=%d\n",
		st.T1, st.T2, st.B1, st.B2, st.P, st.Hits, st.Misses)

	for bus.PendingCount() > 0 {
		events := bus.ReadEvents(8)
		for _, e := range events {
			fmt.Printf("event kind=%d path=%s\n", e.Kind, e.Path)
		}
	}
}
