package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/memscape/eastl"
	"github.com/memscape/eastl/abi"
	"github.com/memscape/eastl/deque"
	"github.com/memscape/eastl/hashtable"
	"github.com/memscape/eastl/list"
	"github.com/memscape/eastl/mem"
	"github.com/memscape/eastl/rbtree"
	"github.com/memscape/eastl/snapshot"
	"github.com/memscape/eastl/str"
	"github.com/memscape/eastl/vector"
	"github.com/memscape/eastl/vectormap"
)

func main() {
	var (
		dumpFile    = flag.String("dump", "", "Path to a raw memory dump")
		family      = flag.String("family", "", "Container family (vector|string|list|deque|queue|hash_map|hash_set|map|set|vector_map)")
		addrStr     = flag.String("addr", "", "Control block address (hex or decimal)")
		ptrSize     = flag.Uint("ptr", 8, "Pointer size of the dumped process (4 or 8)")
		keyName     = flag.String("key", "u32", "Key type for map/set families")
		valName     = flag.String("val", "u32", "Value type for map families")
		elemName    = flag.String("elem", "u32", "Element type for sequence families")
		storePath   = flag.String("store", "", "Path to a snapshot store")
		snapshotID  = flag.String("snapshot", "", "Load this snapshot id from the store instead of a dump")
		capture     = flag.Bool("capture", false, "Capture the container into the store and print the id")
		listIDs     = flag.Bool("list", false, "List snapshot ids in the store and exit")
		limit       = flag.Uint("limit", 64, "Maximum entries to print")
		verbose     = flag.Bool("v", false, "Verbose logging")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	logger := zap.NewNop()
	if *verbose {
		logger, _ = zap.NewDevelopment()
	}
	eastl.SetLogger(logger)

	opts := options{
		dumpFile:   *dumpFile,
		family:     *family,
		addr:       *addrStr,
		ptrSize:    uint32(*ptrSize),
		keyName:    *keyName,
		valName:    *valName,
		elemName:   *elemName,
		storePath:  *storePath,
		snapshotID: *snapshotID,
		limit:      int(*limit),
	}

	if *listIDs {
		if err := runList(opts); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if opts.dumpFile == "" && opts.snapshotID == "" {
		fmt.Fprintln(os.Stderr, "Usage: inspect -dump <image.bin> -family <name> -addr <hex> [-ptr 4|8] [-elem u32]")
		fmt.Fprintln(os.Stderr, "       inspect -store <file.db> -snapshot <id>")
		fmt.Fprintln(os.Stderr, "       inspect -store <file.db> -list")
		fmt.Fprintln(os.Stderr, "       inspect -dump <image.bin> ... -i  (interactive mode)")
		os.Exit(1)
	}

	if *interactive {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			fmt.Fprintln(os.Stderr, "Error: interactive mode needs a terminal")
			os.Exit(1)
		}
		if err := runInteractive(opts); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(opts, *capture); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	dumpFile   string
	family     string
	addr       string
	ptrSize    uint32
	keyName    string
	valName    string
	elemName   string
	storePath  string
	snapshotID string
	limit      int
}

// entry is one displayable element: a position or key, and its value.
type entry struct {
	key   string
	value string
}

// inspection is a decoded container ready for display or capture.
type inspection struct {
	view    *mem.View
	profile *abi.Profile
	src     snapshot.Source
	family  string
	addr    uint64
	length  uint64
	entries []entry
	more    bool
}

func run(o options, capture bool) error {
	ins, err := load(o)
	if err != nil {
		return err
	}

	fmt.Printf("Container: %s at %#x (%d-bit)\n", ins.family, ins.addr, ins.profile.PtrSize*8)
	fmt.Printf("Length: %d\n\n", ins.length)
	for _, e := range ins.entries {
		fmt.Printf("  %s = %s\n", e.key, e.value)
	}
	if ins.more {
		fmt.Printf("  ... (%d entries not shown)\n", ins.length-uint64(len(ins.entries)))
	}

	if capture {
		if o.storePath == "" {
			return fmt.Errorf("capture needs -store")
		}
		img, err := snapshot.Capture(ins.view, ins.family, ins.src)
		if err != nil {
			return err
		}
		s, err := snapshot.Open(o.storePath)
		if err != nil {
			return err
		}
		defer s.Close()
		if err := s.Put(img); err != nil {
			return err
		}
		fmt.Printf("\nCaptured snapshot %s (%d blocks)\n", img.ID, len(img.Blocks))
	}
	return nil
}

func runList(o options) error {
	if o.storePath == "" {
		return fmt.Errorf("list needs -store")
	}
	s, err := snapshot.Open(o.storePath)
	if err != nil {
		return err
	}
	defer s.Close()

	ids, err := s.List()
	if err != nil {
		return err
	}
	for _, id := range ids {
		img, err := s.Get(id)
		if err != nil {
			return err
		}
		fmt.Printf("%s  %-10s addr=%#x blocks=%d captured=%s\n",
			id, img.Family, img.Addr, len(img.Blocks), img.CapturedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

// load opens the dump or snapshot and decodes the container behind a
// read-only handle.
func load(o options) (*inspection, error) {
	view, family, addr, err := open(o)
	if err != nil {
		return nil, err
	}
	profile, err := profileFor(view.PtrSize)
	if err != nil {
		return nil, err
	}

	ins := &inspection{view: view, profile: profile, family: family, addr: addr}
	if err := ins.decode(o); err != nil {
		return nil, err
	}
	return ins, nil
}

func open(o options) (view *mem.View, family string, addr uint64, err error) {
	family = o.family

	if o.snapshotID != "" {
		if o.storePath == "" {
			return nil, "", 0, fmt.Errorf("snapshot needs -store")
		}
		s, err := snapshot.Open(o.storePath)
		if err != nil {
			return nil, "", 0, err
		}
		defer s.Close()
		img, err := s.Get(o.snapshotID)
		if err != nil {
			return nil, "", 0, err
		}
		view, err := img.Restore()
		if err != nil {
			return nil, "", 0, err
		}
		if family == "" {
			family = img.Family
		}
		eastl.Logger().Info("restored snapshot",
			zap.String("id", img.ID),
			zap.String("family", family),
			zap.Uint64("addr", img.Addr))
		return view, family, img.Addr, nil
	}

	data, err := os.ReadFile(o.dumpFile)
	if err != nil {
		return nil, "", 0, fmt.Errorf("read dump: %w", err)
	}
	if o.addr == "" {
		return nil, "", 0, fmt.Errorf("a raw dump needs -addr")
	}
	addr, err = parseAddr(o.addr)
	if err != nil {
		return nil, "", 0, err
	}
	view = mem.NewView(mem.NewBufferFrom(data), o.ptrSize)
	eastl.Logger().Info("loaded dump",
		zap.String("file", o.dumpFile),
		zap.Int("bytes", len(data)),
		zap.Uint64("addr", addr))
	return view, family, addr, nil
}

func parseAddr(s string) (uint64, error) {
	s = strings.TrimPrefix(strings.ToLower(s), "0x")
	addr, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("bad address %q: %w", s, err)
	}
	return addr, nil
}

func profileFor(ptrSize uint32) (*abi.Profile, error) {
	switch ptrSize {
	case 4:
		return abi.Profile32(), nil
	case 8:
		return abi.Profile64(), nil
	default:
		return nil, fmt.Errorf("unsupported pointer size %d", ptrSize)
	}
}

func parseType(name string) (abi.Type, error) {
	switch name {
	case "u8":
		return abi.TypeU8, nil
	case "u16":
		return abi.TypeU16, nil
	case "u32":
		return abi.TypeU32, nil
	case "u64":
		return abi.TypeU64, nil
	case "i8":
		return abi.TypeI8, nil
	case "i16":
		return abi.TypeI16, nil
	case "i32":
		return abi.TypeI32, nil
	case "i64":
		return abi.TypeI64, nil
	case "f32":
		return abi.TypeF32, nil
	case "f64":
		return abi.TypeF64, nil
	case "string":
		return str.Type, nil
	default:
		return nil, fmt.Errorf("unknown type %q", name)
	}
}

// decode builds a read-only handle for the family and collects entries up
// to the display limit.
func (ins *inspection) decode(o options) error {
	view, p, addr := ins.view, ins.profile, ins.addr
	add := func(k string, v any) bool {
		if o.limit > 0 && len(ins.entries) >= o.limit {
			ins.more = true
			return false
		}
		ins.entries = append(ins.entries, entry{key: k, value: fmt.Sprintf("%v", v)})
		return true
	}

	switch ins.family {
	case "vector":
		elem, err := parseType(o.elemName)
		if err != nil {
			return err
		}
		v, err := vector.At(view, p, addr, elem, nil)
		if err != nil {
			return err
		}
		ins.src = v
		if ins.length, err = v.Len(); err != nil {
			return err
		}
		return v.Each(func(i uint64, val any) bool { return add(fmt.Sprintf("[%d]", i), val) })

	case "string":
		s, err := str.At(view, p, addr, nil)
		if err != nil {
			return err
		}
		ins.src = s
		if ins.length, err = s.Len(); err != nil {
			return err
		}
		content, err := s.String()
		if err != nil {
			return err
		}
		heap, err := s.IsHeap()
		if err != nil {
			return err
		}
		add("content", strconv.Quote(content))
		add("heap", heap)
		return nil

	case "list":
		elem, err := parseType(o.elemName)
		if err != nil {
			return err
		}
		l, err := list.At(view, p, addr, elem, nil)
		if err != nil {
			return err
		}
		ins.src = l
		if ins.length, err = l.Len(); err != nil {
			return err
		}
		i := 0
		return l.Each(func(val any) bool {
			ok := add(fmt.Sprintf("[%d]", i), val)
			i++
			return ok
		})

	case "deque", "queue":
		elem, err := parseType(o.elemName)
		if err != nil {
			return err
		}
		d, err := deque.At(view, p, addr, elem, nil)
		if err != nil {
			return err
		}
		ins.src = d
		if ins.length, err = d.Len(); err != nil {
			return err
		}
		i := 0
		return d.Each(func(val any) bool {
			ok := add(fmt.Sprintf("[%d]", i), val)
			i++
			return ok
		})

	case "hash_map":
		key, err := parseType(o.keyName)
		if err != nil {
			return err
		}
		val, err := parseType(o.valName)
		if err != nil {
			return err
		}
		m, err := hashtable.MapAt(view, p, addr, key, val, nil)
		if err != nil {
			return err
		}
		ins.src = m
		if ins.length, err = m.Len(); err != nil {
			return err
		}
		return m.Each(func(k, v any) bool { return add(fmt.Sprintf("%v", k), v) })

	case "hash_set":
		key, err := parseType(o.keyName)
		if err != nil {
			return err
		}
		s, err := hashtable.SetAt(view, p, addr, key, nil)
		if err != nil {
			return err
		}
		ins.src = s
		if ins.length, err = s.Len(); err != nil {
			return err
		}
		return s.EachKey(func(k any) bool { return add(fmt.Sprintf("%v", k), "∈") })

	case "map":
		key, err := parseType(o.keyName)
		if err != nil {
			return err
		}
		val, err := parseType(o.valName)
		if err != nil {
			return err
		}
		m, err := rbtree.MapAt(view, p, addr, key, val, nil)
		if err != nil {
			return err
		}
		ins.src = m
		if ins.length, err = m.Len(); err != nil {
			return err
		}
		return m.Each(func(k, v any) bool { return add(fmt.Sprintf("%v", k), v) })

	case "set":
		key, err := parseType(o.keyName)
		if err != nil {
			return err
		}
		s, err := rbtree.SetAt(view, p, addr, key, nil)
		if err != nil {
			return err
		}
		ins.src = s
		if ins.length, err = s.Len(); err != nil {
			return err
		}
		return s.Each(func(k, _ any) bool { return add(fmt.Sprintf("%v", k), "∈") })

	case "vector_map":
		key, err := parseType(o.keyName)
		if err != nil {
			return err
		}
		val, err := parseType(o.valName)
		if err != nil {
			return err
		}
		m, err := vectormap.At(view, p, addr, key, val, nil)
		if err != nil {
			return err
		}
		ins.src = m
		if ins.length, err = m.Len(); err != nil {
			return err
		}
		return m.Each(func(k, v any) bool { return add(fmt.Sprintf("%v", k), v) })

	case "":
		return fmt.Errorf("missing -family")
	default:
		return fmt.Errorf("unknown family %q", ins.family)
	}
}
