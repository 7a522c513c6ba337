package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"extmem/kernel"
	"extmem/kernel/mm"
	"extmem/kernel/mm/flashmap"
	"extmem/kernel/mm/himem"
	"extmem/kernel/mm/vmm"
	"extmem/platform"
)

// session runs script operations against a board. Handles returned by the
// bank-switch allocator are given short names (p0, w0, ...) so later lines
// can refer to them.
type session struct {
	b   *board
	out io.Writer

	// strict stops the script at the first failed operation.
	strict bool

	phys    map[string]*himem.PhysHandle
	windows map[string]*himem.WindowHandle
	nextID  int
}

func newSession(b *board, out io.Writer) *session {
	return &session{
		b:       b,
		out:     out,
		phys:    make(map[string]*himem.PhysHandle),
		windows: make(map[string]*himem.WindowHandle),
	}
}

// opError is an allocator error reported by a script operation.
type opError struct {
	line int
	err  *kernel.Error
}

func (e *opError) Error() string {
	return fmt.Sprintf("line %d: %s: %s", e.line, e.err.Module, e.err.Message)
}

// run executes every line of r. Blank lines and lines starting with '#' are
// skipped. Malformed lines abort the script; allocator errors are printed
// and only abort it in strict mode.
func (s *session) run(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for lineNo := 1; scanner.Scan(); lineNo++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		result, kerr, err := s.exec(fields[0], fields[1:])
		if err != nil {
			return fmt.Errorf("line %d: %s: %w", lineNo, fields[0], err)
		}

		if kerr != nil {
			fmt.Fprintf(s.out, "%s -> error: %s\n", line, kerr.Message)
			if s.strict {
				return &opError{line: lineNo, err: kerr}
			}
			continue
		}

		if result != "" {
			fmt.Fprintf(s.out, "%s -> %s\n", line, result)
		}
	}
	return scanner.Err()
}

// exec runs one operation. It returns the text to report on success, the
// allocator error on failure or a usage error for malformed operations.
func (s *session) exec(op string, args []string) (string, *kernel.Error, error) {
	switch op {
	case "reserve", "map", "unmap", "maxfree", "v2p", "p2v", "caps", "dump":
		if s.b.space == nil {
			return "", nil, fmt.Errorf("platform %s has no MMU regions", s.b.desc.Name)
		}
		return s.execVMM(op, args)
	case "mmap", "munmap", "freepages", "mmaps":
		if s.b.flash == nil {
			return "", nil, fmt.Errorf("platform %s has no MMU regions", s.b.desc.Name)
		}
		return s.execFlash(op, args)
	case "halloc", "walloc", "hmap", "hunmap", "hfree", "wfree", "hdump":
		if s.b.banks == nil {
			return "", nil, fmt.Errorf("platform %s has no bank window", s.b.desc.Name)
		}
		return s.execBanks(op, args)
	}
	return "", nil, errors.New("unknown operation")
}

func (s *session) execVMM(op string, args []string) (string, *kernel.Error, error) {
	space := s.b.space

	switch op {
	case "reserve":
		// reserve <size> <caps> <target>
		if err := wantArgs(args, 3); err != nil {
			return "", nil, err
		}
		size, caps, target, err := parseSizeCapsTarget(args[0], args[1], args[2])
		if err != nil {
			return "", nil, err
		}
		vaddr, kerr := space.Reserve(size, caps, target)
		return hex(vaddr), kerr, nil

	case "map":
		// map <paddr> <size> <target> <caps> [shared]
		if len(args) != 4 && !(len(args) == 5 && args[4] == "shared") {
			return "", nil, fmt.Errorf("usage: map <paddr> <size> <target> <caps> [shared]")
		}
		paddr, err := parseAddr(args[0])
		if err != nil {
			return "", nil, err
		}
		size, caps, target, err := parseSizeCapsTarget(args[1], args[3], args[2])
		if err != nil {
			return "", nil, err
		}
		var flags vmm.Flags
		if len(args) == 5 {
			flags |= vmm.FlagShared
		}
		vaddr, kerr := space.Map(paddr, size, target, caps, flags)
		if kerr == vmm.ErrAlreadyMapped {
			return hex(vaddr) + " (already mapped)", nil, nil
		}
		return hex(vaddr), kerr, nil

	case "unmap":
		if err := wantArgs(args, 1); err != nil {
			return "", nil, err
		}
		vaddr, err := parseAddr(args[0])
		if err != nil {
			return "", nil, err
		}
		return "ok", space.Unmap(vaddr), nil

	case "maxfree":
		if err := wantArgs(args, 2); err != nil {
			return "", nil, err
		}
		_, caps, target, err := parseSizeCapsTarget("0", args[0], args[1])
		if err != nil {
			return "", nil, err
		}
		size, kerr := space.MaxFreeBlock(caps, target)
		return hex(size), kerr, nil

	case "v2p":
		if err := wantArgs(args, 1); err != nil {
			return "", nil, err
		}
		vaddr, err := parseAddr(args[0])
		if err != nil {
			return "", nil, err
		}
		paddr, target, kerr := space.VirtualToPhysical(vaddr)
		return fmt.Sprintf("%s:%s", target, hex(paddr)), kerr, nil

	case "p2v":
		// p2v <paddr> <target> <data|instruction>
		if err := wantArgs(args, 3); err != nil {
			return "", nil, err
		}
		paddr, err := parseAddr(args[0])
		if err != nil {
			return "", nil, err
		}
		_, _, target, err := parseSizeCapsTarget("0", "read", args[1])
		if err != nil {
			return "", nil, err
		}
		kind, err := parseKind(args[2])
		if err != nil {
			return "", nil, err
		}
		vaddr, kerr := space.PhysicalToVirtual(paddr, target, kind)
		return hex(vaddr), kerr, nil

	case "caps":
		if err := wantArgs(args, 1); err != nil {
			return "", nil, err
		}
		paddr, err := parseAddr(args[0])
		if err != nil {
			return "", nil, err
		}
		caps, kerr := space.PhysicalCaps(paddr)
		return caps.String(), kerr, nil
	}

	// dump
	return "", nil, space.Dump(s.out)
}

func (s *session) execFlash(op string, args []string) (string, *kernel.Error, error) {
	flash := s.b.flash

	switch op {
	case "mmap":
		// mmap <src> <size> <data|instruction>
		if err := wantArgs(args, 3); err != nil {
			return "", nil, err
		}
		src, err := parseAddr(args[0])
		if err != nil {
			return "", nil, err
		}
		size, err := parseAddr(args[1])
		if err != nil {
			return "", nil, err
		}
		kind, err := parseKind(args[2])
		if err != nil {
			return "", nil, err
		}
		ptr, h, kerr := flash.Mmap(src, size, kind)
		return fmt.Sprintf("%s handle %d", hex(ptr), h), kerr, nil

	case "munmap":
		if err := wantArgs(args, 1); err != nil {
			return "", nil, err
		}
		h, err := strconv.ParseUint(args[0], 0, 32)
		if err != nil {
			return "", nil, err
		}
		return "ok", flash.Munmap(flashmap.Handle(h)), nil

	case "freepages":
		if err := wantArgs(args, 1); err != nil {
			return "", nil, err
		}
		kind, err := parseKind(args[0])
		if err != nil {
			return "", nil, err
		}
		return strconv.FormatUint(uint64(flash.FreePages(kind)), 10), nil, nil
	}

	// mmaps
	return "", nil, flash.Dump(s.out)
}

func (s *session) execBanks(op string, args []string) (string, *kernel.Error, error) {
	banks := s.b.banks

	switch op {
	case "halloc", "walloc":
		if err := wantArgs(args, 1); err != nil {
			return "", nil, err
		}
		size, err := parseAddr(args[0])
		if err != nil {
			return "", nil, err
		}

		if op == "halloc" {
			h, kerr := banks.AllocPhysical(mm.Size(size))
			if kerr != nil {
				return "", kerr, nil
			}
			name := s.name("p")
			s.phys[name] = h
			return name, nil, nil
		}

		h, kerr := banks.AllocWindow(mm.Size(size))
		if kerr != nil {
			return "", kerr, nil
		}
		name := s.name("w")
		s.windows[name] = h
		return fmt.Sprintf("%s at %s", name, hex(h.Addr())), nil, nil

	case "hmap":
		// hmap <phys> <window> <physOffset> <winOffset> <length>
		if err := wantArgs(args, 5); err != nil {
			return "", nil, err
		}
		ph, wh, err := s.handles(args[0], args[1])
		if err != nil {
			return "", nil, err
		}
		var nums [3]uintptr
		for i := range nums {
			if nums[i], err = parseAddr(args[2+i]); err != nil {
				return "", nil, err
			}
		}
		ptr, kerr := banks.Map(ph, wh, mm.Size(nums[0]), mm.Size(nums[1]), mm.Size(nums[2]))
		return hex(ptr), kerr, nil

	case "hunmap":
		// hunmap <window> <ptr> <length>
		if err := wantArgs(args, 3); err != nil {
			return "", nil, err
		}
		_, wh, err := s.handles("", args[0])
		if err != nil {
			return "", nil, err
		}
		ptr, err := parseAddr(args[1])
		if err != nil {
			return "", nil, err
		}
		length, err := parseAddr(args[2])
		if err != nil {
			return "", nil, err
		}
		return "ok", banks.Unmap(wh, ptr, mm.Size(length)), nil

	case "hfree":
		if err := wantArgs(args, 1); err != nil {
			return "", nil, err
		}
		ph, _, err := s.handles(args[0], "")
		if err != nil {
			return "", nil, err
		}
		if kerr := banks.FreePhysical(ph); kerr != nil {
			return "", kerr, nil
		}
		delete(s.phys, args[0])
		return "ok", nil, nil

	case "wfree":
		if err := wantArgs(args, 1); err != nil {
			return "", nil, err
		}
		_, wh, err := s.handles("", args[0])
		if err != nil {
			return "", nil, err
		}
		if kerr := banks.FreeWindow(wh); kerr != nil {
			return "", kerr, nil
		}
		delete(s.windows, args[0])
		return "ok", nil, nil
	}

	// hdump
	return "", nil, banks.Dump(s.out)
}

func (s *session) name(prefix string) string {
	name := fmt.Sprintf("%s%d", prefix, s.nextID)
	s.nextID++
	return name
}

// handles resolves the named handles. Empty names are skipped.
func (s *session) handles(physName, winName string) (*himem.PhysHandle, *himem.WindowHandle, error) {
	var (
		ph *himem.PhysHandle
		wh *himem.WindowHandle
		ok bool
	)
	if physName != "" {
		if ph, ok = s.phys[physName]; !ok {
			return nil, nil, fmt.Errorf("unknown physical handle %q", physName)
		}
	}
	if winName != "" {
		if wh, ok = s.windows[winName]; !ok {
			return nil, nil, fmt.Errorf("unknown window handle %q", winName)
		}
	}
	return ph, wh, nil
}

func wantArgs(args []string, n int) error {
	if len(args) != n {
		return fmt.Errorf("expected %d argument(s), got %d", n, len(args))
	}
	return nil
}

func parseAddr(s string) (uintptr, error) {
	v, err := platform.ParseAddress(s)
	return uintptr(v), err
}

// parseSizeCapsTarget parses a size, a comma separated capability list and a
// comma separated target list.
func parseSizeCapsTarget(size, caps, target string) (uintptr, mm.Caps, mm.Target, error) {
	sz, err := parseAddr(size)
	if err != nil {
		return 0, 0, 0, err
	}

	c, kerr := mm.ParseCaps(strings.Split(caps, ","))
	if kerr != nil {
		return 0, 0, 0, fmt.Errorf("caps %q: %w", caps, kerr)
	}

	t, kerr := mm.ParseTarget(strings.Split(target, ","))
	if kerr != nil {
		return 0, 0, 0, fmt.Errorf("target %q: %w", target, kerr)
	}
	return sz, c, t, nil
}

func parseKind(s string) (mm.AddrKind, error) {
	switch s {
	case "data", "d":
		return mm.AddrData, nil
	case "instruction", "inst", "i":
		return mm.AddrInstruction, nil
	}
	return 0, fmt.Errorf("unknown address kind %q", s)
}

func hex(v uintptr) string {
	return fmt.Sprintf("0x%x", v)
}
