//go:build linux

// File: internal/backend/uring/ring.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Minimal io_uring instance: setup, ring mapping, single-entry submission and
// completion reaping. Layouts follow include/uapi/linux/io_uring.h.

package uring

import (
	"sync/atomic"
	"unsafe"

	"github.com/momentics/hioload-sock/api"
	"github.com/momentics/hioload-sock/internal/errmap"
	"golang.org/x/sys/unix"
)

// io_uring opcodes used by this strategy.
const (
	opNop     = 0
	opSendmsg = 9
	opRecvmsg = 10
	opAccept  = 13
	opConnect = 16
	opSend    = 26
	opRecv    = 27
)

const (
	enterGetEvents = 1 << 0
	featSingleMmap = 1 << 0

	offSQRing = 0
	offCQRing = 0x8000000
	offSQEs   = 0x10000000
)

type sqRingOffsets struct {
	head        uint32
	tail        uint32
	ringMask    uint32
	ringEntries uint32
	flags       uint32
	dropped     uint32
	array       uint32
	resv1       uint32
	userAddr    uint64
}

type cqRingOffsets struct {
	head        uint32
	tail        uint32
	ringMask    uint32
	ringEntries uint32
	overflow    uint32
	cqes        uint32
	flags       uint32
	resv1       uint32
	userAddr    uint64
}

type params struct {
	sqEntries    uint32
	cqEntries    uint32
	flags        uint32
	sqThreadCPU  uint32
	sqThreadIdle uint32
	features     uint32
	wqFd         uint32
	resv         [3]uint32
	sqOff        sqRingOffsets
	cqOff        cqRingOffsets
}

// sqe is the 64-byte submission queue entry.
type sqe struct {
	opcode      uint8
	flags       uint8
	ioprio      uint16
	fd          int32
	off         uint64
	addr        uint64
	len         uint32
	opFlags     uint32
	userData    uint64
	bufIndex    uint16
	personality uint16
	spliceFdIn  int32
	addr3       uint64
	_           uint64
}

// cqe is the 16-byte completion queue entry.
type cqe struct {
	userData uint64
	res      int32
	flags    uint32
}

// Ring is one private submission/completion queue pair. It is not safe for
// concurrent use: the owning handle pair issues one operation at a time.
type Ring struct {
	fd      int
	entries uint32

	sqMem  []byte
	cqMem  []byte
	sqeMem []byte

	sqHead  *uint32
	sqTail  *uint32
	sqMask  uint32
	sqArray []uint32
	sqes    []sqe

	cqHead *uint32
	cqTail *uint32
	cqMask uint32
	cqes   []cqe

	seq uint64
}

// newRing sets up an io_uring instance with the requested number of entries.
func newRing(entries uint32) (*Ring, error) {
	var p params
	fd, _, errno := unix.Syscall(unix.SYS_IO_URING_SETUP, uintptr(entries), uintptr(unsafe.Pointer(&p)), 0)
	if errno != 0 {
		if errno == unix.ENOSYS || errno == unix.EPERM {
			return nil, api.WrapNative("io_uring_setup", api.ErrCodePlatformUnsupported, int(errno), errno)
		}
		return nil, errmap.Map("io_uring_setup", errno)
	}
	r := &Ring{fd: int(fd), entries: p.sqEntries}
	if err := r.mmap(&p); err != nil {
		r.Close()
		return nil, errmap.Map("io_uring_mmap", err)
	}
	return r, nil
}

func (r *Ring) mmap(p *params) error {
	sqSize := int(p.sqOff.array) + int(p.sqEntries)*4
	cqSize := int(p.cqOff.cqes) + int(p.cqEntries)*int(unsafe.Sizeof(cqe{}))
	single := p.features&featSingleMmap != 0
	if single && cqSize > sqSize {
		sqSize = cqSize
	}

	var err error
	r.sqMem, err = unix.Mmap(r.fd, offSQRing, sqSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_POPULATE)
	if err != nil {
		return err
	}
	if single {
		r.cqMem = r.sqMem
	} else {
		r.cqMem, err = unix.Mmap(r.fd, offCQRing, cqSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_POPULATE)
		if err != nil {
			return err
		}
	}
	sqeSize := int(p.sqEntries) * int(unsafe.Sizeof(sqe{}))
	r.sqeMem, err = unix.Mmap(r.fd, offSQEs, sqeSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_POPULATE)
	if err != nil {
		return err
	}

	r.sqHead = (*uint32)(unsafe.Pointer(&r.sqMem[p.sqOff.head]))
	r.sqTail = (*uint32)(unsafe.Pointer(&r.sqMem[p.sqOff.tail]))
	r.sqMask = *(*uint32)(unsafe.Pointer(&r.sqMem[p.sqOff.ringMask]))
	r.sqArray = unsafe.Slice((*uint32)(unsafe.Pointer(&r.sqMem[p.sqOff.array])), p.sqEntries)
	r.sqes = unsafe.Slice((*sqe)(unsafe.Pointer(&r.sqeMem[0])), p.sqEntries)

	r.cqHead = (*uint32)(unsafe.Pointer(&r.cqMem[p.cqOff.head]))
	r.cqTail = (*uint32)(unsafe.Pointer(&r.cqMem[p.cqOff.tail]))
	r.cqMask = *(*uint32)(unsafe.Pointer(&r.cqMem[p.cqOff.ringMask]))
	r.cqes = unsafe.Slice((*cqe)(unsafe.Pointer(&r.cqMem[p.cqOff.cqes])), p.cqEntries)
	return nil
}

// Entries is the submission queue capacity granted by the kernel.
func (r *Ring) Entries() uint32 { return r.entries }

// push places e into the next free submission slot without submitting it.
// A full queue is reported as ErrCodeResourceExhausted.
func (r *Ring) push(e *sqe) error {
	head := atomic.LoadUint32(r.sqHead)
	tail := *r.sqTail
	if tail-head >= r.entries {
		return api.NewError("io_uring_get_sqe", api.ErrCodeResourceExhausted)
	}
	idx := tail & r.sqMask
	r.sqes[idx] = *e
	r.sqArray[idx] = idx
	atomic.StoreUint32(r.sqTail, tail+1)
	return nil
}

// unpush withdraws the newest entry the kernel has not consumed yet.
func (r *Ring) unpush() {
	tail := *r.sqTail
	if tail != atomic.LoadUint32(r.sqHead) {
		atomic.StoreUint32(r.sqTail, tail-1)
	}
}

func (r *Ring) enter(toSubmit, minComplete, flags uint32) error {
	_, _, errno := unix.Syscall6(unix.SYS_IO_URING_ENTER, uintptr(r.fd),
		uintptr(toSubmit), uintptr(minComplete), uintptr(flags), 0, 0)
	if errno != 0 {
		return errno
	}
	return nil
}

// do submits e and blocks until its completion arrives. It returns the raw
// cqe result: a non-negative value on success or a negated errno.
//
// Precondition: no other operation is outstanding on r. The completion is
// still matched against the submission's user_data so that a stale entry is
// never mistaken for this one.
func (r *Ring) do(op string, e *sqe) (int32, error) {
	r.seq++
	e.userData = r.seq
	if err := r.push(e); err != nil {
		return 0, err
	}

	for atomic.LoadUint32(r.sqHead) != *r.sqTail {
		err := r.enter(1, 1, enterGetEvents)
		if err == nil {
			break
		}
		if err == unix.EINTR {
			continue
		}
		r.unpush()
		if err == unix.EAGAIN || err == unix.EBUSY {
			return 0, api.WrapNative(op, api.ErrCodeResourceExhausted, int(err.(unix.Errno)), err)
		}
		return 0, errmap.Map(op, err)
	}
	return r.wait(op, e.userData)
}

func (r *Ring) wait(op string, want uint64) (int32, error) {
	for {
		head := atomic.LoadUint32(r.cqHead)
		if head != atomic.LoadUint32(r.cqTail) {
			c := r.cqes[head&r.cqMask]
			atomic.StoreUint32(r.cqHead, head+1)
			if c.userData == want {
				return c.res, nil
			}
			continue
		}
		if err := r.enter(0, 1, enterGetEvents); err != nil && err != unix.EINTR {
			return 0, errmap.Map(op, err)
		}
	}
}

// Close unmaps the rings and releases the instance. Safe to call twice.
func (r *Ring) Close() error {
	if r == nil || r.fd < 0 {
		return nil
	}
	if r.sqeMem != nil {
		unix.Munmap(r.sqeMem)
	}
	if r.cqMem != nil && len(r.cqMem) > 0 && (len(r.sqMem) == 0 || &r.cqMem[0] != &r.sqMem[0]) {
		unix.Munmap(r.cqMem)
	}
	if r.sqMem != nil {
		unix.Munmap(r.sqMem)
	}
	r.sqMem, r.cqMem, r.sqeMem = nil, nil, nil
	r.sqes, r.cqes, r.sqArray = nil, nil, nil
	fd := r.fd
	r.fd = -1
	return unix.Close(fd)
}
