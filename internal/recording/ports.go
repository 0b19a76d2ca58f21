package recording

import (
	"math/rand"
	"net"
	"sync"

	"github.com/pkg/errors"
)

// PortAllocator hands out loopback UDP ports for the muxer to listen on.
// A returned port P is probed free together with P+1 (RTCP lives on P+1 in
// the synthesized SDP). Probe sockets are closed before returning, so the
// allocator also keeps an in-process reservation set: two concurrent
// recordings cannot race to the same pair before the muxer binds it.
type PortAllocator struct {
	min     uint16
	max     uint16
	retries int

	mu       sync.Mutex
	reserved map[uint16]struct{}
}

func NewPortAllocator(min, max uint16, retries int) *PortAllocator {
	if retries < 50 {
		retries = 50
	}
	return &PortAllocator{
		min:      min,
		max:      max,
		retries:  retries,
		reserved: make(map[uint16]struct{}),
	}
}

// Allocate returns an even port P on 127.0.0.1 with both P and P+1 free.
func (a *PortAllocator) Allocate() (uint16, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	span := int(a.max-a.min) - 1
	if span < 2 {
		return 0, errors.Wrap(ErrResourceExhaustion, "port range too small")
	}

	for i := 0; i < a.retries; i++ {
		port := a.min + uint16(rand.Intn(span))
		port &^= 1 // RTP on the even port, RTCP on the odd one

		if _, taken := a.reserved[port]; taken {
			continue
		}
		if !probeUDP(port) || !probeUDP(port+1) {
			continue
		}

		a.reserved[port] = struct{}{}
		return port, nil
	}

	return 0, errors.Wrapf(ErrResourceExhaustion, "after %d attempts in [%d, %d]", a.retries, a.min, a.max)
}

// Release returns a previously allocated port pair to the pool.
func (a *PortAllocator) Release(port uint16) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.reserved, port)
}

func probeUDP(port uint16) bool {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{
		IP:   net.IPv4(127, 0, 0, 1),
		Port: int(port),
	})
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}
