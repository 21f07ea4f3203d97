package graph

import (
	"bytes"
	"runtime"
	"strconv"
	"sync/atomic"
)

// ownerGuard enforces single-goroutine access. The first goroutine to call
// check becomes the owner.
type ownerGuard struct {
	id atomic.Int64
}

// check panics if called from a goroutine other than the owner.
func (o *ownerGuard) check() {
	gid := goroutineID()
	if o.id.CompareAndSwap(0, gid) {
		return
	}
	if owner := o.id.Load(); owner != gid {
		panic(&GraphError{
			Code:    ErrCodeWrongGoroutine,
			Message: "graph owned by goroutine " + strconv.FormatInt(owner, 10) + ", called from " + strconv.FormatInt(gid, 10),
		})
	}
}

// onOwner reports whether the calling goroutine is the owner. It never
// claims ownership.
func (o *ownerGuard) onOwner() bool {
	return o.id.Load() == goroutineID()
}

// goroutineID parses the current goroutine's id from its stack header,
// "goroutine 123 [running]:".
func goroutineID() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	b := bytes.TrimPrefix(buf[:n], []byte("goroutine "))
	if i := bytes.IndexByte(b, ' '); i > 0 {
		b = b[:i]
	}
	id, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		panic("graph: cannot parse goroutine id: " + err.Error())
	}
	return id
}
