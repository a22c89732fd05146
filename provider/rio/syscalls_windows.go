//go:build windows

package rio

import (
	"errors"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

// errCorruptCQ signals RIO_CORRUPT_CQ from RIODequeueCompletion: the
// completion queue itself is corrupt and the current drain must fail
// outright rather than report zero completions.
var errCorruptCQ = errors.New("rio: completion queue corrupt (RIO_CORRUPT_CQ)")

// wsaidMultipleRIO is WSAID_MULTIPLE_RIO, the GUID WSAIoctl uses to hand
// back the RIO extension function table (mswsock.h).
var wsaidMultipleRIO = windows.GUID{
	Data1: 0x8509e081,
	Data2: 0x96dd,
	Data3: 0x4005,
	Data4: [8]byte{0xb1, 0x65, 0x9e, 0x2e, 0xe8, 0xc7, 0x9e, 0x3f},
}

const sioGetMultipleExtensionFunctionPointer = 0xC8000024

// functionTable mirrors RIO_EXTENSION_FUNCTION_TABLE. Every field past
// size is a raw function pointer resolved once via WSAIoctl and invoked
// with syscall.SyscallN thereafter.
type functionTable struct {
	size                     uint32
	_                        uint32 // alignment padding before the pointer fields
	receive                  uintptr
	receiveEx                uintptr
	send                     uintptr
	sendEx                   uintptr
	closeCompletionQueue     uintptr
	createCompletionQueue    uintptr
	createRequestQueue       uintptr
	dequeueCompletion        uintptr
	deregisterBuffer         uintptr
	notify                   uintptr
	registerBuffer           uintptr
	resizeCompletionQueue    uintptr
	resizeRequestQueue       uintptr
}

// rioBuf mirrors RIO_BUF: a registered-buffer id plus the offset/length
// window within it that one send or recv names.
type rioBuf struct {
	bufferID uintptr
	offset   uint32
	length   uint32
}

// rioResult mirrors RIORESULT, one dequeued completion.
type rioResult struct {
	status           int32
	bytesTransferred uint32
	socketContext    uintptr
	requestContext   uintptr
}

const (
	rioInvalidBufferID      = ^uintptr(0)
	rioMsgDontNotify   uint32 = 1
	notificationEvent  uint32 = 1
)

// rioNotificationCompletion mirrors RIO_NOTIFICATION_COMPLETION for the
// event-based model: Type = 1 (event), followed by a HANDLE and BOOL.
type rioNotificationCompletion struct {
	kind         uint32
	_            uint32
	eventHandle  windows.Handle
	eventSelect  int32
}

// resolveFunctionTable retrieves the RIO extension function table for a
// socket via WSAIoctl(SIO_GET_MULTIPLE_EXTENSION_FUNCTION_POINTER).
// Any socket bound into the same protocol stack works; the returned
// table is process-global in practice but scoping resolution through
// one socket mirrors how Winsock extension functions are always
// obtained.
func resolveFunctionTable(s windows.Handle) (*functionTable, error) {
	var table functionTable
	table.size = uint32(unsafe.Sizeof(table))

	var bytes uint32
	err := windows.WSAIoctl(
		s,
		sioGetMultipleExtensionFunctionPointer,
		(*byte)(unsafe.Pointer(&wsaidMultipleRIO)),
		uint32(unsafe.Sizeof(wsaidMultipleRIO)),
		(*byte)(unsafe.Pointer(&table)),
		table.size,
		&bytes,
		nil,
		0,
	)
	if err != nil {
		return nil, err
	}
	return &table, nil
}

func (t *functionTable) RIORegisterBuffer(buf []byte) (uintptr, error) {
	r1, _, e1 := syscall.SyscallN(t.registerBuffer, uintptr(unsafe.Pointer(&buf[0])), uintptr(uint32(len(buf))))
	if r1 == rioInvalidBufferID {
		return 0, e1
	}
	return r1, nil
}

func (t *functionTable) RIODeregisterBuffer(id uintptr) {
	syscall.SyscallN(t.deregisterBuffer, id)
}

func (t *functionTable) RIOCreateCompletionQueue(queueSize uint32, notify *rioNotificationCompletion) (uintptr, error) {
	r1, _, e1 := syscall.SyscallN(t.createCompletionQueue, uintptr(queueSize), uintptr(unsafe.Pointer(notify)))
	if r1 == 0 || r1 == rioInvalidBufferID {
		return 0, e1
	}
	return r1, nil
}

func (t *functionTable) RIOCloseCompletionQueue(cq uintptr) {
	syscall.SyscallN(t.closeCompletionQueue, cq)
}

func (t *functionTable) RIOCreateRequestQueue(s windows.Handle, maxOutstandingRecv, maxRecvBuffers, maxOutstandingSend, maxSendBuffers uint32, recvCQ, sendCQ uintptr, socketContext uintptr) (uintptr, error) {
	r1, _, e1 := syscall.SyscallN(t.createRequestQueue,
		uintptr(s),
		uintptr(maxOutstandingRecv), uintptr(maxRecvBuffers),
		uintptr(maxOutstandingSend), uintptr(maxSendBuffers),
		recvCQ, sendCQ, socketContext)
	if r1 == 0 {
		return 0, e1
	}
	return r1, nil
}

func (t *functionTable) RIOReceive(rq uintptr, buf *rioBuf, dataBufCount uint32, flags uint32, requestContext uintptr) error {
	r1, _, e1 := syscall.SyscallN(t.receive, rq, uintptr(unsafe.Pointer(buf)), uintptr(dataBufCount), uintptr(flags), requestContext)
	if r1 == 0 {
		return e1
	}
	return nil
}

func (t *functionTable) RIOSend(rq uintptr, buf *rioBuf, dataBufCount uint32, flags uint32, requestContext uintptr) error {
	r1, _, e1 := syscall.SyscallN(t.send, rq, uintptr(unsafe.Pointer(buf)), uintptr(dataBufCount), uintptr(flags), requestContext)
	if r1 == 0 {
		return e1
	}
	return nil
}

func (t *functionTable) RIONotify(cq uintptr) int32 {
	r1, _, _ := syscall.SyscallN(t.notify, cq)
	return int32(r1)
}

// RIODequeueCompletion dequeues up to len(results) completions. It
// returns errCorruptCQ if the kernel reports RIO_CORRUPT_CQ, which the
// caller must treat as a fatal provider error, not "zero completions."
func (t *functionTable) RIODequeueCompletion(cq uintptr, results []rioResult) (uint32, error) {
	if len(results) == 0 {
		return 0, nil
	}
	r1, _, _ := syscall.SyscallN(t.dequeueCompletion, cq, uintptr(unsafe.Pointer(&results[0])), uintptr(uint32(len(results))))
	return interpretDequeueResult(r1)
}

const rioCorruptCQ = 0xFFFFFFFF

// interpretDequeueResult is split out of RIODequeueCompletion so the
// RIO_CORRUPT_CQ sentinel check is unit-testable without a live socket.
func interpretDequeueResult(r1 uintptr) (uint32, error) {
	if r1 == uintptr(rioCorruptCQ) {
		return 0, errCorruptCQ
	}
	return uint32(r1), nil
}
