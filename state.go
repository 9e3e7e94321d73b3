package asynx

// MaxLength is the largest length or capacity a Stack can reach.
const MaxLength = 1<<31 - 1

// stackState packs a Stack's lock flag, capacity and length into one word
// so all three can be observed and replaced by a single CAS.
//
//	Bit 63:    locked
//	Bit 32-62: capacity
//	Bit 0-31:  length (bounded to 31 bits like capacity)
//
// Encoding and decoding are pure; the atomic lives in Stack.
type stackState uint64

const (
	stateLockBit  = uint64(1) << 63
	stateCapShift = 32
	stateLenMask  = uint64(1)<<32 - 1
	stateCapMask  = uint64(MaxLength) << stateCapShift
)

// packState encodes the three fields. A capacity or length above MaxLength
// is a fatal violation.
func packState(locked bool, capacity, length uint32) stackState {
	if capacity > MaxLength {
		fatal(ErrLengthOverflow, "capacity %d", capacity)
	}
	if length > MaxLength {
		fatal(ErrLengthOverflow, "length %d", length)
	}
	s := uint64(capacity)<<stateCapShift | uint64(length)
	if locked {
		s |= stateLockBit
	}
	return stackState(s)
}

// decodeState validates a raw word read from memory.
func decodeState(v uint64) stackState {
	s := stackState(v)
	if s.length() > MaxLength {
		fatal(ErrLengthOverflow, "length %d in state %#x", s.length(), v)
	}
	return s
}

func (s stackState) locked() bool {
	return uint64(s)&stateLockBit != 0
}

func (s stackState) capacity() uint32 {
	return uint32((uint64(s) & stateCapMask) >> stateCapShift)
}

func (s stackState) length() uint32 {
	return uint32(uint64(s) & stateLenMask)
}

func (s stackState) withLocked(locked bool) stackState {
	return packState(locked, s.capacity(), s.length())
}

func (s stackState) withLength(length uint32) stackState {
	return packState(s.locked(), s.capacity(), length)
}

func (s stackState) withCapacity(capacity uint32) stackState {
	return packState(s.locked(), capacity, s.length())
}
