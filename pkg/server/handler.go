package server

import (
	"encoding/binary"

	"github.com/agilira/memcrs-go/pkg/cache"
	"github.com/agilira/memcrs-go/pkg/protocol"
	"github.com/agilira/memcrs-go/pkg/store"
)

// Handler dispatches a parsed request: it calls into MemcStore and builds
// a response, but it never touches the network itself. Handle returns the
// response to write (nil when a quiet opcode suppressed it) and whether the
// connection should close after writing.
type Handler struct {
	store *cache.MemcStore
}

// NewHandler builds a Handler over store.
func NewHandler(s *cache.MemcStore) *Handler {
	return &Handler{store: s}
}

// Handle dispatches req and returns the response to write, if any (nil
// means the success response was suppressed by a quiet opcode), and whether
// the connection should close after writing it.
func (h *Handler) Handle(req protocol.BinaryRequest) (*protocol.BinaryResponse, bool) {
	op := req.Header.Opcode
	quiet := op.IsQuiet()

	switch op {
	case protocol.OpGet, protocol.OpGetQ:
		return h.handleGet(req, quiet, false), false
	case protocol.OpGetK, protocol.OpGetKQ:
		return h.handleGet(req, quiet, true), false
	case protocol.OpSet, protocol.OpSetQ:
		return h.handleStorage(req, quiet, storeSet), false
	case protocol.OpAdd, protocol.OpAddQ:
		return h.handleStorage(req, quiet, storeAdd), false
	case protocol.OpReplace, protocol.OpReplaceQ:
		return h.handleStorage(req, quiet, storeReplace), false
	case protocol.OpDelete, protocol.OpDeleteQ:
		return h.handleDelete(req, quiet), false
	case protocol.OpIncrement, protocol.OpIncrementQ:
		return h.handleIncrDecr(req, quiet, true), false
	case protocol.OpDecrement, protocol.OpDecrementQ:
		return h.handleIncrDecr(req, quiet, false), false
	case protocol.OpAppend, protocol.OpAppendQ:
		return h.handleAppendPrepend(req, quiet, true), false
	case protocol.OpPrepend, protocol.OpPrependQ:
		return h.handleAppendPrepend(req, quiet, false), false
	case protocol.OpFlush, protocol.OpFlushQ:
		return h.handleFlush(req, quiet), false
	case protocol.OpTouch:
		return h.handleTouch(req), false
	case protocol.OpGAT, protocol.OpGATQ:
		return h.handleGAT(req, op == protocol.OpGATQ), false
	case protocol.OpNoop:
		return ok(req, nil, nil, nil, 0), false
	case protocol.OpVersion:
		return ok(req, nil, nil, []byte("1.0.0"), 0), false
	case protocol.OpQuit:
		return ok(req, nil, nil, nil, 0), true
	case protocol.OpQuitQ:
		return nil, true
	default:
		return errResp(req, protocol.StatusUnknownCommand), false
	}
}

func ok(req protocol.BinaryRequest, extras, key, value []byte, cas uint64) *protocol.BinaryResponse {
	return &protocol.BinaryResponse{
		Opcode: req.Header.Opcode,
		Status: protocol.StatusOK,
		Opaque: req.Header.Opaque,
		Cas:    cas,
		Extras: extras,
		Key:    key,
		Value:  value,
	}
}

func errResp(req protocol.BinaryRequest, status protocol.Status) *protocol.BinaryResponse {
	return &protocol.BinaryResponse{
		Opcode: req.Header.Opcode,
		Status: status,
		Opaque: req.Header.Opaque,
	}
}

func statusOf(err error) protocol.Status {
	return protocol.Status(cache.StatusFor(err))
}

func (h *Handler) handleGet(req protocol.BinaryRequest, quiet, withKey bool) *protocol.BinaryResponse {
	rec, err := h.store.Get(req.Key)
	if err != nil {
		if quiet {
			return nil
		}
		return errResp(req, protocol.StatusKeyNotFound)
	}
	extras := make([]byte, 4)
	binary.BigEndian.PutUint32(extras, rec.Header.Flags)
	var key []byte
	if withKey {
		key = req.Key
	}
	return ok(req, extras, key, rec.Value, rec.Header.Cas)
}

type storageOp int

const (
	storeSet storageOp = iota
	storeAdd
	storeReplace
)

func (h *Handler) handleStorage(req protocol.BinaryRequest, quiet bool, op storageOp) *protocol.BinaryResponse {
	if len(req.Extras) != 8 {
		return errResp(req, protocol.StatusInvalidArguments)
	}
	flags := binary.BigEndian.Uint32(req.Extras[0:4])
	expiration := binary.BigEndian.Uint32(req.Extras[4:8])

	var status store.SetStatus
	var err error
	switch op {
	case storeAdd:
		status, err = h.store.Add(req.Key, req.Value, flags, expiration)
	case storeReplace:
		status, err = h.store.Replace(req.Key, req.Value, flags, expiration, req.Header.Cas)
	default:
		status, err = h.store.Set(req.Key, req.Value, flags, expiration, req.Header.Cas)
	}

	if err != nil {
		// Quiet opcodes only suppress the success response; errors are
		// always reported.
		if store.IsKeyExists(err) {
			if op == storeAdd {
				return errResp(req, protocol.StatusItemNotStored)
			}
			return errResp(req, protocol.StatusKeyExists)
		}
		if store.IsNotFound(err) {
			if op == storeReplace {
				return errResp(req, protocol.StatusItemNotStored)
			}
			return errResp(req, protocol.StatusKeyNotFound)
		}
		return errResp(req, statusOf(err))
	}
	if quiet {
		return nil
	}
	return ok(req, nil, nil, nil, status.Cas)
}

func (h *Handler) handleDelete(req protocol.BinaryRequest, quiet bool) *protocol.BinaryResponse {
	_, err := h.store.Delete(req.Key, req.Header.Cas)
	if err != nil {
		if store.IsKeyExists(err) {
			return errResp(req, protocol.StatusKeyExists)
		}
		return errResp(req, protocol.StatusKeyNotFound)
	}
	if quiet {
		return nil
	}
	return ok(req, nil, nil, nil, 0)
}

func (h *Handler) handleIncrDecr(req protocol.BinaryRequest, quiet, positive bool) *protocol.BinaryResponse {
	if len(req.Extras) != 20 {
		return errResp(req, protocol.StatusInvalidArguments)
	}
	delta := binary.BigEndian.Uint64(req.Extras[0:8])
	initial := binary.BigEndian.Uint64(req.Extras[8:16])
	expiration := binary.BigEndian.Uint32(req.Extras[16:20])

	var newVal, newCas uint64
	var err error
	if positive {
		newVal, newCas, err = h.store.Increment(req.Key, delta, initial, expiration)
	} else {
		newVal, newCas, err = h.store.Decrement(req.Key, delta, initial, expiration)
	}
	if err != nil {
		if store.IsNotFound(err) {
			return errResp(req, protocol.StatusKeyNotFound)
		}
		if store.IsNonNumeric(err) {
			return errResp(req, protocol.StatusNonNumeric)
		}
		return errResp(req, statusOf(err))
	}
	if quiet {
		return nil
	}
	body := make([]byte, 8)
	binary.BigEndian.PutUint64(body, newVal)
	return ok(req, nil, nil, body, newCas)
}

func (h *Handler) handleAppendPrepend(req protocol.BinaryRequest, quiet, isAppend bool) *protocol.BinaryResponse {
	if len(req.Extras) != 0 {
		return errResp(req, protocol.StatusInvalidArguments)
	}
	var status store.SetStatus
	var err error
	if isAppend {
		status, err = h.store.Append(req.Key, req.Value, req.Header.Cas)
	} else {
		status, err = h.store.Prepend(req.Key, req.Value, req.Header.Cas)
	}
	if err != nil {
		if store.IsNotFound(err) {
			return errResp(req, protocol.StatusItemNotStored)
		}
		if store.IsKeyExists(err) {
			return errResp(req, protocol.StatusKeyExists)
		}
		return errResp(req, statusOf(err))
	}
	if quiet {
		return nil
	}
	return ok(req, nil, nil, nil, status.Cas)
}

func (h *Handler) handleFlush(req protocol.BinaryRequest, quiet bool) *protocol.BinaryResponse {
	var ttl uint32
	if len(req.Extras) == 4 {
		ttl = binary.BigEndian.Uint32(req.Extras[0:4])
	}
	h.store.FlushAll(ttl)
	if quiet {
		return nil
	}
	return ok(req, nil, nil, nil, 0)
}

func (h *Handler) handleTouch(req protocol.BinaryRequest) *protocol.BinaryResponse {
	if len(req.Extras) != 4 {
		return errResp(req, protocol.StatusInvalidArguments)
	}
	ttl := binary.BigEndian.Uint32(req.Extras[0:4])
	status, err := h.store.Touch(req.Key, ttl)
	if err != nil {
		return errResp(req, protocol.StatusKeyNotFound)
	}
	return ok(req, nil, nil, nil, status.Cas)
}

func (h *Handler) handleGAT(req protocol.BinaryRequest, quiet bool) *protocol.BinaryResponse {
	if len(req.Extras) != 4 {
		return errResp(req, protocol.StatusInvalidArguments)
	}
	ttl := binary.BigEndian.Uint32(req.Extras[0:4])
	status, err := h.store.Touch(req.Key, ttl)
	if err != nil {
		if quiet {
			return nil
		}
		return errResp(req, protocol.StatusKeyNotFound)
	}
	rec, err := h.store.Get(req.Key)
	if err != nil {
		if quiet {
			return nil
		}
		return errResp(req, protocol.StatusKeyNotFound)
	}
	extras := make([]byte, 4)
	binary.BigEndian.PutUint32(extras, rec.Header.Flags)
	return ok(req, extras, nil, rec.Value, status.Cas)
}
