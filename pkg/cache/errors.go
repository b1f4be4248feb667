package cache

import "github.com/agilira/memcrs-go/pkg/store"

// Status mirrors the binary protocol's status field (see pkg/protocol);
// defined here too so the command layer can be used, and tested, without
// importing the protocol package.
type Status uint16

const (
	StatusOK               Status = 0x0000
	StatusKeyNotFound      Status = 0x0001
	StatusKeyExists        Status = 0x0002
	StatusValueTooLarge    Status = 0x0003
	StatusInvalidArguments Status = 0x0004
	StatusItemNotStored    Status = 0x0005
	StatusNonNumeric       Status = 0x0006
	StatusUnknownCommand   Status = 0x0081
	StatusOutOfMemory      Status = 0x0082
)

// StatusFor maps an error kind returned by MemcStore to its wire status.
func StatusFor(err error) Status {
	switch {
	case err == nil:
		return StatusOK
	case store.IsNotFound(err):
		return StatusKeyNotFound
	case store.IsKeyExists(err):
		return StatusKeyExists
	case store.IsNonNumeric(err):
		return StatusNonNumeric
	case store.IsValueTooLarge(err):
		return StatusValueTooLarge
	default:
		return StatusInvalidArguments
	}
}
