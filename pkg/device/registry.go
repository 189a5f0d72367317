// Copyright 2018-present Network Optix, Inc. Licensed under MPL 2.0: www.mozilla.org/MPL/2.0/
package device

import (
	"fmt"
	"sgpassthru/pkg/common"
	"sgpassthru/pkg/logger"
	"sgpassthru/pkg/transport"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/pkg/errors"
)

// MaxOpenSimultaneous is the default number of devices a registry keeps
// open at once.
const MaxOpenSimultaneous = 8

// Handle names an open session. Generation tells a reused slot from the
// one a stale handle was issued for.
type Handle struct {
	Index      int    `json:"index"`
	Generation uint32 `json:"generation"`
}

func (handle Handle) String() string {
	return fmt.Sprintf("%d.%d", handle.Index, handle.Generation)
}

// ParseHandle reads the "<index>.<generation>" form String produces.
func ParseHandle(value string) (Handle, error) {
	index, generation, ok := strings.Cut(value, ".")
	if !ok {
		return Handle{}, errors.Errorf("handle '%s' is not <index>.<generation>", value)
	}
	parsedIndex, err := strconv.Atoi(index)
	if err != nil {
		return Handle{}, errors.Wrapf(err, "handle index of '%s'", value)
	}
	parsedGeneration, err := strconv.ParseUint(generation, 10, 32)
	if err != nil {
		return Handle{}, errors.Wrapf(err, "handle generation of '%s'", value)
	}
	return Handle{Index: parsedIndex, Generation: uint32(parsedGeneration)}, nil
}

type slot struct {
	session    *Session
	generation uint32
}

type Registry struct {
	lock   sync.Mutex
	slots  []slot
	opener Opener
}

func NewRegistry(capacity int, opener Opener) *Registry {
	if capacity <= 0 {
		capacity = MaxOpenSimultaneous
	}
	if opener == nil {
		opener = SystemOpener{}
	}
	return &Registry{slots: make([]slot, capacity), opener: opener}
}

func (registry *Registry) Capacity() int {
	return len(registry.slots)
}

// Open parses rawName, opens the device and binds it to a free slot.
// EMFILE is reported when every slot is taken.
func (registry *Registry) Open(rawName string, options Options) (Handle, *Session, error) {
	log := logger.GetLogger()
	name, err := ParseName(rawName)
	if err != nil {
		return Handle{}, nil, common.RaiseFrom(syscall.EINVAL, err)
	}
	registry.lock.Lock()
	defer registry.lock.Unlock()
	index := -1
	for candidate := range registry.slots {
		if registry.slots[candidate].session == nil {
			index = candidate
			break
		}
	}
	if index < 0 {
		log.Warnf("no free slot for %s, %d devices open", rawName, len(registry.slots))
		return Handle{}, nil, syscall.EMFILE
	}
	device, err := registry.opener.Open(name, options.ReadOnly)
	if err != nil {
		return Handle{}, nil, errors.Wrapf(err, "open %s", rawName)
	}
	session := NewSession(name, device, options)
	registry.slots[index].generation++
	registry.slots[index].session = session
	handle := Handle{Index: index, Generation: registry.slots[index].generation}
	log.Infof("opened %s as %s, session %s", rawName, handle, session.ID())
	return handle, session, nil
}

func (registry *Registry) detach(handle Handle) (*Session, error) {
	registry.lock.Lock()
	defer registry.lock.Unlock()
	session, err := registry.lookupLocked(handle)
	if err != nil {
		return nil, err
	}
	registry.slots[handle.Index].session = nil
	return session, nil
}

// Lookup returns the session behind handle: EBADF for handles that never
// named a session of this slot, ENODEV for closed ones.
func (registry *Registry) Lookup(handle Handle) (*Session, error) {
	registry.lock.Lock()
	defer registry.lock.Unlock()
	return registry.lookupLocked(handle)
}

func (registry *Registry) lookupLocked(handle Handle) (*Session, error) {
	if handle.Index < 0 || handle.Index >= len(registry.slots) {
		return nil, syscall.EBADF
	}
	entry := registry.slots[handle.Index]
	if entry.generation != handle.Generation {
		return nil, syscall.EBADF
	}
	if entry.session == nil || entry.session.Closed() {
		return nil, syscall.ENODEV
	}
	return entry.session, nil
}

// Close detaches the session from its slot and closes it. The slot is
// only cleared while handle still names it.
func (registry *Registry) Close(handle Handle) error {
	session, err := registry.detach(handle)
	if err != nil {
		return err
	}
	logger.GetLogger().Infof("closing %s (%s)", session.Name(), handle)
	return session.close()
}

// CloseAll closes every open session, returning the first failure.
func (registry *Registry) CloseAll() error {
	var result error
	for _, entry := range registry.List() {
		if err := registry.Close(entry.Handle); err != nil && result == nil {
			result = err
		}
	}
	return result
}

/*
 * Handle check results
 *
 * 1 - SCSI generic pass-through device
 * 3 - NVMe device
 */
const (
	HandleTypeSCSIGeneric = 1
	HandleTypeNVMe        = 3
)

// CheckHandle classifies the device behind handle.
func (registry *Registry) CheckHandle(handle Handle) (int, error) {
	session, err := registry.Lookup(handle)
	if err != nil {
		return 0, err
	}
	classification, err := session.Classify()
	if err != nil {
		return 0, err
	}
	if classification.Class == transport.ClassNVMe {
		return HandleTypeNVMe, nil
	}
	return HandleTypeSCSIGeneric, nil
}

type Entry struct {
	Handle  Handle
	Session *Session
}

func (registry *Registry) List() []Entry {
	registry.lock.Lock()
	defer registry.lock.Unlock()
	result := make([]Entry, 0, len(registry.slots))
	for index, entry := range registry.slots {
		if entry.session == nil {
			continue
		}
		result = append(result, Entry{
			Handle:  Handle{Index: index, Generation: entry.generation},
			Session: entry.session,
		})
	}
	return result
}
