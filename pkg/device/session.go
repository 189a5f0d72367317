// Copyright 2018-present Network Optix, Inc. Licensed under MPL 2.0: www.mozilla.org/MPL/2.0/
// Package device
// Open pass-through devices and the bounded table that owns them
package device

import (
	"sgpassthru/pkg/common"
	"sgpassthru/pkg/logger"
	"sgpassthru/pkg/transport"
	"sync"
	"syscall"

	uuid "github.com/satori/go.uuid"
)

// Strategy selects how SCSI data reaches the transport.
type Strategy int

const (
	// caller buffers are handed over as they are
	StrategyDirect Strategy = iota
	// data is staged through a request owned buffer
	StrategyIndirect
)

func (strategy Strategy) String() string {
	if strategy == StrategyIndirect {
		return "indirect"
	}
	return "direct"
}

// LowPowerPolicy decides whether TEST UNIT READY fails while the NVMe
// controller sits in a non operational power state.
type LowPowerPolicy int

const (
	LowPowerIgnore LowPowerPolicy = iota
	LowPowerReport
)

type Options struct {
	ReadOnly bool
	Strategy Strategy
	LowPower LowPowerPolicy
	// overrides the namespace id the device reports when nonzero
	NamespaceID uint32
	Verbose     int
}

type Session struct {
	lock      sync.Mutex
	id        uuid.UUID
	name      Name
	options   Options
	transport transport.Transport

	classified     bool
	classification transport.Classification
	classifyErr    error
	namespaceID    uint32

	identity []byte
	closed   bool
}

func NewSession(name Name, device transport.Transport, options Options) *Session {
	return &Session{
		id:          uuid.NewV4(),
		name:        name,
		options:     options,
		transport:   device,
		namespaceID: options.NamespaceID,
	}
}

func (session *Session) ID() uuid.UUID {
	return session.id
}

func (session *Session) Name() Name {
	return session.name
}

func (session *Session) Address() transport.Address {
	return session.name.Address
}

func (session *Session) ReadOnly() bool {
	return session.options.ReadOnly
}

func (session *Session) Strategy() Strategy {
	return session.options.Strategy
}

func (session *Session) LowPowerPolicy() LowPowerPolicy {
	return session.options.LowPower
}

func (session *Session) Verbose() int {
	return session.options.Verbose
}

func (session *Session) Transport() transport.Transport {
	return session.transport
}

// Classify probes the device on first use only. When the probe failed
// every later call reports EIO without probing again.
func (session *Session) Classify() (transport.Classification, error) {
	session.lock.Lock()
	defer session.lock.Unlock()
	if session.closed {
		return transport.Classification{}, syscall.ENODEV
	}
	if !session.classified {
		session.classified = true
		session.classification, session.classifyErr = session.transport.Classify()
		if session.classifyErr != nil {
			logger.GetLogger().Warnf("%s: unable to classify: %s", session.name, session.classifyErr)
		} else if session.namespaceID == 0 {
			session.namespaceID = session.classification.NamespaceID
		}
	}
	if session.classifyErr != nil {
		return transport.Classification{}, common.RaiseFrom(session.classifyErr, syscall.EIO)
	}
	return session.classification, nil
}

func (session *Session) IsNVMe() bool {
	classification, err := session.Classify()
	return err == nil && classification.Class == transport.ClassNVMe
}

func (session *Session) NamespaceID() uint32 {
	session.lock.Lock()
	defer session.lock.Unlock()
	return session.namespaceID
}

func (session *Session) SetNamespaceID(namespaceID uint32) {
	session.lock.Lock()
	defer session.lock.Unlock()
	session.namespaceID = namespaceID
}

// CachedIdentity is the Identify Controller payload fetched earlier, nil
// until one is stored.
func (session *Session) CachedIdentity() []byte {
	session.lock.Lock()
	defer session.lock.Unlock()
	return session.identity
}

func (session *Session) StoreIdentity(data []byte) {
	session.lock.Lock()
	defer session.lock.Unlock()
	session.identity = append([]byte{}, data...)
}

func (session *Session) Closed() bool {
	session.lock.Lock()
	defer session.lock.Unlock()
	return session.closed
}

func (session *Session) close() error {
	session.lock.Lock()
	defer session.lock.Unlock()
	if session.closed {
		return syscall.ENODEV
	}
	session.closed = true
	session.identity = nil
	return session.transport.Close()
}
