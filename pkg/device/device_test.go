// Copyright 2018-present Network Optix, Inc. Licensed under MPL 2.0: www.mozilla.org/MPL/2.0/
package device

import (
	"errors"
	"sgpassthru/pkg/common"
	"sgpassthru/pkg/transport"
	"sync"
	"syscall"
	"testing"

	pkgerrors "github.com/pkg/errors"
)

// unclassifiable fails classification the way an ioctl refused by the
// device node does.
type unclassifiable struct {
	*transport.SimulatedNVMe
}

func (device unclassifiable) Classify() (transport.Classification, error) {
	return transport.Classification{}, pkgerrors.Wrapf(syscall.ENOTTY, "NVME_IOCTL_ID on %s", device.Name())
}

type unclassifiableOpener struct{}

func (opener unclassifiableOpener) Open(name Name, readOnly bool) (transport.Transport, error) {
	return unclassifiable{transport.NewSimulatedNVMe(name.String(), "", "", "", 1)}, nil
}

func TestParseName(t *testing.T) {
	name, err := ParseName(`\\.\SCSI2:0,3,1`)
	if err != nil {
		t.Fatalf("parse failed: %s", err)
	}
	if name.Kind != KindAdapter || name.Adapter != 2 || name.Address != (transport.Address{Bus: 0, Target: 3, Lun: 1}) {
		t.Errorf("unexpected adapter name %#v", name)
	}
	name, err = ParseName("SCSI0:1,2")
	if err != nil || name.Address.Lun != 0 || name.Address.Target != 2 {
		t.Errorf("unexpected adapter name without lun %#v (%v)", name, err)
	}
	name, err = ParseName("PD4")
	if err != nil || name.Kind != KindPhysicalDrive || name.Drive != 4 {
		t.Errorf("unexpected physical drive %#v (%v)", name, err)
	}
	if DevicePath(name) != "/dev/nvme4n1" {
		t.Errorf("unexpected path %s", DevicePath(name))
	}
	name, err = ParseName("/dev/sg0")
	if err != nil || name.Kind != KindPath || name.Path != "/dev/sg0" {
		t.Errorf("unexpected path name %#v (%v)", name, err)
	}
	name, err = ParseName("sim:nvme:namespaces=3,model=TESTDRIVE0000000")
	if err != nil || name.Kind != KindSimulated || name.Parameters["namespaces"] != "3" {
		t.Errorf("unexpected simulated name %#v (%v)", name, err)
	}
}

func TestParseNameErrors(t *testing.T) {
	for _, raw := range []string{"", "SCSI:1,2", "SCSI1:1", "SCSI1:1,2,3,4", "SCSI1:1,300", "sim:tape", "sim:nvme:bad"} {
		_, err := ParseName(raw)
		var invalid *ErrInvalidName
		if !errors.As(err, &invalid) {
			t.Errorf("'%s': expected ErrInvalidName, received %v", raw, err)
		}
	}
}

func TestRegistryCapacity(t *testing.T) {
	registry := NewRegistry(2, nil)
	first, _, err := registry.Open("sim:nvme", Options{})
	if err != nil {
		t.Fatalf("open failed: %s", err)
	}
	if _, _, err = registry.Open("sim:scsi", Options{}); err != nil {
		t.Fatalf("open failed: %s", err)
	}
	_, _, err = registry.Open("sim:nvme", Options{})
	if !errors.Is(err, syscall.EMFILE) {
		t.Errorf("expected EMFILE, received %v", err)
	}
	if err := registry.Close(first); err != nil {
		t.Fatalf("close failed: %s", err)
	}
	if _, err := registry.Lookup(first); !errors.Is(err, syscall.ENODEV) {
		t.Errorf("expected ENODEV for a closed handle, received %v", err)
	}
	reopened, _, err := registry.Open("sim:nvme", Options{})
	if err != nil {
		t.Fatalf("reopen failed: %s", err)
	}
	if reopened.Index != first.Index || reopened.Generation == first.Generation {
		t.Errorf("expected slot %d reused with a new generation, received %s", first.Index, reopened)
	}
	if _, err := registry.Lookup(first); !errors.Is(err, syscall.EBADF) {
		t.Errorf("expected EBADF for a stale handle, received %v", err)
	}
	if _, err := registry.Lookup(Handle{Index: 9}); !errors.Is(err, syscall.EBADF) {
		t.Errorf("expected EBADF out of range, received %v", err)
	}
	if len(registry.List()) != 2 {
		t.Errorf("expected 2 open sessions, received %d", len(registry.List()))
	}
	if err := registry.CloseAll(); err != nil || len(registry.List()) != 0 {
		t.Errorf("expected every session closed, received %v", err)
	}
}

func TestRegistryConcurrentClose(t *testing.T) {
	registry := NewRegistry(1, nil)
	for iteration := 0; iteration < 100; iteration++ {
		handle, _, err := registry.Open("sim:nvme", Options{})
		if err != nil {
			t.Fatalf("iteration %d: open failed: %s", iteration, err)
		}
		results := make(chan error, 2)
		var group sync.WaitGroup
		for closer := 0; closer < 2; closer++ {
			group.Add(1)
			go func() {
				defer group.Done()
				results <- registry.Close(handle)
			}()
		}
		group.Wait()
		close(results)
		succeeded := 0
		for err := range results {
			if err == nil {
				succeeded++
			}
		}
		if succeeded != 1 {
			t.Fatalf("iteration %d: expected exactly one close to succeed, %d did", iteration, succeeded)
		}
	}
	stale, _, _ := registry.Open("sim:nvme", Options{})
	_ = registry.Close(stale)
	current, _, err := registry.Open("sim:nvme", Options{})
	if err != nil {
		t.Fatalf("reopen failed: %s", err)
	}
	if err := registry.Close(stale); !errors.Is(err, syscall.EBADF) {
		t.Errorf("expected EBADF closing a stale handle, received %v", err)
	}
	if _, err := registry.Lookup(current); err != nil {
		t.Errorf("stale close detached the current session: %v", err)
	}
}

func TestRegistryOpenBadName(t *testing.T) {
	registry := NewRegistry(0, nil)
	if registry.Capacity() != MaxOpenSimultaneous {
		t.Errorf("expected default capacity %d, received %d", MaxOpenSimultaneous, registry.Capacity())
	}
	_, _, err := registry.Open("sim:tape", Options{})
	if errno, ok := common.Errno(err); !ok || errno != syscall.EINVAL {
		t.Errorf("expected EINVAL, received %v", err)
	}
}

func TestCheckHandle(t *testing.T) {
	registry := NewRegistry(4, nil)
	nvmeHandle, _, _ := registry.Open("sim:nvme", Options{})
	scsiHandle, _, _ := registry.Open("sim:scsi", Options{})
	if kind, err := registry.CheckHandle(nvmeHandle); err != nil || kind != HandleTypeNVMe {
		t.Errorf("expected NVMe, received %d (%v)", kind, err)
	}
	if kind, err := registry.CheckHandle(scsiHandle); err != nil || kind != HandleTypeSCSIGeneric {
		t.Errorf("expected SCSI generic, received %d (%v)", kind, err)
	}
}

func TestClassificationFailureIsSticky(t *testing.T) {
	registry := NewRegistry(1, nil)
	_, session, err := registry.Open("sim:nvme:classify=fail", Options{})
	if err != nil {
		t.Fatalf("open failed: %s", err)
	}
	for attempt := 0; attempt < 2; attempt++ {
		_, err := session.Classify()
		if errno, ok := common.Errno(err); !ok || errno != syscall.EIO {
			t.Errorf("attempt %d: expected EIO, received %v", attempt, err)
		}
	}
	simulated := session.Transport().(*transport.SimulatedNVMe)
	simulated.ClassifyFailure = false
	if _, err := session.Classify(); err == nil {
		t.Errorf("expected classification not to be retried")
	}
}

func TestClassificationFailureReportsEIO(t *testing.T) {
	registry := NewRegistry(1, unclassifiableOpener{})
	_, session, err := registry.Open("/dev/nvme0n1", Options{})
	if err != nil {
		t.Fatalf("open failed: %s", err)
	}
	for attempt := 0; attempt < 2; attempt++ {
		_, err := session.Classify()
		if errno, ok := common.Errno(err); !ok || errno != syscall.EIO {
			t.Errorf("attempt %d: expected EIO, received %v", attempt, err)
		}
		if !errors.Is(err, syscall.EIO) {
			t.Errorf("attempt %d: expected error to unwrap to EIO, received %v", attempt, err)
		}
	}
}

func TestSessionNamespaceAndIdentity(t *testing.T) {
	registry := NewRegistry(1, nil)
	_, session, _ := registry.Open("sim:nvme:nsid=2,namespaces=2", Options{})
	if !session.IsNVMe() || session.NamespaceID() != 2 {
		t.Errorf("expected NVMe namespace 2, received %d", session.NamespaceID())
	}
	if session.CachedIdentity() != nil {
		t.Errorf("expected empty identity cache")
	}
	session.StoreIdentity([]byte{1, 2, 3})
	if len(session.CachedIdentity()) != 3 {
		t.Errorf("expected identity to be cached")
	}
	if session.ID().String() == "" {
		t.Errorf("expected session id")
	}
}

func TestParseHandle(t *testing.T) {
	handle, err := ParseHandle("3.17")
	if err != nil || handle != (Handle{Index: 3, Generation: 17}) {
		t.Errorf("unexpected handle %v (%v)", handle, err)
	}
	if parsed, err := ParseHandle(handle.String()); err != nil || parsed != handle {
		t.Errorf("expected %v to survive String, received %v (%v)", handle, parsed, err)
	}
	for _, raw := range []string{"", "3", "a.1", "1.b", "1.-2"} {
		if _, err := ParseHandle(raw); err == nil {
			t.Errorf("'%s': expected an error", raw)
		}
	}
}
