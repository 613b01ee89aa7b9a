package driver

import (
	"errors"
	"testing"
)

// fakeDevice carries only a name; registry tests never exercise the
// device surface.
type fakeDevice struct {
	Device
	name string
}

func (d *fakeDevice) Name() string { return d.name }

func fakeFactory(name string) Factory {
	return func() (Device, error) {
		return &fakeDevice{name: name}, nil
	}
}

func TestRegisterAndOpen(t *testing.T) {
	Register("reg-test", fakeFactory("reg-test"))
	t.Cleanup(func() { Unregister("reg-test") })

	if !IsRegistered("reg-test") {
		t.Fatal("IsRegistered() = false after Register")
	}

	d, err := Open("reg-test")
	if err != nil {
		t.Fatalf("Open() = %v", err)
	}
	if d.Name() != "reg-test" {
		t.Errorf("Name() = %q, want %q", d.Name(), "reg-test")
	}
}

func TestOpenUnknown(t *testing.T) {
	_, err := Open("never-registered")
	if !errors.Is(err, ErrDeviceNotAvailable) {
		t.Errorf("Open(unknown) = %v, want ErrDeviceNotAvailable", err)
	}
}

func TestUnregister(t *testing.T) {
	Register("unreg-test", fakeFactory("unreg-test"))
	Unregister("unreg-test")

	if IsRegistered("unreg-test") {
		t.Error("IsRegistered() = true after Unregister")
	}
	if _, err := Open("unreg-test"); !errors.Is(err, ErrDeviceNotAvailable) {
		t.Errorf("Open after Unregister = %v, want ErrDeviceNotAvailable", err)
	}
}

func TestAvailable(t *testing.T) {
	Register("avail-test", fakeFactory("avail-test"))
	t.Cleanup(func() { Unregister("avail-test") })

	found := false
	for _, name := range Available() {
		if name == "avail-test" {
			found = true
		}
	}
	if !found {
		t.Errorf("Available() = %v, missing avail-test", Available())
	}
}

func TestDefaultPrefersHardware(t *testing.T) {
	Register(DriverOpenCL, fakeFactory("hw"))
	Register(DriverSoft, fakeFactory("sw"))
	t.Cleanup(func() {
		Unregister(DriverOpenCL)
		Unregister(DriverSoft)
	})

	d, err := Default()
	if err != nil {
		t.Fatalf("Default() = %v", err)
	}
	if d.Name() != "hw" {
		t.Errorf("Default() picked %q, want the hardware driver", d.Name())
	}
}

func TestDefaultSkipsFailingDriver(t *testing.T) {
	Register(DriverOpenCL, func() (Device, error) {
		return nil, ErrDeviceNotAvailable
	})
	Register(DriverSoft, fakeFactory("sw"))
	t.Cleanup(func() {
		Unregister(DriverOpenCL)
		Unregister(DriverSoft)
	})

	d, err := Default()
	if err != nil {
		t.Fatalf("Default() = %v", err)
	}
	if d.Name() != "sw" {
		t.Errorf("Default() picked %q, want the fallback driver", d.Name())
	}
}

func TestDefaultNoDrivers(t *testing.T) {
	// The registry is package-global; this test relies on no other
	// name colliding with the priority list while it runs.
	if IsRegistered(DriverOpenCL) || IsRegistered(DriverSoft) {
		t.Skip("real drivers registered in this binary")
	}
	if _, err := Default(); !errors.Is(err, ErrDeviceNotAvailable) {
		t.Errorf("Default() = %v, want ErrDeviceNotAvailable", err)
	}
}
