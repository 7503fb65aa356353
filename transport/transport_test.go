package transport

import (
	"net"
	"testing"
	"time"

	"github.com/mame82/cdcboot/config"
	"github.com/pkg/errors"
	"go.bug.st/serial/enumerator"
)

func TestOpenTCP(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	rwc, err := Open(config.Host{Address: ln.Addr().String(), Timeout: time.Second})
	if err != nil {
		t.Fatal(err)
	}
	defer rwc.Close()

	var dev net.Conn
	select {
	case dev = <-accepted:
	case <-time.After(time.Second):
		t.Fatal("no connection")
	}
	defer dev.Close()

	if _, err := rwc.Write([]byte{0x07}); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 1)
	if _, err := dev.Read(buf); err != nil || buf[0] != 0x07 {
		t.Fatalf("device read % x, %v", buf, err)
	}
}

func TestOpenNothingConfigured(t *testing.T) {
	if _, err := Open(config.Host{}); errors.Cause(err) != ErrNoDevice {
		t.Fatalf("err = %v, want ErrNoDevice", err)
	}
}

func TestMatchesUSB(t *testing.T) {
	tests := []struct {
		port *enumerator.PortDetails
		want bool
	}{
		{&enumerator.PortDetails{Name: "/dev/ttyACM0", IsUSB: true, VID: "16D0", PID: "0E6E"}, true},
		{&enumerator.PortDetails{Name: "/dev/ttyACM1", IsUSB: true, VID: "16d0", PID: "0e6e"}, true},
		{&enumerator.PortDetails{Name: "/dev/ttyACM2", IsUSB: true, VID: "16d0", PID: "0e6f"}, false},
		{&enumerator.PortDetails{Name: "/dev/ttyS0", VID: "16d0", PID: "0e6e"}, false},
	}
	for _, tt := range tests {
		if got := matchesUSB(tt.port, 0x16d0, 0x0e6e); got != tt.want {
			t.Errorf("matchesUSB(%s) = %v, want %v", tt.port.Name, got, tt.want)
		}
	}
}
