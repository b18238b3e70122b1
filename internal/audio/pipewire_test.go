package audio

import (
	"errors"
	"strings"
	"testing"
	"time"
)

// fakeCommands replaces runCommand for the duration of a test.
func fakeCommands(t *testing.T, fn func(name string, args ...string) ([]byte, error)) {
	t.Helper()
	orig := runCommand
	runCommand = fn
	t.Cleanup(func() { runCommand = orig })
}

func portsOutput(ports ...string) func(string, ...string) ([]byte, error) {
	return func(name string, args ...string) ([]byte, error) {
		return []byte(strings.Join(ports, "\n") + "\n"), nil
	}
}

func TestValidateSource_Success(t *testing.T) {
	fakeCommands(t, portsOutput("Chrome:output_FL", "alsa_input.usb:capture_FL"))

	if err := NewPipeWire().ValidateSource("alsa_input.usb:capture_FL"); err != nil {
		t.Errorf("Expected no error for valid single port, got: %v", err)
	}
}

func TestValidateSource_NotFound(t *testing.T) {
	fakeCommands(t, portsOutput("Chrome:output_FL"))

	err := NewPipeWire().ValidateSource("nonexistent:port")
	if err == nil {
		t.Fatal("Expected error for nonexistent port")
	}
	if !strings.Contains(err.Error(), "port not found") {
		t.Errorf("Expected 'port not found' error, got: %v", err)
	}
}

func TestValidateSource_DuplicateDetection(t *testing.T) {
	fakeCommands(t, portsOutput(
		"Chrome:output_FL",
		"Chrome:output_FL",
		"Chrome-2:output_FL",
	))

	err := NewPipeWire().ValidateSource("Chrome:output_FL")
	if err == nil {
		t.Fatal("Expected error for duplicate sources")
	}
	if !strings.Contains(err.Error(), "duplicate sources detected") {
		t.Errorf("Expected 'duplicate sources detected' error, got: %v", err)
	}
}

func TestValidateSource_DefaultSkipsLookup(t *testing.T) {
	fakeCommands(t, func(string, ...string) ([]byte, error) {
		t.Error("pw-link must not run for the default source")
		return nil, nil
	})

	for _, source := range []string{"", "default"} {
		if err := NewPipeWire().ValidateSource(source); err != nil {
			t.Errorf("Expected no error for %q, got: %v", source, err)
		}
	}
}

func TestParsePorts_SkipsHeaders(t *testing.T) {
	out := "Output ports:\n  system:capture_1\n\n  Firefox:output_FL\nInput ports:\n"
	ports := parsePorts(out)
	if len(ports) != 2 || ports[0] != "system:capture_1" || ports[1] != "Firefox:output_FL" {
		t.Errorf("Unexpected ports: %v", ports)
	}
}

func TestFindPortDuplicates(t *testing.T) {
	tests := []struct {
		name  string
		port  string
		ports []string
		want  int
	}{
		{"identical entries", "Chrome:output_FL", []string{"Chrome:output_FL", "Chrome:output_FL", "Chrome-2:output_FL"}, 2},
		{"numbered instance is distinct", "Firefox:output_FL", []string{"Firefox:output_FL", "Firefox (1):output_FL"}, 1},
		{"absent", "system:capture_1", []string{"Chrome:output_FL"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := findPortDuplicates(tt.port, tt.ports)
			if len(got) != tt.want {
				t.Errorf("Expected %d matches, got %d: %v", tt.want, len(got), got)
			}
		})
	}
}

func TestPipeWireInput_ConnectsNamedSource(t *testing.T) {
	var linked []string
	fakeCommands(t, func(name string, args ...string) ([]byte, error) {
		linked = append(linked, name+" "+strings.Join(args, " "))
		return nil, nil
	})

	in := NewPipeWire().Input("system:capture_1")
	if in.Wrapper[0] != "pw-jack" {
		t.Errorf("Expected pw-jack wrapper, got %v", in.Wrapper)
	}
	if in.Connect == nil {
		t.Fatal("Expected a connect step for a named source")
	}
	if err := in.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if len(linked) != 1 || linked[0] != "pw-link system:capture_1 yarm_capture:input_1" {
		t.Errorf("Unexpected pw-link calls: %v", linked)
	}

	if NewPipeWire().Input("default").Connect != nil {
		t.Error("Expected no connect step for the default source")
	}
}

func TestConnectWithRetry_GivesUp(t *testing.T) {
	calls := 0
	fakeCommands(t, func(string, ...string) ([]byte, error) {
		calls++
		return []byte("no such port"), errors.New("exit status 1")
	})

	pw := &PipeWire{retryDelay: time.Millisecond}
	err := pw.connectWithRetry("a:out", "b:in", 3)
	if err == nil {
		t.Fatal("Expected error after retries")
	}
	if calls != 3 {
		t.Errorf("Expected 3 attempts, got %d", calls)
	}
}

func TestPulseListSources(t *testing.T) {
	fakeCommands(t, portsOutput(
		"0\talsa_output.pci.monitor\tPipeWire\ts32le 2ch 48000Hz\tSUSPENDED",
		"1\talsa_input.pci.analog-stereo\tPipeWire\ts32le 2ch 48000Hz\tRUNNING",
	))

	sources, err := NewPulse().ListSources()
	if err != nil {
		t.Fatalf("ListSources failed: %v", err)
	}
	if len(sources) != 2 || sources[1] != "alsa_input.pci.analog-stereo" {
		t.Errorf("Unexpected sources: %v", sources)
	}
	if err := NewPulse().ValidateSource("missing"); err == nil {
		t.Error("Expected error for missing source")
	}
}

func TestNewBackend(t *testing.T) {
	if b, err := NewBackend("pulse"); err != nil || b.Type() != BackendTypePulse {
		t.Errorf("Expected pulse backend, got %v, %v", b, err)
	}
	if b, err := NewBackend("PipeWire"); err != nil || b.Type() != BackendTypePipeWire {
		t.Errorf("Expected pipewire backend, got %v, %v", b, err)
	}
	if _, err := NewBackend("jack"); err == nil || !strings.Contains(err.Error(), "available") {
		t.Errorf("Expected unknown backend error listing alternatives, got %v", err)
	}
}
