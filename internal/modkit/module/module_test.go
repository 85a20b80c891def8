package module

import (
	"slices"
	"strings"
	"testing"

	kit "gourcewall/internal/platform/testkit"
)

type Counter interface{ Count() int }

type counter int

func (c counter) Count() int { return int(c) }

type stub struct {
	name  string
	ports any
}

func (m stub) Name() string { return m.name }
func (m stub) Ports() any   { return m.ports }

func TestPortsOf(t *testing.T) {
	t.Parallel()

	type bundle struct {
		Label   string
		Counter Counter
	}
	type private struct{ c Counter }

	cases := []struct {
		name   string
		ports  any
		wantOK bool
		want   int
	}{
		{name: "nil", ports: nil},
		{name: "bundle is the port", ports: Counter(counter(4)), wantOK: true, want: 4},
		{name: "struct field", ports: bundle{Label: "x", Counter: counter(7)}, wantOK: true, want: 7},
		{name: "pointer to struct", ports: &bundle{Counter: counter(9)}, wantOK: true, want: 9},
		{name: "nil pointer", ports: (*bundle)(nil)},
		{name: "unexported field", ports: private{c: counter(1)}},
		{name: "scalar", ports: "feed"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := PortsOf[Counter](stub{name: tc.name, ports: tc.ports})
			if ok != tc.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tc.wantOK)
			}
			if ok && got.Count() != tc.want {
				t.Fatalf("Count() = %d, want %d", got.Count(), tc.want)
			}
		})
	}
}

func TestMustPortsOf(t *testing.T) {
	t.Parallel()

	if got := MustPortsOf[Counter](stub{name: "rotation", ports: counter(3)}).Count(); got != 3 {
		t.Fatalf("MustPortsOf = %d", got)
	}

	defer func() {
		msg, _ := recover().(string)
		if !strings.Contains(msg, "empty") || !strings.Contains(msg, "Counter") {
			t.Fatalf("panic = %q", msg)
		}
	}()
	MustPortsOf[Counter](stub{name: "empty"})
}

func TestRegistry(t *testing.T) {
	kit.Serial(t)
	Reset()
	t.Cleanup(Reset)

	if _, ok := Lookup[Counter]("feed"); ok {
		t.Fatal("lookup before register should miss")
	}

	Register(stub{name: "rotation", ports: counter(1)})
	Register(stub{name: "feed", ports: counter(2)})
	Register(stub{name: "feed", ports: counter(5)})

	got, ok := Lookup[Counter]("feed")
	if !ok || got.Count() != 5 {
		t.Fatalf("Lookup = %v, %v; want the later registration", got, ok)
	}
	if _, ok := Lookup[string]("feed"); ok {
		t.Fatal("type mismatch should miss")
	}
	if names := Names(); !slices.Equal(names, []string{"feed", "rotation"}) {
		t.Fatalf("Names = %v", names)
	}

	Reset()
	if len(Names()) != 0 {
		t.Fatal("Reset left entries")
	}
}
