package command

import (
	"errors"
	"net"
	"reflect"
	"testing"
	"time"

	"github.com/walrusdb/walrus/internal/proto"
	"github.com/walrusdb/walrus/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	db := store.New()
	t.Cleanup(db.Close)
	return db
}

// execute runs cmd against db over an in-memory pipe and returns the reply
// frame the peer would see.
func execute(t *testing.T, db *store.Store, cmd Command) proto.Frame {
	t.Helper()

	left, right := net.Pipe()
	defer left.Close()
	defer right.Close()

	errCh := make(chan error, 1)
	go func() { errCh <- cmd.Execute(db, proto.NewConn(left)) }()

	reply, err := proto.NewConn(right).ReadFrame()
	if err != nil {
		t.Fatalf("read reply: %v", err)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	return reply
}

// request builds the wire array for a command line of strings.
func request(parts ...string) proto.Frame {
	b := proto.NewArray()
	for _, p := range parts {
		b.AppendBulk([]byte(p))
	}
	return b.Frame()
}

// ============================================================
// FromFrame Tests - Routing
// ============================================================

func TestFromFrame_Routing(t *testing.T) {
	tests := []struct {
		name  string
		frame proto.Frame
		want  string
	}{
		{"lowercase ping", request("ping"), "ping"},
		{"uppercase GET", request("GET", "k"), "get"},
		{"mixed case SeT", request("SeT", "k", "v"), "set"},
		{"mixed case RpUsH", request("RpUsH", "k", "a"), "rpush"},
		{"unknown keeps lowered name", request("FLUSHALL"), "flushall"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := FromFrame(tt.frame)
			if err != nil {
				t.Fatalf("FromFrame() error = %v", err)
			}
			if cmd.Name() != tt.want {
				t.Errorf("Name() = %q, want %q", cmd.Name(), tt.want)
			}
		})
	}
}

func TestFromFrame_Errors(t *testing.T) {
	tests := []struct {
		name  string
		frame proto.Frame
	}{
		{"not an array", proto.Simple("ping")},
		{"empty array", proto.Array{}},
		{"get without key", request("get")},
		{"set without value", request("set", "k")},
		{"set EX without count", request("set", "k", "v", "EX")},
		{"set EX non-numeric", request("set", "k", "v", "EX", "soon")},
		{"rpush without items", request("rpush", "k")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := FromFrame(tt.frame); err == nil {
				t.Error("FromFrame() succeeded, want error")
			}
		})
	}
}

func TestFromFrame_SetUnsupportedOptionIsFatal(t *testing.T) {
	_, err := FromFrame(request("set", "k", "v", "KEEPTTL"))
	if !errors.Is(err, proto.ErrProtocol) {
		t.Errorf("FromFrame() error = %v, want ErrProtocol", err)
	}
}

// TestFromFrame_SetTTLOverflow feeds second and millisecond counts too
// large for time.Duration. A wrapped duration would come out as a short
// positive TTL and expire the key early, so parsing must reject them.
func TestFromFrame_SetTTLOverflow(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"EX overflows", []string{"set", "k", "v", "EX", "18446744074"}},
		{"EX max uint64", []string{"set", "k", "v", "EX", "18446744073709551615"}},
		{"PX overflows", []string{"set", "k", "v", "PX", "18446744073709552"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromFrame(request(tt.args...))
			if !errors.Is(err, proto.ErrProtocol) {
				t.Errorf("FromFrame() error = %v, want ErrProtocol", err)
			}
		})
	}
}

// The largest representable TTLs parse cleanly.
func TestFromFrame_SetTTLMaxRepresentable(t *testing.T) {
	cmd, err := FromFrame(request("set", "k", "v", "EX", "9223372036"))
	if err != nil {
		t.Fatalf("FromFrame() error = %v", err)
	}
	set, ok := cmd.(*Set)
	if !ok {
		t.Fatalf("command type = %T, want *Set", cmd)
	}
	if set.Expire != 9223372036*time.Second {
		t.Errorf("Expire = %v, want 9223372036s", set.Expire)
	}
}

// ============================================================
// Ping Tests
// ============================================================

func TestPing(t *testing.T) {
	db := newTestStore(t)

	cmd, err := FromFrame(request("ping"))
	if err != nil {
		t.Fatal(err)
	}
	if got := execute(t, db, cmd); !reflect.DeepEqual(got, proto.Simple("PONG")) {
		t.Errorf("reply = %#v, want Simple(PONG)", got)
	}
}

func TestPing_Echo(t *testing.T) {
	db := newTestStore(t)

	cmd, err := FromFrame(request("ping", "hello"))
	if err != nil {
		t.Fatal(err)
	}
	if got := execute(t, db, cmd); !reflect.DeepEqual(got, proto.Bulk("hello")) {
		t.Errorf("reply = %#v, want Bulk(hello)", got)
	}
}

// ============================================================
// Set / Get Tests
// ============================================================

func TestSetThenGet(t *testing.T) {
	db := newTestStore(t)

	set, err := FromFrame(request("set", "greeting", "hello"))
	if err != nil {
		t.Fatal(err)
	}
	if got := execute(t, db, set); !reflect.DeepEqual(got, proto.Simple("OK")) {
		t.Fatalf("SET reply = %#v, want Simple(OK)", got)
	}

	get, err := FromFrame(request("get", "greeting"))
	if err != nil {
		t.Fatal(err)
	}
	if got := execute(t, db, get); !reflect.DeepEqual(got, proto.Bulk("hello")) {
		t.Errorf("GET reply = %#v, want Bulk(hello)", got)
	}
}

func TestGet_Missing(t *testing.T) {
	db := newTestStore(t)

	get, err := FromFrame(request("get", "nothing"))
	if err != nil {
		t.Fatal(err)
	}
	if got := execute(t, db, get); !reflect.DeepEqual(got, proto.Null{}) {
		t.Errorf("GET reply = %#v, want Null", got)
	}
}

func TestSet_ExpireOptions(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want time.Duration
	}{
		{"no option", []string{"set", "k", "v"}, 0},
		{"EX seconds", []string{"set", "k", "v", "EX", "3"}, 3 * time.Second},
		{"ex lowercase", []string{"set", "k", "v", "ex", "3"}, 3 * time.Second},
		{"PX milliseconds", []string{"set", "k", "v", "PX", "250"}, 250 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := FromFrame(request(tt.args...))
			if err != nil {
				t.Fatalf("FromFrame() error = %v", err)
			}
			set, ok := cmd.(*Set)
			if !ok {
				t.Fatalf("command type = %T, want *Set", cmd)
			}
			if set.Expire != tt.want {
				t.Errorf("Expire = %v, want %v", set.Expire, tt.want)
			}
		})
	}
}

func TestSetWithTTL_GetAfterExpiry(t *testing.T) {
	db := newTestStore(t)

	set, err := FromFrame(request("set", "k", "v", "PX", "30"))
	if err != nil {
		t.Fatal(err)
	}
	execute(t, db, set)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := db.Get("k"); !ok {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Error("key still readable long after PX deadline")
}

// ============================================================
// RPush Tests
// ============================================================

func TestRPush(t *testing.T) {
	db := newTestStore(t)

	push, err := FromFrame(request("rpush", "list", "a", "b"))
	if err != nil {
		t.Fatal(err)
	}
	if got := execute(t, db, push); !reflect.DeepEqual(got, proto.Integer(2)) {
		t.Fatalf("first RPUSH reply = %#v, want Integer(2)", got)
	}

	again, err := FromFrame(request("rpush", "list", "c"))
	if err != nil {
		t.Fatal(err)
	}
	if got := execute(t, db, again); !reflect.DeepEqual(got, proto.Integer(3)) {
		t.Errorf("second RPUSH reply = %#v, want Integer(3)", got)
	}
}

// TestRPush_Conflict pushes onto a scalar key: the reply is integer zero
// and the stored value must be unchanged afterwards.
func TestRPush_Conflict(t *testing.T) {
	db := newTestStore(t)
	db.Set("scalar", store.Bytes("value"), 0)

	push, err := FromFrame(request("rpush", "scalar", "x"))
	if err != nil {
		t.Fatal(err)
	}
	if got := execute(t, db, push); !reflect.DeepEqual(got, proto.Integer(0)) {
		t.Fatalf("RPUSH reply = %#v, want Integer(0)", got)
	}

	get, err := FromFrame(request("get", "scalar"))
	if err != nil {
		t.Fatal(err)
	}
	if got := execute(t, db, get); !reflect.DeepEqual(got, proto.Bulk("value")) {
		t.Errorf("GET after conflict = %#v, want the original value", got)
	}
}

func TestGet_ListKeyRepliesWrongKind(t *testing.T) {
	db := newTestStore(t)
	db.Push("list", []store.Data{store.Bytes("a")})

	get, err := FromFrame(request("get", "list"))
	if err != nil {
		t.Fatal(err)
	}
	want := proto.Error("operation against a key holding the wrong kind of value")
	if got := execute(t, db, get); !reflect.DeepEqual(got, want) {
		t.Errorf("GET reply = %#v, want %#v", got, want)
	}
}

// ============================================================
// Unknown Tests
// ============================================================

func TestUnknown_RepliesWithName(t *testing.T) {
	db := newTestStore(t)

	cmd, err := FromFrame(request("SUBSCRIBE", "chan"))
	if err != nil {
		t.Fatal(err)
	}
	want := proto.Error("unknown command subscribe")
	if got := execute(t, db, cmd); !reflect.DeepEqual(got, want) {
		t.Errorf("reply = %#v, want %#v", got, want)
	}
}

// ============================================================
// Frame Builder Tests
// ============================================================

// TestFrameRoundTrip builds each command's request frame and feeds it back
// through FromFrame, pinning the client and server sides to one wire shape.
func TestFrameRoundTrip(t *testing.T) {
	t.Run("ping", func(t *testing.T) {
		cmd, err := FromFrame((&Ping{Msg: []byte("hi")}).Frame())
		if err != nil {
			t.Fatal(err)
		}
		ping, ok := cmd.(*Ping)
		if !ok || string(ping.Msg) != "hi" {
			t.Errorf("round trip = %#v, want Ping(hi)", cmd)
		}
	})

	t.Run("set always transmits px", func(t *testing.T) {
		orig := &Set{Key: "k", Value: []byte("v"), Expire: 2 * time.Second}
		cmd, err := FromFrame(orig.Frame())
		if err != nil {
			t.Fatal(err)
		}
		set, ok := cmd.(*Set)
		if !ok {
			t.Fatalf("command type = %T, want *Set", cmd)
		}
		if set.Expire != orig.Expire {
			t.Errorf("Expire = %v, want %v", set.Expire, orig.Expire)
		}
	})

	t.Run("rpush", func(t *testing.T) {
		orig := &RPush{Key: "k", Items: []store.Data{store.Bytes("a"), store.Integer(3)}}
		frame, err := orig.Frame()
		if err != nil {
			t.Fatal(err)
		}
		cmd, err := FromFrame(frame)
		if err != nil {
			t.Fatal(err)
		}
		push, ok := cmd.(*RPush)
		if !ok {
			t.Fatalf("command type = %T, want *RPush", cmd)
		}
		if !reflect.DeepEqual(push.Items, orig.Items) {
			t.Errorf("Items = %#v, want %#v", push.Items, orig.Items)
		}
	})

	t.Run("rpush rejects nested list", func(t *testing.T) {
		bad := &RPush{Key: "k", Items: []store.Data{store.List{store.Bytes("a")}}}
		if _, err := bad.Frame(); !errors.Is(err, proto.ErrNestedArray) {
			t.Errorf("Frame() error = %v, want ErrNestedArray", err)
		}
	})
}
