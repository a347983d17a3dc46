package app

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/dkeye/Meet/internal/domain"
)

const testCode = domain.MeetingCode("ABC123XYZ")

func newTestRegistry(opts ...RegistryOption) (*Registry, *recordingNotifier) {
	n := &recordingNotifier{}
	return NewRegistry(NewMemoryStore(), n, opts...), n
}

func hostReq(id string) JoinRequest {
	return JoinRequest{ID: domain.MemberID(id), UserID: "host-user", Name: "Host " + id, Host: true}
}

func guestReq(id string) JoinRequest {
	return JoinRequest{ID: domain.MemberID(id), UserID: domain.UserID("user-" + id), Name: "Guest " + id}
}

func mustJoin(t *testing.T, r *Registry, code domain.MeetingCode, req JoinRequest) {
	t.Helper()
	if _, _, err := r.Join(code, req); err != nil {
		t.Fatalf("Join(%s, %s): %v", code, req.ID, err)
	}
}

func TestJoinCreatesRoomOnlyForHost(t *testing.T) {
	r, _ := newTestRegistry()

	if _, _, err := r.Join(testCode, guestReq("g")); !errors.Is(err, domain.ErrRoomNotFound) {
		t.Fatalf("guest join on unknown code: err = %v, want ErrRoomNotFound", err)
	}
	existing, info, err := r.Join(testCode, hostReq("h"))
	if err != nil {
		t.Fatalf("host join: %v", err)
	}
	if len(existing) != 0 {
		t.Errorf("existing = %v, want empty", existing)
	}
	if !info.Active || info.HostName != "Host h" || info.ParticipantCount != 1 {
		t.Errorf("unexpected room info %+v", info)
	}
	members, _ := r.ActiveMembers(testCode)
	if len(members) != 1 || !members[0].IsHost {
		t.Errorf("members = %+v, want a single host", members)
	}
}

func TestJoinNotifiesExistingMembersInOrder(t *testing.T) {
	r, n := newTestRegistry()
	mustJoin(t, r, testCode, hostReq("h"))
	mustJoin(t, r, testCode, guestReq("m1"))

	existing, _, err := r.Join(testCode, guestReq("m2"))
	if err != nil {
		t.Fatal(err)
	}
	if len(existing) != 2 || existing[0].ID != "h" || existing[1].ID != "m1" {
		t.Fatalf("existing = %+v, want [h m1]", existing)
	}
	last := n.last()
	if last.kind != "joined" || last.subject != "m2" {
		t.Fatalf("last notification = %+v", last)
	}
	if fmt.Sprint(last.recipients) != "[h m1]" {
		t.Errorf("recipients = %v, want [h m1]", last.recipients)
	}
}

func TestJoinErrors(t *testing.T) {
	r, _ := newTestRegistry(WithSettings(domain.RoomSettings{MaxParticipants: 2, AllowScreenShare: true}))
	mustJoin(t, r, testCode, hostReq("h"))

	if _, _, err := r.Join(testCode, hostReq("h")); !errors.Is(err, domain.ErrAlreadyJoined) {
		t.Errorf("rejoin while active: err = %v, want ErrAlreadyJoined", err)
	}
	mustJoin(t, r, testCode, guestReq("g1"))
	if _, _, err := r.Join(testCode, guestReq("g2")); !errors.Is(err, domain.ErrRoomFull) {
		t.Errorf("join full room: err = %v, want ErrRoomFull", err)
	}
	if _, _, err := r.Join(testCode, JoinRequest{ID: "g3", Name: "   "}); !errors.Is(err, domain.ErrUsernameEmpty) {
		t.Errorf("blank name: err = %v", err)
	}
}

func TestLeaveAndRejoinKeepsHistory(t *testing.T) {
	r, n := newTestRegistry()
	mustJoin(t, r, testCode, hostReq("h"))
	mustJoin(t, r, testCode, guestReq("g"))

	if err := r.Leave(testCode, "g"); err != nil {
		t.Fatal(err)
	}
	if err := r.Leave(testCode, "g"); !errors.Is(err, domain.ErrNotInRoom) {
		t.Errorf("second leave: err = %v, want ErrNotInRoom", err)
	}
	if got := n.count("left"); got != 1 {
		t.Errorf("left notifications = %d, want 1", got)
	}
	mustJoin(t, r, testCode, guestReq("g"))

	room, _ := r.store.Get(testCode)
	entries := 0
	for _, m := range room.Members {
		if m.ID == "g" {
			entries++
		}
	}
	if entries != 2 {
		t.Errorf("history entries for g = %d, want 2", entries)
	}
	if room.ActiveCount() != 2 {
		t.Errorf("ActiveCount = %d, want 2", room.ActiveCount())
	}
}

func TestEmptyRoomBecomesInactive(t *testing.T) {
	r, _ := newTestRegistry()
	mustJoin(t, r, testCode, hostReq("h"))
	mustJoin(t, r, testCode, guestReq("g"))
	_ = r.Leave(testCode, "g")
	_ = r.Leave(testCode, "h")

	info, err := r.Lookup(testCode)
	if err != nil {
		t.Fatal(err)
	}
	if info.Active || info.EndedAt == nil {
		t.Fatalf("room still active after everybody left: %+v", info)
	}
	if _, _, err := r.Join(testCode, guestReq("g")); !errors.Is(err, domain.ErrRoomEnded) {
		t.Errorf("guest join on ended room: err = %v, want ErrRoomEnded", err)
	}
	if _, _, err := r.Join(testCode, JoinRequest{ID: "x", UserID: "someone-else", Name: "X", Host: true}); !errors.Is(err, domain.ErrRoomEnded) {
		t.Errorf("foreign host claim on ended room: err = %v, want ErrRoomEnded", err)
	}
	mustJoin(t, r, testCode, hostReq("h2"))
	if info, _ := r.Lookup(testCode); !info.Active {
		t.Errorf("host rejoin did not reactivate the room")
	}
}

func TestHandleDisconnectIsIdempotent(t *testing.T) {
	r, n := newTestRegistry()
	mustJoin(t, r, testCode, hostReq("h"))
	mustJoin(t, r, testCode, guestReq("g"))

	if !r.HandleDisconnect("g") {
		t.Fatal("first disconnect reported no membership")
	}
	if r.HandleDisconnect("g") {
		t.Error("second disconnect closed a membership")
	}
	if err := r.Leave(testCode, "h"); err != nil {
		t.Fatal(err)
	}
	if r.HandleDisconnect("h") {
		t.Error("disconnect after explicit leave closed a membership")
	}
	if got := n.count("left"); got != 2 {
		t.Errorf("left notifications = %d, want 2", got)
	}
}

func TestJoinOtherRoomLeavesPrevious(t *testing.T) {
	r, n := newTestRegistry()
	other := domain.MeetingCode("ZZZ999AAA")
	mustJoin(t, r, testCode, hostReq("h"))
	mustJoin(t, r, testCode, guestReq("g"))
	mustJoin(t, r, other, JoinRequest{ID: "g", UserID: "user-g", Name: "G", Host: true})

	if code, _ := r.RoomOf("g"); code != other {
		t.Errorf("RoomOf(g) = %s, want %s", code, other)
	}
	members, _ := r.ActiveMembers(testCode)
	if len(members) != 1 || members[0].ID != "h" {
		t.Errorf("old room members = %+v", members)
	}
	if n.count("left") != 1 {
		t.Errorf("expected a left notification for the old room")
	}
}

func TestEndIsHostOnly(t *testing.T) {
	r, n := newTestRegistry()
	mustJoin(t, r, testCode, hostReq("h"))
	mustJoin(t, r, testCode, guestReq("g"))

	if err := r.End(testCode, "user-g"); !errors.Is(err, domain.ErrNotHost) {
		t.Fatalf("guest end: err = %v, want ErrNotHost", err)
	}
	if err := r.End(testCode, "host-user"); err != nil {
		t.Fatal(err)
	}
	last := n.last()
	if last.kind != "ended" || len(last.recipients) != 2 {
		t.Errorf("last notification = %+v", last)
	}
	if members, _ := r.ActiveMembers(testCode); len(members) != 0 {
		t.Errorf("members after end = %+v", members)
	}
	if r.HandleDisconnect("g") {
		t.Error("disconnect after end closed a membership")
	}
}

func TestCreateAndStats(t *testing.T) {
	r, _ := newTestRegistry()
	info, err := r.Create("host-user", "Ada")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := domain.ParseCode(string(info.Code)); err != nil {
		t.Fatalf("created code %q is not valid: %v", info.Code, err)
	}
	if _, err := r.Admit(info.Code); err != nil {
		t.Errorf("Admit fresh meeting: %v", err)
	}
	mustJoin(t, r, info.Code, guestReq("g"))
	mustJoin(t, r, testCode, hostReq("h"))

	st := r.Stats()
	if st.Rooms != 2 || st.ActiveRooms != 2 || st.ActiveMembers != 2 {
		t.Errorf("Stats = %+v", st)
	}
	if _, err := r.Lookup("NOPE00000"); !errors.Is(err, domain.ErrRoomNotFound) {
		t.Errorf("Lookup unknown: err = %v", err)
	}
}

func TestConcurrentMembershipCount(t *testing.T) {
	r, _ := newTestRegistry(WithSettings(domain.RoomSettings{MaxParticipants: 1000}))
	mustJoin(t, r, testCode, hostReq("h"))

	const workers = 50
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("m%d", i)
			if _, _, err := r.Join(testCode, guestReq(id)); err != nil {
				t.Errorf("join %s: %v", id, err)
				return
			}
			switch i % 3 {
			case 0:
				_ = r.Leave(testCode, domain.MemberID(id))
			case 1:
				r.HandleDisconnect(domain.MemberID(id))
				r.HandleDisconnect(domain.MemberID(id))
			}
		}(i)
	}
	wg.Wait()

	left := 0
	for i := 0; i < workers; i++ {
		if i%3 != 2 {
			left++
		}
	}
	want := 1 + workers - left
	members, _ := r.ActiveMembers(testCode)
	if len(members) != want {
		t.Errorf("active members = %d, want %d", len(members), want)
	}
	if st := r.Stats(); st.ActiveMembers != want {
		t.Errorf("Stats.ActiveMembers = %d, want %d", st.ActiveMembers, want)
	}
}

func TestUnknownCodesDoNotGrowLockTable(t *testing.T) {
	r, _ := newTestRegistry()
	for i := 0; i < 100; i++ {
		code := domain.NewCode()
		if _, err := r.Lookup(code); !errors.Is(err, domain.ErrRoomNotFound) {
			t.Fatalf("Lookup: %v", err)
		}
		if _, err := r.Admit(code); !errors.Is(err, domain.ErrRoomNotFound) {
			t.Fatalf("Admit: %v", err)
		}
		if _, err := r.ActiveMembers(code); !errors.Is(err, domain.ErrRoomNotFound) {
			t.Fatalf("ActiveMembers: %v", err)
		}
		if _, _, err := r.Member(code, "m"); !errors.Is(err, domain.ErrRoomNotFound) {
			t.Fatalf("Member: %v", err)
		}
		if err := r.Leave(code, "m"); !errors.Is(err, domain.ErrRoomNotFound) {
			t.Fatalf("Leave: %v", err)
		}
		if err := r.End(code, "host-user"); !errors.Is(err, domain.ErrRoomNotFound) {
			t.Fatalf("End: %v", err)
		}
		if _, _, err := r.Join(code, guestReq("g")); !errors.Is(err, domain.ErrRoomNotFound) {
			t.Fatalf("Join: %v", err)
		}
	}

	r.mu.RLock()
	n := len(r.locks)
	r.mu.RUnlock()
	if n != 0 {
		t.Fatalf("lock entries = %d, want 0", n)
	}

	mustJoin(t, r, testCode, hostReq("h"))
	r.mu.RLock()
	n = len(r.locks)
	r.mu.RUnlock()
	if n != 1 {
		t.Fatalf("lock entries after host join = %d, want 1", n)
	}
}
